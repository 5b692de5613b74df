package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"geotrack_live/models"
	"geotrack_live/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TrackingHandler отдает состояние сессии отслеживания браузеру
type TrackingHandler struct {
	session *services.TrackingSession
	client  services.TraccarAPI
	baseURL string // адрес сервера Traccar для ссылок на медиа
}

// NewTrackingHandler создает новый экземпляр TrackingHandler
func NewTrackingHandler(session *services.TrackingSession, client services.TraccarAPI, baseURL string) *TrackingHandler {
	return &TrackingHandler{
		session: session,
		client:  client,
		baseURL: baseURL,
	}
}

// SessionInfo состояние сессии со сводкой по парку
type SessionInfo struct {
	SessionID string                `json:"sessionId"`
	State     models.SessionState   `json:"state"`
	Loading   bool                  `json:"loading"`
	Error     string                `json:"error,omitempty"`
	Summary   services.FleetSummary `json:"summary"`
}

// Selection выбранное устройство и его телеметрия
type Selection struct {
	Device    *models.Device           `json:"device"`
	Telemetry *services.TelemetryPanel `json:"telemetry"`
}

// SelectionRequest тело PUT /api/selection. deviceId == null снимает выбор.
type SelectionRequest struct {
	DeviceID *int `json:"deviceId"`
}

// GetSession возвращает состояние сессии
// GET /api/session
func (h *TrackingHandler) GetSession(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, sessionInfo(h.session.Snapshot()))
}

// GetDevices возвращает список устройств с производными статусами
// GET /api/devices
func (h *TrackingHandler) GetDevices(c *gin.Context) {
	snap := h.session.Snapshot()
	if snap.State == models.StateError {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"error":  snap.Error,
			"retry":  "POST /api/refresh",
		})
		return
	}

	rows := services.BuildDeviceRows(snap)
	SuccessResponse(c, http.StatusOK, gin.H{
		"items":   rows,
		"total":   len(rows),
		"state":   snap.State,
		"loading": snap.Loading,
		"error":   snap.Error,
	})
}

// GetDevice возвращает панель телеметрии устройства
// GET /api/devices/:id
func (h *TrackingHandler) GetDevice(c *gin.Context) {
	id, ok := parseDeviceID(c)
	if !ok {
		return
	}

	snap := h.session.Snapshot()
	device, found := snap.Device(id)
	if !found {
		ErrorResponse(c, http.StatusNotFound, "Устройство не найдено")
		return
	}

	SuccessResponse(c, http.StatusOK, services.BuildTelemetryPanel(snap, device, h.baseURL))
}

// GetDevicePositions запрашивает позиции одного устройства напрямую у сервера Traccar.
// Состояние сессии не меняется.
// GET /api/devices/:id/positions
func (h *TrackingHandler) GetDevicePositions(c *gin.Context) {
	id, ok := parseDeviceID(c)
	if !ok {
		return
	}

	positions, err := h.client.FetchDevicePositions(c.Request.Context(), id)
	if err != nil {
		ErrorResponse(c, http.StatusBadGateway, err.Error())
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}

	SuccessResponse(c, http.StatusOK, gin.H{
		"items": positions,
		"total": len(positions),
	})
}

// GetPositions возвращает маркеры для карты
// GET /api/positions
func (h *TrackingHandler) GetPositions(c *gin.Context) {
	markers := services.BuildMarkers(h.session.Snapshot())
	SuccessResponse(c, http.StatusOK, gin.H{
		"items": markers,
		"total": len(markers),
	})
}

// GetSelection возвращает выбранное устройство
// GET /api/selection
func (h *TrackingHandler) GetSelection(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, h.selection(h.session.Snapshot()))
}

// PutSelection выбирает устройство или снимает выбор. Устройство, которого нет в
// текущем списке, тоже можно выбрать, позиции у него просто не будет.
// PUT /api/selection
func (h *TrackingHandler) PutSelection(c *gin.Context) {
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Некорректные входные данные: "+err.Error())
		return
	}

	if req.DeviceID == nil {
		h.session.SelectDevice(nil)
	} else {
		device, found := h.session.Snapshot().Device(*req.DeviceID)
		if !found {
			device = models.Device{ID: *req.DeviceID}
		}
		h.session.SelectDevice(&device)
	}

	SuccessResponse(c, http.StatusOK, h.selection(h.session.Snapshot()))
}

// Refresh повторно загружает устройства и позиции
// POST /api/refresh
func (h *TrackingHandler) Refresh(c *gin.Context) {
	if err := h.session.Refresh(c.Request.Context()); err != nil {
		ErrorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, sessionInfo(h.session.Snapshot()))
}

// ExportDevices выгружает список устройств в xlsx
// GET /api/export/devices.xlsx
func (h *TrackingHandler) ExportDevices(c *gin.Context) {
	snap := h.session.Snapshot()

	var buf bytes.Buffer
	if err := services.WriteFleetXLSX(&buf, snap); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Ошибка формирования файла")
		return
	}

	filename := fmt.Sprintf("devices_%s.xlsx", snap.Now.UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *TrackingHandler) selection(snap *services.SessionSnapshot) Selection {
	if snap.Selected == nil {
		return Selection{}
	}
	panel := services.BuildTelemetryPanel(snap, *snap.Selected, h.baseURL)
	return Selection{Device: snap.Selected, Telemetry: &panel}
}

func sessionInfo(snap *services.SessionSnapshot) SessionInfo {
	return SessionInfo{
		SessionID: snap.SessionID,
		State:     snap.State,
		Loading:   snap.Loading,
		Error:     snap.Error,
		Summary:   services.BuildFleetSummary(snap),
	}
}

func parseDeviceID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Некорректный ID")
		return 0, false
	}
	return id, true
}

// Ping проверка доступности сервиса
// GET /ping
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "pong",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
