package services

import (
	"math"
	"strings"
	"time"

	"geotrack_live/models"
)

// Виды медиа в панели телеметрии
const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// Форматы видеопотока
const (
	VideoFormatRTSP = "rtsp"
	VideoFormatHLS  = "hls"
	VideoFormatMP4  = "mp4"
)

// DeviceRow строка списка устройств
type DeviceRow struct {
	Device      models.Device       `json:"device"`
	Status      models.DeviceStatus `json:"status"`
	HasPosition bool                `json:"hasPosition"`
	LastUpdate  *time.Time          `json:"lastUpdate,omitempty"` // serverTime позиции
	SpeedKmh    *int64              `json:"speedKmh,omitempty"`
	Ignition    string              `json:"ignition,omitempty"` // ON/OFF, только если атрибут есть
	Fuel        string              `json:"fuel,omitempty"`     // "45%"
}

// TelemetryPanel подробная телеметрия выбранного устройства
type TelemetryPanel struct {
	Device      models.Device       `json:"device"`
	Status      models.DeviceStatus `json:"status"`
	Position    *models.Position    `json:"position"`
	Speed       string              `json:"speed,omitempty"`
	Coordinates string              `json:"coordinates,omitempty"`
	Altitude    string              `json:"altitude,omitempty"`
	Course      string              `json:"course,omitempty"`
	Accuracy    string              `json:"accuracy,omitempty"`
	Valid       bool                `json:"valid"`
	Attributes  models.Attributes   `json:"attributes"`
	MediaURL    string              `json:"mediaUrl,omitempty"`
	MediaKind   string              `json:"mediaKind,omitempty"`
	VideoURL    string              `json:"videoUrl,omitempty"`
	VideoFormat string              `json:"videoFormat,omitempty"`
	DeviceTime  *time.Time          `json:"deviceTime,omitempty"`
	ServerTime  *time.Time          `json:"serverTime,omitempty"`
}

// Marker маркер устройства на карте
type Marker struct {
	DeviceID   int                 `json:"deviceId"`
	PositionID int                 `json:"positionId"`
	Name       string              `json:"name"`
	Latitude   float64             `json:"latitude"`
	Longitude  float64             `json:"longitude"`
	Course     float64             `json:"course"`
	Speed      string              `json:"speed"`
	Status     models.DeviceStatus `json:"status"`
}

// FleetSummary сводка по парку для заголовка дашборда
type FleetSummary struct {
	Total        int                 `json:"total"`
	Online       int                 `json:"online"`
	Idle         int                 `json:"idle"`
	Offline      int                 `json:"offline"`
	Positions    int                 `json:"positions"`
	State        models.SessionState `json:"state"`
	LastUpdate   *time.Time          `json:"lastUpdate,omitempty"`
	PollInterval string              `json:"pollInterval"`
}

// BuildDeviceRows строит список устройств в порядке, полученном от сервера
func BuildDeviceRows(snap *SessionSnapshot) []DeviceRow {
	rows := make([]DeviceRow, 0, len(snap.Devices))
	for _, device := range snap.Devices {
		row := DeviceRow{
			Device: device,
			Status: snap.Status(device),
		}

		if pos := snap.Position(device.ID); pos != nil {
			row.HasPosition = true
			serverTime := pos.ServerTime
			row.LastUpdate = &serverTime
			speed := SpeedKmhRounded(pos.Speed)
			row.SpeedKmh = &speed

			if ignition, ok := pos.Attributes.Get("ignition"); ok {
				row.Ignition = choose(truthy(ignition), "ON", "OFF")
			}
			if fuel := fuelLevel(pos.Attributes); fuel != nil {
				row.Fuel = displayString(fuel) + "%"
			}
		}

		rows = append(rows, row)
	}
	return rows
}

// BuildTelemetryPanel строит панель телеметрии устройства. Если позиции нет,
// заполняются только устройство и статус.
func BuildTelemetryPanel(snap *SessionSnapshot, device models.Device, baseURL string) TelemetryPanel {
	panel := TelemetryPanel{
		Device:     device,
		Status:     snap.Status(device),
		Attributes: models.NewAttributes(),
	}

	pos := snap.Position(device.ID)
	if pos == nil {
		return panel
	}

	panel.Position = pos
	panel.Speed = FormatSpeed(pos.Speed)
	panel.Coordinates = FormatCoordinates(pos.Latitude, pos.Longitude)
	panel.Altitude = toFixed(math.Floor(pos.Altitude+0.5), 0) + "m"
	panel.Course = displayString(pos.Course) + "°"
	panel.Accuracy = "N/A"
	if pos.Accuracy != nil && *pos.Accuracy != 0 {
		panel.Accuracy = displayString(*pos.Accuracy) + "m"
	}
	panel.Valid = pos.Valid
	panel.Attributes = FormatAttributes(pos.Attributes)

	if !pos.DeviceTime.IsZero() {
		t := pos.DeviceTime
		panel.DeviceTime = &t
	}
	if !pos.ServerTime.IsZero() {
		t := pos.ServerTime
		panel.ServerTime = &t
	}

	if url, ok := ResolveMediaURL(baseURL, pos.Attributes, pos.ID); ok {
		panel.MediaURL = url
		panel.MediaKind = mediaKind(pos.Attributes)
	}

	// Плеер получает исходное значение video/stream, без разрешения относительно сервера
	if video := firstTruthy(pos.Attributes, "video", "stream"); video != nil {
		panel.VideoURL = displayString(video)
		panel.VideoFormat = VideoFormat(panel.VideoURL)
	}

	return panel
}

// BuildMarkers строит маркер на каждую позицию. Позиции устройств, которых нет в списке, пропускаются.
// Статус маркера берется по устройству, то есть по его первой позиции.
func BuildMarkers(snap *SessionSnapshot) []Marker {
	markers := make([]Marker, 0, len(snap.Positions))

	for _, pos := range snap.Positions {
		device, ok := snap.Device(pos.DeviceID)
		if !ok {
			continue
		}

		markers = append(markers, Marker{
			DeviceID:   device.ID,
			PositionID: pos.ID,
			Name:       device.Name,
			Latitude:   pos.Latitude,
			Longitude:  pos.Longitude,
			Course:     pos.Course,
			Speed:      FormatSpeed(pos.Speed),
			Status:     snap.Status(device),
		})
	}
	return markers
}

// BuildFleetSummary считает устройства по производным статусам
func BuildFleetSummary(snap *SessionSnapshot) FleetSummary {
	summary := FleetSummary{
		Total:        len(snap.Devices),
		Positions:    len(snap.Positions),
		State:        snap.State,
		PollInterval: snap.PollInterval.String(),
	}

	for _, device := range snap.Devices {
		switch snap.Status(device) {
		case models.StatusOnline:
			summary.Online++
		case models.StatusIdle:
			summary.Idle++
		default:
			summary.Offline++
		}
	}

	if !snap.LastUpdate.IsZero() {
		t := snap.LastUpdate
		summary.LastUpdate = &t
	}
	return summary
}

// VideoFormat определяет формат видеопотока по URL
func VideoFormat(url string) string {
	switch {
	case strings.HasPrefix(url, "rtsp://"):
		return VideoFormatRTSP
	case strings.Contains(url, ".m3u8"):
		return VideoFormatHLS
	default:
		return VideoFormatMP4
	}
}

func mediaKind(attrs models.Attributes) string {
	if firstTruthy(attrs, "image", "photo") != nil {
		return MediaKindImage
	}
	if firstTruthy(attrs, "video", "stream") != nil {
		return MediaKindVideo
	}
	return ""
}

// fuelLevel значение fuel, иначе fuelLevel. nil, если оба пустые.
func fuelLevel(attrs models.Attributes) interface{} {
	return firstTruthy(attrs, "fuel", "fuelLevel")
}

func firstTruthy(attrs models.Attributes, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := attrs.Get(key); ok && truthy(v) {
			return v
		}
	}
	return nil
}
