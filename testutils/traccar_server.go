package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"geotrack_live/models"
)

// FakeTraccar тестовый HTTP сервер, отвечающий как Traccar API
type FakeTraccar struct {
	Server   *httptest.Server
	Username string
	Password string

	mu              sync.Mutex
	devices         []models.Device
	positions       []models.Position
	devicesStatus   int
	positionsStatus int
	requests        []string
}

// NewFakeTraccar запускает тестовый сервер и закрывает его по завершении теста
func NewFakeTraccar(t *testing.T) *FakeTraccar {
	t.Helper()

	ft := &FakeTraccar{
		Username:        "test@example.com",
		Password:        "12345",
		devicesStatus:   http.StatusOK,
		positionsStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/devices", ft.handleDevices)
	mux.HandleFunc("/api/positions", ft.handlePositions)

	ft.Server = httptest.NewServer(mux)
	t.Cleanup(ft.Server.Close)
	return ft
}

// BaseURL адрес API, как его задают в TRACCAR_BASE_URL
func (ft *FakeTraccar) BaseURL() string {
	return ft.Server.URL + "/api"
}

// SetDevices задает ответ на GET /devices
func (ft *FakeTraccar) SetDevices(devices []models.Device) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.devices = devices
}

// SetPositions задает ответ на GET /positions
func (ft *FakeTraccar) SetPositions(positions []models.Position) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.positions = positions
}

// FailDevices заставляет GET /devices отвечать указанным статусом
func (ft *FakeTraccar) FailDevices(status int) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.devicesStatus = status
}

// FailPositions заставляет GET /positions отвечать указанным статусом
func (ft *FakeTraccar) FailPositions(status int) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.positionsStatus = status
}

// Requests возвращает принятые запросы в виде "METHOD /path?query"
func (ft *FakeTraccar) Requests() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	out := make([]string, len(ft.requests))
	copy(out, ft.requests)
	return out
}

func (ft *FakeTraccar) authorize(w http.ResponseWriter, r *http.Request) bool {
	ft.mu.Lock()
	ft.requests = append(ft.requests, r.Method+" "+r.URL.RequestURI())
	ft.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != ft.Username || pass != ft.Password {
		w.Header().Set("WWW-Authenticate", `Basic realm="traccar"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (ft *FakeTraccar) handleDevices(w http.ResponseWriter, r *http.Request) {
	if !ft.authorize(w, r) {
		return
	}

	ft.mu.Lock()
	status, devices := ft.devicesStatus, ft.devices
	ft.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "devices unavailable", status)
		return
	}
	writeJSON(w, devices)
}

func (ft *FakeTraccar) handlePositions(w http.ResponseWriter, r *http.Request) {
	if !ft.authorize(w, r) {
		return
	}

	ft.mu.Lock()
	status, positions := ft.positionsStatus, ft.positions
	ft.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "positions unavailable", status)
		return
	}

	if raw := r.URL.Query().Get("deviceId"); raw != "" {
		deviceID, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "bad deviceId", http.StatusBadRequest)
			return
		}
		filtered := make([]models.Position, 0)
		for _, p := range positions {
			if p.DeviceID == deviceID {
				filtered = append(filtered, p)
			}
		}
		positions = filtered
	}

	writeJSON(w, positions)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
