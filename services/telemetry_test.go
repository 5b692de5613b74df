package services

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotrack_live/models"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func positionAt(age time.Duration, speed float64, attrs models.Attributes) *models.Position {
	return &models.Position{
		ID:         1,
		DeviceID:   1,
		ServerTime: testNow.Add(-age),
		Speed:      speed,
		Attributes: attrs,
	}
}

func TestDeriveStatus(t *testing.T) {
	online := models.Device{ID: 1, Status: models.StatusOnline}
	unknown := models.Device{ID: 1, Status: models.StatusUnknown}
	offline := models.Device{ID: 1, Status: models.StatusOffline}

	tests := []struct {
		name     string
		device   models.Device
		position *models.Position
		want     models.DeviceStatus
	}{
		{"нет позиции", online, nil, models.StatusOffline},
		{"устройство offline со свежей позицией", offline, positionAt(time.Minute, 20, models.NewAttributes("ignition", true)), models.StatusOffline},
		{"позиция старше 30 минут", online, positionAt(31*time.Minute, 20, models.NewAttributes("ignition", true)), models.StatusOffline},
		{"устаревание важнее зажигания", online, positionAt(45*time.Minute, 0, models.NewAttributes("ignition", false)), models.StatusOffline},
		{"ровно 30 минут еще не устарела", online, positionAt(30*time.Minute, 20, models.Attributes{}), models.StatusOnline},
		{"зажигание выключено и стоит", online, positionAt(time.Minute, 0, models.NewAttributes("ignition", false)), models.StatusIdle},
		{"зажигание выключено, 4.9 узла", unknown, positionAt(time.Minute, 4.9, models.NewAttributes("ignition", false)), models.StatusIdle},
		{"зажигание выключено, но едет", online, positionAt(time.Minute, 5, models.NewAttributes("ignition", false)), models.StatusOnline},
		{"зажигание включено и стоит", online, positionAt(time.Minute, 0, models.NewAttributes("ignition", true)), models.StatusOnline},
		{"нет атрибута ignition", online, positionAt(time.Minute, 0, models.Attributes{}), models.StatusOnline},
		{"ignition = 0 не считается false", online, positionAt(time.Minute, 0, models.NewAttributes("ignition", 0.0)), models.StatusOnline},
		{"ignition = null не считается false", online, positionAt(time.Minute, 0, models.NewAttributes("ignition", nil)), models.StatusOnline},
		{"нулевое время сервера", online, &models.Position{Attributes: models.NewAttributes("ignition", true)}, models.StatusOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.device, tt.position, testNow))
			// Повторный вызов дает тот же результат
			assert.Equal(t, tt.want, DeriveStatus(tt.device, tt.position, testNow))
		})
	}
}

// Порог idle сравнивается со скоростью в узлах: 4 узла это 7.4 км/ч, но устройство idle
func TestDeriveStatus_IdleThresholdIsKnots(t *testing.T) {
	p := positionAt(time.Minute, 4, models.NewAttributes("ignition", false))

	assert.Equal(t, "7.4 km/h", FormatSpeed(p.Speed))
	assert.Equal(t, models.StatusIdle, DeriveStatus(models.Device{Status: models.StatusOnline}, p, testNow))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "0.0 km/h", FormatSpeed(0))
	assert.Equal(t, "18.5 km/h", FormatSpeed(10))
	assert.Equal(t, "1.9 km/h", FormatSpeed(1))
	assert.Equal(t, "185.2 km/h", FormatSpeed(100))
	assert.Equal(t, "NaN km/h", FormatSpeed(math.NaN()))
	assert.Equal(t, FormatSpeed(12.34), FormatSpeed(12.34))
}

func TestSpeedKmhRounded(t *testing.T) {
	assert.Equal(t, int64(0), SpeedKmhRounded(0))
	assert.Equal(t, int64(19), SpeedKmhRounded(10))
	assert.Equal(t, int64(2), SpeedKmhRounded(1))
}

func TestFormatCoordinates(t *testing.T) {
	assert.Equal(t, "27.717200, 85.324000", FormatCoordinates(27.7172, 85.3240))
	assert.Equal(t, "-33.868800, 151.209300", FormatCoordinates(-33.8688, 151.2093))
	assert.Equal(t, "0.000000, 0.000000", FormatCoordinates(0, 0))
	assert.Equal(t, "1.123457, 2.000000", FormatCoordinates(1.1234567, 2))

	// Округляется точное двоичное значение, как в Number.toFixed
	tests := []struct {
		lat, lng float64
		want     string
	}{
		{5e-7, -5e-7, "0.000000, -0.000000"},
		{0.1234565, 2.0000025, "0.123456, 2.000002"},
		{0.0078125, -0.0078125, "0.007813, -0.007813"},
		{math.Copysign(0, -1), -180, "0.000000, -180.000000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCoordinates(tt.lat, tt.lng))
		})
	}
}

func TestFormatAttributes(t *testing.T) {
	var attrs models.Attributes
	require.NoError(t, json.Unmarshal([]byte(`{
		"alarm": "sos",
		"fuel": 45.5,
		"batteryLevel": 80,
		"temperature": -3,
		"ignition": true,
		"motion": false,
		"blocked": 1,
		"odometer": 12345
	}`), &attrs))

	formatted := FormatAttributes(attrs)

	assert.Equal(t,
		[]string{"alarm", "Fuel Level", "Battery", "Temperature", "Ignition", "Motion", "Status", "odometer"},
		formatted.Keys())

	expect := map[string]interface{}{
		"alarm":       "sos",
		"Fuel Level":  "45.5%",
		"Battery":     "80%",
		"Temperature": "-3°C",
		"Ignition":    "ON",
		"Motion":      "Stopped",
		"Status":      "Blocked",
		"odometer":    float64(12345),
	}
	for key, want := range expect {
		got, ok := formatted.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	// Исходные атрибуты не меняются
	assert.Equal(t, 8, attrs.Len())
	_, ok := attrs.Get("fuel")
	assert.True(t, ok)
}

func TestFormatAttributes_FuelAndFuelLevelShareLabel(t *testing.T) {
	attrs := models.NewAttributes("fuelLevel", 30, "ignition", false, "fuel", 70)

	formatted := FormatAttributes(attrs)

	assert.Equal(t, []string{"Fuel Level", "Ignition"}, formatted.Keys())
	v, _ := formatted.Get("Fuel Level")
	assert.Equal(t, "70%", v)
	v, _ = formatted.Get("Ignition")
	assert.Equal(t, "OFF", v)
}

func TestFormatAttributes_Empty(t *testing.T) {
	formatted := FormatAttributes(models.Attributes{})
	assert.Equal(t, 0, formatted.Len())
}

func TestResolveMediaURL(t *testing.T) {
	const base = "https://x/api"

	tests := []struct {
		name       string
		attrs      models.Attributes
		positionID int
		want       string
		found      bool
	}{
		{"числовой идентификатор", models.NewAttributes("image", 42.0), 7, "https://x/api/media/42", true},
		{"числовой идентификатор int", models.NewAttributes("image", 42), 0, "https://x/api/media/42", true},
		{"абсолютный http", models.NewAttributes("photo", "http://foo/bar.jpg"), 0, "http://foo/bar.jpg", true},
		{"абсолютный https", models.NewAttributes("video", "https://cdn/v.mp4"), 0, "https://cdn/v.mp4", true},
		{"путь /api/media/", models.NewAttributes("media", "/api/media/abc.jpg"), 0, "https://x/api/api/media/abc.jpg", true},
		{"positions с позицией", models.NewAttributes("photo", "positions/snap.jpg"), 9, "https://x/api/api/media/positions/9", true},
		{"positions без позиции", models.NewAttributes("photo", "positions/snap.jpg"), 0, "https://x/api/api/media/positions/snap.jpg", true},
		{"относительное имя", models.NewAttributes("image", "snap.jpg"), 3, "https://x/api/api/media/snap.jpg", true},
		{"image важнее photo", models.NewAttributes("photo", "b.jpg", "image", "a.jpg"), 0, "https://x/api/api/media/a.jpg", true},
		{"photo важнее video", models.NewAttributes("video", "v.mp4", "photo", "p.jpg"), 0, "https://x/api/api/media/p.jpg", true},
		{"video важнее media", models.NewAttributes("media", "m.jpg", "video", "v.mp4"), 0, "https://x/api/api/media/v.mp4", true},
		{"пустое значение пропускается", models.NewAttributes("image", "", "photo", "p.jpg"), 0, "https://x/api/api/media/p.jpg", true},
		{"нет медиа", models.Attributes{}, 1, "", false},
		{"только посторонние ключи", models.NewAttributes("ignition", true), 1, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ResolveMediaURL(base, tt.attrs, tt.positionID)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTraccarClient_DeviceStatusUsesCurrentTime(t *testing.T) {
	client := NewTraccarClient(TraccarCredentials{BaseURL: "https://x/api"}, 0, nil)
	device := models.Device{ID: 1, Status: models.StatusOnline}

	fresh := &models.Position{DeviceID: 1, ServerTime: time.Now().Add(-time.Minute), Speed: 10}
	stale := &models.Position{DeviceID: 1, ServerTime: time.Now().Add(-time.Hour), Speed: 10}

	assert.Equal(t, models.StatusOnline, client.DeviceStatus(device, fresh))
	assert.Equal(t, models.StatusOffline, client.DeviceStatus(device, stale))
	assert.Equal(t, models.StatusOffline, client.DeviceStatus(device, nil))
}

func TestTraccarClient_ResolveMediaURLUsesBaseURL(t *testing.T) {
	client := NewTraccarClient(TraccarCredentials{BaseURL: "https://x/api"}, 0, nil)

	got, ok := client.ResolveMediaURL(models.NewAttributes("image", 42), 1)
	assert.True(t, ok)
	assert.Equal(t, "https://x/api/media/42", got)
}
