package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotrack_live/models"
	"geotrack_live/testutils"
)

func newTestSnapshot(devices []models.Device, positions []models.Position) *SessionSnapshot {
	return &SessionSnapshot{
		State:        models.StateReady,
		Devices:      devices,
		Positions:    positions,
		LastUpdate:   testNow,
		PollInterval: DefaultPollInterval,
		Now:          testNow,
		byDevice:     indexPositions(positions),
	}
}

func fixtureSnapshot() *SessionSnapshot {
	return newTestSnapshot(testutils.CreateTestDevices(testNow), testutils.CreateTestPositions(testNow))
}

func TestBuildDeviceRows(t *testing.T) {
	rows := BuildDeviceRows(fixtureSnapshot())
	require.Len(t, rows, 3)

	t.Run("движущееся устройство", func(t *testing.T) {
		row := rows[0]
		assert.Equal(t, 1, row.Device.ID)
		assert.Equal(t, models.StatusOnline, row.Status)
		assert.True(t, row.HasPosition)
		require.NotNil(t, row.SpeedKmh)
		assert.Equal(t, int64(19), *row.SpeedKmh)
		assert.Equal(t, "ON", row.Ignition)
		assert.Equal(t, "45%", row.Fuel)
		require.NotNil(t, row.LastUpdate)
		assert.Equal(t, testNow.Add(-time.Minute), *row.LastUpdate)
	})

	t.Run("стоящее устройство без топлива", func(t *testing.T) {
		row := rows[1]
		assert.Equal(t, models.StatusIdle, row.Status)
		assert.Equal(t, int64(0), *row.SpeedKmh)
		assert.Equal(t, "OFF", row.Ignition)
		assert.Empty(t, row.Fuel)
	})

	t.Run("устаревшая позиция", func(t *testing.T) {
		assert.Equal(t, models.StatusOffline, rows[2].Status)
	})
}

func TestBuildDeviceRows_NoPositionAndMissingAttributes(t *testing.T) {
	devices := []models.Device{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
	positions := []models.Position{
		{ID: 10, DeviceID: 2, ServerTime: testNow, Speed: 3, Attributes: models.NewAttributes("fuel", 0.0, "fuelLevel", 30.0)},
	}

	rows := BuildDeviceRows(newTestSnapshot(devices, positions))
	require.Len(t, rows, 2)

	assert.False(t, rows[0].HasPosition)
	assert.Nil(t, rows[0].SpeedKmh)
	assert.Nil(t, rows[0].LastUpdate)
	assert.Equal(t, models.StatusOffline, rows[0].Status)

	// Зажигания нет: статус online, поле ignition не заполняется
	assert.Equal(t, models.StatusOnline, rows[1].Status)
	assert.Empty(t, rows[1].Ignition)
	// fuel == 0 считается пустым, берется fuelLevel
	assert.Equal(t, "30%", rows[1].Fuel)
}

func TestBuildTelemetryPanel(t *testing.T) {
	snap := fixtureSnapshot()

	t.Run("позиция с фото", func(t *testing.T) {
		panel := BuildTelemetryPanel(snap, snap.Devices[0], "https://x/api")

		require.NotNil(t, panel.Position)
		assert.Equal(t, 101, panel.Position.ID)
		assert.Equal(t, models.StatusOnline, panel.Status)
		assert.Equal(t, "18.5 km/h", panel.Speed)
		assert.Equal(t, "27.717200, 85.324000", panel.Coordinates)
		assert.Equal(t, "1400m", panel.Altitude)
		assert.Equal(t, "90°", panel.Course)
		assert.Equal(t, "N/A", panel.Accuracy)
		assert.True(t, panel.Valid)
		assert.Equal(t, []string{"Ignition", "Motion", "Fuel Level", "image"}, panel.Attributes.Keys())
		assert.Equal(t, "https://x/api/media/42", panel.MediaURL)
		assert.Equal(t, MediaKindImage, panel.MediaKind)
		assert.Empty(t, panel.VideoURL)
		require.NotNil(t, panel.ServerTime)
		require.NotNil(t, panel.DeviceTime)
	})

	t.Run("позиция с видео", func(t *testing.T) {
		panel := BuildTelemetryPanel(snap, snap.Devices[1], "https://x/api")

		assert.Equal(t, models.StatusIdle, panel.Status)
		assert.Equal(t, MediaKindVideo, panel.MediaKind)
		assert.Equal(t, "https://x/api/api/media/rtsp://cam.local/live", panel.MediaURL)
		assert.Equal(t, "rtsp://cam.local/live", panel.VideoURL)
		assert.Equal(t, VideoFormatRTSP, panel.VideoFormat)
	})

	t.Run("устройство без позиции", func(t *testing.T) {
		panel := BuildTelemetryPanel(snap, models.Device{ID: 500}, "https://x/api")

		assert.Nil(t, panel.Position)
		assert.Equal(t, models.StatusOffline, panel.Status)
		assert.Empty(t, panel.Speed)
		assert.Empty(t, panel.MediaURL)
		assert.Equal(t, 0, panel.Attributes.Len())
	})
}

func TestBuildTelemetryPanel_Accuracy(t *testing.T) {
	accuracy := 12.5
	devices := []models.Device{{ID: 1}}
	positions := []models.Position{{ID: 1, DeviceID: 1, ServerTime: testNow, Accuracy: &accuracy}}

	panel := BuildTelemetryPanel(newTestSnapshot(devices, positions), devices[0], "")
	assert.Equal(t, "12.5m", panel.Accuracy)
}

func TestBuildTelemetryPanel_AltitudeRounding(t *testing.T) {
	tests := []struct {
		altitude float64
		want     string
	}{
		{1400.4, "1400m"},
		{2.5, "3m"},
		{-2.5, "-2m"},
		{-2.6, "-3m"},
		{-0.4, "0m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			devices := []models.Device{{ID: 1}}
			positions := []models.Position{{ID: 1, DeviceID: 1, ServerTime: testNow, Altitude: tt.altitude}}

			panel := BuildTelemetryPanel(newTestSnapshot(devices, positions), devices[0], "")
			assert.Equal(t, tt.want, panel.Altitude)
		})
	}
}

func TestBuildTelemetryPanel_JSON(t *testing.T) {
	snap := fixtureSnapshot()
	panel := BuildTelemetryPanel(snap, snap.Devices[0], "https://x/api")

	data, err := json.Marshal(panel)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"attributes":{"Ignition":"ON","Motion":"Moving","Fuel Level":"45%","image":42}`)
	assert.Contains(t, string(data), `"mediaKind":"image"`)
}

func TestVideoFormat(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"rtsp://cam/live", VideoFormatRTSP},
		{"https://cdn/stream/index.m3u8", VideoFormatHLS},
		{"https://cdn/clip.mp4", VideoFormatMP4},
		{"clip", VideoFormatMP4},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, VideoFormat(tt.url))
		})
	}
}

func TestBuildMarkers(t *testing.T) {
	markers := BuildMarkers(fixtureSnapshot())

	// Позиция 104 относится к неизвестному устройству 99 и не отображается
	require.Len(t, markers, 3)
	assert.Equal(t, 1, markers[0].DeviceID)
	assert.Equal(t, 101, markers[0].PositionID)
	assert.Equal(t, "Грузовик 01", markers[0].Name)
	assert.Equal(t, "18.5 km/h", markers[0].Speed)
	assert.Equal(t, models.StatusOnline, markers[0].Status)
	assert.Equal(t, models.StatusOffline, markers[2].Status)
}

func TestBuildMarkers_MarkerPerPosition(t *testing.T) {
	devices := []models.Device{{ID: 1}}
	positions := []models.Position{
		{ID: 1, DeviceID: 1, ServerTime: testNow},
		{ID: 2, DeviceID: 1, ServerTime: testNow.Add(-2 * time.Hour)},
	}

	markers := BuildMarkers(newTestSnapshot(devices, positions))
	require.Len(t, markers, 2)
	assert.Equal(t, 1, markers[0].PositionID)
	assert.Equal(t, 2, markers[1].PositionID)
	// Статус устройства определяется его первой позицией
	assert.Equal(t, models.StatusOnline, markers[0].Status)
	assert.Equal(t, models.StatusOnline, markers[1].Status)
}

func TestBuildFleetSummary(t *testing.T) {
	summary := BuildFleetSummary(fixtureSnapshot())

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Online)
	assert.Equal(t, 1, summary.Idle)
	assert.Equal(t, 1, summary.Offline)
	assert.Equal(t, 4, summary.Positions)
	assert.Equal(t, models.StateReady, summary.State)
	assert.Equal(t, "5s", summary.PollInterval)
	require.NotNil(t, summary.LastUpdate)
	assert.Equal(t, testNow, *summary.LastUpdate)
}

func TestBuildFleetSummary_Empty(t *testing.T) {
	snap := newTestSnapshot(nil, nil)
	snap.LastUpdate = time.Time{}
	snap.State = models.StateLoading

	summary := BuildFleetSummary(snap)
	assert.Equal(t, 0, summary.Total)
	assert.Nil(t, summary.LastUpdate)
	assert.Equal(t, models.StateLoading, summary.State)
}
