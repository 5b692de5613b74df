package testutils

import (
	"time"

	"geotrack_live/models"
)

func strPtr(s string) *string { return &s }

// CreateTestDevices возвращает три устройства: online, unknown и offline
func CreateTestDevices(now time.Time) []models.Device {
	return []models.Device{
		{
			ID:         1,
			Name:       "Грузовик 01",
			UniqueID:   "352093081234561",
			Status:     models.StatusOnline,
			LastUpdate: now.Add(-1 * time.Minute),
			PositionID: 101,
			GroupID:    1,
			Phone:      strPtr("+9779800000001"),
			Model:      strPtr("GT06N"),
			Category:   strPtr("truck"),
		},
		{
			ID:         2,
			Name:       "Фургон 02",
			UniqueID:   "352093081234562",
			Status:     models.StatusUnknown,
			LastUpdate: now.Add(-2 * time.Minute),
			PositionID: 102,
			GroupID:    1,
		},
		{
			ID:         3,
			Name:       "Легковой 03",
			UniqueID:   "352093081234563",
			Status:     models.StatusOffline,
			LastUpdate: now.Add(-2 * time.Hour),
			PositionID: 103,
			GroupID:    2,
		},
	}
}

// CreateTestPositions возвращает позиции для CreateTestDevices:
// устройство 1 едет, устройство 2 стоит с выключенным зажиганием, устройство 3 давно не выходило на связь.
// Позиция 104 ссылается на устройство, которого нет в списке.
func CreateTestPositions(now time.Time) []models.Position {
	return []models.Position{
		{
			ID:         101,
			DeviceID:   1,
			DeviceTime: now.Add(-65 * time.Second),
			ServerTime: now.Add(-1 * time.Minute),
			Valid:      true,
			Latitude:   27.7172,
			Longitude:  85.3240,
			Altitude:   1400,
			Speed:      10,
			Course:     90,
			Attributes: models.NewAttributes("ignition", true, "motion", true, "fuel", 45.0, "image", 42.0),
		},
		{
			ID:         102,
			DeviceID:   2,
			DeviceTime: now.Add(-2 * time.Minute),
			ServerTime: now.Add(-2 * time.Minute),
			Valid:      true,
			Latitude:   27.6710,
			Longitude:  85.4298,
			Speed:      0,
			Attributes: models.NewAttributes("ignition", false, "batteryLevel", 76.0, "video", "rtsp://cam.local/live"),
		},
		{
			ID:         103,
			DeviceID:   3,
			DeviceTime: now.Add(-2 * time.Hour),
			ServerTime: now.Add(-2 * time.Hour),
			Latitude:   28.2096,
			Longitude:  83.9856,
			Attributes: models.NewAttributes("ignition", false),
		},
		{
			ID:         104,
			DeviceID:   99,
			ServerTime: now.Add(-30 * time.Second),
			Latitude:   27.0,
			Longitude:  85.0,
			Attributes: models.NewAttributes(),
		},
	}
}
