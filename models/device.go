package models

import "time"

// DeviceStatus статус устройства.
// Сервер присылает online/offline/unknown, производный статус бывает online/idle/offline.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusIdle    DeviceStatus = "idle"
	StatusOffline DeviceStatus = "offline"
	StatusUnknown DeviceStatus = "unknown"
)

// Device представляет трекер, зарегистрированный на сервере Traccar
type Device struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	UniqueID   string       `json:"uniqueId"`
	Status     DeviceStatus `json:"status"`
	LastUpdate time.Time    `json:"lastUpdate"`
	PositionID int          `json:"positionId"`
	GroupID    int          `json:"groupId"`
	Disabled   bool         `json:"disabled"`

	// Необязательные поля
	Phone    *string `json:"phone,omitempty"`
	Model    *string `json:"model,omitempty"`
	Category *string `json:"category,omitempty"`
}

// Position одна GPS отметка устройства с телеметрией
type Position struct {
	ID         int       `json:"id"`
	DeviceID   int       `json:"deviceId"`
	DeviceTime time.Time `json:"deviceTime"`
	ServerTime time.Time `json:"serverTime"`
	Valid      bool      `json:"valid"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	Speed      float64   `json:"speed"`  // в узлах
	Course     float64   `json:"course"` // в градусах
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Address    *string   `json:"address,omitempty"`

	Attributes Attributes `json:"attributes"`
}
