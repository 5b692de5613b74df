package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"geotrack_live/models"
)

// MockTraccarClient мок клиент для тестирования.
// Реализует интерфейс TraccarAPI.
type MockTraccarClient struct {
	mu sync.Mutex

	// Настройки мока
	ShouldFailDevices   bool
	ShouldFailPositions bool
	DevicesDelay        time.Duration
	PositionsDelay      time.Duration

	// PositionsHook, если задан, заменяет обработку FetchPositions. call начинается с 1.
	PositionsHook func(ctx context.Context, call int) ([]models.Position, error)

	// Данные для возврата
	Devices         []models.Device
	Positions       []models.Position
	DevicePositions map[int][]models.Position

	// Счетчики вызовов
	DevicesCallCount        int
	PositionsCallCount      int
	DevicePositionsCallLogs []int
}

// NewMockTraccarClient создает новый мок клиент
func NewMockTraccarClient() *MockTraccarClient {
	return &MockTraccarClient{
		DevicePositions: make(map[int][]models.Position),
	}
}

// FetchDevices мок получения устройств
func (m *MockTraccarClient) FetchDevices(ctx context.Context) ([]models.Device, error) {
	m.mu.Lock()
	m.DevicesCallCount++
	delay := m.DevicesDelay
	m.mu.Unlock()

	if err := sleepCtx(ctx, delay); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldFailDevices {
		return nil, &FetchError{Op: "devices", URL: "mock://devices", Cause: fmt.Errorf("мок ошибка получения устройств")}
	}

	devices := make([]models.Device, len(m.Devices))
	copy(devices, m.Devices)
	return devices, nil
}

// FetchPositions мок получения позиций
func (m *MockTraccarClient) FetchPositions(ctx context.Context) ([]models.Position, error) {
	m.mu.Lock()
	m.PositionsCallCount++
	call := m.PositionsCallCount
	delay := m.PositionsDelay
	hook := m.PositionsHook
	m.mu.Unlock()

	if hook != nil {
		return hook(ctx, call)
	}

	if err := sleepCtx(ctx, delay); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldFailPositions {
		return nil, &FetchError{Op: "positions", URL: "mock://positions", Cause: fmt.Errorf("мок ошибка получения позиций")}
	}

	positions := make([]models.Position, len(m.Positions))
	copy(positions, m.Positions)
	return positions, nil
}

// FetchDevicePositions мок получения позиций одного устройства
func (m *MockTraccarClient) FetchDevicePositions(ctx context.Context, deviceID int) ([]models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DevicePositionsCallLogs = append(m.DevicePositionsCallLogs, deviceID)

	if m.ShouldFailPositions {
		return nil, &FetchError{Op: "positions", URL: "mock://positions", Cause: fmt.Errorf("мок ошибка получения позиций")}
	}

	return m.DevicePositions[deviceID], nil
}

// SetDevices устанавливает устройства для ответа
func (m *MockTraccarClient) SetDevices(devices []models.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Devices = devices
}

// SetPositions устанавливает позиции для ответа
func (m *MockTraccarClient) SetPositions(positions []models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Positions = positions
}

// SetFailures включает или выключает ошибки получения устройств и позиций
func (m *MockTraccarClient) SetFailures(devices, positions bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFailDevices = devices
	m.ShouldFailPositions = positions
}

// Calls возвращает количество вызовов FetchDevices и FetchPositions
func (m *MockTraccarClient) Calls() (devices, positions int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DevicesCallCount, m.PositionsCallCount
}

// Reset сбрасывает состояние мока
func (m *MockTraccarClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ShouldFailDevices = false
	m.ShouldFailPositions = false
	m.DevicesDelay = 0
	m.PositionsDelay = 0
	m.PositionsHook = nil

	m.DevicesCallCount = 0
	m.PositionsCallCount = 0
	m.DevicePositionsCallLogs = nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
