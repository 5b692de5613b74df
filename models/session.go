package models

// SessionState состояние сессии отслеживания
type SessionState string

const (
	StateUninitialized SessionState = "uninitialized"
	StateLoading       SessionState = "loading"
	StateReady         SessionState = "ready"
	StateRefreshing    SessionState = "refreshing"
	StateError         SessionState = "error"
)

// IsOperational true, если данные устройств загружены и их можно показывать
func (s SessionState) IsOperational() bool {
	return s == StateReady || s == StateRefreshing
}
