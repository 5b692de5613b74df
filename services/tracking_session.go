package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"geotrack_live/models"
)

// DefaultPollInterval период опроса позиций
const DefaultPollInterval = 5 * time.Second

// SessionConfig настройки сессии отслеживания
type SessionConfig struct {
	PollInterval time.Duration
	Notifier     Notifier
	Logger       *log.Logger
	Now          func() time.Time // часы, в тестах подменяются
}

// TrackingSession владеет устройствами и позициями одной сессии дашборда и их обновлением.
//
// Жизненный цикл: uninitialized -> loading -> ready <-> refreshing, ошибка получения устройств
// переводит в error. Ошибка получения позиций только запоминается: прежние позиции остаются.
// Каждая коллекция заменяется целиком, при гонке побеждает ответ, пришедший последним.
type TrackingSession struct {
	ID string

	client   TraccarAPI
	notifier Notifier
	logger   *log.Logger
	interval time.Duration
	now      func() time.Time
	cron     *cron.Cron

	mu         sync.RWMutex
	state      models.SessionState
	loading    bool
	errMsg     string
	devices    []models.Device
	positions  []models.Position
	byDevice   map[int]int // deviceID -> индекс первой позиции устройства
	selected   *models.Device
	lastUpdate time.Time
	started    bool
	stopped    bool
}

// NewTrackingSession создает новую сессию отслеживания
func NewTrackingSession(client TraccarAPI, cfg SessionConfig) *TrackingSession {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewLogNotifier(cfg.Logger)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TrackingSession{
		ID:       uuid.NewString(),
		client:   client,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		interval: cfg.PollInterval,
		now:      cfg.Now,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(cfg.Logger))),
		),
		state:    models.StateUninitialized,
		byDevice: map[int]int{},
	}
}

// Start запускает периодический опрос позиций и выполняет первоначальную загрузку.
// Возвращает управление после завершения загрузки. Ошибки загрузки отражаются в State и Err.
// Отмена ctx не прерывает загрузку.
func (s *TrackingSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("сессия %s уже запущена", s.ID)
	}
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("сессия %s остановлена", s.ID)
	}
	s.started = true
	s.state = models.StateLoading
	s.loading = true
	s.mu.Unlock()

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("ошибка планирования опроса позиций: %w", err)
	}

	// Stop мог успеть выполниться до запуска планировщика
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("сессия %s остановлена", s.ID)
	}
	s.cron.Start()
	s.mu.Unlock()
	s.logger.Printf("Сессия %s: опрос позиций каждые %v", s.ID, s.interval)

	devicesErr := s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.loading = false
	s.finishLoad(devicesErr)
	return nil
}

// Stop прекращает планирование опросов. Уже отправленные запросы не отменяются,
// их результаты отбрасываются.
func (s *TrackingSession) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cron.Stop()
	s.logger.Printf("Сессия %s остановлена", s.ID)
}

// Refresh заново загружает устройства и позиции (действие пользователя).
// Отмена ctx (например, клиент закрыл соединение) не прерывает запросы к серверу.
func (s *TrackingSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("сессия %s остановлена", s.ID)
	}
	if s.state != models.StateLoading {
		s.state = models.StateRefreshing
	}
	s.mu.Unlock()

	devicesErr := s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	if s.state != models.StateLoading {
		s.finishLoad(devicesErr)
	}
	return devicesErr
}

// tick срабатывает по таймеру: обновляет только позиции
func (s *TrackingSession) tick() {
	s.mu.RLock()
	skip := s.loading || s.stopped || !s.state.IsOperational()
	s.mu.RUnlock()
	if skip {
		return
	}

	s.fetchPositions(context.Background())
}

// load параллельно получает устройства и позиции и ждет оба ответа.
// Отмена ctx вызывающей стороной не прерывает уже отправленные запросы.
func (s *TrackingSession) load(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	var (
		wg         sync.WaitGroup
		devicesErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		devicesErr = s.fetchDevices(ctx)
	}()
	go func() {
		defer wg.Done()
		s.fetchPositions(ctx)
	}()
	wg.Wait()

	return devicesErr
}

// finishLoad переводит сессию в ready или error по итогам загрузки. Вызывается под s.mu.
func (s *TrackingSession) finishLoad(devicesErr error) {
	if devicesErr != nil {
		s.state = models.StateError
		s.errMsg = devicesErr.Error()
		return
	}
	s.state = models.StateReady
}

func (s *TrackingSession) fetchDevices(ctx context.Context) error {
	devices, err := s.client.FetchDevices(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.errMsg = err.Error()
		s.mu.Unlock()

		s.logger.Printf("Сессия %s: ошибка получения устройств: %v", s.ID, err)
		if nerr := s.notifier.Notify(ctx, "Connection Error", err.Error()); nerr != nil {
			s.logger.Printf("Сессия %s: ошибка отправки уведомления: %v", s.ID, nerr)
		}
		return err
	}
	s.devices = devices
	s.errMsg = ""
	s.mu.Unlock()
	return nil
}

func (s *TrackingSession) fetchPositions(ctx context.Context) {
	positions, err := s.client.FetchPositions(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if err != nil {
		s.errMsg = err.Error()
		s.logger.Printf("Сессия %s: ошибка получения позиций: %v", s.ID, err)
		return
	}

	s.positions = positions
	s.byDevice = indexPositions(positions)
	s.lastUpdate = s.now()
	if s.state != models.StateError {
		s.errMsg = ""
	}
}

// SelectDevice выбирает устройство или снимает выбор (nil).
// Устройство не обязано присутствовать в текущем списке.
func (s *TrackingSession) SelectDevice(device *models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if device == nil {
		s.selected = nil
		return
	}
	d := *device
	s.selected = &d
}

// SelectedDevice возвращает выбранное устройство или nil
func (s *TrackingSession) SelectedDevice() *models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	d := *s.selected
	return &d
}

// Position текущая позиция устройства, nil если ее нет
func (s *TrackingSession) Position(deviceID int) *models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookupPosition(s.positions, s.byDevice, deviceID)
}

// Status производный статус устройства по его текущей позиции
func (s *TrackingSession) Status(device models.Device) models.DeviceStatus {
	return DeriveStatus(device, s.Position(device.ID), s.now())
}

// Devices копия текущего списка устройств
func (s *TrackingSession) Devices() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Device(nil), s.devices...)
}

// Positions копия текущего списка позиций
func (s *TrackingSession) Positions() []models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Position(nil), s.positions...)
}

// State текущее состояние сессии
func (s *TrackingSession) State() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading true во время первоначальной загрузки
func (s *TrackingSession) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err последнее сообщение об ошибке, пустая строка если ошибки нет
func (s *TrackingSession) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// PollInterval период опроса позиций
func (s *TrackingSession) PollInterval() time.Duration {
	return s.interval
}

// Snapshot согласованный срез состояния сессии для отображения
func (s *TrackingSession) Snapshot() *SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &SessionSnapshot{
		SessionID:    s.ID,
		State:        s.state,
		Loading:      s.loading,
		Error:        s.errMsg,
		Devices:      append([]models.Device(nil), s.devices...),
		Positions:    append([]models.Position(nil), s.positions...),
		LastUpdate:   s.lastUpdate,
		PollInterval: s.interval,
		Now:          s.now(),
		byDevice:     make(map[int]int, len(s.byDevice)),
	}
	for k, v := range s.byDevice {
		snap.byDevice[k] = v
	}
	if s.selected != nil {
		d := *s.selected
		snap.Selected = &d
	}
	return snap
}

// SessionSnapshot неизменяемая копия состояния сессии на момент чтения
type SessionSnapshot struct {
	SessionID    string
	State        models.SessionState
	Loading      bool
	Error        string
	Devices      []models.Device
	Positions    []models.Position
	Selected     *models.Device
	LastUpdate   time.Time
	PollInterval time.Duration
	Now          time.Time

	byDevice map[int]int
}

// Position текущая позиция устройства в срезе
func (snap *SessionSnapshot) Position(deviceID int) *models.Position {
	return lookupPosition(snap.Positions, snap.byDevice, deviceID)
}

// Status производный статус устройства на момент среза
func (snap *SessionSnapshot) Status(device models.Device) models.DeviceStatus {
	return DeriveStatus(device, snap.Position(device.ID), snap.Now)
}

// Device устройство по ID
func (snap *SessionSnapshot) Device(deviceID int) (models.Device, bool) {
	for _, d := range snap.Devices {
		if d.ID == deviceID {
			return d, true
		}
	}
	return models.Device{}, false
}

// indexPositions строит индекс deviceID -> первая позиция устройства.
// Уникальность позиции на устройство сервером не гарантируется, берется первая.
func indexPositions(positions []models.Position) map[int]int {
	index := make(map[int]int, len(positions))
	for i, p := range positions {
		if _, exists := index[p.DeviceID]; !exists {
			index[p.DeviceID] = i
		}
	}
	return index
}

func lookupPosition(positions []models.Position, index map[int]int, deviceID int) *models.Position {
	i, ok := index[deviceID]
	if !ok {
		return nil
	}
	p := positions[i]
	return &p
}
