package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"geotrack_live/models"
)

// TraccarAPI набор вызовов к серверу Traccar, который нужен сессии.
// Реализуется TraccarClient и MockTraccarClient.
type TraccarAPI interface {
	FetchDevices(ctx context.Context) ([]models.Device, error)
	FetchPositions(ctx context.Context) ([]models.Position, error)
	FetchDevicePositions(ctx context.Context, deviceID int) ([]models.Position, error)
}

// TraccarCredentials учетные данные и адрес сервера Traccar
type TraccarCredentials struct {
	BaseURL  string
	Username string
	Password string
}

// TraccarClient клиент для работы с REST API Traccar.
// Повторы и backoff клиент не выполняет, это решает вызывающая сторона.
type TraccarClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger

	username string
	password string
}

// FetchError ошибка получения данных с сервера Traccar
type FetchError struct {
	Op         string // devices, positions
	URL        string
	StatusCode int // 0, если ответ не получен
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ошибка получения %s (%s): статус %d: %v", e.Op, e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("ошибка получения %s (%s): %v", e.Op, e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsFetchError проверяет, что err (или одна из обернутых ошибок) является FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// NewTraccarClient создает новый клиент для Traccar API
func NewTraccarClient(creds TraccarCredentials, timeout time.Duration, logger *log.Logger) *TraccarClient {
	if logger == nil {
		logger = log.New(io.Discard, "", 0) // Пустой логгер если не передан
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
			},
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &TraccarClient{
		BaseURL:    creds.BaseURL,
		HTTPClient: client,
		Logger:     logger,
		username:   creds.Username,
		password:   creds.Password,
	}
}

// FetchDevices получает список устройств: GET {baseUrl}/devices
func (c *TraccarClient) FetchDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := c.get(ctx, "devices", "/devices", nil, &devices); err != nil {
		c.Logger.Printf("Ошибка получения устройств: %v", err)
		return nil, err
	}
	return devices, nil
}

// FetchPositions получает последние позиции всех устройств: GET {baseUrl}/positions
func (c *TraccarClient) FetchPositions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	if err := c.get(ctx, "positions", "/positions", nil, &positions); err != nil {
		c.Logger.Printf("Ошибка получения позиций: %v", err)
		return nil, err
	}
	return positions, nil
}

// FetchDevicePositions получает позиции одного устройства: GET {baseUrl}/positions?deviceId={id}
func (c *TraccarClient) FetchDevicePositions(ctx context.Context, deviceID int) ([]models.Position, error) {
	query := url.Values{}
	query.Set("deviceId", strconv.Itoa(deviceID))

	var positions []models.Position
	if err := c.get(ctx, "positions", "/positions", query, &positions); err != nil {
		c.Logger.Printf("Ошибка получения позиций устройства %d: %v", deviceID, err)
		return nil, err
	}
	return positions, nil
}

// get выполняет авторизованный GET и декодирует JSON ответ в dest
func (c *TraccarClient) get(ctx context.Context, op, path string, query url.Values, dest interface{}) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Op: op, URL: endpoint, Cause: fmt.Errorf("ошибка создания запроса: %w", err)}
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "GeoTrackLive/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &FetchError{Op: op, URL: endpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &FetchError{
			Op:         op,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("неуспешный ответ сервера: %s", http.StatusText(resp.StatusCode)+bodySuffix(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &FetchError{Op: op, URL: endpoint, Cause: fmt.Errorf("ошибка декодирования ответа: %w", err)}
	}

	return nil
}

func bodySuffix(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return ": " + string(body)
}

// ResolveMediaURL строит ссылку на медиа позиции относительно адреса сервера клиента
func (c *TraccarClient) ResolveMediaURL(attrs models.Attributes, positionID int) (string, bool) {
	return ResolveMediaURL(c.BaseURL, attrs, positionID)
}

// DeviceStatus производный статус устройства на текущий момент
func (c *TraccarClient) DeviceStatus(device models.Device, position *models.Position) models.DeviceStatus {
	return DeriveStatus(device, position, time.Now())
}
