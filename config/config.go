package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	// Основные настройки приложения
	App AppConfigStruct `json:"app"`

	// Сервер Traccar
	Traccar TraccarConfig `json:"traccar"`

	// Redis
	Redis RedisConfig `json:"redis"`

	// CORS
	CORS CORSConfig `json:"cors"`

	// Безопасность
	Security SecurityConfig `json:"security"`

	// Уведомления
	Telegram TelegramConfig `json:"telegram"`
}

type AppConfigStruct struct {
	Env   string `json:"env"`
	Port  string `json:"port"`
	Host  string `json:"host"`
	Debug bool   `json:"debug"`
}

type TraccarConfig struct {
	BaseURL      string        `json:"base_url"`
	Username     string        `json:"username"`
	Password     string        `json:"-"`
	Timeout      time.Duration `json:"timeout"`
	PollInterval time.Duration `json:"poll_interval"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

type SecurityConfig struct {
	RefreshRateLimit  int           `json:"refresh_rate_limit"`
	RefreshRateWindow time.Duration `json:"refresh_rate_window"`
}

type TelegramConfig struct {
	BotToken string `json:"-"`
	ChatID   string `json:"chat_id"`
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	// Загружаем .env файл если он существует
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	config := &Config{
		App: AppConfigStruct{
			Env:   getEnv("APP_ENV", "development"),
			Port:  getEnv("APP_PORT", "8080"),
			Host:  getEnv("APP_HOST", "0.0.0.0"),
			Debug: getEnvBool("DEBUG_MODE", false),
		},
		Traccar: TraccarConfig{
			BaseURL:      strings.TrimRight(getEnv("TRACCAR_BASE_URL", "https://demo.traccar.org/api"), "/"),
			Username:     getEnv("TRACCAR_USERNAME", ""),
			Password:     getEnv("TRACCAR_PASSWORD", ""),
			Timeout:      getEnvDuration("TRACCAR_TIMEOUT", 30*time.Second),
			PollInterval: getEnvDuration("POLL_INTERVAL", 5*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Security: SecurityConfig{
			RefreshRateLimit:  getEnvInt("REFRESH_RATE_LIMIT", 10),
			RefreshRateWindow: getEnvDuration("REFRESH_RATE_WINDOW", 1*time.Minute),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
	}

	// Валидация критически важных настроек
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	u, err := url.Parse(c.Traccar.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("TRACCAR_BASE_URL must be an absolute http(s) URL, got %q", c.Traccar.BaseURL)
	}
	if c.Traccar.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}

	// Проверяем обязательные поля для продакшена
	if c.IsProduction() {
		if c.Traccar.Username == "" || c.Traccar.Password == "" {
			return fmt.Errorf("TRACCAR_USERNAME and TRACCAR_PASSWORD are required in production")
		}
	}

	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	return nil
}

// Вспомогательные функции для получения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return defaultValue
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшене
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// GinMode режим gin: debug при DEBUG_MODE=true, иначе release
func (c *Config) GinMode() string {
	if c.App.Debug {
		return "debug"
	}
	return "release"
}

// GetRedisAddr возвращает адрес Redis
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// ListenAddr адрес, на котором поднимается HTTP сервер
func (c *Config) ListenAddr() string {
	return c.App.Host + ":" + c.App.Port
}

// LogConfig выводит конфигурацию в лог (без секретных данных)
func (c *Config) LogConfig() {
	log.Printf("=== Application Configuration ===")
	log.Printf("Environment: %s", c.App.Env)
	log.Printf("Listen: %s", c.ListenAddr())
	log.Printf("Traccar API URL: %s", c.Traccar.BaseURL)
	log.Printf("Traccar User: %s", c.Traccar.Username)
	log.Printf("Poll Interval: %v", c.Traccar.PollInterval)
	log.Printf("Redis Enabled: %t (%s)", c.Redis.Enabled, c.GetRedisAddr())
	log.Printf("Telegram Notifications: %t", c.Telegram.BotToken != "")
	log.Printf("Debug Mode: %t", c.App.Debug)
	log.Printf("================================")
}
