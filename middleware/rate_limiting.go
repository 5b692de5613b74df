package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RateCounter счетчик запросов в фиксированном окне
type RateCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Requests     int                       // Количество запросов
	Window       time.Duration             // Временное окно
	Scope        string                    // Имя ограничения, входит в ключ
	KeyGenerator func(*gin.Context) string // Генератор ключей
}

// DefaultKeyGenerator генерирует ключ на основе IP адреса
func DefaultKeyGenerator(c *gin.Context) string {
	return c.ClientIP()
}

// RateLimit создает middleware для ограничения частоты запросов.
// Если counter == nil (Redis выключен), запросы не ограничиваются.
func RateLimit(counter RateCounter, config RateLimitConfig) gin.HandlerFunc {
	if config.KeyGenerator == nil {
		config.KeyGenerator = DefaultKeyGenerator
	}

	return func(c *gin.Context) {
		if counter == nil {
			c.Next()
			return
		}

		key := config.Scope + ":" + config.KeyGenerator(c)
		current, err := counter.Incr(c.Request.Context(), key, config.Window)
		if err != nil {
			// В случае ошибки Redis пропускаем запрос
			log.Printf("⚠️  Rate limit недоступен: %v", err)
			c.Next()
			return
		}

		remaining := config.Requests - int(current)
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

		if int(current) > config.Requests {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status": "error",
				"error": fmt.Sprintf("Too many requests. Limit: %d requests per %v",
					config.Requests, config.Window),
				"retry_after": config.Window.Seconds(),
			})
			return
		}

		c.Next()
	}
}

// RefreshRateLimit ограничение ручных обновлений данных
func RefreshRateLimit(counter RateCounter, requests int, window time.Duration) gin.HandlerFunc {
	return RateLimit(counter, RateLimitConfig{
		Requests:     requests,
		Window:       window,
		Scope:        "refresh",
		KeyGenerator: DefaultKeyGenerator,
	})
}
