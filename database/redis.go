package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"geotrack_live/config"
)

// InitRedis подключается к Redis. Если Redis выключен в конфигурации, возвращает nil клиент.
func InitRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		log.Println("ℹ️  Redis отключен, ограничение частоты обновлений не применяется")
		return nil, nil
	}

	client := NewRedisClient(cfg)

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	log.Println("✅ Успешно подключено к Redis")
	return client, nil
}

// NewRedisClient создает клиент Redis без проверки соединения
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  300 * time.Second,
	})
}

// RedisRateCounter счетчик запросов в фиксированном окне на Redis
type RedisRateCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisRateCounter создает счетчик. prefix отделяет ключи приложения от остальных.
func NewRedisRateCounter(client *redis.Client, prefix string) *RedisRateCounter {
	return &RedisRateCounter{client: client, prefix: prefix}
}

// Incr увеличивает счетчик key и возвращает его значение в текущем окне.
// TTL выставляется при первом запросе окна.
func (r *RedisRateCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := fmt.Sprintf("%s:%s", r.prefix, key)

	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления счетчика %s: %w", fullKey, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return count, fmt.Errorf("ошибка установки TTL для %s: %w", fullKey, err)
		}
	}

	return count, nil
}
