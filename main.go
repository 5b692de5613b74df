package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"geotrack_live/api"
	"geotrack_live/config"
	"geotrack_live/database"
	"geotrack_live/middleware"
	"geotrack_live/services"
)

// initNotifier выбирает уведомитель об ошибках соединения
func initNotifier(cfg *config.Config, logger *log.Logger) services.Notifier {
	if cfg.Telegram.BotToken == "" {
		return services.NewLogNotifier(logger)
	}

	notifier, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		log.Printf("⚠️  Telegram недоступен, уведомления пишутся в лог: %v", err)
		return services.NewLogNotifier(logger)
	}
	return notifier
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("❌ Ошибка загрузки конфигурации:", err)
	}
	cfg.LogConfig()

	gin.SetMode(cfg.GinMode())

	logger := log.New(os.Stdout, "[traccar] ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis нужен только для ограничения ручных обновлений
	var refreshLimiter gin.HandlerFunc
	redisClient, err := database.InitRedis(ctx, cfg.Redis)
	if err != nil {
		log.Printf("⚠️  %v, ограничение частоты обновлений отключено", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		counter := database.NewRedisRateCounter(redisClient, "geotrack")
		refreshLimiter = middleware.RefreshRateLimit(counter, cfg.Security.RefreshRateLimit, cfg.Security.RefreshRateWindow)
	}

	client := services.NewTraccarClient(services.TraccarCredentials{
		BaseURL:  cfg.Traccar.BaseURL,
		Username: cfg.Traccar.Username,
		Password: cfg.Traccar.Password,
	}, cfg.Traccar.Timeout, logger)

	session := services.NewTrackingSession(client, services.SessionConfig{
		PollInterval: cfg.Traccar.PollInterval,
		Notifier:     initNotifier(cfg, logger),
		Logger:       logger,
	})

	log.Println("🔧 Загрузка устройств и позиций...")
	if err := session.Start(ctx); err != nil {
		log.Fatal("❌ Ошибка запуска сессии:", err)
	}
	defer session.Stop()

	if msg := session.Err(); msg != "" {
		log.Printf("⚠️  Сессия %s запущена с ошибкой: %s", session.ID, msg)
	} else {
		log.Printf("✅ Сессия %s: устройств %d, позиций %d", session.ID, len(session.Devices()), len(session.Positions()))
	}

	handler := api.NewTrackingHandler(session, client, cfg.Traccar.BaseURL)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RefreshLimiter: refreshLimiter,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Сервер запущен на %s", cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Ошибка HTTP сервера:", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Остановка сервера...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Ошибка остановки сервера: %v", err)
	}
}
