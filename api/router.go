package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"geotrack_live/middleware"
)

// RouterConfig настройки HTTP роутера
type RouterConfig struct {
	AllowedOrigins []string
	RefreshLimiter gin.HandlerFunc // nil - без ограничения
}

// NewRouter регистрирует все маршруты дашборда
func NewRouter(h *TrackingHandler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	// Базовые роуты
	r.GET("/ping", Ping)

	refresh := []gin.HandlerFunc{h.Refresh}
	if cfg.RefreshLimiter != nil {
		refresh = append([]gin.HandlerFunc{cfg.RefreshLimiter}, refresh...)
	}

	// API роуты
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/session", h.GetSession)
		apiGroup.GET("/devices", h.GetDevices)
		apiGroup.GET("/devices/:id", h.GetDevice)
		apiGroup.GET("/devices/:id/positions", h.GetDevicePositions)
		apiGroup.GET("/positions", h.GetPositions)
		apiGroup.GET("/selection", h.GetSelection)
		apiGroup.PUT("/selection", h.PutSelection)
		apiGroup.POST("/refresh", refresh...)
		apiGroup.GET("/export/devices.xlsx", h.ExportDevices)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	for _, origin := range origins {
		if origin == "*" {
			return cors.Default()
		}
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "PUT", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}
