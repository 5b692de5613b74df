package api

import (
	"github.com/gin-gonic/gin"
)

// APIResponse представляет стандартную структуру ответа API
type APIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// SuccessResponse возвращает успешный ответ
func SuccessResponse(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Status: "success",
		Data:   data,
	})
}

// ErrorResponse возвращает ошибку
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Status: "error",
		Error:  message,
	})
}
