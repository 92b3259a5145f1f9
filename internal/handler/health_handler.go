package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StoreStatus сообщает о доступности хранилища
type StoreStatus interface {
	IsConnected() bool
}

// HealthHandler отвечает на проверки живости независимо от состояния хранилища
type HealthHandler struct {
	store StoreStatus
	now   func() time.Time
}

// NewHealthHandler создает обработчик /health
func NewHealthHandler(store StoreStatus) *HealthHandler {
	return &HealthHandler{store: store, now: time.Now}
}

// Health - GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	database := "down"
	if h.store != nil && h.store.IsConnected() {
		database = "up"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"database":  database,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
