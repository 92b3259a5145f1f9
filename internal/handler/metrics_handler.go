package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pulse-api/internal/service"
)

// MetricsHandler отдает агрегаты только на чтение
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler создает обработчик агрегатов
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// SignupsPerDay - GET /api/metrics/signups-per-day
func (h *MetricsHandler) SignupsPerDay(c *gin.Context) {
	result, err := h.metrics.SignupsPerDay(c.Request.Context())
	h.respond(c, result, err)
}

// ActiveUsers - GET /api/metrics/active-users?window=10m
func (h *MetricsHandler) ActiveUsers(c *gin.Context) {
	result, err := h.metrics.ActiveUsers(c.Request.Context(), c.Query("window"))
	h.respond(c, result, err)
}

// EventTypes - GET /api/metrics/event-types
func (h *MetricsHandler) EventTypes(c *gin.Context) {
	result, err := h.metrics.EventTypeDistribution(c.Request.Context())
	h.respond(c, result, err)
}

// TotalEvents - GET /api/metrics/total-events
func (h *MetricsHandler) TotalEvents(c *gin.Context) {
	result, err := h.metrics.TotalEvents(c.Request.Context())
	h.respond(c, result, err)
}

// RecentActivity - GET /api/metrics/recent-activity
func (h *MetricsHandler) RecentActivity(c *gin.Context) {
	result, err := h.metrics.RecentActivity(c.Request.Context())
	h.respond(c, result, err)
}

// UsersAnsweredToday - GET /api/metrics/users-answered-today
func (h *MetricsHandler) UsersAnsweredToday(c *gin.Context) {
	result, err := h.metrics.UsersAnsweredToday(c.Request.Context())
	h.respond(c, result, err)
}

// Heatmap - GET /api/metrics/heatmap?range=24h|7d
func (h *MetricsHandler) Heatmap(c *gin.Context) {
	result, err := h.metrics.EventHeatmap(c.Request.Context(), c.Query("range"))
	h.respond(c, result, err)
}

func (h *MetricsHandler) respond(c *gin.Context, result interface{}, err error) {
	if err != nil {
		respondError(c, "MetricsHandler", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
