package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pulse-api/internal/handler/dto"
	"github.com/yourusername/pulse-api/internal/middleware"
	"github.com/yourusername/pulse-api/internal/service"
)

// EventHandler обрабатывает журнал событий
type EventHandler struct {
	events     *service.EventService
	userEvents *service.UserEventService
}

// NewEventHandler создает обработчик событий
func NewEventHandler(events *service.EventService, userEvents *service.UserEventService) *EventHandler {
	return &EventHandler{events: events, userEvents: userEvents}
}

// LogEvent добавляет произвольное событие от имени принципала
// POST /api/events
func (h *EventHandler) LogEvent(c *gin.Context) {
	var req dto.LogEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	p, _ := middleware.PrincipalFrom(c)

	event, err := h.events.Log(c.Request.Context(), p, req.EventType)
	if err != nil {
		respondError(c, "EventHandler", err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// RecentEvents возвращает последние события
// GET /api/events
func (h *EventHandler) RecentEvents(c *gin.Context) {
	events, err := h.events.Recent(c.Request.Context())
	if err != nil {
		respondError(c, "EventHandler", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// RecordUserEvent добавляет типизированное событие пользователя
// POST /api/user-events
func (h *EventHandler) RecordUserEvent(c *gin.Context) {
	var req dto.UserEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	p, _ := middleware.PrincipalFrom(c)

	event, err := h.userEvents.RecordForPrincipal(c.Request.Context(), p, req.EventType, req.Meta)
	if err != nil {
		respondError(c, "EventHandler", err)
		return
	}
	c.JSON(http.StatusCreated, event)
}
