package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/pulse-api/internal/middleware"
	"github.com/yourusername/pulse-api/internal/pkg/logger"
	"github.com/yourusername/pulse-api/internal/websocket"
)

// WSHandler обрабатывает WebSocket соединения канала уведомлений
type WSHandler struct {
	manager  *websocket.Manager
	verifier middleware.TokenVerifier
	upgrader gorillaws.Upgrader
}

// NewWSHandler создает обработчик. Пустой allowedOrigins разрешает любой origin.
func NewWSHandler(manager *websocket.Manager, verifier middleware.TokenVerifier, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WSHandler{
		manager:  manager,
		verifier: verifier,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Не браузерный клиент (curl, мобильное приложение)
				if origin == "" || len(allowed) == 0 || allowed["*"] {
					return true
				}
				if allowed[origin] {
					return true
				}
				logger.FromContext(r.Context(), "WSHandler").WithField("origin", origin).Warn("[WSHandler] Rejected origin")
				return false
			},
		},
	}
}

// HandleConnection - GET /ws. Канал публичный, необязательный ?token= привязывает Principal к соединению.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), "WSHandler")

	principalID := ""
	if token := c.Query("token"); token != "" && h.verifier != nil {
		p, err := h.verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			return
		}
		principalID = p.ID
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ с ошибкой
		log.WithError(err).Warn("[WSHandler] Error upgrading connection")
		return
	}

	if _, err := h.manager.Attach(conn, principalID); err != nil {
		log.WithError(err).Warn("[WSHandler] Failed to attach client")
	}
}
