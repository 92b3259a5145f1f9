package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/pkg/logger"
	"github.com/yourusername/pulse-api/internal/pkg/metrics"
)

// RequestIDHeader - заголовок корреляции запросов
const RequestIDHeader = "X-Request-ID"

// RequestLogger назначает request_id и пишет одну запись лога на запрос
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.FromContext(c.Request.Context(), "HTTP").WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if p, ok := PrincipalFrom(c); ok {
			entry = entry.WithField("principal_id", p.ID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}

// PrometheusMetrics считает запросы, их длительность и количество обрабатываемых
func PrometheusMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		c.Next()

		// Шаблон маршрута вместо пути, чтобы не раздувать кардинальность
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Recovery перехватывает панику обработчика и отвечает JSON 500
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.FromContext(c.Request.Context(), "Recovery").
			WithField("panic", recovered).
			WithField("path", c.Request.URL.Path).
			Error("[Recovery] Panic recovered in handler")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"error_type": "internal_server_error",
		})
	})
}
