package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Setup настраивает стандартный логгер logrus: JSON формат и уровень.
// Пустой level читается из LOG_LEVEL.
func Setup(level, format string) {
	configure(logrus.StandardLogger(), level, format, os.Stdout)
}

// New создает отдельный экземпляр логгера (используется в тестах и утилитах).
func New(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	configure(log, level, format, out)
	return log
}

func configure(log *logrus.Logger, level, format string, out io.Writer) {
	if strings.EqualFold(format, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}
	log.SetOutput(out)

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	log.SetLevel(ParseLevel(level))
}

// ParseLevel переводит строку в уровень logrus, по умолчанию info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithComponent возвращает запись лога с полем component.
func WithComponent(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}

// WithRequestID сохраняет ID запроса в контексте.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID возвращает ID запроса из контекста или пустую строку.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext возвращает запись лога компонента, дополненную request_id если он есть.
func FromContext(ctx context.Context, component string) *logrus.Entry {
	entry := WithComponent(component)
	if id := RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	return entry
}
