package repository

import (
	"context"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

// EventRepository хранит произвольные события (только добавление)
type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	ListRecent(ctx context.Context, limit int) ([]entity.Event, error)
}

// UserEventRepository хранит типизированные события пользователей
type UserEventRepository interface {
	Create(ctx context.Context, event *entity.UserEvent) error
}
