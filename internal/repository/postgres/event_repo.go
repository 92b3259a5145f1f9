package postgres

import (
	"context"
	"fmt"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

// EventRepo реализует repository.EventRepository
type EventRepo struct {
	db DBProvider
}

// NewEventRepo создает репозиторий журнала событий
func NewEventRepo(db DBProvider) *EventRepo {
	return &EventRepo{db: db}
}

// Create добавляет событие
func (r *EventRepo) Create(ctx context.Context, event *entity.Event) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Create(event).Error; err != nil {
		return fmt.Errorf("create event failed: %w", err)
	}
	return nil
}

// ListRecent возвращает последние события, новые первыми
func (r *EventRepo) ListRecent(ctx context.Context, limit int) ([]entity.Event, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	events := make([]entity.Event, 0, limit)
	err = db.Order("occurred_at DESC").Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}

// UserEventRepo реализует repository.UserEventRepository
type UserEventRepo struct {
	db DBProvider
}

// NewUserEventRepo создает репозиторий событий пользователей
func NewUserEventRepo(db DBProvider) *UserEventRepo {
	return &UserEventRepo{db: db}
}

// Create добавляет событие пользователя
func (r *UserEventRepo) Create(ctx context.Context, event *entity.UserEvent) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Create(event).Error; err != nil {
		return fmt.Errorf("create user event failed: %w", err)
	}
	return nil
}
