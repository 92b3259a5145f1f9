package repository

import (
	"context"
	"time"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

// MetricsRepository выполняет агрегирующие запросы только на чтение.
// Все группировки выполняются в UTC.
type MetricsRepository interface {
	SignupsPerDay(ctx context.Context) ([]entity.DailyCount, error)
	// ActiveUsers считает уникальные пары (user_id, username) по минутам начиная с since
	ActiveUsers(ctx context.Context, since time.Time) ([]entity.TimeBucket, error)
	EventTypeDistribution(ctx context.Context) ([]entity.EventTypeCount, error)
	TotalUserEvents(ctx context.Context) (int64, error)
	RecentUserEvents(ctx context.Context, limit int) ([]entity.UserEvent, error)
	// AnsweredUsers возвращает число уникальных user_id и поминутную серию за [from, to]
	AnsweredUsers(ctx context.Context, from, to time.Time) (int64, []entity.TimeBucket, error)
	// Heatmap считает события по (день недели, час) начиная с since, dow 0 = воскресенье
	Heatmap(ctx context.Context, since time.Time) ([]entity.HeatmapCell, error)
}
