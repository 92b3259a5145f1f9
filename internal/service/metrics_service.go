package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	"github.com/yourusername/pulse-api/internal/domain/repository"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

// DefaultActiveWindow используется, если окно не задано или не распознано
const DefaultActiveWindow = 10 * time.Minute

// RecentActivityLimit - сколько событий возвращает recent-activity
const RecentActivityLimit = 10

// Диапазоны тепловой карты
const (
	HeatmapRange24h = "24h"
	HeatmapRange7d  = "7d"
)

var windowPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// Ключи кеша агрегатов
const (
	cacheKeySignups    = "metrics:signups_per_day"
	cacheKeyEventTypes = "metrics:event_types"
	cacheKeyTotal      = "metrics:total_events"
)

// ParseWindow разбирает окно вида <число><s|m|h|d>.
// Пустое, нераспознанное или нулевое значение дает DefaultActiveWindow.
func ParseWindow(raw string) time.Duration {
	m := windowPattern.FindStringSubmatch(raw)
	if m == nil {
		return DefaultActiveWindow
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return DefaultActiveWindow
	}

	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	// Защита от переполнения int64 наносекунд
	if n > int64(1<<62)/int64(unit) {
		return DefaultActiveWindow
	}
	return time.Duration(n) * unit
}

// ParseHeatmapRange возвращает окно тепловой карты и признак last24h. По умолчанию 7d.
func ParseHeatmapRange(raw string) (time.Duration, bool) {
	if raw == HeatmapRange24h {
		return 24 * time.Hour, true
	}
	return 7 * 24 * time.Hour, false
}

// StartOfUTCDay возвращает 00:00:00.000 UTC календарного дня t
func StartOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// MetricsService строит агрегаты только для чтения
type MetricsService struct {
	repo     repository.MetricsRepository
	cache    repository.CacheRepository
	cacheTTL time.Duration
	now      func() time.Time
}

// NewMetricsService создает сервис метрик. cache может быть nil, cacheTTL 0 отключает кеш.
func NewMetricsService(repo repository.MetricsRepository, cache repository.CacheRepository, cacheTTL time.Duration) *MetricsService {
	return &MetricsService{repo: repo, cache: cache, cacheTTL: cacheTTL, now: time.Now}
}

// SignupsPerDay - регистрации по дням UTC
func (s *MetricsService) SignupsPerDay(ctx context.Context) ([]entity.DailyCount, error) {
	var out []entity.DailyCount
	err := s.cached(ctx, cacheKeySignups, &out, func() (interface{}, error) {
		rows, err := s.repo.SignupsPerDay(ctx)
		out = rows
		return rows, err
	})
	if out == nil && err == nil {
		out = []entity.DailyCount{}
	}
	return out, err
}

// ActiveUsers - уникальные пользователи по минутам за окно
func (s *MetricsService) ActiveUsers(ctx context.Context, window string) ([]entity.TimeBucket, error) {
	since := s.now().UTC().Add(-ParseWindow(window))
	series, err := s.repo.ActiveUsers(ctx, since)
	if err != nil {
		return nil, err
	}
	return nonNilSeries(series), nil
}

// EventTypeDistribution - количество событий по типам
func (s *MetricsService) EventTypeDistribution(ctx context.Context) ([]entity.EventTypeCount, error) {
	var out []entity.EventTypeCount
	err := s.cached(ctx, cacheKeyEventTypes, &out, func() (interface{}, error) {
		rows, err := s.repo.EventTypeDistribution(ctx)
		out = rows
		return rows, err
	})
	if out == nil && err == nil {
		out = []entity.EventTypeCount{}
	}
	return out, err
}

// TotalEvents - общее количество событий пользователей
func (s *MetricsService) TotalEvents(ctx context.Context) (entity.TotalEvents, error) {
	var out entity.TotalEvents
	err := s.cached(ctx, cacheKeyTotal, &out, func() (interface{}, error) {
		total, err := s.repo.TotalUserEvents(ctx)
		out = entity.TotalEvents{Total: total}
		return out, err
	})
	return out, err
}

// RecentActivity - последние события пользователей
func (s *MetricsService) RecentActivity(ctx context.Context) ([]entity.UserEvent, error) {
	events, err := s.repo.RecentUserEvents(ctx, RecentActivityLimit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []entity.UserEvent{}
	}
	return events, nil
}

// UsersAnsweredToday - уникальные ответившие с начала суток UTC до текущего момента
func (s *MetricsService) UsersAnsweredToday(ctx context.Context) (*entity.AnsweredToday, error) {
	now := s.now().UTC()
	total, series, err := s.repo.AnsweredUsers(ctx, StartOfUTCDay(now), now)
	if err != nil {
		return nil, err
	}
	return &entity.AnsweredToday{
		Total:    total,
		Series:   nonNilSeries(series),
		Timezone: entity.MetricsTimezone,
	}, nil
}

// EventHeatmap - тепловая карта (день недели, час) за 24h или 7d
func (s *MetricsService) EventHeatmap(ctx context.Context, rangeParam string) (*entity.Heatmap, error) {
	lookback, last24h := ParseHeatmapRange(rangeParam)
	cells, err := s.repo.Heatmap(ctx, s.now().UTC().Add(-lookback))
	if err != nil {
		return nil, err
	}
	if cells == nil {
		cells = []entity.HeatmapCell{}
	}
	return &entity.Heatmap{Timezone: entity.MetricsTimezone, Buckets: cells, Last24h: last24h}, nil
}

// Invalidate сбрасывает кеш агрегатов после изменения данных
func (s *MetricsService) Invalidate(ctx context.Context) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Delete(ctx, cacheKeySignups, cacheKeyEventTypes, cacheKeyTotal); err != nil {
		logrus.WithField("component", "MetricsService").WithError(err).Debug("Не удалось очистить кеш метрик")
	}
}

// cached читает dest из кеша или вызывает load и сохраняет результат.
// Ошибки кеша не влияют на ответ.
func (s *MetricsService) cached(ctx context.Context, key string, dest interface{}, load func() (interface{}, error)) error {
	if s.cache == nil || s.cacheTTL <= 0 {
		_, err := load()
		return err
	}

	err := s.cache.GetJSON(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		logrus.WithField("component", "MetricsService").WithError(err).Debugf("Кеш метрик недоступен для %s", key)
	}

	value, err := load()
	if err != nil {
		return err
	}
	if err := s.cache.SetJSON(ctx, key, value, s.cacheTTL); err != nil {
		logrus.WithField("component", "MetricsService").WithError(err).Debugf("Не удалось сохранить %s в кеш", key)
	}
	return nil
}

func nonNilSeries(series []entity.TimeBucket) []entity.TimeBucket {
	if series == nil {
		return []entity.TimeBucket{}
	}
	return series
}

// InvalidatingNotifier сбрасывает кеш агрегатов на каждом metrics_update
// и передает уведомление дальше.
func (s *MetricsService) InvalidatingNotifier(next Notifier) Notifier {
	if next == nil {
		next = NoopNotifier{}
	}
	return invalidatingNotifier{metrics: s, next: next}
}

type invalidatingNotifier struct {
	metrics *MetricsService
	next    Notifier
}

func (n invalidatingNotifier) Emit(event string, payload interface{}) error {
	if event == entity.NotifyMetricsUpdate {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		n.metrics.Invalidate(ctx)
		cancel()
	}
	return n.next.Emit(event, payload)
}
