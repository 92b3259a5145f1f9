package postgres

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

// DowConvention описывает нумерацию дней недели, которую возвращает хранилище
type DowConvention int

const (
	// DowISO - понедельник=1 .. воскресенье=7 (EXTRACT(ISODOW))
	DowISO DowConvention = iota
	// DowSundayOne - воскресенье=1 .. суббота=7
	DowSundayOne
	// DowSundayZero - воскресенье=0 .. суббота=6 (EXTRACT(DOW))
	DowSundayZero
)

// NormalizeDow приводит день недели к нумерации воскресенье=0
func NormalizeDow(native int, convention DowConvention) int {
	switch convention {
	case DowISO:
		return native % 7
	case DowSundayOne:
		return (native - 1 + 7) % 7
	default:
		return ((native % 7) + 7) % 7
	}
}

// HeatmapRow - строка агрегата в нативной нумерации хранилища
type HeatmapRow struct {
	Dow   int
	Hour  int
	Count int64
}

// BuildHeatmap нормализует дни недели и сортирует по (dow, hour)
func BuildHeatmap(rows []HeatmapRow, convention DowConvention) []entity.HeatmapCell {
	merged := make(map[[2]int]int64, len(rows))
	for _, row := range rows {
		key := [2]int{NormalizeDow(row.Dow, convention), row.Hour}
		merged[key] += row.Count
	}

	cells := make([]entity.HeatmapCell, 0, len(merged))
	for key, count := range merged {
		cells = append(cells, entity.HeatmapCell{Dow: key[0], Hour: key[1], Count: count})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Dow != cells[j].Dow {
			return cells[i].Dow < cells[j].Dow
		}
		return cells[i].Hour < cells[j].Hour
	})
	return cells
}

// MinuteRow - строка поминутного агрегата до нормализации
type MinuteRow struct {
	Bucket interface{}
	Value  int64
}

// BuildSeries нормализует минутные интервалы и сортирует их по возрастанию
func BuildSeries(rows []MinuteRow, bucketer MinuteBucketer) ([]entity.TimeBucket, error) {
	type point struct {
		at    time.Time
		value int64
	}
	points := make([]point, 0, len(rows))
	for _, row := range rows {
		at, err := bucketer.Normalize(row.Bucket)
		if err != nil {
			return nil, err
		}
		points = append(points, point{at: at, value: row.Value})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })

	series := make([]entity.TimeBucket, 0, len(points))
	for _, p := range points {
		series = append(series, entity.TimeBucket{Time: entity.FormatBucketTime(p.at), Value: p.value})
	}
	return series, nil
}

// MetricsRepo реализует repository.MetricsRepository
type MetricsRepo struct {
	db DBProvider

	mu       sync.RWMutex
	bucketer MinuteBucketer
}

// NewMetricsRepo создает репозиторий метрик
func NewMetricsRepo(db DBProvider, bucketer MinuteBucketer) *MetricsRepo {
	if bucketer == nil {
		bucketer = NativeBucketer{}
	}
	return &MetricsRepo{db: db, bucketer: bucketer}
}

// UseBucketer заменяет стратегию группировки (после проверки возможностей хранилища)
func (r *MetricsRepo) UseBucketer(b MinuteBucketer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bucketer = b
}

// Bucketer возвращает текущую стратегию группировки
func (r *MetricsRepo) Bucketer() MinuteBucketer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bucketer
}

// SignupsPerDay считает регистрации пользователей по дням UTC
func (r *MetricsRepo) SignupsPerDay(ctx context.Context) ([]entity.DailyCount, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	out := make([]entity.DailyCount, 0)
	err = db.Raw(`
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS date, COUNT(*) AS count
		FROM users
		GROUP BY 1
		ORDER BY 1 ASC`).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("signups per day: %w", err)
	}
	return out, nil
}

// ActiveUsers считает уникальные пары (user_id, username) по минутам
func (r *MetricsRepo) ActiveUsers(ctx context.Context, since time.Time) ([]entity.TimeBucket, error) {
	bucketer := r.Bucketer()
	query := fmt.Sprintf(`
		SELECT %s AS bucket,
		       COUNT(DISTINCT COALESCE(user_id::text, '') || '|' || username) AS value
		FROM user_events
		WHERE occurred_at >= ?
		GROUP BY 1
		ORDER BY 1 ASC`, bucketer.Expr("occurred_at"))

	return r.minuteSeries(ctx, bucketer, query, since.UTC())
}

// EventTypeDistribution считает события по типам, по убыванию количества
func (r *MetricsRepo) EventTypeDistribution(ctx context.Context) ([]entity.EventTypeCount, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	out := make([]entity.EventTypeCount, 0)
	err = db.Raw(`
		SELECT event_type, COUNT(*) AS count
		FROM user_events
		GROUP BY event_type
		ORDER BY count DESC, event_type ASC`).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("event type distribution: %w", err)
	}
	return out, nil
}

// TotalUserEvents возвращает общее количество событий пользователей
func (r *MetricsRepo) TotalUserEvents(ctx context.Context) (int64, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := db.Model(&entity.UserEvent{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("total user events: %w", err)
	}
	return total, nil
}

// RecentUserEvents возвращает последние события пользователей, новые первыми
func (r *MetricsRepo) RecentUserEvents(ctx context.Context, limit int) ([]entity.UserEvent, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	events := make([]entity.UserEvent, 0, limit)
	err = db.Order("occurred_at DESC").Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}

// AnsweredUsers считает уникальных ответивших за [from, to] и поминутную серию
func (r *MetricsRepo) AnsweredUsers(ctx context.Context, from, to time.Time) (int64, []entity.TimeBucket, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return 0, nil, err
	}
	from, to = from.UTC(), to.UTC()

	var total int64
	err = db.Raw(`
		SELECT COUNT(DISTINCT user_id)
		FROM answers
		WHERE created_at >= ? AND created_at <= ?`, from, to).Scan(&total).Error
	if err != nil {
		return 0, nil, fmt.Errorf("answered users total: %w", err)
	}

	bucketer := r.Bucketer()
	query := fmt.Sprintf(`
		SELECT %s AS bucket, COUNT(DISTINCT user_id) AS value
		FROM answers
		WHERE created_at >= ? AND created_at <= ?
		GROUP BY 1
		ORDER BY 1 ASC`, bucketer.Expr("created_at"))

	series, err := r.minuteSeries(ctx, bucketer, query, from, to)
	if err != nil {
		return 0, nil, err
	}
	return total, series, nil
}

// Heatmap считает события пользователей по (день недели, час) в UTC
func (r *MetricsRepo) Heatmap(ctx context.Context, since time.Time) ([]entity.HeatmapCell, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	rows := make([]HeatmapRow, 0)
	err = db.Raw(`
		SELECT EXTRACT(ISODOW FROM occurred_at AT TIME ZONE 'UTC')::int AS dow,
		       EXTRACT(HOUR FROM occurred_at AT TIME ZONE 'UTC')::int AS hour,
		       COUNT(*) AS count
		FROM user_events
		WHERE occurred_at >= ?
		GROUP BY 1, 2`, since.UTC()).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("heatmap: %w", err)
	}
	return BuildHeatmap(rows, DowISO), nil
}

func (r *MetricsRepo) minuteSeries(ctx context.Context, bucketer MinuteBucketer, query string, args ...interface{}) ([]entity.TimeBucket, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	rows, err := db.Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("minute series (%s): %w", bucketer.Name(), err)
	}
	defer rows.Close()

	raw := make([]MinuteRow, 0)
	for rows.Next() {
		var row MinuteRow
		if err := rows.Scan(&row.Bucket, &row.Value); err != nil {
			return nil, fmt.Errorf("scan minute bucket: %w", err)
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return BuildSeries(raw, bucketer)
}
