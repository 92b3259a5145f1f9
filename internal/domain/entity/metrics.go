package entity

import "time"

// MetricsTimezone - все агрегаты строятся в UTC
const MetricsTimezone = "UTC"

// BucketTimeLayout - ISO-8601 UTC с миллисекундами, например 2025-01-01T00:05:00.000Z
const BucketTimeLayout = "2006-01-02T15:04:05.000Z"

// FormatBucketTime форматирует начало минутного интервала
func FormatBucketTime(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format(BucketTimeLayout)
}

// DailyCount - количество за календарный день UTC
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// TimeBucket - значение за минутный интервал
type TimeBucket struct {
	Time  string `json:"time"`
	Value int64  `json:"value"`
}

// EventTypeCount - количество событий одного типа
type EventTypeCount struct {
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

// TotalEvents - общее количество событий пользователей
type TotalEvents struct {
	Total int64 `json:"total"`
}

// AnsweredToday - уникальные ответившие за текущие сутки UTC
type AnsweredToday struct {
	Total    int64        `json:"total"`
	Series   []TimeBucket `json:"series"`
	Timezone string       `json:"timezone"`
}

// HeatmapCell - количество событий для пары (день недели, час)
type HeatmapCell struct {
	Hour  int   `json:"hour"`
	Dow   int   `json:"dow"`
	Count int64 `json:"count"`
}

// Heatmap - сетка 7x24, dow 0 = воскресенье
type Heatmap struct {
	Timezone string        `json:"timezone"`
	Buckets  []HeatmapCell `json:"buckets"`
	Last24h  bool          `json:"last24h"`
}
