package entity

import "time"

// Типы уведомлений канала реального времени
const (
	NotifyNewEvent         = "new_event"
	NotifyNewAnswer        = "new_answer"
	NotifyUserEventCreated = "user_event_created"
	NotifyMetricsUpdate    = "metrics_update"
)

// MetricsUpdate сообщает подписчикам, что агрегаты нужно перечитать.
// Сами значения не передаются.
type MetricsUpdate struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}
