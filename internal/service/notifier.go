package service

import (
	"context"
	"time"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

// Notifier отправляет уведомление всем подписчикам канала реального времени
type Notifier interface {
	Emit(event string, payload interface{}) error
}

// NoopNotifier используется, когда канал уведомлений не настроен
type NoopNotifier struct{}

// Emit ничего не делает
func (NoopNotifier) Emit(string, interface{}) error { return nil }

// sideEffects объединяет отправку уведомлений и запуск задач
type sideEffects struct {
	tasks    TaskRunner
	notifier Notifier
	now      func() time.Time
}

func newSideEffects(tasks TaskRunner, notifier Notifier) sideEffects {
	if tasks == nil {
		tasks = InlineRunner{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return sideEffects{tasks: tasks, notifier: notifier, now: time.Now}
}

func (s sideEffects) emit(event string, payload interface{}) {
	s.tasks.Go("emit:"+event, func(context.Context) error {
		return s.notifier.Emit(event, payload)
	})
}

func (s sideEffects) emitMetricsUpdate(reason string) {
	s.emit(entity.NotifyMetricsUpdate, entity.MetricsUpdate{Reason: reason, At: s.now().UTC()})
}
