package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TaskRunner выполняет побочные действия (уведомления, события для метрик)
// так, что их результат не влияет на основной ответ.
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// FailureRecorder учитывает сбой побочного действия (например, счетчик Prometheus)
type FailureRecorder func(task string)

// BackgroundRunner запускает задачи в отдельных горутинах с recover и таймаутом
type BackgroundRunner struct {
	wg        sync.WaitGroup
	timeout   time.Duration
	onFailure FailureRecorder

	mu     sync.Mutex
	closed bool
}

// NewBackgroundRunner создает раннер. timeout ограничивает каждую задачу.
func NewBackgroundRunner(timeout time.Duration, onFailure FailureRecorder) *BackgroundRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BackgroundRunner{timeout: timeout, onFailure: onFailure}
}

// Go запускает задачу. После Wait новые задачи не принимаются.
func (r *BackgroundRunner) Go(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		logrus.WithField("component", "TaskRunner").Warnf("Задача %s отклонена: сервис останавливается", name)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := runTask(ctx, name, fn); err != nil {
			logrus.WithField("component", "TaskRunner").WithField("task", name).WithError(err).Warn("Побочное действие не выполнено")
			if r.onFailure != nil {
				r.onFailure(name)
			}
		}
	}()
}

// Wait дожидается завершения запущенных задач или отмены ctx
func (r *BackgroundRunner) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InlineRunner выполняет задачи синхронно и только логирует ошибки
type InlineRunner struct{}

// Go выполняет задачу в текущей горутине
func (InlineRunner) Go(name string, fn func(ctx context.Context) error) {
	if err := runTask(context.Background(), name, fn); err != nil {
		logrus.WithField("component", "TaskRunner").WithField("task", name).WithError(err).Warn("Побочное действие не выполнено")
	}
}

func runTask(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in task %s: %v", name, rec)
		}
	}()
	return fn(ctx)
}
