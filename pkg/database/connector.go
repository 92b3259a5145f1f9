package database

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

// OpenFunc открывает подключение к хранилищу
type OpenFunc func(ctx context.Context) (*gorm.DB, error)

// Hook выполняется после успешного открытия подключения (миграции, bootstrap).
// Ошибка хука закрывает подключение и запускает повтор.
type Hook func(ctx context.Context, db *gorm.DB) error

// Connector подключается к хранилищу в фоне с экспоненциальной задержкой.
// HTTP сервер стартует сразу, а репозитории получают ErrUnavailable до готовности.
type Connector struct {
	open           OpenFunc
	hooks          []Hook
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// closeDB освобождает подключение, подменяется в тестах
	closeDB func(*gorm.DB) error

	mu      sync.RWMutex
	db      *gorm.DB
	started bool
	ready   chan struct{}
	once    sync.Once
	done    chan struct{}
}

// ConnectorOption настраивает Connector
type ConnectorOption func(*Connector)

// WithHooks добавляет хуки после подключения
func WithHooks(hooks ...Hook) ConnectorOption {
	return func(c *Connector) { c.hooks = append(c.hooks, hooks...) }
}

// WithCloser задает функцию закрытия подключения
func WithCloser(fn func(*gorm.DB) error) ConnectorOption {
	return func(c *Connector) { c.closeDB = fn }
}

// NewConnector создает коннектор
func NewConnector(open OpenFunc, initialBackoff, maxBackoff time.Duration, opts ...ConnectorOption) *Connector {
	if initialBackoff <= 0 {
		initialBackoff = 500 * time.Millisecond
	}
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}
	c := &Connector{
		open:           open,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		closeDB:        CloseGorm,
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start запускает фоновые попытки подключения. Завершается при отмене ctx
// или после первого успешного подключения.
func (c *Connector) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()
	go c.run(ctx)
}

func (c *Connector) run(ctx context.Context) {
	defer close(c.done)
	log := logrus.WithField("component", "Connector")
	backoff := c.initialBackoff

	for attempt := 1; ; attempt++ {
		db, err := c.connect(ctx)
		if err == nil {
			c.mu.Lock()
			c.db = db
			c.mu.Unlock()
			c.once.Do(func() { close(c.ready) })
			log.WithField("attempt", attempt).Info("Подключение к базе данных установлено")
			return
		}

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"retry":   backoff.String(),
		}).WithError(err).Warn("Не удалось подключиться к базе данных")

		select {
		case <-ctx.Done():
			log.Info("Подключение к базе данных прервано: остановка сервиса")
			return
		case <-time.After(backoff):
		}
		backoff = NextBackoff(backoff, c.maxBackoff)
	}
}

func (c *Connector) connect(ctx context.Context) (*gorm.DB, error) {
	db, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	for _, hook := range c.hooks {
		if err := hook(ctx, db); err != nil {
			if closeErr := c.closeDB(db); closeErr != nil {
				logrus.WithField("component", "Connector").WithError(closeErr).Warn("Ошибка закрытия подключения после сбоя хука")
			}
			return nil, err
		}
	}
	return db, nil
}

// NextBackoff удваивает задержку, не превышая max
func NextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next <= 0 {
		return max
	}
	return next
}

// DB возвращает подключение или ErrUnavailable, если оно еще не установлено
func (c *Connector) DB() (*gorm.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, apperrors.ErrUnavailable
	}
	return c.db, nil
}

// IsConnected сообщает, готово ли подключение
func (c *Connector) IsConnected() bool {
	_, err := c.DB()
	return err == nil
}

// Ready закрывается после первого успешного подключения
func (c *Connector) Ready() <-chan struct{} {
	return c.ready
}

// Close дожидается завершения фоновых попыток и закрывает подключение.
// ctx, переданный в Start, должен быть отменен до вызова Close.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()

	if started {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	db := c.db
	c.db = nil
	c.mu.Unlock()
	if db == nil {
		return nil
	}
	return c.closeDB(db)
}
