package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	"github.com/yourusername/pulse-api/internal/domain/repository"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

// RecentEventsLimit - сколько событий возвращает журнал
const RecentEventsLimit = 10

const maxEventTypeLength = 128

// EventService ведет журнал произвольных событий
type EventService struct {
	repo repository.EventRepository
	fx   sideEffects
}

// NewEventService создает сервис журнала событий
func NewEventService(repo repository.EventRepository, tasks TaskRunner, notifier Notifier) *EventService {
	return &EventService{repo: repo, fx: newSideEffects(tasks, notifier)}
}

// Log добавляет событие от имени принципала и рассылает new_event
func (s *EventService) Log(ctx context.Context, p *entity.Principal, eventType string) (*entity.Event, error) {
	if p == nil {
		return nil, apperrors.ErrUnauthorized
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return nil, fmt.Errorf("%w: event_type is required", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(eventType) > maxEventTypeLength {
		return nil, fmt.Errorf("%w: event_type must be at most %d characters", apperrors.ErrValidation, maxEventTypeLength)
	}

	event := &entity.Event{Username: p.Username, EventType: eventType}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	s.fx.emit(entity.NotifyNewEvent, event)
	return event, nil
}

// Recent возвращает последние события, новые первыми
func (s *EventService) Recent(ctx context.Context) ([]entity.Event, error) {
	return s.repo.ListRecent(ctx, RecentEventsLimit)
}

// RecordUserEventInput - данные события пользователя
type RecordUserEventInput struct {
	UserID    *uuid.UUID
	Username  string
	EventType string
	Meta      map[string]interface{}
}

// UserEventService записывает типизированные события пользователей для агрегатов
type UserEventService struct {
	repo repository.UserEventRepository
	fx   sideEffects
}

// NewUserEventService создает сервис событий пользователей
func NewUserEventService(repo repository.UserEventRepository, tasks TaskRunner, notifier Notifier) *UserEventService {
	return &UserEventService{repo: repo, fx: newSideEffects(tasks, notifier)}
}

// Record сохраняет событие и рассылает user_event_created и metrics_update
func (s *UserEventService) Record(ctx context.Context, in RecordUserEventInput) (*entity.UserEvent, error) {
	if !entity.IsValidUserEventType(in.EventType) {
		return nil, fmt.Errorf("%w: event_type must be one of signup, login, answer, click, logout", apperrors.ErrValidation)
	}
	if strings.TrimSpace(in.Username) == "" {
		return nil, fmt.Errorf("%w: username is required", apperrors.ErrValidation)
	}

	event := &entity.UserEvent{
		UserID:    in.UserID,
		Username:  in.Username,
		EventType: in.EventType,
		Meta:      in.Meta,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	s.fx.emit(entity.NotifyUserEventCreated, event)
	s.fx.emitMetricsUpdate(entity.NotifyUserEventCreated)
	return event, nil
}

// RecordForPrincipal записывает событие от имени принципала
func (s *UserEventService) RecordForPrincipal(ctx context.Context, p *entity.Principal, eventType string, meta map[string]interface{}) (*entity.UserEvent, error) {
	if p == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return s.Record(ctx, RecordUserEventInput{
		UserID:    principalUUID(p),
		Username:  p.Username,
		EventType: eventType,
		Meta:      meta,
	})
}

// RecordAsync записывает событие как побочное действие: ошибка только логируется
func (s *UserEventService) RecordAsync(p *entity.Principal, eventType string, meta map[string]interface{}) {
	s.fx.tasks.Go("user_event:"+eventType, func(ctx context.Context) error {
		_, err := s.RecordForPrincipal(ctx, p, eventType, meta)
		return err
	})
}

func principalUUID(p *entity.Principal) *uuid.UUID {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		logrus.WithField("component", "UserEventService").Debugf("ID принципала %q не является UUID", p.ID)
		return nil
	}
	return &id
}
