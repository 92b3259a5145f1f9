package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Типы событий пользователя, по которым строятся метрики
const (
	UserEventSignup = "signup"
	UserEventLogin  = "login"
	UserEventAnswer = "answer"
	UserEventClick  = "click"
	UserEventLogout = "logout"
)

// IsValidUserEventType проверяет тип события по перечислению
func IsValidUserEventType(t string) bool {
	switch t {
	case UserEventSignup, UserEventLogin, UserEventAnswer, UserEventClick, UserEventLogout:
		return true
	}
	return false
}

// Event - произвольная запись активности. Только добавление.
type Event struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	EventType string    `gorm:"size:128;not null" json:"event_type"`
	Timestamp time.Time `gorm:"column:occurred_at;not null;index" json:"timestamp"`
}

// TableName определяет имя таблицы для GORM
func (Event) TableName() string {
	return "events"
}

// BeforeCreate назначает UUID и время события по умолчанию
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return nil
}

// UserEvent - типизированное событие пользователя для агрегатов
type UserEvent struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID        `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Username  string            `gorm:"size:64;not null" json:"username"`
	EventType string            `gorm:"size:16;not null;index" json:"event_type"`
	Timestamp time.Time         `gorm:"column:occurred_at;not null;index" json:"timestamp"`
	Meta      datatypes.JSONMap `gorm:"type:jsonb" json:"meta,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (UserEvent) TableName() string {
	return "user_events"
}

// BeforeCreate назначает UUID и время события по умолчанию
func (e *UserEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Meta == nil {
		e.Meta = datatypes.JSONMap{}
	}
	return nil
}
