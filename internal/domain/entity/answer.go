package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Answer - ответ на вопрос. IsCorrect вычисляется один раз при отправке
// и не пересчитывается.
type Answer struct {
	ID                  uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"questionId"`
	UserID              uuid.UUID         `gorm:"type:uuid;not null;index" json:"userId"`
	Username            string            `gorm:"size:64;not null" json:"username"`
	SelectedOptionIndex int               `gorm:"not null" json:"selectedOptionIndex"`
	IsCorrect           bool              `gorm:"not null" json:"isCorrect"`
	CreatedAt           time.Time         `gorm:"not null;index" json:"created_at"`
	Meta                datatypes.JSONMap `gorm:"type:jsonb" json:"meta,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (Answer) TableName() string {
	return "answers"
}

// BeforeCreate назначает UUID и время создания
func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Meta == nil {
		a.Meta = datatypes.JSONMap{}
	}
	return nil
}

// NewAnswer фиксирует правильность ответа относительно текущего состояния вопроса
func NewAnswer(q *Question, p *Principal, userID uuid.UUID, selected int) *Answer {
	return &Answer{
		QuestionID:          q.ID,
		UserID:              userID,
		Username:            p.Username,
		SelectedOptionIndex: selected,
		IsCorrect:           q.IsCorrect(selected),
	}
}
