package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

// Ограничения на количество вариантов ответа
const (
	MinQuestionOptions = 2
	MaxQuestionOptions = 10
)

// Уровни сложности вопроса
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
func (o *StringArray) Scan(value interface{}) error {
	return scanJSONB(value, o, func() { *o = StringArray{} })
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // пустой JSON массив вместо null
	}
	return json.Marshal([]string(o))
}

// QuestionOption - вариант ответа с необязательным ключом
type QuestionOption struct {
	Text string `json:"text"`
	Key  string `json:"key,omitempty"`
}

// OptionList - упорядоченный список вариантов, хранится в JSONB
type OptionList []QuestionOption

// Scan реализует интерфейс sql.Scanner для OptionList
func (o *OptionList) Scan(value interface{}) error {
	return scanJSONB(value, o, func() { *o = OptionList{} })
}

// Value реализует интерфейс driver.Valuer для OptionList
func (o OptionList) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]QuestionOption(o))
}

func scanJSONB(value interface{}, dest interface{}, empty func()) error {
	if value == nil {
		empty()
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		empty()
		return nil
	}
	return json.Unmarshal(bytes, dest)
}

// Question представляет вопрос с вариантами ответа.
// После создания вопрос не изменяется.
type Question struct {
	ID                 uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Text               string      `gorm:"type:text;not null" json:"text"`
	Options            OptionList  `gorm:"type:jsonb;not null" json:"options"`
	CorrectOptionIndex int         `gorm:"not null" json:"-"`
	Difficulty         string      `gorm:"size:16;not null;default:medium" json:"difficulty"`
	Tags               StringArray `gorm:"type:jsonb;not null" json:"tags"`
	CreatedBy          *uuid.UUID  `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt          time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time   `gorm:"not null" json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// BeforeCreate назначает UUID и выставляет updated_at = created_at
func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	q.UpdatedAt = q.CreatedAt
	return q.Validate()
}

// Normalize обрезает пробелы, подставляет сложность по умолчанию и убирает дубликаты тегов
func (q *Question) Normalize() {
	q.Text = strings.TrimSpace(q.Text)
	for i := range q.Options {
		q.Options[i].Text = strings.TrimSpace(q.Options[i].Text)
		q.Options[i].Key = strings.TrimSpace(q.Options[i].Key)
	}
	q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}

	seen := make(map[string]bool, len(q.Tags))
	tags := make(StringArray, 0, len(q.Tags))
	for _, tag := range q.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	q.Tags = tags
}

// Validate проверяет инварианты вопроса до сохранения
func (q *Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("%w: question text is required", apperrors.ErrValidation)
	}
	if n := len(q.Options); n < MinQuestionOptions || n > MaxQuestionOptions {
		return fmt.Errorf("%w: options must contain between %d and %d entries, got %d",
			apperrors.ErrValidation, MinQuestionOptions, MaxQuestionOptions, n)
	}
	for i, opt := range q.Options {
		if opt.Text == "" {
			return fmt.Errorf("%w: option %d has empty text", apperrors.ErrValidation, i)
		}
	}
	if !q.IsValidOption(q.CorrectOptionIndex) {
		return fmt.Errorf("%w: correctOptionIndex %d is out of bounds for %d options",
			apperrors.ErrValidation, q.CorrectOptionIndex, len(q.Options))
	}
	switch q.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrValidation, q.Difficulty)
	}
	return nil
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (q *Question) IsCorrect(selectedOption int) bool {
	return selectedOption == q.CorrectOptionIndex
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(q.Options)
}
