package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

// QuestionOptionDTO - вариант ответа
type QuestionOptionDTO struct {
	Text string `json:"text" binding:"required"`
	Key  string `json:"key,omitempty"`
}

// CreateQuestionRequest представляет запрос на создание вопроса
type CreateQuestionRequest struct {
	Text               string              `json:"text" binding:"required"`
	Options            []QuestionOptionDTO `json:"options" binding:"required,min=2,max=10,dive"`
	CorrectOptionIndex *int                `json:"correctOptionIndex" binding:"required"`
	Difficulty         string              `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Tags               []string            `json:"tags"`
}

// SubmitAnswerRequest представляет запрос на отправку ответа
type SubmitAnswerRequest struct {
	QuestionID          string `json:"questionId" binding:"required"`
	SelectedOptionIndex *int   `json:"selectedOptionIndex" binding:"required"`
}

// QuestionResponse - публичное представление вопроса без правильного ответа
type QuestionResponse struct {
	ID         uuid.UUID           `json:"id"`
	Text       string              `json:"text"`
	Options    []QuestionOptionDTO `json:"options"`
	Difficulty string              `json:"difficulty"`
	Tags       []string            `json:"tags"`
	CreatedBy  *uuid.UUID          `json:"created_by,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// AdminQuestionResponse дополняет вопрос индексом правильного ответа
type AdminQuestionResponse struct {
	QuestionResponse
	CorrectOptionIndex int `json:"correctOptionIndex"`
}

// AnswerResponse - результат отправки ответа
type AnswerResponse struct {
	ID                  uuid.UUID `json:"id"`
	QuestionID          uuid.UUID `json:"questionId"`
	UserID              uuid.UUID `json:"userId"`
	Username            string    `json:"username"`
	SelectedOptionIndex int       `json:"selectedOptionIndex"`
	IsCorrect           bool      `json:"isCorrect"`
	CreatedAt           time.Time `json:"created_at"`
}

// EntityOptions переводит DTO вариантов в сущности
func (r CreateQuestionRequest) EntityOptions() []entity.QuestionOption {
	out := make([]entity.QuestionOption, 0, len(r.Options))
	for _, o := range r.Options {
		out = append(out, entity.QuestionOption{Text: o.Text, Key: o.Key})
	}
	return out
}

// NewQuestionResponse создает публичный DTO вопроса
func NewQuestionResponse(q *entity.Question) QuestionResponse {
	options := make([]QuestionOptionDTO, 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, QuestionOptionDTO{Text: o.Text, Key: o.Key})
	}
	tags := []string(q.Tags)
	if tags == nil {
		tags = []string{}
	}
	return QuestionResponse{
		ID:         q.ID,
		Text:       q.Text,
		Options:    options,
		Difficulty: q.Difficulty,
		Tags:       tags,
		CreatedBy:  q.CreatedBy,
		CreatedAt:  q.CreatedAt,
		UpdatedAt:  q.UpdatedAt,
	}
}

// NewQuestionListResponse создает публичный список вопросов
func NewQuestionListResponse(questions []entity.Question) []QuestionResponse {
	out := make([]QuestionResponse, 0, len(questions))
	for i := range questions {
		out = append(out, NewQuestionResponse(&questions[i]))
	}
	return out
}

// NewAdminQuestionResponse создает DTO вопроса для администратора
func NewAdminQuestionResponse(q *entity.Question) AdminQuestionResponse {
	return AdminQuestionResponse{
		QuestionResponse:   NewQuestionResponse(q),
		CorrectOptionIndex: q.CorrectOptionIndex,
	}
}

// NewAdminQuestionListResponse создает список вопросов для администратора
func NewAdminQuestionListResponse(questions []entity.Question) []AdminQuestionResponse {
	out := make([]AdminQuestionResponse, 0, len(questions))
	for i := range questions {
		out = append(out, NewAdminQuestionResponse(&questions[i]))
	}
	return out
}

// NewAnswerResponse создает DTO ответа
func NewAnswerResponse(a *entity.Answer) AnswerResponse {
	return AnswerResponse{
		ID:                  a.ID,
		QuestionID:          a.QuestionID,
		UserID:              a.UserID,
		Username:            a.Username,
		SelectedOptionIndex: a.SelectedOptionIndex,
		IsCorrect:           a.IsCorrect,
		CreatedAt:           a.CreatedAt,
	}
}
