package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с банком вопросов
type QuestionRepository interface {
	Create(ctx context.Context, question *entity.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Question, error)
	// ListNewestFirst возвращает все вопросы, отсортированные по created_at DESC
	ListNewestFirst(ctx context.Context) ([]entity.Question, error)
}

// AnswerRepository определяет методы для работы с ответами
type AnswerRepository interface {
	Create(ctx context.Context, answer *entity.Answer) error
	// ListAll возвращает ответы по возрастанию created_at (для экспорта)
	ListAll(ctx context.Context) ([]entity.Answer, error)
}
