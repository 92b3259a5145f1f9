package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db DBProvider
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db DBProvider) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// Create создает новый вопрос. Валидацию выполняет хук BeforeCreate.
func (r *QuestionRepo) Create(ctx context.Context, question *entity.Question) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Create(question).Error; err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			return err
		}
		return fmt.Errorf("create question failed: %w", err)
	}
	return nil
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Question, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var question entity.Question
	if err := db.First(&question, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// ListNewestFirst возвращает все вопросы, новые первыми
func (r *QuestionRepo) ListNewestFirst(ctx context.Context) ([]entity.Question, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	questions := make([]entity.Question, 0)
	err = db.Order("created_at DESC").Order("id DESC").Find(&questions).Error
	return questions, err
}

// AnswerRepo реализует repository.AnswerRepository
type AnswerRepo struct {
	db DBProvider
}

// NewAnswerRepo создает репозиторий ответов
func NewAnswerRepo(db DBProvider) *AnswerRepo {
	return &AnswerRepo{db: db}
}

// Create сохраняет ответ
func (r *AnswerRepo) Create(ctx context.Context, answer *entity.Answer) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Create(answer).Error; err != nil {
		return fmt.Errorf("create answer failed: %w", err)
	}
	return nil
}

// ListAll возвращает все ответы по возрастанию времени
func (r *AnswerRepo) ListAll(ctx context.Context) ([]entity.Answer, error) {
	db, err := session(ctx, r.db)
	if err != nil {
		return nil, err
	}
	answers := make([]entity.Answer, 0)
	err = db.Order("created_at ASC").Find(&answers).Error
	return answers, err
}
