package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	"github.com/yourusername/pulse-api/internal/domain/repository"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

// CreateQuestionInput содержит данные нового вопроса
type CreateQuestionInput struct {
	Text               string
	Options            []entity.QuestionOption
	CorrectOptionIndex int
	Difficulty         string
	Tags               []string
}

// QuizService предоставляет методы для работы с банком вопросов и ответами
type QuizService struct {
	questionRepo repository.QuestionRepository
	answerRepo   repository.AnswerRepository
	userEvents   *UserEventService
	fx           sideEffects
}

// NewQuizService создает новый сервис вопросов
func NewQuizService(
	questionRepo repository.QuestionRepository,
	answerRepo repository.AnswerRepository,
	userEvents *UserEventService,
	tasks TaskRunner,
	notifier Notifier,
) *QuizService {
	return &QuizService{
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
		userEvents:   userEvents,
		fx:           newSideEffects(tasks, notifier),
	}
}

// CreateQuestion создает вопрос. Вызывающий должен быть администратором.
func (s *QuizService) CreateQuestion(ctx context.Context, p *entity.Principal, in CreateQuestionInput) (*entity.Question, error) {
	if p == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if !p.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", apperrors.ErrForbidden)
	}

	question := &entity.Question{
		Text:               in.Text,
		Options:            entity.OptionList(in.Options),
		CorrectOptionIndex: in.CorrectOptionIndex,
		Difficulty:         in.Difficulty,
		Tags:               entity.StringArray(in.Tags),
		CreatedBy:          principalUUID(p),
	}
	question.Normalize()
	if err := question.Validate(); err != nil {
		return nil, err
	}

	if err := s.questionRepo.Create(ctx, question); err != nil {
		return nil, err
	}
	logrus.WithField("component", "QuizService").Infof("[QuizService] Создан вопрос %s (%d вариантов)", question.ID, question.OptionsCount())
	return question, nil
}

// ListQuestions возвращает все вопросы, новые первыми.
// Правильный ответ скрывается на уровне DTO.
func (s *QuizService) ListQuestions(ctx context.Context) ([]entity.Question, error) {
	return s.questionRepo.ListNewestFirst(ctx)
}

// SubmitAnswer сохраняет ответ и вычисляет его правильность на момент отправки
func (s *QuizService) SubmitAnswer(ctx context.Context, p *entity.Principal, questionID uuid.UUID, selected int) (*entity.Answer, error) {
	if p == nil {
		return nil, apperrors.ErrUnauthorized
	}
	userID := principalUUID(p)
	if userID == nil {
		return nil, fmt.Errorf("%w: principal id is not a valid identifier", apperrors.ErrUnauthorized)
	}

	question, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: question %s not found", apperrors.ErrValidation, questionID)
		}
		return nil, err
	}
	if !question.IsValidOption(selected) {
		return nil, fmt.Errorf("%w: selectedOptionIndex must be between 0 and %d", apperrors.ErrValidation, question.OptionsCount()-1)
	}

	answer := entity.NewAnswer(question, p, *userID, selected)
	if err := s.answerRepo.Create(ctx, answer); err != nil {
		return nil, err
	}

	// Побочные действия независимы: сбой одного не отменяет другое и не влияет на ответ
	s.fx.emit(entity.NotifyNewAnswer, answer)
	s.fx.emitMetricsUpdate(entity.NotifyNewAnswer)
	if s.userEvents != nil {
		s.userEvents.RecordAsync(p, entity.UserEventAnswer, map[string]interface{}{
			"questionId": question.ID.String(),
			"isCorrect":  answer.IsCorrect,
		})
	}
	return answer, nil
}

// ExportAnswers возвращает все ответы для выгрузки администратором
func (s *QuizService) ExportAnswers(ctx context.Context, p *entity.Principal) ([]entity.Answer, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", apperrors.ErrForbidden)
	}
	return s.answerRepo.ListAll(ctx)
}
