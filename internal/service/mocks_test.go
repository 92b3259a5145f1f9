package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

// ============================================================================
// Моки репозиториев и зависимостей сервисов
// ============================================================================

// MockUserRepository реализует repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

// MockAdminRepository реализует repository.AdminRepository
type MockAdminRepository struct {
	mock.Mock
}

func (m *MockAdminRepository) Create(ctx context.Context, admin *entity.Admin) error {
	args := m.Called(ctx, admin)
	return args.Error(0)
}

func (m *MockAdminRepository) GetByEmail(ctx context.Context, email string) (*entity.Admin, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Admin), args.Error(1)
}

func (m *MockAdminRepository) GetByUsername(ctx context.Context, username string) (*entity.Admin, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Admin), args.Error(1)
}

// MockEventRepository реализует repository.EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *entity.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) ListRecent(ctx context.Context, limit int) ([]entity.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Event), args.Error(1)
}

// MockUserEventRepository реализует repository.UserEventRepository
type MockUserEventRepository struct {
	mock.Mock
}

func (m *MockUserEventRepository) Create(ctx context.Context, event *entity.UserEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockQuestionRepository реализует repository.QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(ctx context.Context, question *entity.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) ListNewestFirst(ctx context.Context) ([]entity.Question, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

// MockAnswerRepository реализует repository.AnswerRepository
type MockAnswerRepository struct {
	mock.Mock
}

func (m *MockAnswerRepository) Create(ctx context.Context, answer *entity.Answer) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

func (m *MockAnswerRepository) ListAll(ctx context.Context) ([]entity.Answer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Answer), args.Error(1)
}

// MockMetricsRepository реализует repository.MetricsRepository
type MockMetricsRepository struct {
	mock.Mock
}

func (m *MockMetricsRepository) SignupsPerDay(ctx context.Context) ([]entity.DailyCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.DailyCount), args.Error(1)
}

func (m *MockMetricsRepository) ActiveUsers(ctx context.Context, since time.Time) ([]entity.TimeBucket, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.TimeBucket), args.Error(1)
}

func (m *MockMetricsRepository) EventTypeDistribution(ctx context.Context) ([]entity.EventTypeCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.EventTypeCount), args.Error(1)
}

func (m *MockMetricsRepository) TotalUserEvents(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMetricsRepository) RecentUserEvents(ctx context.Context, limit int) ([]entity.UserEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.UserEvent), args.Error(1)
}

func (m *MockMetricsRepository) AnsweredUsers(ctx context.Context, from, to time.Time) (int64, []entity.TimeBucket, error) {
	args := m.Called(ctx, from, to)
	var series []entity.TimeBucket
	if args.Get(1) != nil {
		series = args.Get(1).([]entity.TimeBucket)
	}
	return args.Get(0).(int64), series, args.Error(2)
}

func (m *MockMetricsRepository) Heatmap(ctx context.Context, since time.Time) ([]entity.HeatmapCell, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.HeatmapCell), args.Error(1)
}

// MockCacheRepository реализует repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

// MockTokenIssuer реализует TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(p *entity.Principal) (string, error) {
	args := m.Called(p)
	return args.String(0), args.Error(1)
}

// MockEmailService реализует EmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendWelcome(ctx context.Context, toEmail, username string) error {
	args := m.Called(ctx, toEmail, username)
	return args.Error(0)
}

// recordingNotifier запоминает отправленные уведомления
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (n *recordingNotifier) Emit(event string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
