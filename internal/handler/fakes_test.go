package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	"github.com/yourusername/pulse-api/internal/middleware"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
	"github.com/yourusername/pulse-api/internal/pkg/metrics"
	"github.com/yourusername/pulse-api/internal/service"
	"github.com/yourusername/pulse-api/internal/websocket"
	"github.com/yourusername/pulse-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSignupKey = "test-admin-key"

// ============================================================================
// Хранилища в памяти
// ============================================================================

type memoryStore struct {
	mu         sync.Mutex
	users      []*entity.User
	admins     []*entity.Admin
	events     []entity.Event
	userEvents []entity.UserEvent
	questions  []*entity.Question
	answers    []entity.Answer
}

type memoryUsers struct{ s *memoryStore }

func (r memoryUsers) Create(ctx context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return fmt.Errorf("%w: user already exists", apperrors.ErrConflict)
		}
	}
	if err := u.BeforeCreate(nil); err != nil {
		return err
	}
	if err := u.BeforeSave(nil); err != nil {
		return err
	}
	r.s.users = append(r.s.users, u)
	return nil
}

func (r memoryUsers) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.ID == id })
}

func (r memoryUsers) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Email == email })
}

func (r memoryUsers) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Username == username })
}

func (r memoryUsers) find(match func(*entity.User) bool) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type memoryAdmins struct{ s *memoryStore }

func (r memoryAdmins) Create(ctx context.Context, a *entity.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.admins {
		if existing.Email == a.Email || existing.Username == a.Username {
			return fmt.Errorf("%w: admin already exists", apperrors.ErrConflict)
		}
	}
	if err := a.BeforeCreate(nil); err != nil {
		return err
	}
	if err := a.BeforeSave(nil); err != nil {
		return err
	}
	r.s.admins = append(r.s.admins, a)
	return nil
}

func (r memoryAdmins) GetByEmail(ctx context.Context, email string) (*entity.Admin, error) {
	return r.find(func(a *entity.Admin) bool { return a.Email == email })
}

func (r memoryAdmins) GetByUsername(ctx context.Context, username string) (*entity.Admin, error) {
	return r.find(func(a *entity.Admin) bool { return a.Username == username })
}

func (r memoryAdmins) find(match func(*entity.Admin) bool) (*entity.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.admins {
		if match(a) {
			return a, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type memoryEvents struct{ s *memoryStore }

func (r memoryEvents) Create(ctx context.Context, e *entity.Event) error {
	if err := e.BeforeCreate(nil); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, *e)
	return nil
}

func (r memoryEvents) ListRecent(ctx context.Context, limit int) ([]entity.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entity.Event, len(r.s.events))
	copy(out, r.s.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryUserEvents struct{ s *memoryStore }

func (r memoryUserEvents) Create(ctx context.Context, e *entity.UserEvent) error {
	if err := e.BeforeCreate(nil); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.userEvents = append(r.s.userEvents, *e)
	return nil
}

type memoryQuestions struct{ s *memoryStore }

func (r memoryQuestions) Create(ctx context.Context, q *entity.Question) error {
	if err := q.BeforeCreate(nil); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.questions = append(r.s.questions, q)
	return nil
}

func (r memoryQuestions) GetByID(ctx context.Context, id uuid.UUID) (*entity.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, q := range r.s.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memoryQuestions) ListNewestFirst(ctx context.Context) ([]entity.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entity.Question, 0, len(r.s.questions))
	for i := len(r.s.questions) - 1; i >= 0; i-- {
		out = append(out, *r.s.questions[i])
	}
	return out, nil
}

type memoryAnswers struct{ s *memoryStore }

func (r memoryAnswers) Create(ctx context.Context, a *entity.Answer) error {
	if err := a.BeforeCreate(nil); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.answers = append(r.s.answers, *a)
	return nil
}

func (r memoryAnswers) ListAll(ctx context.Context) ([]entity.Answer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entity.Answer, len(r.s.answers))
	copy(out, r.s.answers)
	return out, nil
}

// stubMetricsRepo возвращает заранее заданные агрегаты
type stubMetricsRepo struct {
	signups    []entity.DailyCount
	active     []entity.TimeBucket
	types      []entity.EventTypeCount
	total      int64
	recent     []entity.UserEvent
	answered   int64
	series     []entity.TimeBucket
	heatmap    []entity.HeatmapCell
	err        error
	heatSince  time.Time
	activeFrom time.Time
}

func (r *stubMetricsRepo) SignupsPerDay(ctx context.Context) ([]entity.DailyCount, error) {
	return r.signups, r.err
}

func (r *stubMetricsRepo) ActiveUsers(ctx context.Context, since time.Time) ([]entity.TimeBucket, error) {
	r.activeFrom = since
	return r.active, r.err
}

func (r *stubMetricsRepo) EventTypeDistribution(ctx context.Context) ([]entity.EventTypeCount, error) {
	return r.types, r.err
}

func (r *stubMetricsRepo) TotalUserEvents(ctx context.Context) (int64, error) {
	return r.total, r.err
}

func (r *stubMetricsRepo) RecentUserEvents(ctx context.Context, limit int) ([]entity.UserEvent, error) {
	return r.recent, r.err
}

func (r *stubMetricsRepo) AnsweredUsers(ctx context.Context, from, to time.Time) (int64, []entity.TimeBucket, error) {
	return r.answered, r.series, r.err
}

func (r *stubMetricsRepo) Heatmap(ctx context.Context, since time.Time) ([]entity.HeatmapCell, error) {
	r.heatSince = since
	return r.heatmap, r.err
}

// recordingNotifier запоминает имена отправленных уведомлений
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Emit(event string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	copy(out, n.events)
	return out
}

type fixedStatus bool

func (s fixedStatus) IsConnected() bool { return bool(s) }

// ============================================================================
// Тестовый сервер
// ============================================================================

type testServer struct {
	router   *gin.Engine
	store    *memoryStore
	metrics  *stubMetricsRepo
	notifier *recordingNotifier
	jwt      *auth.JWTService
	registry *prometheus.Registry
	hub      *websocket.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := &memoryStore{}
	metricsRepo := &stubMetricsRepo{}
	notifier := &recordingNotifier{}
	jwtService := auth.NewJWTService("test-secret", time.Hour, "pulse-test")
	tasks := service.InlineRunner{}

	userEvents := service.NewUserEventService(memoryUserEvents{store}, tasks, notifier)
	events := service.NewEventService(memoryEvents{store}, tasks, notifier)
	quiz := service.NewQuizService(memoryQuestions{store}, memoryAnswers{store}, userEvents, tasks, notifier)
	authService, err := service.NewAuthService(service.AuthServiceDeps{
		Users:          memoryUsers{store},
		Admins:         memoryAdmins{store},
		Tokens:         jwtService,
		UserEvents:     userEvents,
		Tasks:          tasks,
		Notifier:       notifier,
		AdminSignupKey: testSignupKey,
	})
	require.NoError(t, err)

	hub := websocket.NewHub(nil)
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hub.Stop(ctx)
	})

	registry := prometheus.NewRegistry()
	router := NewRouter(RouterDeps{
		Auth:           NewAuthHandler(authService),
		Events:         NewEventHandler(events, userEvents),
		Quiz:           NewQuizHandler(quiz),
		Metrics:        NewMetricsHandler(service.NewMetricsService(metricsRepo, nil, 0)),
		Health:         NewHealthHandler(fixedStatus(true)),
		WS:             NewWSHandler(websocket.NewManager(hub), jwtService, []string{"http://allowed.example"}),
		AuthMiddleware: middleware.NewAuthMiddleware(jwtService),
		PromMetrics:    metrics.NewMetrics("test", registry),
		PromGatherer:   registry,
	})

	return &testServer{
		router:   router,
		store:    store,
		metrics:  metricsRepo,
		notifier: notifier,
		jwt:      jwtService,
		registry: registry,
		hub:      hub,
	}
}

func (s *testServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// signupUser регистрирует пользователя и возвращает токен
func (s *testServer) signupUser(t *testing.T, username, email string) string {
	t.Helper()
	w := s.do(http.MethodPost, "/api/auth/signup", gin.H{"username": username, "email": email, "password": "secret123"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeAuth(t, w).Token
}

// signupAdmin регистрирует администратора и возвращает токен
func (s *testServer) signupAdmin(t *testing.T) string {
	t.Helper()
	w := s.do(http.MethodPost, "/api/admin/signup",
		gin.H{"username": "root", "email": "root@example.com", "password": "secret123"},
		map[string]string{AdminSignupKeyHeader: testSignupKey})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeAuth(t, w).Token
}

type authBody struct {
	Token string `json:"token"`
	User  struct {
		ID          string   `json:"id"`
		Username    string   `json:"username"`
		Email       string   `json:"email"`
		Roles       []string `json:"roles"`
		Role        string   `json:"role"`
		SubjectType string   `json:"subjectType"`
	} `json:"user"`
}

func decodeAuth(t *testing.T, w *httptest.ResponseRecorder) authBody {
	t.Helper()
	var body authBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
