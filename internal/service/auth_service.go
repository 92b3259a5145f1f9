package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/domain/entity"
	"github.com/yourusername/pulse-api/internal/domain/repository"
	apperrors "github.com/yourusername/pulse-api/internal/pkg/errors"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 6
)

// TokenIssuer подписывает токен для принципала (pkg/auth.JWTService)
type TokenIssuer interface {
	Issue(p *entity.Principal) (string, error)
}

// SignupInput содержит данные для регистрации
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput содержит учетные данные для входа
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult - выданный токен и принципал
type AuthResult struct {
	Token     string
	Principal *entity.Principal
}

// AuthService регистрирует и аутентифицирует пользователей и администраторов.
// Оба пространства имен обслуживаются одним кодом через accountStore.
type AuthService struct {
	users          accountStore
	admins         accountStore
	tokens         TokenIssuer
	userEvents     *UserEventService
	email          EmailService
	fx             sideEffects
	adminSignupKey string
}

// AuthServiceDeps - зависимости AuthService
type AuthServiceDeps struct {
	Users          repository.UserRepository
	Admins         repository.AdminRepository
	Tokens         TokenIssuer
	UserEvents     *UserEventService
	Email          EmailService
	Tasks          TaskRunner
	Notifier       Notifier
	AdminSignupKey string
}

// NewAuthService создает сервис аутентификации и возвращает ошибку при проблемах
func NewAuthService(deps AuthServiceDeps) (*AuthService, error) {
	if deps.Users == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if deps.Admins == nil {
		return nil, fmt.Errorf("AdminRepository is required for AuthService")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("TokenIssuer is required for AuthService")
	}
	email := deps.Email
	if email == nil {
		email = NoopEmailService{}
	}
	return &AuthService{
		users:          userStore{repo: deps.Users},
		admins:         adminStore{repo: deps.Admins},
		tokens:         deps.Tokens,
		userEvents:     deps.UserEvents,
		email:          email,
		fx:             newSideEffects(deps.Tasks, deps.Notifier),
		adminSignupKey: deps.AdminSignupKey,
	}, nil
}

// Signup регистрирует пользователя с ролью user
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	result, err := s.signup(ctx, s.users, in)
	if err != nil {
		return nil, err
	}

	p := result.Principal
	s.fx.tasks.Go("email:welcome", func(ctx context.Context) error {
		return s.email.SendWelcome(ctx, p.Email, p.Username)
	})
	return result, nil
}

// SignupAdmin регистрирует администратора. Требует совпадения ключа регистрации.
func (s *AuthService) SignupAdmin(ctx context.Context, signupKey string, in SignupInput) (*AuthResult, error) {
	if s.adminSignupKey == "" {
		return nil, fmt.Errorf("%w: admin signup is disabled", apperrors.ErrForbidden)
	}
	if subtle.ConstantTimeCompare([]byte(signupKey), []byte(s.adminSignupKey)) != 1 {
		return nil, fmt.Errorf("%w: invalid admin signup key", apperrors.ErrForbidden)
	}
	return s.signup(ctx, s.admins, in)
}

// Login аутентифицирует пользователя по email и паролю
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	return s.login(ctx, s.users, in)
}

// LoginAdmin аутентифицирует администратора
func (s *AuthService) LoginAdmin(ctx context.Context, in LoginInput) (*AuthResult, error) {
	return s.login(ctx, s.admins, in)
}

// EnsureBootstrapAdmin создает администратора из конфигурации, если его еще нет
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, in SignupInput) error {
	log := logrus.WithField("component", "AuthService")
	in, err := normalizeSignup(in)
	if err != nil {
		return err
	}
	if _, err := s.admins.byEmail(ctx, in.Email); err == nil {
		log.Debugf("[AuthService] Администратор %s уже существует", in.Email)
		return nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	if _, err := s.admins.create(ctx, in); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil
		}
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	log.Infof("[AuthService] Создан администратор %s из конфигурации", in.Email)
	return nil
}

func (s *AuthService) signup(ctx context.Context, store accountStore, in SignupInput) (*AuthResult, error) {
	in, err := normalizeSignup(in)
	if err != nil {
		return nil, err
	}

	if err := ensureUnique(ctx, store, in); err != nil {
		return nil, err
	}

	acc, err := store.create(ctx, in)
	if err != nil {
		return nil, err
	}

	result, err := s.issue(acc)
	if err != nil {
		return nil, err
	}
	logrus.WithField("component", "AuthService").Infof("[AuthService] Регистрация %s: %s", store.kind(), result.Principal.Email)
	s.recordUserEvent(result.Principal, entity.UserEventSignup)
	return result, nil
}

func (s *AuthService) login(ctx context.Context, store accountStore, in LoginInput) (*AuthResult, error) {
	email := entity.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrValidation)
	}

	acc, err := store.byEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
		}
		return nil, err
	}
	if !acc.CheckPassword(in.Password) {
		logrus.WithField("component", "AuthService").Debugf("[AuthService] Неверный пароль для %s (%s)", email, store.kind())
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	result, err := s.issue(acc)
	if err != nil {
		return nil, err
	}
	s.recordUserEvent(result.Principal, entity.UserEventLogin)
	return result, nil
}

func (s *AuthService) issue(acc account) (*AuthResult, error) {
	p := acc.Principal()
	token, err := s.tokens.Issue(p)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Principal: p}, nil
}

func (s *AuthService) recordUserEvent(p *entity.Principal, eventType string) {
	if s.userEvents == nil {
		return
	}
	s.userEvents.RecordAsync(p, eventType, map[string]interface{}{"subjectType": string(p.SubjectType)})
}

func normalizeSignup(in SignupInput) (SignupInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = entity.NormalizeEmail(in.Email)

	n := utf8.RuneCountInString(in.Username)
	if n < minUsernameLength || n > maxUsernameLength {
		return in, fmt.Errorf("%w: username must be %d-%d characters", apperrors.ErrValidation, minUsernameLength, maxUsernameLength)
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return in, fmt.Errorf("%w: invalid email", apperrors.ErrValidation)
	}
	if len(in.Password) < minPasswordLength {
		return in, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLength)
	}
	if len(in.Password) > entity.MaxPasswordBytes {
		return in, fmt.Errorf("%w: password must be at most %d bytes", apperrors.ErrValidation, entity.MaxPasswordBytes)
	}
	return in, nil
}

func ensureUnique(ctx context.Context, store accountStore, in SignupInput) error {
	if _, err := store.byEmail(ctx, in.Email); err == nil {
		return fmt.Errorf("%w: %s with email %s", apperrors.ErrConflict, store.kind(), in.Email)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	if _, err := store.byUsername(ctx, in.Username); err == nil {
		return fmt.Errorf("%w: %s with username %s", apperrors.ErrConflict, store.kind(), in.Username)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

// account - учетная запись пользователя или администратора
type account interface {
	Principal() *entity.Principal
	CheckPassword(password string) bool
}

type accountStore interface {
	kind() entity.SubjectType
	create(ctx context.Context, in SignupInput) (account, error)
	byEmail(ctx context.Context, email string) (account, error)
	byUsername(ctx context.Context, username string) (account, error)
}

type userStore struct {
	repo repository.UserRepository
}

func (userStore) kind() entity.SubjectType { return entity.SubjectUser }

func (s userStore) create(ctx context.Context, in SignupInput) (account, error) {
	u := &entity.User{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Roles:    entity.StringArray{entity.RoleUser},
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s userStore) byEmail(ctx context.Context, email string) (account, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s userStore) byUsername(ctx context.Context, username string) (account, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return u, nil
}

type adminStore struct {
	repo repository.AdminRepository
}

func (adminStore) kind() entity.SubjectType { return entity.SubjectAdmin }

func (s adminStore) create(ctx context.Context, in SignupInput) (account, error) {
	a := &entity.Admin{Username: in.Username, Email: in.Email, Password: in.Password}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s adminStore) byEmail(ctx context.Context, email string) (account, error) {
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s adminStore) byUsername(ctx context.Context, username string) (account, error) {
	a, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return a, nil
}
