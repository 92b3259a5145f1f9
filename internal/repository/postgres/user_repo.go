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

// UserRepo реализует repository.UserRepository
type UserRepo struct {
	db DBProvider
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(db DBProvider) *UserRepo {
	return &UserRepo{db: db}
}

// Create создает нового пользователя
func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user with this email or username", apperrors.ErrConflict)
		}
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return first[entity.User](ctx, r.db, "id = ?", id)
}

// GetByEmail возвращает пользователя по email
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return first[entity.User](ctx, r.db, "email = ?", email)
}

// GetByUsername возвращает пользователя по имени пользователя
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return first[entity.User](ctx, r.db, "username = ?", username)
}

// AdminRepo реализует repository.AdminRepository
type AdminRepo struct {
	db DBProvider
}

// NewAdminRepo создает новый репозиторий администраторов
func NewAdminRepo(db DBProvider) *AdminRepo {
	return &AdminRepo{db: db}
}

// Create создает администратора
func (r *AdminRepo) Create(ctx context.Context, admin *entity.Admin) error {
	db, err := session(ctx, r.db)
	if err != nil {
		return err
	}
	if err := db.Create(admin).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: admin with this email or username", apperrors.ErrConflict)
		}
		return fmt.Errorf("create admin failed: %w", err)
	}
	return nil
}

// GetByEmail возвращает администратора по email
func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (*entity.Admin, error) {
	return first[entity.Admin](ctx, r.db, "email = ?", email)
}

// GetByUsername возвращает администратора по имени
func (r *AdminRepo) GetByUsername(ctx context.Context, username string) (*entity.Admin, error) {
	return first[entity.Admin](ctx, r.db, "username = ?", username)
}

func first[T any](ctx context.Context, p DBProvider, query string, args ...interface{}) (*T, error) {
	db, err := session(ctx, p)
	if err != nil {
		return nil, err
	}
	var out T
	if err := db.Where(query, args...).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}
