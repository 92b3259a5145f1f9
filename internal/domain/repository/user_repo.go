package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/pulse-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
}

// AdminRepository определяет методы для работы с администраторами.
// Администраторы хранятся отдельно от пользователей.
type AdminRepository interface {
	Create(ctx context.Context, admin *entity.Admin) error
	GetByEmail(ctx context.Context, email string) (*entity.Admin, error)
	GetByUsername(ctx context.Context, username string) (*entity.Admin, error)
}
