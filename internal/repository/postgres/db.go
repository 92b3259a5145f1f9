package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DBProvider отдает подключение к базе или apperrors.ErrUnavailable,
// пока фоновое подключение не установлено.
type DBProvider interface {
	DB() (*gorm.DB, error)
}

// StaticDB оборачивает уже открытое подключение
type StaticDB struct {
	Conn *gorm.DB
}

// DB возвращает обернутое подключение
func (s StaticDB) DB() (*gorm.DB, error) {
	return s.Conn, nil
}

func session(ctx context.Context, p DBProvider) (*gorm.DB, error) {
	db, err := p.DB()
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
