package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applogger "github.com/yourusername/pulse-api/internal/pkg/logger"
)

// PostgresOptions описывает параметры подключения к PostgreSQL
type PostgresOptions struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	LogLevel     logger.LogLevel
}

// GormLogLevel сопоставляет уровень логов приложения уровню логгера GORM
func GormLogLevel(level string) logger.LogLevel {
	switch applogger.ParseLevel(level) {
	case logrus.DebugLevel, logrus.TraceLevel:
		return logger.Info
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return logger.Error
	default:
		return logger.Warn
	}
}

// NewPostgresDB создает новое подключение к PostgreSQL.
// Все времена, которые GORM подставляет сам, ставятся в UTC.
func NewPostgresDB(opts PostgresOptions) (*gorm.DB, error) {
	logLevel := opts.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(gormPostgres.Open(opts.DSN), &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	maxOpen, maxIdle := opts.MaxOpenConns, opts.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 10
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// MigrateDB применяет SQL-миграции из sourceURL (например file://migrations)
func MigrateDB(db *gorm.DB, sourceURL string) error {
	log := logrus.WithField("component", "Migrate")
	if sourceURL == "" {
		sourceURL = "file://migrations"
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("не удалось получить *sql.DB из *gorm.DB: %w", err)
	}

	driver, err := migratePostgres.WithInstance(sqlDB, &migratePostgres.Config{})
	if err != nil {
		return fmt.Errorf("не удалось создать драйвер postgres для migrate: %w", err)
	}

	m, err := migrateV4.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("не удалось создать экземпляр migrate: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrateV4.ErrNoChange):
		log.Info("Изменений в миграциях не найдено, база данных уже актуальна")
	case err != nil:
		return fmt.Errorf("ошибка применения миграций 'up': %w", err)
	default:
		log.Info("Миграции успешно применены")
	}
	return nil
}

// CloseGorm закрывает пул соединений *gorm.DB
func CloseGorm(db *gorm.DB) error {
	sqlDB, err := GetSQLDB(db)
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetSQLDB возвращает базовый *sql.DB из *gorm.DB
func GetSQLDB(gormDB *gorm.DB) (*sql.DB, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB, nil
}
