package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/config"
	"github.com/yourusername/pulse-api/internal/pkg/logger"
)

const usage = `usage: migrate <command>

commands:
  up         применить все миграции
  down       откатить последнюю миграцию
  force N    принудительно выставить версию N (сброс dirty состояния)
  version    показать текущую версию`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	logger.Setup(cfg.Log.Level, "text")
	log := logger.WithComponent("Migrate")

	m, closeDB, err := newMigrate(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Не удалось подготовить миграции")
	}
	defer closeDB()

	if err := run(m, os.Args[1:]); err != nil {
		log.WithError(err).Error("Команда завершилась с ошибкой")
		closeDB()
		os.Exit(1)
	}
}

func newMigrate(cfg config.DatabaseConfig) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("postgres", cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { db.Close() }

	if err := db.Ping(); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	source := cfg.MigrationsPath
	if source == "" {
		source = "file://migrations"
	}
	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return m, closeDB, nil
}

func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Steps(-1))
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force requires a version argument")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := m.Force(version); err != nil {
			return err
		}
		fmt.Printf("Версия принудительно выставлена в %d\n", version)
		return nil
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("Миграции еще не применялись")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("Изменений нет, база данных актуальна")
		return nil
	}
	if err == nil {
		fmt.Println("Готово")
	}
	return err
}
