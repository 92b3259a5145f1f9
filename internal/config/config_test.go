package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsFromFile(t *testing.T) {
	// Arrange: минимальный файл только с обязательными полями БД
	path := writeConfig(t, `
database:
  host: localhost
  user: pulse
  dbname: pulse_db
`)

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Database.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.Database.MaxBackoff)
	assert.Equal(t, "auto", cfg.Database.Bucketing)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration, "Время жизни токена по умолчанию 1 день")
	assert.Equal(t, time.Duration(0), cfg.Metrics.CacheTTL)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  user: pulse
  dbname: pulse_db
jwt:
  secret: from-file
  expiration: 2h
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("DATABASE_BUCKETING", "formatted")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret, "Переменная окружения должна иметь приоритет над файлом")
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "formatted", cfg.Database.Bucketing)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("DATABASE_HOST", "localhost")
	t.Setenv("DATABASE_USER", "pulse")
	t.Setenv("DATABASE_DBNAME", "pulse_db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "pulse_db", cfg.Database.DBName)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{
				Host: "h", User: "u", DBName: "d",
				InitialBackoff: time.Second, MaxBackoff: time.Minute,
				Bucketing: "auto",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.Database.Host = "" }, true},
		{"unknown bucketing", func(c *Config) { c.Database.Bucketing = "weekly" }, true},
		{"max below initial", func(c *Config) { c.Database.MaxBackoff = time.Millisecond }, true},
		{"cluster without redis", func(c *Config) { c.WebSocket.Cluster.Enabled = true }, true},
		{"cluster with redis", func(c *Config) {
			c.WebSocket.Cluster.Enabled = true
			c.Redis.Addr = "localhost:6379"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostgresConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", DBName: "db", SSLMode: "disable"}

	assert.Equal(t, "host=h port=5432 user=u password=p dbname=db sslmode=disable", d.PostgresConnectionString())
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", d.PostgresURL())
}
