package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Admin     AdminConfig     `mapstructure:"admin"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Email     EmailConfig     `mapstructure:"email"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig содержит настройки HTTP сервера (таймауты в секундах)
type ServerConfig struct {
	Port            string   `mapstructure:"port"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string `mapstructure:"trusted_proxies"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns int `mapstructure:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns"`

	// InitialBackoff и MaxBackoff задают экспоненциальную задержку фонового подключения.
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`

	// Bucketing: "auto", "native" или "formatted" (стратегия поминутной группировки).
	Bucketing string `mapstructure:"bucketing"`

	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster. Пустой адрес отключает Redis.
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
	MaxRetries int      `mapstructure:"max_retries"`
}

// Enabled сообщает, задан ли хотя бы один адрес Redis
func (r RedisConfig) Enabled() bool {
	return r.Addr != "" || len(r.Addrs) > 0
}

// JWTConfig содержит настройки токенов
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
	Issuer     string        `mapstructure:"issuer"`
}

// AdminConfig содержит настройки регистрации администраторов
type AdminConfig struct {
	// SignupKey должен совпадать с заголовком X-Admin-Signup-Key. Пустой ключ отключает регистрацию.
	SignupKey         string `mapstructure:"signup_key"`
	BootstrapEmail    string `mapstructure:"bootstrap_email"`
	BootstrapUsername string `mapstructure:"bootstrap_username"`
	BootstrapPassword string `mapstructure:"bootstrap_password"`
}

// WebSocketConfig содержит настройки канала уведомлений
type WebSocketConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	Cluster        ClusterConfig `mapstructure:"cluster"`
}

// ClusterConfig содержит настройки рассылки уведомлений между инстансами через Redis
type ClusterConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	InstanceID string `mapstructure:"instance_id"`
	Channel    string `mapstructure:"channel"`
}

// CORSConfig содержит список разрешенных origin
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MetricsConfig содержит настройки агрегатора и Prometheus
type MetricsConfig struct {
	// CacheTTL задает время жизни кеша агрегатов в Redis, 0 отключает кеш.
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	Namespace string        `mapstructure:"namespace"`
}

// EmailConfig содержит настройки приветственных писем (Resend)
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// RateLimitConfig содержит настройки ограничения частоты запросов к auth
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL формирует URL для golang-migrate
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("server.shutdown_timeout", 10)

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.max_open_conns", 25)
	vip.SetDefault("database.max_idle_conns", 10)
	vip.SetDefault("database.initial_backoff", 500*time.Millisecond)
	vip.SetDefault("database.max_backoff", 30*time.Second)
	vip.SetDefault("database.bucketing", "auto")
	vip.SetDefault("database.migrations_path", "file://migrations")

	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("jwt.expiration", 24*time.Hour)
	vip.SetDefault("jwt.issuer", "pulse-api")

	vip.SetDefault("websocket.send_buffer", 128)
	vip.SetDefault("websocket.cluster.channel", "pulse:notifications")

	vip.SetDefault("metrics.cache_ttl", time.Duration(0))
	vip.SetDefault("metrics.namespace", "pulse")

	vip.SetDefault("rate_limit.max_requests", 20)
	vip.SetDefault("rate_limit.window", time.Minute)

	vip.SetDefault("log.level", "info")
	vip.SetDefault("log.format", "json")
}

func bindEnv(vip *viper.Viper) {
	// Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.bucketing", "DATABASE_BUCKETING")
	vip.BindEnv("database.initial_backoff", "DATABASE_INITIAL_BACKOFF")
	vip.BindEnv("database.max_backoff", "DATABASE_MAX_BACKOFF")

	// Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expiration", "JWT_EXPIRATION")

	// Admin
	vip.BindEnv("admin.signup_key", "ADMIN_SIGNUP_KEY")
	vip.BindEnv("admin.bootstrap_email", "ADMIN_BOOTSTRAP_EMAIL")
	vip.BindEnv("admin.bootstrap_username", "ADMIN_BOOTSTRAP_USERNAME")
	vip.BindEnv("admin.bootstrap_password", "ADMIN_BOOTSTRAP_PASSWORD")

	// WebSocket
	vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")
	vip.BindEnv("websocket.cluster.instance_id", "WEBSOCKET_INSTANCE_ID")

	vip.BindEnv("metrics.cache_ttl", "METRICS_CACHE_TTL")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")
	vip.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	vip.BindEnv("log.level", "LOG_LEVEL")
}

// Load загружает конфигурацию из файла, переменных окружения и значений по умолчанию
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	setDefaults(vip)
	bindEnv(vip)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файл не обязателен: env и значения по умолчанию покрывают все поля
		if err := vip.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
				logrus.Infof("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				logrus.Warnf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		logrus.WithFields(logrus.Fields{
			"database_host":     cfg.Database.Host,
			"database_name":     cfg.Database.DBName,
			"database_user":     cfg.Database.User,
			"bucketing":         cfg.Database.Bucketing,
			"redis_enabled":     cfg.Redis.Enabled(),
			"jwt_secret_set":    cfg.JWT.Secret != "",
			"jwt_expiration":    cfg.JWT.Expiration.String(),
			"admin_signup":      cfg.Admin.SignupKey != "",
			"ws_cluster":        cfg.WebSocket.Cluster.Enabled,
			"metrics_cache_ttl": cfg.Metrics.CacheTTL.String(),
			"server_port":       cfg.Server.Port,
		}).Debug("Загруженные значения конфигурации")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.JWT.Secret == "" {
		// Отсутствие секрета не мешает старту: выдача и проверка токенов вернут 500
		logrus.Warn("JWT secret is not configured (check JWT_SECRET env var); token endpoints will fail")
	}

	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	switch c.Database.Bucketing {
	case "", "auto", "native", "formatted":
	default:
		return fmt.Errorf("unsupported database.bucketing value %q (expected auto, native or formatted)", c.Database.Bucketing)
	}
	if c.Database.InitialBackoff <= 0 || c.Database.MaxBackoff < c.Database.InitialBackoff {
		return fmt.Errorf("invalid database backoff: initial=%s max=%s", c.Database.InitialBackoff, c.Database.MaxBackoff)
	}
	if c.WebSocket.Cluster.Enabled && !c.Redis.Enabled() {
		return fmt.Errorf("websocket cluster mode requires redis (check REDIS_ADDR env var)")
	}
	return nil
}
