package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yourusername/pulse-api/internal/config"
	"github.com/yourusername/pulse-api/internal/domain/repository"
	"github.com/yourusername/pulse-api/internal/handler"
	"github.com/yourusername/pulse-api/internal/middleware"
	"github.com/yourusername/pulse-api/internal/pkg/logger"
	"github.com/yourusername/pulse-api/internal/pkg/metrics"
	pgRepo "github.com/yourusername/pulse-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/pulse-api/internal/repository/redis"
	"github.com/yourusername/pulse-api/internal/service"
	ws "github.com/yourusername/pulse-api/internal/websocket"
	"github.com/yourusername/pulse-api/pkg/auth"
	"github.com/yourusername/pulse-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	logrus.Infof("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Error("Failed to load config")
		os.Exit(1)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log := logger.WithComponent("Main")

	// Корневой контекст: отменяется при остановке и завершает фоновые горутины
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prometheus реестр сервиса
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(cfg.Metrics.Namespace, registry)

	// Redis не обязателен: без него нет кеша агрегатов, rate limit и кластера WebSocket
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled() {
		redisClient, err = database.NewUniversalRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("Redis недоступен, кеш и rate limit отключены")
			redisClient = nil
		} else {
			log.Info("Successfully connected to Redis")
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer)

	// --- Хранилище: фоновое подключение с экспоненциальной задержкой ---
	var metricsRepo *pgRepo.MetricsRepo
	open := func(ctx context.Context) (*gorm.DB, error) {
		return database.NewPostgresDB(database.PostgresOptions{
			DSN:          cfg.Database.PostgresConnectionString(),
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			LogLevel:     database.GormLogLevel(cfg.Log.Level),
		})
	}
	hooks := []database.Hook{
		func(ctx context.Context, db *gorm.DB) error {
			return database.MigrateDB(db, cfg.Database.MigrationsPath)
		},
		func(ctx context.Context, db *gorm.DB) error {
			metricsRepo.UseBucketer(pgRepo.DetectBucketer(ctx, db, cfg.Database.Bucketing))
			return nil
		},
		func(ctx context.Context, db *gorm.DB) error {
			return seedBootstrapAdmin(ctx, db, cfg.Admin, jwtService)
		},
	}
	connector := database.NewConnector(open, cfg.Database.InitialBackoff, cfg.Database.MaxBackoff, database.WithHooks(hooks...))
	metricsRepo = pgRepo.NewMetricsRepo(connector, nil)

	connectorCtx, stopConnector := context.WithCancel(ctx)
	connector.Start(connectorCtx)
	go func() {
		select {
		case <-connector.Ready():
			appMetrics.StoreConnected.Set(1)
		case <-connectorCtx.Done():
		}
	}()

	// Репозитории работают через коннектор и вернут ErrUnavailable до подключения
	userRepo := pgRepo.NewUserRepo(connector)
	adminRepo := pgRepo.NewAdminRepo(connector)
	eventRepo := pgRepo.NewEventRepo(connector)
	userEventRepo := pgRepo.NewUserEventRepo(connector)
	questionRepo := pgRepo.NewQuestionRepo(connector)
	answerRepo := pgRepo.NewAnswerRepo(connector)

	var cacheRepo repository.CacheRepository
	if redisClient != nil {
		redisCache, err := redisRepo.NewCacheRepo(redisClient, "pulse:")
		if err != nil {
			log.WithError(err).Warn("Failed to initialize CacheRepo")
		} else {
			cacheRepo = redisCache
		}
	}

	// --- WebSocket ---
	hub := ws.NewHub(appMetrics.WebSocketClients)
	go hub.Run()

	managerOpts := []ws.ManagerOption{
		ws.WithEmitCounter(appMetrics.NotificationsEmitted),
		ws.WithSendBuffer(cfg.WebSocket.SendBuffer),
	}
	var relay *ws.ClusterRelay
	if cfg.WebSocket.Cluster.Enabled && redisClient != nil {
		provider, err := ws.NewRedisPubSub(redisClient)
		if err != nil {
			log.WithError(err).Warn("Ошибка при создании Redis PubSub провайдера, кластеризация WS будет неактивна")
		} else {
			relay = ws.NewClusterRelay(hub, cfg.WebSocket.Cluster, provider)
			if err := relay.Start(ctx); err != nil {
				log.WithError(err).Warn("Не удалось подписаться на канал кластера WS")
				relay = nil
			} else {
				managerOpts = append(managerOpts, ws.WithClusterRelay(relay))
			}
		}
	}
	wsManager := ws.NewManager(hub, managerOpts...)

	// --- Сервисы ---
	tasks := service.NewBackgroundRunner(10*time.Second, func(task string) {
		appMetrics.SideEffectFailures.WithLabelValues(task).Inc()
	})
	metricsService := service.NewMetricsService(metricsRepo, cacheRepo, cfg.Metrics.CacheTTL)
	notifier := metricsService.InvalidatingNotifier(wsManager)

	var emailService service.EmailService = service.NoopEmailService{}
	if cfg.Email.ResendAPIKey != "" {
		resendService, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.WithError(err).Warn("Resend не настроен, письма отключены")
		} else {
			emailService = resendService
		}
	}

	eventService := service.NewEventService(eventRepo, tasks, notifier)
	userEventService := service.NewUserEventService(userEventRepo, tasks, notifier)
	quizService := service.NewQuizService(questionRepo, answerRepo, userEventService, tasks, notifier)
	authService, err := service.NewAuthService(service.AuthServiceDeps{
		Users:          userRepo,
		Admins:         adminRepo,
		Tokens:         jwtService,
		UserEvents:     userEventService,
		Email:          emailService,
		Tasks:          tasks,
		Notifier:       notifier,
		AdminSignupKey: cfg.Admin.SignupKey,
	})
	if err != nil {
		log.WithError(err).Error("Failed to initialize AuthService")
		os.Exit(1)
	}

	// --- HTTP ---
	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled && redisClient != nil {
		rateLimiter = middleware.NewRateLimiter(middleware.NewRedisCounterStore(redisClient))
	}

	// В development без явного списка доверяем localhost, в release не доверяем никому
	trustedProxies := cfg.Server.TrustedProxies
	if len(trustedProxies) == 0 && gin.Mode() != gin.ReleaseMode {
		trustedProxies = []string{"127.0.0.1", "::1"}
	}
	router := handler.NewRouter(handler.RouterDeps{
		Auth:           handler.NewAuthHandler(authService),
		Events:         handler.NewEventHandler(eventService, userEventService),
		Quiz:           handler.NewQuizHandler(quizService),
		Metrics:        handler.NewMetricsHandler(metricsService),
		Health:         handler.NewHealthHandler(connector),
		WS:             handler.NewWSHandler(wsManager, jwtService, cfg.WebSocket.AllowedOrigins),
		AuthMiddleware: middleware.NewAuthMiddleware(jwtService),
		RateLimiter:    rateLimiter,
		AuthRateLimit:  middleware.AuthRateLimitConfig(cfg.RateLimit),
		PromMetrics:    appMetrics,
		PromGatherer:   registry,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustedProxies: trustedProxies,
	})

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Failed to start server")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Порядок: HTTP запросы, побочные задачи, WebSocket, хранилище, Redis
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server forced to shutdown")
	}
	if err := tasks.Wait(shutdownCtx); err != nil {
		log.WithError(err).Warn("Не все побочные задачи завершились")
	}
	if relay != nil {
		relay.Stop()
	}
	if err := hub.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("WebSocket hub не остановился вовремя")
	}
	stopConnector()
	if err := connector.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("Ошибка закрытия подключения к базе данных")
	}
	cancel()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.WithError(err).Warn("Error closing Redis client")
		}
	}

	log.Info("Server exited properly")
}

// seedBootstrapAdmin создает администратора из конфигурации, если его еще нет.
// Выполняется на свежем подключении до того, как коннектор отдаст его репозиториям.
func seedBootstrapAdmin(ctx context.Context, db *gorm.DB, cfg config.AdminConfig, tokens service.TokenIssuer) error {
	if cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		return nil
	}
	conn := pgRepo.StaticDB{Conn: db}
	bootstrap, err := service.NewAuthService(service.AuthServiceDeps{
		Users:  pgRepo.NewUserRepo(conn),
		Admins: pgRepo.NewAdminRepo(conn),
		Tokens: tokens,
		Tasks:  service.InlineRunner{},
	})
	if err != nil {
		return err
	}
	username := cfg.BootstrapUsername
	if username == "" {
		username = "admin"
	}
	return bootstrap.EnsureBootstrapAdmin(ctx, service.SignupInput{
		Username: username,
		Email:    cfg.BootstrapEmail,
		Password: cfg.BootstrapPassword,
	})
}
