package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourusername/pulse-api/internal/middleware"
	"github.com/yourusername/pulse-api/internal/pkg/logger"
	"github.com/yourusername/pulse-api/internal/pkg/metrics"
)

// RouterDeps - обработчики и middleware для сборки роутера
type RouterDeps struct {
	Auth    *AuthHandler
	Events  *EventHandler
	Quiz    *QuizHandler
	Metrics *MetricsHandler
	Health  *HealthHandler
	WS      *WSHandler

	AuthMiddleware *middleware.AuthMiddleware

	// RateLimiter может быть nil, если Redis не настроен
	RateLimiter   *middleware.RateLimiter
	AuthRateLimit middleware.RateLimitConfig

	PromMetrics    *metrics.Metrics
	PromGatherer   prometheus.Gatherer
	AllowedOrigins []string
	TrustedProxies []string
}

// NewRouter собирает gin.Engine со всеми маршрутами
func NewRouter(deps RouterDeps) *gin.Engine {
	log := logger.WithComponent("Router")
	router := gin.New()

	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		log.WithError(err).Warn("[Router] Failed to set trusted proxies")
	}

	router.Use(middleware.Recovery(), middleware.RequestLogger())
	if deps.PromMetrics != nil {
		router.Use(middleware.PrometheusMetrics(deps.PromMetrics))
	}

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", AdminSignupKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(deps.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = deps.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", deps.Health.Health)
	if deps.PromGatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.PromGatherer, promhttp.HandlerOpts{})))
	}
	router.GET("/ws", deps.WS.HandleConnection)

	authMW := deps.AuthMiddleware
	rateLimited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{deps.RateLimiter.Limit(deps.AuthRateLimit), h}
	}

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", rateLimited(deps.Auth.Signup)...)
			authGroup.POST("/login", rateLimited(deps.Auth.Login)...)
			authGroup.GET("/me", authMW.RequireAuth(), deps.Auth.Me)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/signup", rateLimited(deps.Auth.AdminSignup)...)
			admin.POST("/login", rateLimited(deps.Auth.AdminLogin)...)

			adminOnly := admin.Group("")
			adminOnly.Use(authMW.RequireAdminAuth())
			{
				adminOnly.GET("/questions", deps.Quiz.ListQuestionsAdmin)
				adminOnly.GET("/answers/export", deps.Quiz.ExportAnswers)
			}
		}

		authed := api.Group("")
		authed.Use(authMW.RequireAuth())
		{
			authed.POST("/events", deps.Events.LogEvent)
			authed.GET("/events", deps.Events.RecentEvents)
			authed.POST("/user-events", deps.Events.RecordUserEvent)
			authed.POST("/answers", deps.Quiz.SubmitAnswer)
		}

		api.GET("/questions", deps.Quiz.ListQuestions)
		api.POST("/questions", authMW.RequireAdminAuth(), deps.Quiz.CreateQuestion)

		m := api.Group("/metrics")
		{
			m.GET("/signups-per-day", deps.Metrics.SignupsPerDay)
			m.GET("/active-users", deps.Metrics.ActiveUsers)
			m.GET("/event-types", deps.Metrics.EventTypes)
			m.GET("/total-events", deps.Metrics.TotalEvents)
			m.GET("/recent-activity", deps.Metrics.RecentActivity)
			m.GET("/users-answered-today", deps.Metrics.UsersAnsweredToday)
			m.GET("/heatmap", deps.Metrics.Heatmap)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found", "error_type": "not_found"})
	})

	return router
}
