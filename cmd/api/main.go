package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/internal/config"
	"github.com/yourusername/pilotvoice-api/internal/handler"
	"github.com/yourusername/pilotvoice-api/internal/middleware"
	pgRepo "github.com/yourusername/pilotvoice-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/pilotvoice-api/internal/repository/redis"
	"github.com/yourusername/pilotvoice-api/internal/service"
	"github.com/yourusername/pilotvoice-api/pkg/auth"
	"github.com/yourusername/pilotvoice-api/pkg/database"
	"github.com/yourusername/pilotvoice-api/pkg/logger"
	"github.com/yourusername/pilotvoice-api/pkg/monitoring"
	"github.com/yourusername/pilotvoice-api/pkg/tracing"
)

func main() {
	// .env необязателен: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(cfg.Logger, cfg.Server.Mode)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Error("Server stopped with error", zap.Error(err))
		_ = zapLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	gin.SetMode(cfg.Server.Mode)
	isProduction := cfg.Server.IsRelease()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				zapLogger.Warn("Failed to flush traces", zap.Error(err))
			}
		}()
		zapLogger.Info("Tracing enabled", zap.String("endpoint", cfg.Tracing.Endpoint))
	}

	// PostgreSQL и миграции
	db, err := database.NewPostgresDB(cfg.Database, !isProduction)
	if err != nil {
		return err
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath, zapLogger); err != nil {
		return err
	}

	// Redis: кеш опросов, кеш вердиктов и rate limiting
	redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()
	zapLogger.Info("Successfully connected to Redis")

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		return err
	}

	// Репозитории
	surveyRepo := pgRepo.NewSurveyRepo(db)
	competitionRepo := pgRepo.NewCompetitionRepo(db)
	responseRepo := pgRepo.NewSurveyResponseRepo(db)
	profileRepo := pgRepo.NewProfileRepo(db)
	screeningRepo := pgRepo.NewGdprScreeningRepo(db)

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	// Сервисы
	anonymizer, err := service.NewAnonymizer(cfg, cacheRepo, zapLogger)
	if err != nil {
		return err
	}

	var emailService service.EmailService = service.NewNoopEmailService(zapLogger)
	if cfg.Email.Enabled {
		resendService, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			return err
		}
		emailService = resendService
	}

	responseService := service.NewSurveyResponseService(service.SurveyResponseServiceDeps{
		Responses:   responseRepo,
		Surveys:     surveyRepo,
		Competition: competitionRepo,
		Screenings:  screeningRepo,
		Anonymizer:  anonymizer,
		Email:       emailService,
		Metrics:     metrics,
		Rules:       cfg.Survey,
		PublicURL:   cfg.Server.PublicURL,
		Logger:      zapLogger,
	})
	surveyService := service.NewSurveyService(surveyRepo, cacheRepo, cfg.Survey.SlugCacheTTL, zapLogger)
	competitionService := service.NewCompetitionService(competitionRepo)
	profileService := service.NewProfileService(profileRepo)
	resultsService := service.NewSurveyResultsService(surveyRepo, competitionRepo, responseRepo)

	// Middleware
	verifier, err := auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return err
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier, profileService, cfg.Auth.LoginPath, zapLogger)
	rateLimiter := middleware.NewRateLimiter(redisClient, zapLogger)
	gdprLimit := middleware.GdprCheckRateLimitConfig(cfg.RateLimit.GdprCheckMaxRequests, cfg.RateLimit.GdprCheckWindow)

	// Роутер
	router := gin.New()
	router.Use(gin.Recovery(), metrics.MetricsMiddleware())
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	// В production не доверяем прокси-заголовкам (защита от IP spoofing)
	trustedProxies := []string{"127.0.0.1", "::1"}
	if isProduction {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		zapLogger.Warn("Failed to set trusted proxies", zap.Error(err))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", monitoring.PrometheusHandler(registry))

	handler.RegisterRoutes(router, handler.Handlers{
		Surveys:   handler.NewSurveyHandler(surveyService, competitionService, responseService, cfg.Auth.LoginPath, zapLogger),
		Responses: handler.NewSurveyResponseHandler(responseService, zapLogger),
		Results:   handler.NewResultsHandler(resultsService, zapLogger),
		Profile:   handler.NewProfileHandler(profileService, zapLogger),
		Fill: handler.NewFillSessionHandler(
			surveyService,
			responseService,
			metrics,
			cfg.Server.AllowedOrigins,
			cfg.Survey.AutosaveDebounce,
			zapLogger,
		).WithCheckLimit(rateLimiter.ForUser(gdprLimit)),
	}, authMiddleware, rateLimiter.Limit(gdprLimit))

	// Тайм-ауты защищают от slow client attacks; WebSocket-соединения после hijack их не наследуют
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		zapLogger.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Дожидаемся отправки писем о завершении опроса
	responseService.Wait()

	zapLogger.Info("Server exited properly")
	return nil
}
