package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	authmw "github.com/movierec/backend/internal/auth/middleware"
	"github.com/movierec/backend/internal/auth/service"
	"github.com/movierec/backend/internal/config"
	"github.com/movierec/backend/internal/handlers"
	"github.com/movierec/backend/internal/jobs"
	"github.com/movierec/backend/internal/logger"
	"github.com/movierec/backend/internal/middleware"
	"github.com/movierec/backend/internal/models"
	"github.com/movierec/backend/internal/repositories"
	"github.com/movierec/backend/internal/services"
	_ "github.com/movierec/backend/docs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Movie Recommendation API
// @version 1.0
// @description API for user authentication, movie search and watchlists

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Movie Recommendation API")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Token revocation is opt-in. The interfaces stay nil when it is disabled.
	var denylist services.TokenDenylist
	var revocations authmw.RevocationChecker
	if cfg.JWT.RevokeOnLogout {
		redisClient, err := connectRedis(cfg)
		if err != nil {
			logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		denylistRepo := repositories.NewTokenDenylistRepository(redisClient, logger.Logger)
		denylist = denylistRepo
		revocations = denylistRepo
		logger.Logger.Info("Token revocation on logout enabled")
	}

	// Initialize JWT token generator and password hashing
	tokenGenerator := service.NewTokenGenerator(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	hasher, err := service.NewPasswordHasher(cfg.Password.BcryptCost)
	if err != nil {
		logger.Logger.Fatal("Failed to create password hasher", zap.Error(err))
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db, logger.Logger)
	userLoginRepo := repositories.NewUserLoginRepository(db, logger.Logger)
	movieRepo := repositories.NewMovieRepository(db, logger.Logger)
	watchlistRepo := repositories.NewWatchlistRepository(db, logger.Logger)

	// Initialize services
	authService := services.NewAuthService(
		userRepo,
		userLoginRepo,
		tokenGenerator,
		hasher,
		service.StrengthPolicy(cfg.Password.MinLength),
		denylist,
		logger.Logger,
	)
	movieService := services.NewMovieService(movieRepo, logger.Logger)
	watchlistService := services.NewWatchlistService(watchlistRepo, movieRepo, logger.Logger)
	sessionCleanupService := services.NewSessionCleanupService(userLoginRepo, cfg.JWT.AccessTokenExpiry, logger.Logger)

	// Schedule background jobs
	scheduler := jobs.NewScheduler(logger.Logger)
	if cfg.Sessions.CleanupSchedule != "" {
		if err := scheduler.AddJob(jobs.SessionCleanupJobName, cfg.Sessions.CleanupSchedule, jobs.SessionCleanupJob(sessionCleanupService)); err != nil {
			logger.Logger.Fatal("Failed to schedule session cleanup", zap.Error(err))
		}
	}
	scheduler.Start()

	// Initialize auth middleware
	guard := authmw.NewGuard(tokenGenerator, revocations)
	userMiddleware := authmw.RoleMiddleware(guard, models.RoleUser, logger.Logger)
	adminMiddleware := authmw.RoleMiddleware(guard, models.RoleAdmin, logger.Logger)
	loginLimiter := httprate.LimitByIP(cfg.RateLimit.Login, time.Minute)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, logger.Logger)
	authHandler := handlers.NewAuthHandler(authService, logger.Logger, loginLimiter)
	userHandler := handlers.NewUserHandler(watchlistService, movieService, userMiddleware, logger.Logger)
	adminHandler := handlers.NewAdminHandler(sessionCleanupService, adminMiddleware, logger.Logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, cfg.Database.DBName),
	)
	metrics := middleware.NewMetrics(registry)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggerMiddleware(logger.Logger))
	r.Use(middleware.RecoveryMiddleware(logger.Logger))
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(cfg.RateLimit.Global, time.Minute))
	r.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	r.Use(metrics.Middleware)

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	healthHandler.RegisterRoutes(r)
	authHandler.RegisterRoutes(r)
	userHandler.RegisterRoutes(r)
	adminHandler.RegisterRoutes(r)

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}
	scheduler.Stop(ctx)

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// connectRedis connects to the token denylist store
func connectRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Get the working directory or use migrations folder relative to the binary
	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Try parent directory if running from cmd
		if _, err := os.Stat("../migrations"); err == nil {
			migrationPath = "file://../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
