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

	_ "github.com/click2025-space493/learnova-paltform-sub001/docs"
	authMiddleware "github.com/click2025-space493/learnova-paltform-sub001/internal/auth/middleware"
	authService "github.com/click2025-space493/learnova-paltform-sub001/internal/auth/service"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/config"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/handlers"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/logger"
	loggerMiddleware "github.com/click2025-space493/learnova-paltform-sub001/internal/logger/middleware"
	sharedMiddleware "github.com/click2025-space493/learnova-paltform-sub001/internal/middlewares"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/playtoken"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/pool"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/repositories"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/tasks"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/upload"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/vhost"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Learnova Stream API
// @version 1.0
// @description API for gated lesson video delivery: playback tokens and producer uploads
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@learnova.example

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8084
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Access token issued by the platform identity provider
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

	logger.Logger.Info("Starting Learnova Stream Service")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to Redis (backs the transcode queue)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
		os.Exit(1)
	}

	// Asynq client for queueing transcode tasks
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Load the backing-account credential pool. The service cannot serve
	// uploads without at least one usable account.
	credPool, err := pool.Load(cfg.VideoHost.Accounts)
	if err != nil {
		logger.Logger.Fatal("Failed to load credential pool", zap.Error(err))
	}
	logger.Logger.Info("Credential pool loaded", zap.Int("accounts", credPool.Size()))

	// Initialize identity token verifier (for auth middleware)
	verifier := authService.NewTokenVerifier(cfg.JWT.Secret)

	// Initialize repositories
	tokenRepo := repositories.NewVideoAccessTokenRepository(db)
	entitlementRepo := repositories.NewEntitlementRepository(db)

	// Initialize services
	tokenService := playtoken.NewService(
		cfg.PlayToken.Secret,
		cfg.PlayToken.TTL,
		cfg.PlayToken.AllowedOrigins,
		cfg.PlayToken.StrictOrigin,
		tokenRepo,
		entitlementRepo,
		logger.Logger,
	)

	hostClient := vhost.NewClient(cfg.VideoHost.APIURL)
	enqueuer := tasks.NewEnqueuer(asynqClient)
	pipeline := upload.NewPipeline(
		credPool,
		hostClient,
		enqueuer,
		cfg.Upload.TempDir,
		cfg.Upload.MaxSizeBytes,
		cfg.Upload.ChunkSizeBytes,
		logger.Logger,
	)

	// Initialize middleware
	authMw := authMiddleware.AuthMiddleware(verifier)
	teacherMw := authMiddleware.RoleMiddleware(verifier, authService.RoleTeacher)

	// Initialize handlers
	tokenHandler := handlers.NewPlayTokenHandler(tokenService, logger.Logger)
	uploadHandler := handlers.NewVideoUploadHandler(
		pipeline,
		credPool,
		cfg.Upload.MaxSizeBytes,
		cfg.Upload.ChunkSizeBytes,
		logger.Logger,
	)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(sharedMiddleware.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(sharedMiddleware.RecoveryMiddleware(logger.Logger))
	r.Use(sharedMiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))
	// Multipart framing adds overhead on top of the raw video ceiling
	r.Use(sharedMiddleware.RequestSizeLimitMiddleware(cfg.Upload.MaxSizeBytes + 1<<20))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	// Scope router to /api/v1
	r.Route("/api/v1", func(r chi.Router) {
		// Pool health is public; it exposes no credentials
		r.Get("/videos/health", uploadHandler.Health)

		// Playback token endpoints require an authenticated viewer
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Post("/videos/token", tokenHandler.IssueToken)
			r.Get("/videos/token/verify", tokenHandler.VerifyToken)
		})

		// Upload endpoint is restricted to course producers
		r.Group(func(r chi.Router) {
			r.Use(teacherMw)
			r.Post("/videos", uploadHandler.UploadVideo)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
		// Long timeouts accommodate large chunked uploads
		ReadTimeout:  30 * time.Minute,
		WriteTimeout: 30 * time.Minute,
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

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	// Use service-specific migration table name to avoid conflicts with other services
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "stream_schema_migrations",
	})
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
