package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/config"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/logger"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/pool"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/repositories"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/tasks"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/vhost"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

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

	logger.Logger.Info("Starting Learnova Stream Worker")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	// Load the backing-account credential pool
	credPool, err := pool.Load(cfg.VideoHost.Accounts)
	if err != nil {
		logger.Logger.Fatal("Failed to load credential pool", zap.Error(err))
	}

	// Initialize repositories
	tokenRepo := repositories.NewVideoAccessTokenRepository(db)

	// Create worker instance
	worker := NewWorker(
		logger.Logger,
		credPool,
		vhost.NewClient(cfg.VideoHost.APIURL),
		tokenRepo,
	)

	// Create Asynq server
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Queues: map[string]int{
				tasks.QueueVideo: 5,
				"default":        1,
			},
		},
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeVideoTranscode, worker.HandleVideoTranscode)

	// Start worker
	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Logger.Fatal("Failed to start worker", zap.Error(err))
		}
	}()

	// Hourly purge of expired playback token records
	c := cron.New()
	if _, err := c.AddFunc("@hourly", worker.PurgeExpiredTokens); err != nil {
		logger.Logger.Fatal("Failed to schedule token purge", zap.Error(err))
	}
	c.Start()

	logger.Logger.Info("Worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down worker...")
	c.Stop()
	srv.Shutdown()
	logger.Logger.Info("Worker exited")
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
