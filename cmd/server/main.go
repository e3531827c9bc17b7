package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tohomc/internal/api"
	"tohomc/internal/app/service"
	"tohomc/internal/app/worker"
	"tohomc/internal/common/security"
	"tohomc/internal/domain/repository"
	"tohomc/internal/live"
	"tohomc/internal/platform/cache"
	"tohomc/internal/platform/config"
	"tohomc/internal/platform/database"
	"tohomc/internal/platform/logger"
	"tohomc/internal/platform/queue"
	"tohomc/internal/platform/storage"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig
	if err := logger.InitLogger(cfg.LogDir); err != nil {
		logger.Error.Fatalf("Failed to initialize log file: %v", err)
	}
	logger.SetLogLevel(cfg.AppEnv)
	logger.Info.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, database.DB); err != nil {
		logger.Error.Fatalf("Migration failed: %v", err)
	}
	migrateCancel()

	// 4. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()

	// 5. Image storage is optional; uploads answer 503 without it.
	var images service.ImageStore
	if cfg.S3Bucket != "" {
		store, err := storage.NewS3ImageStore(cfg)
		if err != nil {
			logger.Error.Fatalf("Failed to initialize S3 image store: %v", err)
		}
		images = store
		logger.Info.Printf("Image storage: s3://%s", cfg.S3Bucket)
	} else {
		logger.Warn.Println("S3_BUCKET not set, image uploads are disabled")
	}

	// 6. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	ratingRepo := repository.NewPgRatingRepository(database.DB)
	transactor := repository.NewPgTransactor(database.DB)

	// 7. Initialize Services
	hub := live.NewHub()
	standingsCache := cache.NewRedisStandingsCache(queue.RDB, cfg.StandingsCacheTTL)
	ratingJobService := service.NewRatingJobService(queue.RDB, cfg.RatingQueueName)

	authService := service.NewAuthService(userRepo)
	userService := service.NewUserService(userRepo, ratingRepo)
	standingsService := service.NewStandingsService(contestRepo, submissionRepo, standingsCache, hub, ratingJobService)
	contestService := service.NewContestService(contestRepo, problemRepo, submissionRepo, userRepo, transactor, standingsService, images, cfg.DefaultSubmissionLimit)
	problemService := service.NewProblemService(contestRepo, problemRepo, userRepo, standingsService, images, cfg.MaxImageBytes)
	submissionService := service.NewSubmissionService(contestRepo, submissionRepo, userRepo, standingsService)
	ratingService := service.NewRatingService(contestRepo, problemRepo, submissionRepo, userRepo, ratingRepo, transactor)

	if cfg.BootstrapAdminUsername != "" {
		if err := authService.EnsureAdmin(context.Background(), cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
			logger.Error.Fatalf("Failed to bootstrap admin account: %v", err)
		}
	}

	// 8. Initialize Rating Worker (as a goroutine) unless cmd/worker runs it
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.RunEmbeddedWorker {
		ratingWorker := worker.NewRatingWorker(
			queue.RDB,
			ratingService,
			ratingJobService,
			cfg.RatingQueueName,
			cfg.RatingLockKey,
			time.Duration(cfg.RatingLockTTLSeconds)*time.Second,
		)
		go ratingWorker.Start(workerCtx)
	}

	// 9. Initialize Router & HTTP Server
	router := api.NewRouter(api.Services{
		Auth:           authService,
		Users:          userService,
		Contests:       contestService,
		Problems:       problemService,
		Submissions:    submissionService,
		Standings:      standingsService,
		RatingJobs:     ratingJobService,
		Hub:            hub,
		MaxImageBytes:  cfg.MaxImageBytes,
		AllowedOrigins: cfg.WSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 10. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info.Printf("Server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error.Fatalf("Could not listen on %s: %v", cfg.APIPort, err)
		}
	}()

	<-stop

	logger.Info.Println("Shutting down server...")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error.Fatalf("Server shutdown failed: %v", err)
	}

	logger.Info.Println("Server and worker stopped gracefully.")
}
