// Command worker consumes the rating queue without serving HTTP. Run the
// API with RUN_EMBEDDED_WORKER=false when using it.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tohomc/internal/app/service"
	"tohomc/internal/app/worker"
	"tohomc/internal/domain/repository"
	"tohomc/internal/platform/config"
	"tohomc/internal/platform/database"
	"tohomc/internal/platform/logger"
	"tohomc/internal/platform/queue"
)

func main() {
	config.Load()
	cfg := config.AppConfig
	if err := logger.InitLogger(cfg.LogDir); err != nil {
		logger.Error.Fatalf("Failed to initialize log file: %v", err)
	}
	logger.SetLogLevel(cfg.AppEnv)
	logger.Info.Println("Rating worker service starting...")

	database.Connect()
	defer database.Close()
	queue.ConnectRedis()
	defer queue.CloseRedis()

	ratingService := service.NewRatingService(
		repository.NewPgContestRepository(database.DB),
		repository.NewPgProblemRepository(database.DB),
		repository.NewPgSubmissionRepository(database.DB),
		repository.NewPgUserRepository(database.DB),
		repository.NewPgRatingRepository(database.DB),
		repository.NewPgTransactor(database.DB),
	)
	ratingWorker := worker.NewRatingWorker(
		queue.RDB,
		ratingService,
		service.NewRatingJobService(queue.RDB, cfg.RatingQueueName),
		cfg.RatingQueueName,
		cfg.RatingLockKey,
		time.Duration(cfg.RatingLockTTLSeconds)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ratingWorker.Start(ctx)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info.Println("Shutdown signal received.")
	cancel()

	// Start returns once the in-flight job and its lock release finish.
	wg.Wait()
	logger.Info.Println("Rating worker exited cleanly.")
}
