package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tohomc/internal/domain/model"
	"tohomc/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RatingRunner performs the rating work for one dequeued job.
type RatingRunner interface {
	ApplyContest(ctx context.Context, contestID string) error
	RecalculateAll(ctx context.Context) error
}

// MarkerClearer forgets that a contest's rating job was queued.
type MarkerClearer interface {
	ClearContestMarker(ctx context.Context, contestID string)
}

type RatingWorker struct {
	rdb       *redis.Client
	runner    RatingRunner
	markers   MarkerClearer
	queueName string
	lockKey   string
	lockTTL   time.Duration
}

func NewRatingWorker(rdb *redis.Client, runner RatingRunner, markers MarkerClearer, queueName, lockKey string, lockTTL time.Duration) *RatingWorker {
	return &RatingWorker{
		rdb:       rdb,
		runner:    runner,
		markers:   markers,
		queueName: queueName,
		lockKey:   lockKey,
		lockTTL:   lockTTL,
	}
}

var releaseLockScript = redis.NewScript(`
    if redis.call("get", KEYS[1]) == ARGV[1] then
        return redis.call("del", KEYS[1])
    else
        return 0
    end
`)

func (w *RatingWorker) Start(ctx context.Context) {
	logger.Info.Println("Rating worker started, listening to queue:", w.queueName)
	for {
		select {
		case <-ctx.Done():
			logger.Info.Println("Rating worker stopping...")
			return
		default:
			// Bounded wait so shutdown is noticed even on an idle queue.
			res, err := w.rdb.BRPop(ctx, 5*time.Second, w.queueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				logger.Error.Printf("Failed to BRPop from Redis queue '%s': %v", w.queueName, err)
				time.Sleep(5 * time.Second)
				continue
			}

			// res is [queueName, value]
			if len(res) < 2 || res[1] == "" {
				logger.Warn.Println("BRPop returned an empty rating job.")
				continue
			}
			w.processJobWithLock(ctx, res[1])
		}
	}
}

// processJobWithLock runs one job while holding the global rating lock, so
// only one rating computation runs at a time across instances.
func (w *RatingWorker) processJobWithLock(ctx context.Context, raw string) {
	lockValue := uuid.NewString()

	ok, err := w.rdb.SetNX(ctx, w.lockKey, lockValue, w.lockTTL).Result()
	if err != nil {
		logger.Error.Printf("Failed to attempt rating lock acquisition: %v", err)
		w.requeueJob(ctx, raw)
		return
	}
	if !ok {
		logger.Info.Println("Rating lock is held elsewhere, re-queueing job.")
		w.requeueJob(ctx, raw)
		time.Sleep(time.Second)
		return
	}

	defer func() {
		deleted, err := releaseLockScript.Run(context.WithoutCancel(ctx), w.rdb, []string{w.lockKey}, lockValue).Int64()
		if err != nil {
			logger.Error.Printf("Failed to release rating lock %s: %v", w.lockKey, err)
		} else if deleted != 1 {
			logger.Warn.Printf("Rating lock %s had already expired or changed hands.", w.lockKey)
		}
	}()

	w.handleJob(ctx, raw)
}

func (w *RatingWorker) requeueJob(ctx context.Context, raw string) {
	if err := w.rdb.RPush(context.WithoutCancel(ctx), w.queueName, raw).Err(); err != nil {
		logger.Error.Printf("Failed to re-queue rating job %s: %v", raw, err)
	}
}

// handleJob decodes and runs one job. A failed contest job clears its
// enqueue marker so a later standings view schedules it again.
func (w *RatingWorker) handleJob(ctx context.Context, raw string) {
	var payload model.RatingJobPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		logger.Error.Printf("Dropping malformed rating job %q: %v", raw, err)
		return
	}

	switch {
	case payload.Recalculate:
		if err := w.runner.RecalculateAll(ctx); err != nil {
			logger.Error.Printf("Rating recalculation failed: %v", err)
		}
	case payload.ContestID != "":
		if err := w.runner.ApplyContest(ctx, payload.ContestID); err != nil {
			logger.Error.Printf("Rating contest %s failed: %v", payload.ContestID, err)
			if w.markers != nil {
				w.markers.ClearContestMarker(ctx, payload.ContestID)
			}
		}
	default:
		logger.Warn.Printf("Ignoring rating job without a target: %s", raw)
	}
}
