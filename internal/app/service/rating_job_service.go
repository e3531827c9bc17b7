package service

import (
	"context"
	"encoding/json"
	"time"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
	"tohomc/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

const (
	enqueuedMarkerPrefix = "rating_job_enqueued:"
	enqueuedMarkerTTL    = 24 * time.Hour
)

// RatingJobService puts rating work on the Redis queue consumed by the rating worker.
type RatingJobService struct {
	rdb       *redis.Client
	queueName string
}

func NewRatingJobService(rdb *redis.Client, queueName string) *RatingJobService {
	return &RatingJobService{rdb: rdb, queueName: queueName}
}

func EnqueuedMarkerKey(contestID string) string {
	return enqueuedMarkerPrefix + contestID
}

// EnqueueContest queues a rating job for contestID unless one was queued recently.
func (s *RatingJobService) EnqueueContest(ctx context.Context, contestID string) error {
	ok, err := s.rdb.SetNX(ctx, EnqueuedMarkerKey(contestID), time.Now().Unix(), enqueuedMarkerTTL).Result()
	if err != nil {
		return common.Errorf("failed to mark rating job for contest %s: %w", contestID, err)
	}
	if !ok {
		return nil
	}
	if err := s.push(ctx, model.RatingJobPayload{ContestID: contestID}); err != nil {
		s.ClearContestMarker(ctx, contestID)
		return err
	}
	logger.Info.Printf("Rating job for contest %s enqueued.", contestID)
	return nil
}

// EnqueueRecalculation queues a full replay of every ended contest.
func (s *RatingJobService) EnqueueRecalculation(ctx context.Context) error {
	if err := s.push(ctx, model.RatingJobPayload{Recalculate: true}); err != nil {
		return err
	}
	logger.Info.Println("Rating recalculation enqueued.")
	return nil
}

// ClearContestMarker lets the next standings view enqueue the contest again.
func (s *RatingJobService) ClearContestMarker(ctx context.Context, contestID string) {
	if err := s.rdb.Del(ctx, EnqueuedMarkerKey(contestID)).Err(); err != nil {
		logger.Warn.Printf("Failed to clear rating marker for contest %s: %v", contestID, err)
	}
}

func (s *RatingJobService) push(ctx context.Context, payload model.RatingJobPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return common.Errorf("failed to marshal rating job payload: %w", err)
	}
	if err := s.rdb.LPush(ctx, s.queueName, data).Err(); err != nil {
		return common.Errorf("failed to push rating job to Redis queue: %w", err)
	}
	return nil
}
