package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository"
	"tohomc/internal/domain/rules"
	"tohomc/internal/platform/logger"
)

type StandingsService struct {
	contestRepo    repository.ContestRepository
	submissionRepo repository.SubmissionRepository
	cache          StandingsCache
	publisher      StandingsPublisher
	ratingJobs     RatingEnqueuer
	now            Clock

	mu     sync.Mutex
	latest map[string]int // submission count of the newest stored snapshot
}

// NewStandingsService wires the ranking computation. publisher and
// ratingJobs may be nil.
func NewStandingsService(
	contestRepo repository.ContestRepository,
	submissionRepo repository.SubmissionRepository,
	cache StandingsCache,
	publisher StandingsPublisher,
	ratingJobs RatingEnqueuer,
) *StandingsService {
	return &StandingsService{
		contestRepo:    contestRepo,
		submissionRepo: submissionRepo,
		cache:          cache,
		publisher:      publisher,
		ratingJobs:     ratingJobs,
		now:            rules.Now,
		latest:         make(map[string]int),
	}
}

// Get serves standings from cache when possible. Viewing the standings of an
// ended contest schedules its rating update.
func (s *StandingsService) Get(ctx context.Context, contestID string) (*model.Standings, error) {
	c, err := s.contestRepo.FindByID(ctx, nil, contestID)
	if err != nil {
		return nil, fmt.Errorf("contest %s: %w", contestID, err)
	}
	defer s.scheduleRating(ctx, c)

	if cached, ok, err := s.cache.Get(ctx, contestID); err != nil {
		logger.Warn.Printf("Standings cache read failed for %s: %v", contestID, err)
	} else if ok {
		return cached, nil
	}

	standings, err := s.Snapshot(ctx, nil, c)
	if err != nil {
		return nil, err
	}
	s.store(ctx, standings, false)
	return standings, nil
}

// Snapshot computes the standings of c from the submission log as seen by tx.
func (s *StandingsService) Snapshot(ctx context.Context, tx *sql.Tx, c *model.Contest) (*model.Standings, error) {
	subs, err := s.submissionRepo.ListByContest(ctx, tx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}
	return rules.ComputeStandings(c, subs, s.now()), nil
}

func (s *StandingsService) scheduleRating(ctx context.Context, c *model.Contest) {
	if s.ratingJobs == nil || rules.NotEnded(s.now(), c.EndTime) {
		return
	}
	if err := s.ratingJobs.EnqueueContest(ctx, c.ID); err != nil {
		logger.Error.Printf("Failed to enqueue rating job for contest %s: %v", c.ID, err)
	}
}

// Invalidate drops the cached standings of a contest.
func (s *StandingsService) Invalidate(ctx context.Context, contestID string) {
	if err := s.cache.Invalidate(ctx, contestID); err != nil {
		logger.Warn.Printf("Standings cache invalidation failed for %s: %v", contestID, err)
	}
}

// Publish caches standings taken after a new submission and pushes them to
// live subscribers. A nil snapshot only drops the cache entry.
func (s *StandingsService) Publish(ctx context.Context, contestID string, standings *model.Standings) {
	if standings == nil {
		s.Invalidate(ctx, contestID)
		return
	}
	s.store(ctx, standings, true)
}

// store writes standings unless a newer snapshot of the same contest has
// already been stored. Returns false for a stale snapshot.
func (s *StandingsService) store(ctx context.Context, standings *model.Standings, publish bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.latest[standings.ContestID]; ok && standings.SubmissionCount < last {
		logger.Debug.Printf("Skipping stale standings for %s (%d < %d)", standings.ContestID, standings.SubmissionCount, last)
		return false
	}
	s.latest[standings.ContestID] = standings.SubmissionCount

	if err := s.cache.Set(ctx, standings.ContestID, standings); err != nil {
		logger.Warn.Printf("Standings cache write failed for %s: %v", standings.ContestID, err)
	}
	if publish && s.publisher != nil {
		s.publisher.PublishStandings(standings.ContestID, standings)
	}
	return true
}
