package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository"
	"tohomc/internal/domain/rules"
	"tohomc/internal/platform/logger"
)

// RatingService turns final standings into problem difficulties, user
// performances and rating changes.
type RatingService struct {
	contestRepo    repository.ContestRepository
	problemRepo    repository.ProblemRepository
	submissionRepo repository.SubmissionRepository
	userRepo       repository.UserRepository
	ratingRepo     repository.RatingRepository
	tx             Transactor
	now            Clock
}

func NewRatingService(
	contestRepo repository.ContestRepository,
	problemRepo repository.ProblemRepository,
	submissionRepo repository.SubmissionRepository,
	userRepo repository.UserRepository,
	ratingRepo repository.RatingRepository,
	tx Transactor,
) *RatingService {
	return &RatingService{
		contestRepo:    contestRepo,
		problemRepo:    problemRepo,
		submissionRepo: submissionRepo,
		userRepo:       userRepo,
		ratingRepo:     ratingRepo,
		tx:             tx,
		now:            rules.Now,
	}
}

// ApplyContest rates one ended contest. Users already rated for it are skipped.
func (s *RatingService) ApplyContest(ctx context.Context, contestID string) error {
	return s.tx.InTx(ctx, func(tx *sql.Tx) error {
		c, err := s.contestRepo.FindByID(ctx, tx, contestID)
		if err != nil {
			return fmt.Errorf("contest %s: %w", contestID, err)
		}
		if rules.NotEnded(s.now(), c.EndTime) {
			return fmt.Errorf("contest %s has not ended: %w", contestID, common.ErrBadRequest)
		}
		return s.applyContest(ctx, tx, c)
	})
}

// RecalculateAll resets every rating and replays all ended contests in end order.
func (s *RatingService) RecalculateAll(ctx context.Context) error {
	return s.tx.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.ratingRepo.ResetAll(ctx, tx); err != nil {
			return err
		}
		contests, err := s.contestRepo.List(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		ended := contests[:0]
		for _, c := range contests {
			if !rules.NotEnded(now, c.EndTime) {
				ended = append(ended, c)
			}
		}
		sort.SliceStable(ended, func(i, j int) bool {
			return ended[i].EndTime.Before(ended[j].EndTime)
		})
		for _, summary := range ended {
			c, err := s.contestRepo.FindByID(ctx, tx, summary.ID)
			if err != nil {
				return err
			}
			if err := s.applyContest(ctx, tx, c); err != nil {
				return err
			}
		}
		logger.Info.Printf("Recalculated ratings over %d contests", len(ended))
		return nil
	})
}

func (s *RatingService) applyContest(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	subs, err := s.submissionRepo.ListByContest(ctx, tx, c.ID)
	if err != nil {
		return err
	}
	counted := rules.WithinContest(subs, c.EndTime)
	standings := rules.ComputeStandings(c, subs, s.now())

	ratings, err := s.userRepo.Ratings(ctx, tx)
	if err != nil {
		return err
	}

	difficulties := make(map[string]int, len(c.Problems))
	for _, p := range c.Problems {
		d := rules.Difficulty(counted, p.ID, ratings)
		difficulties[p.ID] = d
		if err := s.problemRepo.UpdateDifficulty(ctx, tx, c.ID, p.ID, d); err != nil {
			return err
		}
	}

	solved := rules.SolvedProblems(counted)
	perfs := make([]model.Performance, 0, len(standings.Entries))
	for _, e := range standings.Entries {
		perfs = append(perfs, model.Performance{
			Username:    e.Username,
			Performance: rules.Performance(solved[e.Username], difficulties, e.Rank),
		})
	}
	if err := s.ratingRepo.SavePerformances(ctx, tx, c.ID, perfs); err != nil {
		return err
	}

	rated := 0
	for i, p := range perfs {
		previous, exists := ratings[p.Username]
		if !exists {
			continue // Account deleted since the contest
		}
		done, err := s.ratingRepo.HasHistory(ctx, tx, p.Username, c.ID)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		next := rules.NextRating(previous, p.Performance)
		if err := s.userRepo.UpdateRating(ctx, tx, p.Username, next); err != nil {
			return err
		}
		if err := s.ratingRepo.AddHistory(ctx, tx, &model.ContestHistory{
			Username:     p.Username,
			ContestID:    c.ID,
			ContestTitle: c.Title,
			Rank:         standings.Entries[i].Rank,
			Performance:  p.Performance,
			RatingBefore: previous,
			RatingAfter:  next,
			EndTime:      c.EndTime,
		}); err != nil {
			return err
		}
		rated++
	}
	logger.Info.Printf("Contest %s rated: %d new results", c.ID, rated)
	return nil
}
