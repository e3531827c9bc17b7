package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository"
	"tohomc/internal/domain/rules"
	"tohomc/internal/platform/logger"

	"github.com/google/uuid"
)

type SubmissionService struct {
	contestRepo    repository.ContestRepository
	submissionRepo repository.SubmissionRepository
	userRepo       repository.UserRepository
	standings      *StandingsService
	now            Clock
}

func NewSubmissionService(
	contestRepo repository.ContestRepository,
	submissionRepo repository.SubmissionRepository,
	userRepo repository.UserRepository,
	standings *StandingsService,
) *SubmissionService {
	return &SubmissionService{
		contestRepo:    contestRepo,
		submissionRepo: submissionRepo,
		userRepo:       userRepo,
		standings:      standings,
		now:            rules.Now,
	}
}

type CreateSubmissionRequest struct {
	ProblemID string `json:"problem_id"`
	Answer    string `json:"answer"`
}

// Submit admits, judges and appends one answer. Counting prior attempts,
// appending and taking the standings snapshot happen under the contest row
// lock, so concurrent submissions cannot slip past the limit.
func (s *SubmissionService) Submit(ctx context.Context, username, contestID string, req CreateSubmissionRequest) (*model.Submission, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}

	var submission *model.Submission
	var standings *model.Standings
	err = s.contestRepo.WithContestLock(ctx, contestID, func(tx *sql.Tx) error {
		c, err := s.contestRepo.FindByID(ctx, tx, contestID)
		if err != nil {
			return err
		}
		now := s.now()

		prior := 0
		if _, known := c.Problem(req.ProblemID); known && rules.IsActive(now, c.StartTime, c.EndTime) {
			prior, err = s.submissionRepo.CountForUserProblem(ctx, tx, c.ID, user.Username, req.ProblemID, c.EndTime)
			if err != nil {
				return err
			}
		}

		answer, problem, err := rules.Admit(rules.Attempt{
			Now:        now,
			Contest:    c,
			User:       user,
			ProblemID:  req.ProblemID,
			Answer:     req.Answer,
			PriorCount: prior,
		})
		if err != nil {
			return err
		}

		submission = &model.Submission{
			ID:          uuid.NewString(),
			ContestID:   c.ID,
			ProblemID:   problem.ID,
			Username:    user.Username,
			Result:      rules.Judge(answer, problem.CorrectAnswer),
			Answer:      answer,
			SubmittedAt: now,
		}
		if err := s.submissionRepo.Create(ctx, tx, submission); err != nil {
			return err
		}

		// Taken under the lock so snapshots are ordered like the log.
		if standings, err = s.standings.Snapshot(ctx, tx, c); err != nil {
			logger.Error.Printf("Failed to recompute standings for %s: %v", c.ID, err)
			standings = nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submission rejected: %w", err)
	}

	logger.Info.Printf("Submission %s by %s on %s/%s: %s", submission.ID, user.Username, contestID, submission.ProblemID, submission.Result)
	s.standings.Publish(ctx, contestID, standings)
	return submission, nil
}

// History lists every submission of the contest, newest first, including
// those made after it ended. While the contest is running, other users'
// answers are hidden from non-managers.
func (s *SubmissionService) History(ctx context.Context, username, contestID string) ([]model.Submission, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}
	c, err := s.contestRepo.FindByID(ctx, nil, contestID)
	if err != nil {
		return nil, fmt.Errorf("contest %s: %w", contestID, err)
	}
	subs, err := s.submissionRepo.ListByContest(ctx, nil, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}

	hideOthers := rules.NotEnded(s.now(), c.EndTime) && !c.CanManage(user)
	for i := range subs {
		subs[i].SubmittedAt = subs[i].SubmittedAt.In(rules.Zone)
		if hideOthers && subs[i].Username != user.Username {
			subs[i].Answer = ""
		}
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
	})
	return subs, nil
}
