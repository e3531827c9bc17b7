package service

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository"
	"tohomc/internal/domain/rules"
	"tohomc/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ContestService struct {
	contestRepo    repository.ContestRepository
	problemRepo    repository.ProblemRepository
	submissionRepo repository.SubmissionRepository
	userRepo       repository.UserRepository
	tx             Transactor
	standings      *StandingsService
	images         ImageStore
	defaultLimit   int
	now            Clock
}

func NewContestService(
	contestRepo repository.ContestRepository,
	problemRepo repository.ProblemRepository,
	submissionRepo repository.SubmissionRepository,
	userRepo repository.UserRepository,
	tx Transactor,
	standings *StandingsService,
	images ImageStore,
	defaultLimit int,
) *ContestService {
	if defaultLimit <= 0 {
		defaultLimit = model.DefaultSubmissionLimit
	}
	return &ContestService{
		contestRepo:    contestRepo,
		problemRepo:    problemRepo,
		submissionRepo: submissionRepo,
		userRepo:       userRepo,
		tx:             tx,
		standings:      standings,
		images:         images,
		defaultLimit:   defaultLimit,
		now:            rules.Now,
	}
}

type CreateContestRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	ProblemCount    int      `json:"problem_count"`
	SubmissionLimit int      `json:"submission_limit"`
	Writers         []string `json:"writers"`
	Testers         []string `json:"testers"`
}

// UpdateContestRequest leaves nil fields unchanged. Role lists replace the
// current set; unknown usernames are dropped.
type UpdateContestRequest struct {
	Title           *string   `json:"title"`
	Description     *string   `json:"description"`
	StartTime       *string   `json:"start_time"`
	EndTime         *string   `json:"end_time"`
	ProblemCount    *int      `json:"problem_count"`
	SubmissionLimit *int      `json:"submission_limit"`
	Managers        *[]string `json:"managers"`
	Writers         *[]string `json:"writers"`
	Testers         *[]string `json:"testers"`
}

type AssignRolesRequest struct {
	Role      model.ContestRole `json:"role"`
	Usernames []string          `json:"usernames"`
}

type AssignRolesResult struct {
	Role    model.ContestRole `json:"role"`
	Members []string          `json:"members"`
	Ignored []string          `json:"ignored"` // Unknown usernames
}

// ContestView is a contest as one caller is allowed to see it.
type ContestView struct {
	model.Contest
	Gate      rules.Gate `json:"gate"`
	CanManage bool       `json:"can_manage"`
}

func newContestView(c *model.Contest, user *model.User, now time.Time) ContestView {
	gate := rules.EvaluateGate(now, c.StartTime, c.EndTime)
	canManage := c.CanManage(user)
	view := ContestView{Contest: *c, Gate: gate, CanManage: canManage}
	view.StartTime = c.StartTime.In(rules.Zone)
	view.EndTime = c.EndTime.In(rules.Zone)
	view.Problems = make([]model.Problem, 0, len(c.Problems))
	if canManage {
		view.Problems = append(view.Problems, c.Problems...)
		return view
	}
	if gate.NotEnded {
		view.Review = ""
	}
	if !gate.HasStarted {
		return view
	}
	for _, p := range c.Problems {
		view.Problems = append(view.Problems, redactProblem(p, gate))
	}
	return view
}

// redactProblem strips what a non-manager may not see at this point of the contest.
func redactProblem(p model.Problem, gate rules.Gate) model.Problem {
	p.CorrectAnswer = ""
	if gate.NotEnded {
		p.Explanation = ""
		p.ExplanationImage = ""
	}
	return p
}

func parseSchedule(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := rules.ParseContestTime(strings.TrimSpace(startRaw))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_time: %v: %w", err, common.ErrValidation)
	}
	end, err := rules.ParseContestTime(strings.TrimSpace(endRaw))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_time: %v: %w", err, common.ErrValidation)
	}
	return start, end, nil
}

func validateContest(c *model.Contest) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("title is required: %w", common.ErrValidation)
	}
	if !c.StartTime.Before(c.EndTime) {
		return fmt.Errorf("start_time must be before end_time: %w", common.ErrValidation)
	}
	if c.ProblemCount < 1 || c.ProblemCount > model.MaxProblemCount {
		return fmt.Errorf("problem_count must be between 1 and %d: %w", model.MaxProblemCount, common.ErrValidation)
	}
	if c.SubmissionLimit < 0 {
		return fmt.Errorf("submission_limit must not be negative: %w", common.ErrValidation)
	}
	return nil
}

func contestSlug(title, id string) string {
	s := slug.Make(title)
	if s == "" {
		return id[:8]
	}
	return s
}

// existingUsernames splits candidates into known users and the rest.
func (s *ContestService) existingUsernames(ctx context.Context, candidates []string) ([]string, []string, error) {
	candidates = model.UniqueUsernames(trimAll(candidates))
	found, err := s.userRepo.ListUsernames(ctx, candidates)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check usernames: %w", err)
	}
	known := make([]string, 0, len(candidates))
	ignored := []string{}
	for _, name := range candidates {
		if slices.Contains(found, name) {
			known = append(known, name)
		} else {
			ignored = append(ignored, name)
		}
	}
	return known, ignored, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

func (s *ContestService) List(ctx context.Context, username string) ([]ContestView, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}
	contests, err := s.contestRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	now := s.now()
	views := make([]ContestView, 0, len(contests))
	for i := range contests {
		views = append(views, newContestView(&contests[i], user, now))
	}
	return views, nil
}

func (s *ContestService) Create(ctx context.Context, username string, req CreateContestRequest) (*ContestView, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}
	start, end, err := parseSchedule(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	c := &model.Contest{
		ID:              id,
		Slug:            contestSlug(req.Title, id),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		StartTime:       start,
		EndTime:         end,
		ProblemCount:    req.ProblemCount,
		SubmissionLimit: req.SubmissionLimit,
		CreatedBy:       user.Username,
		Managers:        []string{user.Username},
	}
	if err := validateContest(c); err != nil {
		return nil, err
	}
	if c.SubmissionLimit == 0 {
		c.SubmissionLimit = s.defaultLimit
	}
	if c.Writers, _, err = s.existingUsernames(ctx, req.Writers); err != nil {
		return nil, err
	}
	if c.Testers, _, err = s.existingUsernames(ctx, req.Testers); err != nil {
		return nil, err
	}
	for _, pid := range model.GenerateProblemIDs(c.ProblemCount) {
		c.Problems = append(c.Problems, model.Problem{ContestID: id, ID: pid, Score: model.DefaultProblemScore})
	}
	c.Normalize()

	err = s.tx.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.contestRepo.Create(ctx, tx, c); err != nil {
			return err
		}
		for i := range c.Problems {
			if err := s.problemRepo.Upsert(ctx, tx, &c.Problems[i], i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}

	logger.Info.Printf("Contest %s (%s) created by %s", c.ID, c.Title, user.Username)
	view := newContestView(c, user, s.now())
	return &view, nil
}

func (s *ContestService) Get(ctx context.Context, username, contestID string) (*ContestView, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}
	c, err := s.contestRepo.FindByID(ctx, nil, contestID)
	if err != nil {
		return nil, fmt.Errorf("contest %s: %w", contestID, err)
	}
	view := newContestView(c, user, s.now())
	return &view, nil
}

func (s *ContestService) Status(ctx context.Context, contestID string) (*rules.Gate, error) {
	c, err := s.contestRepo.FindByID(ctx, nil, contestID)
	if err != nil {
		return nil, fmt.Errorf("contest %s: %w", contestID, err)
	}
	gate := rules.EvaluateGate(s.now(), c.StartTime, c.EndTime)
	return &gate, nil
}

// Update edits a contest under its row lock. Changing problem_count
// regenerates the id sequence and keeps existing problems by id; dropping a
// problem that already has submissions is refused.
func (s *ContestService) Update(ctx context.Context, username, contestID string, req UpdateContestRequest) (*ContestView, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}

	var updated *model.Contest
	var droppedImageKeys []string
	err = s.contestRepo.WithContestLock(ctx, contestID, func(tx *sql.Tx) error {
		c, err := s.contestRepo.FindByID(ctx, tx, contestID)
		if err != nil {
			return err
		}
		if !c.CanManage(user) {
			return fmt.Errorf("not a manager of this contest: %w", common.ErrForbidden)
		}
		if req.Managers != nil && !canAppointManagers(user, c) {
			return fmt.Errorf("only managers can change managers: %w", common.ErrForbidden)
		}
		oldCount := c.ProblemCount

		if err := s.applyUpdate(ctx, c, req); err != nil {
			return err
		}
		if err := validateContest(c); err != nil {
			return err
		}

		switch {
		case c.ProblemCount < oldCount:
			ids := model.GenerateProblemIDs(oldCount)[c.ProblemCount:]
			n, err := s.submissionRepo.CountForProblems(ctx, tx, c.ID, ids)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("problems %s already have submissions: %w", strings.Join(ids, ","), common.ErrConflict)
			}
			for _, p := range c.Problems[min(c.ProblemCount, len(c.Problems)):] {
				droppedImageKeys = append(droppedImageKeys, p.ImageKey, p.ExplanationImageKey)
			}
			if err := s.problemRepo.DeleteFrom(ctx, tx, c.ID, c.ProblemCount); err != nil {
				return err
			}
			c.Problems = c.Problems[:min(c.ProblemCount, len(c.Problems))]
		case c.ProblemCount > oldCount:
			for i, pid := range model.GenerateProblemIDs(c.ProblemCount) {
				if _, ok := c.Problem(pid); ok {
					continue
				}
				p := model.Problem{ContestID: c.ID, ID: pid, Score: model.DefaultProblemScore}
				if err := s.problemRepo.Upsert(ctx, tx, &p, i); err != nil {
					return err
				}
				c.Problems = append(c.Problems, p)
			}
		}

		if err := s.contestRepo.Update(ctx, tx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update contest: %w", err)
	}

	s.deleteImages(ctx, droppedImageKeys)
	s.standings.Invalidate(ctx, contestID)
	view := newContestView(updated, user, s.now())
	return &view, nil
}

func (s *ContestService) applyUpdate(ctx context.Context, c *model.Contest, req UpdateContestRequest) error {
	if req.Title != nil {
		c.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.StartTime != nil || req.EndTime != nil {
		startRaw := c.StartTime.Format(time.RFC3339)
		endRaw := c.EndTime.Format(time.RFC3339)
		if req.StartTime != nil {
			startRaw = *req.StartTime
		}
		if req.EndTime != nil {
			endRaw = *req.EndTime
		}
		start, end, err := parseSchedule(startRaw, endRaw)
		if err != nil {
			return err
		}
		c.StartTime, c.EndTime = start, end
	}
	if req.ProblemCount != nil {
		c.ProblemCount = *req.ProblemCount
	}
	if req.SubmissionLimit != nil {
		c.SubmissionLimit = *req.SubmissionLimit
		if c.SubmissionLimit == 0 {
			c.SubmissionLimit = s.defaultLimit
		}
	}
	for role, list := range map[model.ContestRole]*[]string{
		model.ContestRoleManager: req.Managers,
		model.ContestRoleWriter:  req.Writers,
		model.ContestRoleTester:  req.Testers,
	} {
		if list == nil {
			continue
		}
		known, _, err := s.existingUsernames(ctx, *list)
		if err != nil {
			return err
		}
		c.SetRoleMembers(role, known)
	}
	return nil
}

func (s *ContestService) Delete(ctx context.Context, username, contestID string) error {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return fmt.Errorf("only administrators can delete contests: %w", common.ErrForbidden)
	}
	c, err := s.contestRepo.FindByID(ctx, nil, contestID)
	if err != nil {
		return fmt.Errorf("contest %s: %w", contestID, err)
	}
	if err := s.contestRepo.Delete(ctx, contestID); err != nil {
		return fmt.Errorf("failed to delete contest: %w", err)
	}

	var keys []string
	for _, p := range c.Problems {
		keys = append(keys, p.ImageKey, p.ExplanationImageKey)
	}
	s.deleteImages(ctx, keys)
	s.standings.Invalidate(ctx, contestID)
	logger.Info.Printf("Contest %s deleted by %s", contestID, user.Username)
	return nil
}

// canAppointManagers reports whether user may change the manager set of c.
// Writers and testers can manage a contest but not its managers.
func canAppointManagers(user *model.User, c *model.Contest) bool {
	return user.IsAdmin() || slices.Contains(c.Managers, user.Username)
}

// AssignRoles adds existing users to one role set. Only managers and admins
// may grant the manager role.
func (s *ContestService) AssignRoles(ctx context.Context, username, contestID string, req AssignRolesRequest) (*AssignRolesResult, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("role must be manager, writer or tester: %w", common.ErrValidation)
	}
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}
	known, ignored, err := s.existingUsernames(ctx, req.Usernames)
	if err != nil {
		return nil, err
	}

	result := &AssignRolesResult{Role: req.Role, Ignored: ignored}
	err = s.contestRepo.WithContestLock(ctx, contestID, func(tx *sql.Tx) error {
		c, err := s.contestRepo.FindByID(ctx, tx, contestID)
		if err != nil {
			return err
		}
		if !c.CanManage(user) {
			return fmt.Errorf("not a manager of this contest: %w", common.ErrForbidden)
		}
		if req.Role == model.ContestRoleManager && !canAppointManagers(user, c) {
			return fmt.Errorf("only managers can appoint managers: %w", common.ErrForbidden)
		}
		c.SetRoleMembers(req.Role, append(c.RoleMembers(req.Role), known...))
		result.Members = c.RoleMembers(req.Role)
		return s.contestRepo.Update(ctx, tx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign roles: %w", err)
	}
	return result, nil
}

type ReviewResponse struct {
	Review string `json:"review"`
}

// Review is readable by everyone once the contest has ended and by managers at any time.
func (s *ContestService) Review(ctx context.Context, username, contestID string) (*ReviewResponse, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}
	c, err := s.contestRepo.FindByID(ctx, nil, contestID)
	if err != nil {
		return nil, fmt.Errorf("contest %s: %w", contestID, err)
	}
	if rules.NotEnded(s.now(), c.EndTime) && !c.CanManage(user) {
		return nil, fmt.Errorf("the review opens when the contest ends: %w", common.ErrForbidden)
	}
	return &ReviewResponse{Review: c.Review}, nil
}

func (s *ContestService) UpdateReview(ctx context.Context, username, contestID, review string) error {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return err
	}
	return s.contestRepo.WithContestLock(ctx, contestID, func(tx *sql.Tx) error {
		c, err := s.contestRepo.FindByID(ctx, tx, contestID)
		if err != nil {
			return err
		}
		if !c.CanManage(user) {
			return fmt.Errorf("not a manager of this contest: %w", common.ErrForbidden)
		}
		c.Review = review
		return s.contestRepo.Update(ctx, tx, c)
	})
}

func (s *ContestService) deleteImages(ctx context.Context, keys []string) {
	if s.images == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.images.Delete(ctx, key); err != nil {
			logger.Warn.Printf("Failed to delete image %s: %v", key, err)
		}
	}
}
