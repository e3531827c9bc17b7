package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
	"tohomc/internal/domain/repository"
	"tohomc/internal/domain/rules"
	"tohomc/internal/platform/logger"
)

type ProblemService struct {
	contestRepo   repository.ContestRepository
	problemRepo   repository.ProblemRepository
	userRepo      repository.UserRepository
	standings     *StandingsService
	images        ImageStore
	maxImageBytes int64
	now           Clock
}

func NewProblemService(
	contestRepo repository.ContestRepository,
	problemRepo repository.ProblemRepository,
	userRepo repository.UserRepository,
	standings *StandingsService,
	images ImageStore,
	maxImageBytes int64,
) *ProblemService {
	return &ProblemService{
		contestRepo:   contestRepo,
		problemRepo:   problemRepo,
		userRepo:      userRepo,
		standings:     standings,
		images:        images,
		maxImageBytes: maxImageBytes,
		now:           rules.Now,
	}
}

// UpdateProblemRequest replaces the editable fields of a problem. A score of
// zero or less resets it to the default.
type UpdateProblemRequest struct {
	Score         int    `json:"score"`
	Writer        string `json:"writer"`
	Content       string `json:"content"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
}

type ExplanationResponse struct {
	ProblemID        string `json:"problem_id"`
	Explanation      string `json:"explanation"`
	ExplanationImage string `json:"explanation_image,omitempty"`
}

func problemPosition(problemID string) int {
	if len(problemID) != 1 || problemID[0] < 'A' || problemID[0] > 'Z' {
		return -1
	}
	return int(problemID[0] - 'A')
}

func (s *ProblemService) load(ctx context.Context, username, contestID string) (*model.User, *model.Contest, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.contestRepo.FindByID(ctx, nil, contestID)
	if err != nil {
		return nil, nil, fmt.Errorf("contest %s: %w", contestID, err)
	}
	return user, c, nil
}

// Get returns one problem. Statements stay hidden from non-managers until
// the contest starts.
func (s *ProblemService) Get(ctx context.Context, username, contestID, problemID string) (*model.Problem, error) {
	user, c, err := s.load(ctx, username, contestID)
	if err != nil {
		return nil, err
	}
	p, ok := c.Problem(problemID)
	if !ok {
		return nil, fmt.Errorf("problem %s: %w", problemID, common.ErrNotFound)
	}
	if c.CanManage(user) {
		out := *p
		return &out, nil
	}
	gate := rules.EvaluateGate(s.now(), c.StartTime, c.EndTime)
	if !gate.HasStarted {
		return nil, fmt.Errorf("the contest has not started yet: %w", common.ErrForbidden)
	}
	out := redactProblem(*p, gate)
	return &out, nil
}

func (s *ProblemService) Update(ctx context.Context, username, contestID, problemID string, req UpdateProblemRequest) (*model.Problem, error) {
	user, err := resolveUser(ctx, s.userRepo, username)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.CorrectAnswer) != "" {
		if _, err := rules.NormalizeAnswer(req.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("correct_answer: %w", err)
		}
	}

	var updated model.Problem
	err = s.contestRepo.WithContestLock(ctx, contestID, func(tx *sql.Tx) error {
		c, err := s.contestRepo.FindByID(ctx, tx, contestID)
		if err != nil {
			return err
		}
		if !c.CanManage(user) {
			return fmt.Errorf("not a manager of this contest: %w", common.ErrForbidden)
		}
		p, ok := c.Problem(problemID)
		if !ok {
			return fmt.Errorf("problem %s: %w", problemID, common.ErrNotFound)
		}
		p.Score = req.Score
		if p.Score <= 0 {
			p.Score = model.DefaultProblemScore
		}
		p.Writer = strings.TrimSpace(req.Writer)
		p.Content = req.Content
		p.CorrectAnswer = strings.TrimSpace(req.CorrectAnswer)
		p.Explanation = req.Explanation
		if err := s.problemRepo.Upsert(ctx, tx, p, problemPosition(p.ID)); err != nil {
			return err
		}
		updated = *p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update problem: %w", err)
	}
	s.standings.Invalidate(ctx, contestID)
	return &updated, nil
}

// Explanation is open to everyone after the contest ends and to managers at any time.
func (s *ProblemService) Explanation(ctx context.Context, username, contestID, problemID string) (*ExplanationResponse, error) {
	user, c, err := s.load(ctx, username, contestID)
	if err != nil {
		return nil, err
	}
	p, ok := c.Problem(problemID)
	if !ok {
		return nil, fmt.Errorf("problem %s: %w", problemID, common.ErrNotFound)
	}
	if rules.NotEnded(s.now(), c.EndTime) && !c.CanManage(user) {
		return nil, fmt.Errorf("explanations open when the contest ends: %w", common.ErrForbidden)
	}
	return &ExplanationResponse{ProblemID: p.ID, Explanation: p.Explanation, ExplanationImage: p.ExplanationImage}, nil
}

// ImageKey names the stored object for one upload.
func ImageKey(contestSlug, problemID string, kind model.ImageKind, unixNano int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("contests/%s/%s_%s_%d%s", contestSlug, problemID, kind, unixNano, ext)
}

func (s *ProblemService) checkImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image is empty: %w", common.ErrValidation)
	}
	if s.maxImageBytes > 0 && int64(len(data)) > s.maxImageBytes {
		return "", fmt.Errorf("image exceeds %d bytes: %w", s.maxImageBytes, common.ErrValidation)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unsupported content type %s: %w", contentType, common.ErrValidation)
	}
	return contentType, nil
}

// UploadImage stores a problem or explanation image and replaces the previous one.
func (s *ProblemService) UploadImage(ctx context.Context, username, contestID, problemID string, kind model.ImageKind, filename string, data []byte) (*model.Problem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown image kind %q: %w", kind, common.ErrValidation)
	}
	if s.images == nil {
		return nil, fmt.Errorf("image storage is not configured: %w", common.ErrServiceUnavailable)
	}
	contentType, err := s.checkImage(data)
	if err != nil {
		return nil, err
	}
	user, c, err := s.load(ctx, username, contestID)
	if err != nil {
		return nil, err
	}
	if !c.CanManage(user) {
		return nil, fmt.Errorf("not a manager of this contest: %w", common.ErrForbidden)
	}
	if _, ok := c.Problem(problemID); !ok {
		return nil, fmt.Errorf("problem %s: %w", problemID, common.ErrNotFound)
	}

	key := ImageKey(c.Slug, problemID, kind, s.now().UnixNano(), filename)
	url, err := s.images.Upload(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	updated, oldKey, err := s.swapImage(ctx, contestID, problemID, kind, url, key)
	if err != nil {
		if delErr := s.images.Delete(ctx, key); delErr != nil {
			logger.Warn.Printf("Failed to clean up orphaned image %s: %v", key, delErr)
		}
		return nil, err
	}
	s.dropObject(ctx, oldKey)
	return updated, nil
}

func (s *ProblemService) RemoveImage(ctx context.Context, username, contestID, problemID string, kind model.ImageKind) (*model.Problem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown image kind %q: %w", kind, common.ErrValidation)
	}
	user, c, err := s.load(ctx, username, contestID)
	if err != nil {
		return nil, err
	}
	if !c.CanManage(user) {
		return nil, fmt.Errorf("not a manager of this contest: %w", common.ErrForbidden)
	}
	updated, oldKey, err := s.swapImage(ctx, contestID, problemID, kind, "", "")
	if err != nil {
		return nil, err
	}
	s.dropObject(ctx, oldKey)
	return updated, nil
}

// swapImage records the new image under the contest lock and returns the key it replaced.
func (s *ProblemService) swapImage(ctx context.Context, contestID, problemID string, kind model.ImageKind, url, key string) (*model.Problem, string, error) {
	var updated model.Problem
	var oldKey string
	err := s.contestRepo.WithContestLock(ctx, contestID, func(tx *sql.Tx) error {
		p, err := s.problemRepo.FindByID(ctx, tx, contestID, problemID)
		if err != nil {
			return err
		}
		switch kind {
		case model.ImageKindProblem:
			oldKey = p.ImageKey
			p.Image, p.ImageKey = url, key
		case model.ImageKindExplanation:
			oldKey = p.ExplanationImageKey
			p.ExplanationImage, p.ExplanationImageKey = url, key
		}
		if err := s.problemRepo.UpdateImage(ctx, tx, contestID, problemID, kind, url, key); err != nil {
			return err
		}
		updated = *p
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to update image: %w", err)
	}
	return &updated, oldKey, nil
}

func (s *ProblemService) dropObject(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		logger.Warn.Printf("Failed to delete replaced image %s: %v", key, err)
	}
}

// Archive lists the problems of every ended contest without their answers.
func (s *ProblemService) Archive(ctx context.Context) ([]model.ArchivedProblem, error) {
	archive, err := s.problemRepo.ListArchive(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	for i := range archive {
		archive[i].CorrectAnswer = ""
	}
	return archive, nil
}
