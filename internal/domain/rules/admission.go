package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"
)

var answerPattern = regexp.MustCompile(`^[0-9]+$`)

var (
	ErrManagerSubmission = fmt.Errorf("contest staff cannot submit while the contest is running: %w", common.ErrForbidden)
	ErrUnknownProblem    = fmt.Errorf("problem does not exist in this contest: %w", common.ErrNotFound)
	ErrLimitExceeded     = fmt.Errorf("submission limit reached for this problem: %w", common.ErrSubmissionLimit)
	ErrInvalidAnswer     = fmt.Errorf("answer must be a non-negative integer written in digits: %w", common.ErrValidation)
)

// Attempt is a submission request after the caller has counted the user's
// prior in-window submissions to the same problem.
type Attempt struct {
	Now        time.Time
	Contest    *model.Contest
	User       *model.User
	ProblemID  string
	Answer     string
	PriorCount int
}

// Admit runs the admission checks in order and returns the trimmed answer
// and the problem it targets. The first failing check wins.
func Admit(a Attempt) (string, *model.Problem, error) {
	c := a.Contest
	active := IsActive(a.Now, c.StartTime, c.EndTime)

	if active && c.CanManage(a.User) {
		return "", nil, ErrManagerSubmission
	}
	problem, ok := c.Problem(a.ProblemID)
	if !ok {
		return "", nil, ErrUnknownProblem
	}
	limit := c.SubmissionLimit
	if limit <= 0 {
		limit = model.DefaultSubmissionLimit
	}
	if active && a.PriorCount >= limit {
		return "", nil, ErrLimitExceeded
	}
	answer, err := NormalizeAnswer(a.Answer)
	if err != nil {
		return "", nil, err
	}
	return answer, problem, nil
}

// NormalizeAnswer trims surrounding whitespace and checks the digits-only format.
func NormalizeAnswer(raw string) (string, error) {
	answer := strings.TrimSpace(raw)
	if !answerPattern.MatchString(answer) {
		return "", ErrInvalidAnswer
	}
	return answer, nil
}

// Judge compares answers as exact strings after trimming, so "007" does not match "7".
func Judge(answer, correct string) model.SubmissionResult {
	correct = strings.TrimSpace(correct)
	if correct == "" {
		return model.ResultUnjudged
	}
	if strings.TrimSpace(answer) == correct {
		return model.ResultAccepted
	}
	return model.ResultWrongAnswer
}
