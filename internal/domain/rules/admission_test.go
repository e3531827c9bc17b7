package rules

import (
	"testing"
	"time"

	"tohomc/internal/common"
	"tohomc/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func admissionContest() *model.Contest {
	start, end := contestWindow()
	c := &model.Contest{
		ID:              "c1",
		StartTime:       start,
		EndTime:         end,
		ProblemCount:    2,
		SubmissionLimit: 2,
		Managers:        []string{"mgr"},
		Writers:         []string{"writer"},
		Problems: []model.Problem{
			{ContestID: "c1", ID: "A", CorrectAnswer: "42"},
			{ContestID: "c1", ID: "B"},
		},
	}
	c.Normalize()
	return c
}

func TestAdmitOrder(t *testing.T) {
	c := admissionContest()
	start, end := c.StartTime, c.EndTime
	during := start.Add(time.Minute)
	after := end.Add(time.Minute)

	player := &model.User{Username: "alice", Role: model.RoleUser}
	manager := &model.User{Username: "mgr", Role: model.RoleUser}
	writer := &model.User{Username: "writer", Role: model.RoleUser}
	admin := &model.User{Username: "root", Role: model.RoleAdmin}

	tests := []struct {
		name    string
		attempt Attempt
		wantErr error
	}{
		{"manager while active", Attempt{Now: during, User: manager, ProblemID: "A", Answer: "1"}, ErrManagerSubmission},
		{"writer while active", Attempt{Now: during, User: writer, ProblemID: "A", Answer: "1"}, ErrManagerSubmission},
		{"site admin while active", Attempt{Now: during, User: admin, ProblemID: "A", Answer: "1"}, ErrManagerSubmission},
		{"manager check precedes unknown problem", Attempt{Now: during, User: manager, ProblemID: "Z", Answer: "x"}, ErrManagerSubmission},
		{"manager after end", Attempt{Now: after, User: manager, ProblemID: "A", Answer: "1"}, nil},
		{"unknown problem", Attempt{Now: during, User: player, ProblemID: "Z", Answer: "1"}, ErrUnknownProblem},
		{"unknown problem precedes limit", Attempt{Now: during, User: player, ProblemID: "Z", Answer: "1", PriorCount: 9}, ErrUnknownProblem},
		{"limit reached", Attempt{Now: during, User: player, ProblemID: "A", Answer: "1", PriorCount: 2}, ErrLimitExceeded},
		{"limit precedes format", Attempt{Now: during, User: player, ProblemID: "A", Answer: "abc", PriorCount: 2}, ErrLimitExceeded},
		{"below limit", Attempt{Now: during, User: player, ProblemID: "A", Answer: "1", PriorCount: 1}, nil},
		{"limit ignored after end", Attempt{Now: after, User: player, ProblemID: "A", Answer: "1", PriorCount: 50}, nil},
		{"limit ignored before start", Attempt{Now: start.Add(-time.Hour), User: player, ProblemID: "A", Answer: "1", PriorCount: 50}, nil},
		{"letters", Attempt{Now: during, User: player, ProblemID: "A", Answer: "12a"}, ErrInvalidAnswer},
		{"negative", Attempt{Now: during, User: player, ProblemID: "A", Answer: "-3"}, ErrInvalidAnswer},
		{"blank", Attempt{Now: during, User: player, ProblemID: "A", Answer: "   "}, ErrInvalidAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.attempt.Contest = c
			_, problem, err := Admit(tt.attempt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, problem)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.attempt.ProblemID, problem.ID)
		})
	}
}

func TestAdmitErrorsMapToStatus(t *testing.T) {
	assert.ErrorIs(t, ErrManagerSubmission, common.ErrForbidden)
	assert.ErrorIs(t, ErrUnknownProblem, common.ErrNotFound)
	assert.ErrorIs(t, ErrLimitExceeded, common.ErrSubmissionLimit)
	assert.ErrorIs(t, ErrInvalidAnswer, common.ErrValidation)
}

func TestAdmitUsesDefaultLimit(t *testing.T) {
	c := admissionContest()
	c.SubmissionLimit = 0
	a := Attempt{Now: c.StartTime, Contest: c, User: &model.User{Username: "alice"}, ProblemID: "A", Answer: "7"}

	a.PriorCount = model.DefaultSubmissionLimit - 1
	_, _, err := Admit(a)
	assert.NoError(t, err)

	a.PriorCount = model.DefaultSubmissionLimit
	_, _, err = Admit(a)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestAdmitTrimsAnswer(t *testing.T) {
	c := admissionContest()
	answer, _, err := Admit(Attempt{Now: c.StartTime, Contest: c, User: &model.User{Username: "alice"}, ProblemID: "A", Answer: "  0042\n"})
	require.NoError(t, err)
	assert.Equal(t, "0042", answer)
}

func TestJudge(t *testing.T) {
	assert.Equal(t, model.ResultAccepted, Judge("42", "42"))
	assert.Equal(t, model.ResultAccepted, Judge("42", " 42 "))
	assert.Equal(t, model.ResultWrongAnswer, Judge("042", "42"))
	assert.Equal(t, model.ResultWrongAnswer, Judge("41", "42"))
	assert.Equal(t, model.ResultUnjudged, Judge("42", ""))
	assert.Equal(t, model.ResultUnjudged, Judge("42", "  "))
}
