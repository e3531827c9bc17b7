package rules

import (
	"testing"
	"time"

	"tohomc/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankingContest() *model.Contest {
	start, end := contestWindow()
	c := &model.Contest{
		ID:           "c1",
		StartTime:    start,
		EndTime:      end,
		ProblemCount: 3,
		Problems: []model.Problem{
			{ID: "A", Score: 100},
			{ID: "B", Score: 200},
			{ID: "C", Score: 300},
		},
	}
	c.Normalize()
	return c
}

func sub(c *model.Contest, user, problem string, result model.SubmissionResult, elapsed time.Duration) model.Submission {
	return model.Submission{
		ContestID:   c.ID,
		ProblemID:   problem,
		Username:    user,
		Result:      result,
		SubmittedAt: c.StartTime.Add(elapsed),
	}
}

func entryFor(t *testing.T, s *model.Standings, username string) model.StandingsEntry {
	t.Helper()
	for _, e := range s.Entries {
		if e.Username == username {
			return e
		}
	}
	t.Fatalf("no standings entry for %s", username)
	return model.StandingsEntry{}
}

func TestComputeStandings(t *testing.T) {
	c := rankingContest()
	ca, wa := model.ResultAccepted, model.ResultWrongAnswer
	subs := []model.Submission{
		sub(c, "carol", "A", wa, 1*time.Minute),
		sub(c, "bob", "B", wa, 5*time.Minute),
		sub(c, "alice", "A", wa, 10*time.Minute),
		sub(c, "bob", "B", ca, 15*time.Minute),
		sub(c, "alice", "A", ca, 20*time.Minute),
		sub(c, "bob", "A", ca, 25*time.Minute),
		sub(c, "alice", "B", ca, 30*time.Minute),
		sub(c, "alice", "A", wa, 40*time.Minute),
		sub(c, "eve", "A", ca, 100*time.Minute),  // exactly at the end
		sub(c, "dave", "A", ca, 101*time.Minute), // after the end
	}

	s := ComputeStandings(c, subs, c.EndTime)

	require.Len(t, s.Entries, 4)
	assert.Equal(t, []string{"A", "B", "C"}, s.ProblemIDs)

	order := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		order[i] = e.Username
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, []string{"bob", "alice", "eve", "carol"}, order)

	bob := entryFor(t, s, "bob")
	assert.Equal(t, 300, bob.Score)
	assert.Equal(t, 1500.0, bob.LastAccepted)
	assert.Equal(t, 300.0, bob.Penalty)
	assert.Equal(t, 1800.0, bob.TieBreak)

	alice := entryFor(t, s, "alice")
	assert.Equal(t, 300, alice.Score)
	assert.Equal(t, 1800.0, alice.LastAccepted)
	assert.Equal(t, 1, alice.WrongBeforeAccept)
	assert.Equal(t, 2100.0, alice.TieBreak)
	statA := alice.Problems["A"]
	require.NotNil(t, statA)
	assert.Equal(t, model.ProblemStatusAccepted, statA.Status)
	assert.Equal(t, 1, statA.WrongBeforeAccept)
	assert.Equal(t, 2, statA.WrongTotal)
	require.NotNil(t, statA.AcceptedAt)
	assert.Equal(t, 1200.0, *statA.AcceptedAt)
	assert.Equal(t, model.ResultAccepted, statA.Effective)

	eve := entryFor(t, s, "eve")
	assert.Equal(t, 100, eve.Score)
	assert.Equal(t, 6000.0, eve.TieBreak)

	carol := entryFor(t, s, "carol")
	assert.Equal(t, 0, carol.Score)
	assert.Equal(t, 0.0, carol.Penalty)
	assert.Equal(t, 0.0, carol.TieBreak)
	assert.Equal(t, model.ProblemStatusAttempted, carol.Problems["A"].Status)
	assert.Equal(t, model.ResultWrongAnswer, carol.Problems["A"].Effective)

	require.NotNil(t, s.FirstAccepts["A"])
	assert.Equal(t, "alice", s.FirstAccepts["A"].Username)
	assert.Equal(t, 1200.0, s.FirstAccepts["A"].Elapsed)
	require.NotNil(t, s.FirstAccepts["B"])
	assert.Equal(t, "bob", s.FirstAccepts["B"].Username)
	assert.Contains(t, s.FirstAccepts, "C")
	assert.Nil(t, s.FirstAccepts["C"])
}

func TestComputeStandingsUsesCurrentScores(t *testing.T) {
	c := rankingContest()
	subs := []model.Submission{sub(c, "alice", "C", model.ResultAccepted, time.Minute)}

	before := ComputeStandings(c, subs, c.EndTime)
	c.Problems[2].Score = 500
	after := ComputeStandings(c, subs, c.EndTime)

	assert.Equal(t, 300, before.Entries[0].Score)
	assert.Equal(t, 500, after.Entries[0].Score)
}

func TestComputeStandingsTiesKeepLogOrder(t *testing.T) {
	c := rankingContest()
	subs := []model.Submission{
		sub(c, "yuki", "A", model.ResultAccepted, 10*time.Minute),
		sub(c, "xavier", "A", model.ResultAccepted, 10*time.Minute),
	}
	s := ComputeStandings(c, subs, c.EndTime)
	require.Len(t, s.Entries, 2)
	assert.Equal(t, "yuki", s.Entries[0].Username)
	assert.Equal(t, "xavier", s.Entries[1].Username)
	assert.Equal(t, "yuki", s.FirstAccepts["A"].Username)
}

func TestComputeStandingsUnjudgedDoesNotCount(t *testing.T) {
	c := rankingContest()
	subs := []model.Submission{sub(c, "alice", "A", model.ResultUnjudged, time.Minute)}
	s := ComputeStandings(c, subs, c.EndTime)

	require.Len(t, s.Entries, 1)
	e := s.Entries[0]
	assert.Equal(t, 0, e.Score)
	assert.Equal(t, model.ProblemStatusNone, e.Problems["A"].Status)
	assert.Equal(t, model.ResultUnjudged, e.Problems["A"].Effective)
}

func TestComputeStandingsElapsedIsNotClamped(t *testing.T) {
	c := rankingContest()
	subs := []model.Submission{sub(c, "early", "A", model.ResultAccepted, -2*time.Minute)}
	s := ComputeStandings(c, subs, c.EndTime)

	e := s.Entries[0]
	assert.Equal(t, -120.0, *e.Problems["A"].AcceptedAt)
	assert.Equal(t, 0.0, e.LastAccepted)
	assert.Equal(t, -120.0, s.FirstAccepts["A"].Elapsed)
}

func TestComputeStandingsEmptyLog(t *testing.T) {
	c := rankingContest()
	s := ComputeStandings(c, nil, c.EndTime)
	assert.Empty(t, s.Entries)
	assert.NotNil(t, s.Entries)
	assert.Len(t, s.FirstAccepts, 3)
}

func TestEffectiveRecords(t *testing.T) {
	c := rankingContest()
	ca, wa := model.ResultAccepted, model.ResultWrongAnswer
	subs := WithinContest([]model.Submission{
		sub(c, "alice", "A", wa, 1*time.Minute),
		sub(c, "alice", "A", ca, 2*time.Minute),
		sub(c, "alice", "A", wa, 3*time.Minute),
		sub(c, "alice", "B", wa, 1*time.Minute),
		sub(c, "alice", "B", wa, 4*time.Minute),
	}, c.EndTime)

	records := EffectiveRecords(subs)
	assert.Equal(t, ca, records["alice"]["A"].Result)
	assert.Equal(t, c.StartTime.Add(2*time.Minute), records["alice"]["A"].SubmittedAt)
	assert.Equal(t, c.StartTime.Add(4*time.Minute), records["alice"]["B"].SubmittedAt)
}

func TestWithinContestSortsAndCuts(t *testing.T) {
	c := rankingContest()
	first := sub(c, "a", "A", model.ResultWrongAnswer, 5*time.Minute)
	second := sub(c, "b", "A", model.ResultWrongAnswer, 5*time.Minute)
	earlier := sub(c, "c", "A", model.ResultWrongAnswer, time.Minute)
	late := sub(c, "d", "A", model.ResultWrongAnswer, 2*time.Hour)

	got := WithinContest([]model.Submission{first, second, late, earlier}, c.EndTime)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Username)
	assert.Equal(t, "a", got[1].Username)
	assert.Equal(t, "b", got[2].Username)
}
