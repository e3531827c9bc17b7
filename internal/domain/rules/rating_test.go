package rules

import (
	"testing"
	"time"

	"tohomc/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestDifficulty(t *testing.T) {
	c := rankingContest()
	subs := []model.Submission{
		sub(c, "alice", "A", model.ResultAccepted, time.Minute),
		sub(c, "bob", "A", model.ResultWrongAnswer, time.Minute),
		sub(c, "carol", "B", model.ResultWrongAnswer, time.Minute),
	}
	ratings := map[string]int{"alice": 1000, "bob": 500, "carol": 300}

	// (500*1 + 300*1 + 750*1) / 3 * 2
	assert.Equal(t, 1033, Difficulty(subs, "A", ratings))
	// Nobody answered C: only the non-answerer average of 600 remains.
	assert.Equal(t, 1200, Difficulty(subs, "C", ratings))
}

func TestDifficultyEdges(t *testing.T) {
	c := rankingContest()
	assert.Equal(t, DefaultDifficulty, Difficulty(nil, "A", nil))

	strong := []model.Submission{sub(c, "tourist", "A", model.ResultAccepted, time.Minute)}
	assert.Equal(t, MaxRatingValue, Difficulty(strong, "A", map[string]int{"tourist": 5000}))

	// Unknown ratings fall back to the default of 100.
	assert.Equal(t, 200, Difficulty(strong, "A", nil))
}

func TestDifficultyIgnoresWrongAfterAccept(t *testing.T) {
	c := rankingContest()
	subs := []model.Submission{
		sub(c, "alice", "A", model.ResultWrongAnswer, time.Minute),
		sub(c, "alice", "A", model.ResultAccepted, 2*time.Minute),
	}
	// alice counts as accepted only: 1000 * 1/1 * 2.
	assert.Equal(t, 2000, Difficulty(subs, "A", map[string]int{"alice": 1000}))
}

func TestPerformance(t *testing.T) {
	difficulties := map[string]int{"A": 1033, "B": 600}

	// 1633 * log10(3) / log10(2) + 100
	assert.Equal(t, 2688, Performance([]string{"A", "B"}, difficulties, 1))
	assert.Equal(t, 100, Performance(nil, difficulties, 3))
	// Unknown difficulty counts as 100.
	assert.Equal(t, 200, Performance([]string{"Z"}, difficulties, 1))
	// Capped at the maximum rating.
	assert.Equal(t, MaxRatingValue, Performance([]string{"A", "B"}, map[string]int{"A": 3000, "B": 3000}, 1))
}

func TestNextRating(t *testing.T) {
	assert.Equal(t, 617, NextRating(100, 2688))
	assert.Equal(t, 1260, NextRating(1500, 300))
	// Previous 0 is treated as the default and weak performances as 100.
	assert.Equal(t, 100, NextRating(0, 50))
}

func TestSolvedProblems(t *testing.T) {
	c := rankingContest()
	subs := []model.Submission{
		sub(c, "alice", "B", model.ResultAccepted, time.Minute),
		sub(c, "alice", "A", model.ResultWrongAnswer, 2*time.Minute),
		sub(c, "alice", "A", model.ResultAccepted, 3*time.Minute),
		sub(c, "alice", "B", model.ResultAccepted, 4*time.Minute),
		sub(c, "bob", "A", model.ResultWrongAnswer, time.Minute),
	}
	solved := SolvedProblems(subs)
	assert.Equal(t, []string{"B", "A"}, solved["alice"])
	assert.NotContains(t, solved, "bob")
}
