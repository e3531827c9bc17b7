package rules

import (
	"math"

	"tohomc/internal/domain/model"
)

const (
	MinRatingValue        = 100
	MaxRatingValue        = 3000
	DefaultDifficulty     = 200
	unknownDifficulty     = 100
	ratingCarryWeight     = 0.8
	performanceWeight     = 0.2
	basePerformanceBonus  = 100
	difficultyScaleFactor = 2
)

func clampFloor(v float64) int {
	return int(math.Floor(math.Max(MinRatingValue, math.Min(MaxRatingValue, v))))
}

func averageRating(usernames map[string]struct{}, ratings map[string]int) float64 {
	if len(usernames) == 0 {
		return model.DefaultRating
	}
	total := 0
	for u := range usernames {
		r, ok := ratings[u]
		if !ok || r == 0 {
			r = model.DefaultRating
		}
		total += r
	}
	return float64(total) / float64(len(usernames))
}

// Difficulty estimates how hard problemID was from who attempted it and how
// they fared, weighted by the attempters' ratings. Participants are every
// user with at least one submission in subs.
func Difficulty(subs []model.Submission, problemID string, ratings map[string]int) int {
	participants := make(map[string]struct{})
	answerers := make(map[string]struct{})
	accepted := make(map[string]struct{})
	for _, s := range subs {
		participants[s.Username] = struct{}{}
		if s.ProblemID != problemID {
			continue
		}
		answerers[s.Username] = struct{}{}
		if s.Result == model.ResultAccepted {
			accepted[s.Username] = struct{}{}
		}
	}
	wrong := make(map[string]struct{})
	for _, s := range subs {
		if s.ProblemID != problemID || s.Result != model.ResultWrongAnswer {
			continue
		}
		if _, ok := accepted[s.Username]; !ok {
			wrong[s.Username] = struct{}{}
		}
	}
	nonAnswerers := make(map[string]struct{})
	for u := range participants {
		if _, ok := answerers[u]; !ok {
			nonAnswerers[u] = struct{}{}
		}
	}

	p := float64(len(participants))
	if p == 0 {
		return DefaultDifficulty
	}
	sr := averageRating(answerers, ratings)
	nsr := averageRating(nonAnswerers, ratings)
	wr := averageRating(wrong, ratings)

	d := wr*float64(len(wrong))/p +
		nsr*(p-float64(len(answerers)))/p +
		sr*float64(len(accepted))/p
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return DefaultDifficulty
	}
	return clampFloor(d * difficultyScaleFactor)
}

// Performance scores one contest result. solved lists the distinct problems
// the user accepted and rank is their 1-based standings position.
func Performance(solved []string, difficulties map[string]int, rank int) int {
	total := 0
	for _, id := range solved {
		d, ok := difficulties[id]
		if !ok || d == 0 {
			d = unknownDifficulty
		}
		total += d
	}
	if len(solved) == 0 {
		total = unknownDifficulty
	}
	perf := float64(total)*math.Log10(1+float64(len(solved)))/math.Log10(float64(rank)+1) + basePerformanceBonus
	if math.IsNaN(perf) || math.IsInf(perf, 0) {
		return MinRatingValue
	}
	return clampFloor(perf)
}

// NextRating blends the previous rating with a contest performance.
func NextRating(previous, performance int) int {
	if previous == 0 {
		previous = model.DefaultRating
	}
	perf := math.Max(MinRatingValue, float64(performance))
	return int(math.Floor(float64(previous)*ratingCarryWeight + perf*performanceWeight))
}

// SolvedProblems lists, per user, the problems with at least one accepted
// submission in subs, in first-accept order.
func SolvedProblems(subs []model.Submission) map[string][]string {
	solved := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	for _, s := range subs {
		if s.Result != model.ResultAccepted {
			continue
		}
		if seen[s.Username] == nil {
			seen[s.Username] = make(map[string]struct{})
		}
		if _, ok := seen[s.Username][s.ProblemID]; ok {
			continue
		}
		seen[s.Username][s.ProblemID] = struct{}{}
		solved[s.Username] = append(solved[s.Username], s.ProblemID)
	}
	return solved
}
