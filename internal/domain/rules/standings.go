package rules

import (
	"sort"
	"time"

	"tohomc/internal/domain/model"
)

// PenaltyPerWrong is added to the tie-break time for every wrong answer
// submitted before a problem was accepted.
const PenaltyPerWrong = 300 * time.Second

// WithinContest returns the submissions timestamped at or before end, sorted
// by time. Submissions sharing a timestamp keep their log order.
func WithinContest(subs []model.Submission, end time.Time) []model.Submission {
	out := make([]model.Submission, 0, len(subs))
	for _, s := range subs {
		if s.SubmittedAt.After(end) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// EffectiveRecords picks one submission per user and problem: the first
// accepted one if any exists, otherwise the last one. subs must be sorted.
func EffectiveRecords(subs []model.Submission) map[string]map[string]model.Submission {
	records := make(map[string]map[string]model.Submission)
	for _, s := range subs {
		byProblem, ok := records[s.Username]
		if !ok {
			byProblem = make(map[string]model.Submission)
			records[s.Username] = byProblem
		}
		existing, seen := byProblem[s.ProblemID]
		if !seen || existing.Result != model.ResultAccepted {
			byProblem[s.ProblemID] = s
		}
	}
	return records
}

// ComputeStandings builds the ranked table for c from its submission log.
// Submissions after the end never count. Problem scores are read from c as
// they are now.
func ComputeStandings(c *model.Contest, subs []model.Submission, now time.Time) *model.Standings {
	problemIDs := model.GenerateProblemIDs(c.ProblemCount)
	scores := c.ProblemScores()
	counted := WithinContest(subs, c.EndTime)
	effective := EffectiveRecords(counted)

	firstAccepts := make(map[string]*model.FirstAccept, len(problemIDs))
	for _, id := range problemIDs {
		firstAccepts[id] = nil
	}

	users := make(map[string]*model.StandingsEntry)
	var order []string
	for _, s := range counted {
		entry, ok := users[s.Username]
		if !ok {
			entry = &model.StandingsEntry{
				Username: s.Username,
				Problems: make(map[string]*model.ProblemStat),
			}
			users[s.Username] = entry
			order = append(order, s.Username)
		}
		stat, ok := entry.Problems[s.ProblemID]
		if !ok {
			stat = &model.ProblemStat{Status: model.ProblemStatusNone}
			entry.Problems[s.ProblemID] = stat
		}

		elapsed := s.SubmittedAt.Sub(c.StartTime).Seconds()
		switch {
		case s.Result == model.ResultAccepted && stat.Status != model.ProblemStatusAccepted:
			stat.Status = model.ProblemStatusAccepted
			at := elapsed
			stat.AcceptedAt = &at
			entry.Score += scores[s.ProblemID]
			if elapsed > entry.LastAccepted {
				entry.LastAccepted = elapsed
			}
			if fa := firstAccepts[s.ProblemID]; fa == nil || s.SubmittedAt.Before(fa.SubmittedAt) {
				firstAccepts[s.ProblemID] = &model.FirstAccept{
					Username:    s.Username,
					Elapsed:     elapsed,
					SubmittedAt: s.SubmittedAt.In(Zone),
				}
			}
		case s.Result == model.ResultWrongAnswer && stat.Status != model.ProblemStatusAccepted:
			stat.WrongBeforeAccept++
			stat.WrongTotal++
			stat.Status = model.ProblemStatusAttempted
		case s.Result == model.ResultWrongAnswer:
			stat.WrongTotal++
		}
	}

	entries := make([]model.StandingsEntry, 0, len(order))
	for _, username := range order {
		e := users[username]
		for problemID, stat := range e.Problems {
			if stat.Status == model.ProblemStatusAccepted {
				e.WrongBeforeAccept += stat.WrongBeforeAccept
			}
			if rec, ok := effective[username][problemID]; ok {
				stat.Effective = rec.Result
			}
		}
		e.Penalty = (time.Duration(e.WrongBeforeAccept) * PenaltyPerWrong).Seconds()
		e.TieBreak = e.LastAccepted + e.Penalty
		entries = append(entries, *e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].TieBreak < entries[j].TieBreak
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return &model.Standings{
		ContestID:       c.ID,
		ProblemIDs:      problemIDs,
		Entries:         entries,
		FirstAccepts:    firstAccepts,
		SubmissionCount: len(subs),
		ComputedAt:      now.In(Zone),
	}
}
