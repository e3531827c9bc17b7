package model

import "time"

type ProblemStatus string

const (
	ProblemStatusNone      ProblemStatus = "none"
	ProblemStatusAttempted ProblemStatus = "WA"
	ProblemStatusAccepted  ProblemStatus = "CA"
)

// ProblemStat is one user's progress on one problem. Times are seconds since contest start.
type ProblemStat struct {
	Status            ProblemStatus    `json:"status"`
	AcceptedAt        *float64         `json:"accepted_at,omitempty"`
	WrongBeforeAccept int              `json:"wrong_before_accept"`
	WrongTotal        int              `json:"wrong_total"`
	Effective         SubmissionResult `json:"effective_result,omitempty"`
}

type StandingsEntry struct {
	Rank              int                     `json:"rank"`
	Username          string                  `json:"username"`
	Score             int                     `json:"score"`
	LastAccepted      float64                 `json:"last_accepted"`
	WrongBeforeAccept int                     `json:"wrong_before_accept"`
	Penalty           float64                 `json:"penalty"`
	TieBreak          float64                 `json:"tie_break"`
	Problems          map[string]*ProblemStat `json:"problems"`
}

type FirstAccept struct {
	Username    string    `json:"username"`
	Elapsed     float64   `json:"elapsed"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Standings struct {
	ContestID       string                  `json:"contest_id"`
	ProblemIDs      []string                `json:"problem_ids"`
	Entries         []StandingsEntry        `json:"entries"`
	FirstAccepts    map[string]*FirstAccept `json:"first_accepts"` // nil value: no first acceptor yet
	// Length of the log these standings were computed from. The log only
	// grows, so a larger count is a newer snapshot.
	SubmissionCount int                     `json:"submission_count"`
	ComputedAt      time.Time               `json:"computed_at"`
}
