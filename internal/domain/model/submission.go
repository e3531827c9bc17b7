package model

import "time"

type SubmissionResult string

const (
	ResultAccepted    SubmissionResult = "CA"
	ResultWrongAnswer SubmissionResult = "WA"
	ResultUnjudged    SubmissionResult = "UNJUDGED" // No correct answer configured for the problem
)

type Submission struct {
	ID          string           `json:"id"`
	ContestID   string           `json:"contest_id"`
	ProblemID   string           `json:"problem_id"`
	Username    string           `json:"username"`
	Result      SubmissionResult `json:"result"`
	Answer      string           `json:"answer"`
	SubmittedAt time.Time        `json:"submitted_at"`
}
