package model

type ImageKind string

const (
	ImageKindProblem     ImageKind = "image"
	ImageKindExplanation ImageKind = "explanation_image"
)

func (k ImageKind) Valid() bool {
	return k == ImageKindProblem || k == ImageKindExplanation
}

type Problem struct {
	ContestID           string `json:"contest_id"`
	ID                  string `json:"id"` // "A", "B", ...
	Score               int    `json:"score"`
	Writer              string `json:"writer"`
	Content             string `json:"content"`
	CorrectAnswer       string `json:"correct_answer,omitempty"` // Managers only
	Image               string `json:"image,omitempty"`
	ImageKey            string `json:"-"`
	Explanation         string `json:"explanation,omitempty"`
	ExplanationImage    string `json:"explanation_image,omitempty"`
	ExplanationImageKey string `json:"-"`
	Difficulty          int    `json:"difficulty,omitempty"`
}

// ArchivedProblem is a problem listed in the archive of ended contests.
type ArchivedProblem struct {
	Problem
	ContestTitle string `json:"contest_title"`
}
