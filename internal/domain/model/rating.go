package model

import "time"

type ContestHistory struct {
	Username     string    `json:"username"`
	ContestID    string    `json:"contest_id"`
	ContestTitle string    `json:"contest_title"`
	Rank         int       `json:"rank"`
	Performance  int       `json:"performance"`
	RatingBefore int       `json:"rating_before"`
	RatingAfter  int       `json:"rating_after"`
	EndTime      time.Time `json:"end_time"`
}

type Performance struct {
	Username    string `json:"username"`
	Performance int    `json:"performance"`
}

// RatingJobPayload is pushed to the rating queue. Recalculate replays every
// ended contest and ignores ContestID.
type RatingJobPayload struct {
	ContestID   string `json:"contest_id,omitempty"`
	Recalculate bool   `json:"recalculate,omitempty"`
}

type UserProfile struct {
	User    *User            `json:"user"`
	History []ContestHistory `json:"history"`
}
