package model

import (
	"slices"
	"time"
)

const (
	DefaultProblemScore    = 100
	DefaultSubmissionLimit = 10
	MaxProblemCount        = 26
)

type ContestRole string

const (
	ContestRoleManager ContestRole = "manager"
	ContestRoleWriter  ContestRole = "writer"
	ContestRoleTester  ContestRole = "tester"
)

func (r ContestRole) Valid() bool {
	switch r {
	case ContestRoleManager, ContestRoleWriter, ContestRoleTester:
		return true
	}
	return false
}

type Contest struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	ProblemCount    int       `json:"problem_count"`
	SubmissionLimit int       `json:"submission_limit"`
	Review          string    `json:"review,omitempty"`
	CreatedBy       string    `json:"created_by"`
	Managers        []string  `json:"managers"`
	Writers         []string  `json:"writers"`
	Testers         []string  `json:"testers"`
	Problems        []Problem `json:"problems"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Normalize fills optional collections and limits so callers never see nil or zero values.
func (c *Contest) Normalize() {
	if c.Managers == nil {
		c.Managers = []string{}
	}
	if c.Writers == nil {
		c.Writers = []string{}
	}
	if c.Testers == nil {
		c.Testers = []string{}
	}
	if c.Problems == nil {
		c.Problems = []Problem{}
	}
	if c.SubmissionLimit <= 0 {
		c.SubmissionLimit = DefaultSubmissionLimit
	}
	c.Managers = UniqueUsernames(c.Managers)
	c.Writers = UniqueUsernames(c.Writers)
	c.Testers = UniqueUsernames(c.Testers)
	for i := range c.Problems {
		if c.Problems[i].Score == 0 {
			c.Problems[i].Score = DefaultProblemScore
		}
	}
}

// CanManage reports whether user may administer the contest: site admins and
// every manager, writer or tester of it.
func (c *Contest) CanManage(user *User) bool {
	if user == nil || user.Username == "" {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return slices.Contains(c.Managers, user.Username) ||
		slices.Contains(c.Writers, user.Username) ||
		slices.Contains(c.Testers, user.Username)
}

func (c *Contest) Problem(id string) (*Problem, bool) {
	for i := range c.Problems {
		if c.Problems[i].ID == id {
			return &c.Problems[i], true
		}
	}
	return nil, false
}

// ProblemScores maps problem id to its current score.
func (c *Contest) ProblemScores() map[string]int {
	scores := make(map[string]int, len(c.Problems))
	for _, p := range c.Problems {
		score := p.Score
		if score == 0 {
			score = DefaultProblemScore
		}
		scores[p.ID] = score
	}
	return scores
}

// RoleMembers returns the username set for role.
func (c *Contest) RoleMembers(role ContestRole) []string {
	switch role {
	case ContestRoleManager:
		return c.Managers
	case ContestRoleWriter:
		return c.Writers
	case ContestRoleTester:
		return c.Testers
	}
	return nil
}

func (c *Contest) SetRoleMembers(role ContestRole, usernames []string) {
	usernames = UniqueUsernames(usernames)
	switch role {
	case ContestRoleManager:
		c.Managers = usernames
	case ContestRoleWriter:
		c.Writers = usernames
	case ContestRoleTester:
		c.Testers = usernames
	}
}

// GenerateProblemIDs returns "A", "B", ... for count problems.
func GenerateProblemIDs(count int) []string {
	if count < 0 {
		count = 0
	}
	ids := make([]string, count)
	for i := range ids {
		ids[i] = string(rune('A' + i))
	}
	return ids
}

// UniqueUsernames drops blanks and duplicates, keeping first-seen order.
func UniqueUsernames(usernames []string) []string {
	out := make([]string, 0, len(usernames))
	seen := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
