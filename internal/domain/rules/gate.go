// Package rules holds the contest logic that depends only on its inputs:
// the temporal gate, answer admission and judging, standings and ratings.
package rules

import (
	"fmt"
	"time"
)

// Zone is the canonical contest zone. Stored instants and the current time
// are both converted into it before comparison or display.
var Zone = time.FixedZone("JST", 9*60*60)

// Now returns the current instant in Zone.
func Now() time.Time {
	return time.Now().In(Zone)
}

type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"
)

func HasStarted(now, start time.Time) bool {
	return !now.Before(start)
}

func NotEnded(now, end time.Time) bool {
	return now.Before(end)
}

func IsActive(now, start, end time.Time) bool {
	return HasStarted(now, start) && NotEnded(now, end)
}

// PhaseAt classifies now against [start, end).
func PhaseAt(now, start, end time.Time) Phase {
	switch {
	case !HasStarted(now, start):
		return PhaseNotStarted
	case NotEnded(now, end):
		return PhaseActive
	default:
		return PhaseEnded
	}
}

// Gate is the full set of temporal predicates for one contest at one instant.
type Gate struct {
	Now        time.Time `json:"now"`
	HasStarted bool      `json:"has_started"`
	NotEnded   bool      `json:"not_ended"`
	IsActive   bool      `json:"is_active"`
	Phase      Phase     `json:"phase"`
}

func EvaluateGate(now, start, end time.Time) Gate {
	return Gate{
		Now:        now.In(Zone),
		HasStarted: HasStarted(now, start),
		NotEnded:   NotEnded(now, end),
		IsActive:   IsActive(now, start, end),
		Phase:      PhaseAt(now, start, end),
	}
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseContestTime accepts RFC 3339 instants, or wall-clock times without an
// offset which are read in Zone.
func ParseContestTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(Zone), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, Zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
