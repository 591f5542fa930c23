// Package validate decides whether a proposed event range may be committed.
//
// A Pipeline runs its checks in order and stops at the first failure, so a
// rejecting policy predicate prevents every later check from running.
package validate

import (
	"time"

	"dayview/internal/model"
)

// Reason names the check that failed, or OK.
type Reason int

const (
	OK Reason = iota
	Rejected
	Blocked
	OutOfBounds
	TooShort
)

func (r Reason) String() string {
	switch r {
	case OK:
		return "ok"
	case Rejected:
		return "rejected by policy"
	case Blocked:
		return "overlaps blocked region"
	case OutOfBounds:
		return "outside date bounds"
	case TooShort:
		return "below minimum duration"
	default:
		return "unknown"
	}
}

// Proposal is a candidate range for an event.
type Proposal struct {
	Event  model.CalendarEvent
	Range  model.Range
	Resize bool
}

type Verdict struct {
	Valid  bool
	Reason Reason
}

// Check inspects a proposal and returns OK or the reason it fails.
type Check func(Proposal) Reason

type Pipeline struct {
	checks []Check
}

func New(checks ...Check) Pipeline {
	return Pipeline{checks: checks}
}

func (p Pipeline) Validate(pr Proposal) Verdict {
	for _, c := range p.checks {
		if r := c(pr); r != OK {
			return Verdict{Valid: false, Reason: r}
		}
	}
	return Verdict{Valid: true, Reason: OK}
}

// Predicate is an external accept/reject callback.
type Predicate func(ev model.CalendarEvent, r model.Range) bool

// Policy fails with Rejected when pred returns false. A nil pred accepts.
func Policy(pred Predicate) Check {
	return func(pr Proposal) Reason {
		if pred != nil && !pred(pr.Event, pr.Range) {
			return Rejected
		}
		return OK
	}
}

// Regions fails with Blocked when the proposal overlaps a region that
// blocks interaction.
func Regions(regions []model.TimeRegion) Check {
	return func(pr Proposal) Reason {
		for _, reg := range regions {
			if reg.BlockInteraction && pr.Range.Overlaps(reg.Start, reg.End) {
				return Blocked
			}
		}
		return OK
	}
}

// DateBounds compares calendar dates only. A zero min or max leaves that
// side open.
func DateBounds(min, max time.Time) Check {
	return func(pr Proposal) Reason {
		first := model.DateOf(pr.Range.Start)
		last := pr.Range.LastDay()
		if !min.IsZero() && first.Before(dateIn(min, first.Location())) {
			return OutOfBounds
		}
		if !max.IsZero() && last.After(dateIn(max, last.Location())) {
			return OutOfBounds
		}
		return OK
	}
}

// MinDuration applies to resize proposals only.
func MinDuration(min time.Duration) Check {
	return func(pr Proposal) Reason {
		if pr.Resize && pr.Range.Duration() < min {
			return TooShort
		}
		return OK
	}
}

// MinimumDuration is the shortest span a resize may produce for the given
// slot size: one slot, but never under 15 minutes.
func MinimumDuration(slot time.Duration) time.Duration {
	const floor = 15 * time.Minute
	if slot > floor {
		return slot
	}
	return floor
}

// Standard builds the pipeline in its canonical order: policy, blocked
// regions, date bounds, minimum duration.
func Standard(pred Predicate, regions []model.TimeRegion, min, max time.Time, minDuration time.Duration) Pipeline {
	return New(
		Policy(pred),
		Regions(regions),
		DateBounds(min, max),
		MinDuration(minDuration),
	)
}

// dateIn re-reads d's calendar date as midnight in loc.
func dateIn(d time.Time, loc *time.Location) time.Time {
	y, m, dd := d.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, loc)
}
