// Package snap rounds a raw proposed time to a nearby meaningful value.
//
// Candidates are tried in a fixed order and the first one that applies
// wins; results are never blended:
//
//  1. the nearest boundary of another event within Range
//  2. the current time, if within Range (clock time only, date kept)
//  3. the time slot at or before the raw time
//  4. the raw time unchanged
package snap

import (
	"time"

	"dayview/internal/model"
	"dayview/internal/timeline"
)

// Source reports which rule produced a Result.
type Source int

const (
	None Source = iota
	Boundary
	Now
	Slot
)

func (s Source) String() string {
	switch s {
	case Boundary:
		return "boundary"
	case Now:
		return "now"
	case Slot:
		return "slot"
	default:
		return "none"
	}
}

// Options selects the rules in effect.
type Options struct {
	ToTimeSlots   bool
	ToOtherEvents bool
	ToCurrentTime bool

	// Range is the maximum distance for boundary and current-time snapping.
	Range time.Duration
	// SlotDuration is the slot granularity, counted from midnight.
	SlotDuration time.Duration
}

type Result struct {
	Time   time.Time
	Source Source
}

// Resolve applies the snapping rules to raw.
func Resolve(raw time.Time, opts Options, boundaries []time.Time, now time.Time) Result {
	if opts.ToOtherEvents && opts.Range > 0 {
		if b, ok := nearest(raw, boundaries, opts.Range); ok {
			return Result{Time: b, Source: Boundary}
		}
	}
	if opts.ToCurrentTime && opts.Range > 0 && !now.IsZero() {
		h, m, _ := now.Clock()
		y, mo, d := raw.Date()
		candidate := time.Date(y, mo, d, h, m, 0, 0, raw.Location())
		if abs(candidate.Sub(raw)) <= opts.Range {
			return Result{Time: candidate, Source: Now}
		}
	}
	if opts.ToTimeSlots && opts.SlotDuration > 0 {
		return Result{Time: FloorToSlot(raw, opts.SlotDuration), Source: Slot}
	}
	return Result{Time: raw, Source: None}
}

// FloorToSlot floors t's wall-clock time of day to a multiple of slot.
func FloorToSlot(t time.Time, slot time.Duration) time.Time {
	if slot <= 0 {
		return t
	}
	tod := timeline.SinceMidnight(t)
	return timeline.AtClock(t, tod-tod%slot)
}

// Boundaries lists the start and end of every event except the one with
// excludeID. All-day events contribute nothing.
func Boundaries(events []model.CalendarEvent, excludeID string) []time.Time {
	out := make([]time.Time, 0, 2*len(events))
	for _, ev := range events {
		if ev.ID == excludeID || ev.AllDay {
			continue
		}
		out = append(out, ev.Start, ev.End)
	}
	return out
}

// nearest returns the boundary closest to raw within limit. Ties resolve to
// the earlier boundary.
func nearest(raw time.Time, boundaries []time.Time, limit time.Duration) (time.Time, bool) {
	var (
		best     time.Time
		bestDist time.Duration
		found    bool
	)
	for _, b := range boundaries {
		d := abs(b.Sub(raw))
		if d > limit {
			continue
		}
		if !found || d < bestDist || (d == bestDist && b.Before(best)) {
			best, bestDist, found = b, d, true
		}
	}
	return best, found
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
