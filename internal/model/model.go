package model

import "time"

// CalendarEvent is a single event as held by the event store.
//
// All-day events span whole days: Start is a local midnight and End is the
// midnight after the last covered day.
type CalendarEvent struct {
	ID    string
	Title string

	Start  time.Time
	End    time.Time
	AllDay bool

	// Color is an opaque display hint (e.g. "#3366ff"); the engine never reads it.
	Color string

	// RecurrenceRule is an RFC 5545 RRULE value (without the "RRULE:" prefix).
	RecurrenceRule string
	// ExDates are occurrence starts removed from the series.
	ExDates []time.Time

	// SeriesID and RecurrenceID are set on a detached occurrence of a
	// recurring series: the series' ID and the original start of the
	// occurrence this event replaces.
	SeriesID     string
	RecurrenceID *time.Time

	// Source records where the event was imported from (ICS source ID);
	// empty for events created locally.
	Source string
}

// Range returns the event's bounds as a Range.
func (e CalendarEvent) Range() Range {
	return Range{Start: e.Start, End: e.End, AllDay: e.AllDay}
}

// Recurring reports whether the event is a recurring series master or an
// expanded occurrence of one.
func (e CalendarEvent) Recurring() bool {
	return e.RecurrenceRule != "" || e.SeriesID != ""
}

// WithRange returns a copy of e moved to r.
func (e CalendarEvent) WithRange(r Range) CalendarEvent {
	e.Start = r.Start
	e.End = r.End
	e.AllDay = r.AllDay
	return e
}

// TimeRegion is a span of the timeline with special meaning. Regions with
// BlockInteraction set reject any proposal that overlaps them.
type TimeRegion struct {
	Start            time.Time
	End              time.Time
	BlockInteraction bool
}

// Range is a half-open time span [Start, End).
type Range struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

func (r Range) Duration() time.Duration { return r.End.Sub(r.Start) }

// Overlaps reports whether r and [start, end) share any instant.
func (r Range) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && start.Before(r.End)
}

// LastDay returns the calendar date holding the final instant of r.
func (r Range) LastDay() time.Time {
	last := r.End
	if r.End.After(r.Start) {
		last = r.End.Add(-time.Nanosecond)
	}
	return DateOf(last)
}

// SpansDays reports whether r covers more than one calendar date.
func (r Range) SpansDays() bool {
	return !DateOf(r.Start).Equal(r.LastDay())
}

func (r Range) Equal(o Range) bool {
	return r.AllDay == o.AllDay && r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// ColumnAssignment places one timed event within its overlap cluster.
// Column is always < TotalColumns.
type ColumnAssignment struct {
	Event        CalendarEvent
	Column       int
	TotalColumns int
}

// DateOf truncates t to local midnight of its own calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar date, each in
// its own location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
