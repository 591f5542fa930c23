// Package layout assigns side-by-side columns to concurrent timed events.
package layout

import (
	"sort"
	"time"

	"dayview/internal/model"
)

// Columns places every event in the lowest column that is free at its
// start. Events are grouped into overlap clusters: an event joins the
// running cluster when it starts before the latest end seen so far. Every
// event in a cluster reports the cluster's total column count, so a
// column's width stays fixed once assigned.
//
// The result is sorted by start (longer first on ties, then ID) and does not
// depend on the input order.
func Columns(events []model.CalendarEvent) []model.ColumnAssignment {
	sorted := make([]model.CalendarEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		da, db := span(a), span(b)
		if da != db {
			return da > db
		}
		return a.ID < b.ID
	})

	out := make([]model.ColumnAssignment, 0, len(sorted))

	var (
		clusterStart int
		clusterEnd   time.Time
		columnEnds   []time.Time // end of the event currently holding each column
	)

	closeCluster := func(upTo int) {
		total := len(columnEnds)
		for i := clusterStart; i < upTo; i++ {
			out[i].TotalColumns = total
		}
	}

	for i, ev := range sorted {
		end := effectiveEnd(ev)
		if i > 0 && !ev.Start.Before(clusterEnd) {
			closeCluster(i)
			clusterStart = i
			columnEnds = columnEnds[:0]
		}
		if i == clusterStart || end.After(clusterEnd) {
			clusterEnd = end
		}

		col := -1
		for c, colEnd := range columnEnds {
			if !colEnd.After(ev.Start) {
				col = c
				break
			}
		}
		if col == -1 {
			col = len(columnEnds)
			columnEnds = append(columnEnds, end)
		} else {
			columnEnds[col] = end
		}

		out = append(out, model.ColumnAssignment{Event: ev, Column: col})
	}
	closeCluster(len(sorted))

	return out
}

// TimedOn returns the non all-day events intersecting day's calendar date.
func TimedOn(events []model.CalendarEvent, day time.Time) []model.CalendarEvent {
	start := model.DateOf(day)
	end := start.AddDate(0, 0, 1)
	var out []model.CalendarEvent
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		if ev.Range().Overlaps(start, end) || (ev.Start.Equal(ev.End) && !ev.Start.Before(start) && ev.Start.Before(end)) {
			out = append(out, ev)
		}
	}
	return out
}

func span(ev model.CalendarEvent) time.Duration {
	return effectiveEnd(ev).Sub(ev.Start)
}

// effectiveEnd treats an inverted range as zero length.
func effectiveEnd(ev model.CalendarEvent) time.Time {
	if ev.End.Before(ev.Start) {
		return ev.Start
	}
	return ev.End
}
