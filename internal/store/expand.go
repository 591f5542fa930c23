package store

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "dayview/internal/log"
	"dayview/internal/model"
)

// maxOccurrencesPerDay caps expansion of pathological rules such as
// FREQ=SECONDLY.
const maxOccurrencesPerDay = 500

// OccurrenceID names the generated instance of seriesID starting at start.
func OccurrenceID(seriesID string, start time.Time) string {
	return seriesID + "@" + start.UTC().Format("20060102T150405Z")
}

// expandDay turns stored events into the events visible on day: plain
// events and detached occurrences that intersect it, plus generated
// instances of every series minus EXDATEs and detached occurrences.
func expandDay(stored []model.CalendarEvent, day time.Time) []model.CalendarEvent {
	dayStart, dayEnd := dayBounds(day)

	detached := make(map[string]map[int64]bool)
	for _, ev := range stored {
		if ev.SeriesID != "" && ev.RecurrenceID != nil {
			if detached[ev.SeriesID] == nil {
				detached[ev.SeriesID] = make(map[int64]bool)
			}
			detached[ev.SeriesID][ev.RecurrenceID.UnixNano()] = true
		}
	}

	out := make([]model.CalendarEvent, 0)
	for _, ev := range stored {
		if ev.RecurrenceRule != "" && ev.SeriesID == "" {
			out = append(out, expandSeries(ev, dayStart, dayEnd, detached[ev.ID])...)
			continue
		}
		if intersects(ev, dayStart, dayEnd) {
			out = append(out, ev)
		}
	}

	sortEvents(out)
	return out
}

func expandSeries(master model.CalendarEvent, dayStart, dayEnd time.Time, detached map[int64]bool) []model.CalendarEvent {
	r, err := rrule.StrToRRule(master.RecurrenceRule)
	if err != nil {
		appLog.Error("store: failed to parse RRULE", err, "id", master.ID, "rrule", master.RecurrenceRule)
		return nil
	}
	r.DTStart(master.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range master.ExDates {
		set.ExDate(ex.In(master.Start.Location()))
	}

	dur := master.End.Sub(master.Start)
	// An occurrence starting before the day can still reach into it.
	from := dayStart.Add(-dur).In(master.Start.Location())
	to := dayEnd.In(master.Start.Location())

	starts := set.Between(from, to, true)
	if len(starts) > maxOccurrencesPerDay {
		appLog.Warn("store: truncated series expansion", "id", master.ID, "cap", maxOccurrencesPerDay)
		starts = starts[:maxOccurrencesPerDay]
	}

	out := make([]model.CalendarEvent, 0, len(starts))
	for _, s := range starts {
		if detached[s.UnixNano()] {
			continue
		}
		occ := master
		occ.ID = OccurrenceID(master.ID, s)
		occ.SeriesID = master.ID
		start := s
		occ.RecurrenceID = &start
		occ.Start = s
		if master.AllDay {
			occ.End = s.AddDate(0, 0, daysSpanned(master))
		} else {
			occ.End = s.Add(dur)
		}
		occ.ExDates = nil
		if intersects(occ, dayStart, dayEnd) {
			out = append(out, occ)
		}
	}
	return out
}

func daysSpanned(ev model.CalendarEvent) int {
	n := int(model.DateOf(ev.End).Sub(model.DateOf(ev.Start)).Hours()+12) / 24
	if n < 1 {
		n = 1
	}
	return n
}

func intersects(ev model.CalendarEvent, start, end time.Time) bool {
	if ev.Start.Equal(ev.End) {
		return !ev.Start.Before(start) && ev.Start.Before(end)
	}
	return ev.Range().Overlaps(start, end)
}

func sortEvents(evs []model.CalendarEvent) {
	sort.SliceStable(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}
