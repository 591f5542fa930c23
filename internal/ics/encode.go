package ics

import (
	"errors"
	"io"
	"time"

	ical "github.com/emersion/go-ical"

	"dayview/internal/model"
)

const productID = "-//dayview//EN"

// ErrNoEvents is returned by Encode for an empty event list; a VCALENDAR
// needs at least one component.
var ErrNoEvents = errors.New("ics: no events to encode")

// Encode writes events as one VCALENDAR. Series masters keep their RRULE
// and EXDATEs; detached occurrences are written under the series UID with
// a RECURRENCE-ID so Parse reads them back as the same detachments.
func Encode(w io.Writer, events []model.CalendarEvent, stamp time.Time) error {
	if len(events) == 0 {
		return ErrNoEvents
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	for _, ev := range events {
		cal.Children = append(cal.Children, toVEvent(ev, stamp))
	}
	return ical.NewEncoder(w).Encode(cal)
}

func toVEvent(ev model.CalendarEvent, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	uid := ev.ID
	if ev.SeriesID != "" {
		uid = ev.SeriesID
	}
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	if ev.Title != "" {
		ve.Props.SetText(ical.PropSummary, ev.Title)
	}
	if ev.Color != "" {
		ve.Props.SetText("COLOR", ev.Color)
	}

	setTime(ve.Props, ical.PropDateTimeStart, ev.Start, ev.AllDay)
	setTime(ve.Props, ical.PropDateTimeEnd, ev.End, ev.AllDay)

	if ev.RecurrenceRule != "" {
		// RRULE is a RECUR value; SetText would escape its separators.
		p := ical.NewProp(ical.PropRecurrenceRule)
		p.Value = ev.RecurrenceRule
		ve.Props.Set(p)
	}
	for _, ex := range ev.ExDates {
		p := ical.NewProp(ical.PropExceptionDates)
		if ev.AllDay {
			p.SetDate(ex)
		} else {
			p.SetDateTime(exportTime(ex))
		}
		ve.Props.Add(p)
	}
	if ev.RecurrenceID != nil {
		setTime(ve.Props, ical.PropRecurrenceID, *ev.RecurrenceID, ev.AllDay && isMidnight(*ev.RecurrenceID))
	}
	return ve
}

func setTime(props ical.Props, name string, t time.Time, dateOnly bool) {
	if dateOnly {
		props.SetDate(name, t)
		return
	}
	props.SetDateTime(name, exportTime(t))
}

// exportTime maps zones without an IANA name to UTC; a TZID of "Local"
// means nothing to other readers.
func exportTime(t time.Time) time.Time {
	switch t.Location().String() {
	case "", "Local", "UTC":
		return t.UTC()
	}
	return t
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}
