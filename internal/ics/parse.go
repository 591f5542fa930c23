package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "dayview/internal/log"
	"dayview/internal/model"
	"dayview/internal/store"
)

// Parse decodes an ICS payload into calendar events tagged with src.ID.
//
// Recurring VEVENTs become series masters carrying their RRULE and EXDATEs;
// a VEVENT with RECURRENCE-ID becomes a detached occurrence of the series
// with the same UID. Floating and date-only values are read in src.Location
// (time.Local when nil). A broken VEVENT is logged and skipped.
func Parse(src Source, body []byte) ([]model.CalendarEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	loc := src.location()
	events := make([]model.CalendarEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve, loc)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (model.CalendarEvent, error) {
	var out model.CalendarEvent
	out.Source = src.ID

	uid := ""
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		uid = strings.TrimSpace(p.Value)
	}
	if uid == "" {
		uid = uuid.NewString()
	}
	out.ID = uid

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentProperty("COLOR")); p != nil {
		out.Color = strings.TrimSpace(p.Value)
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}
	start, dateOnly, err := propTime(startProp, loc)
	if err != nil {
		return out, err
	}
	out.Start = start
	out.AllDay = dateOnly

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, _, err := propTime(endProp, loc)
		if err != nil {
			return out, err
		}
		out.End = end
	}
	if !out.End.After(out.Start) {
		if out.AllDay {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = out.Start
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RecurrenceRule = strings.TrimSpace(p.Value)
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		zone := paramLocation(p, loc)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := parseICSTime(part, zone); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		rid, _, err := propTime(p, loc)
		if err != nil {
			return out, err
		}
		out.SeriesID = uid
		out.RecurrenceID = &rid
		out.ID = store.OccurrenceID(uid, rid)
		out.RecurrenceRule = ""
	}

	return out, nil
}

// propTime parses a DATE or DATE-TIME property honoring its TZID and
// VALUE parameters. dateOnly reports a DATE value.
func propTime(p *ical.IANAProperty, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	t, dateOnly, err = parseICSTime(p.Value, paramLocation(p, loc))
	if err != nil {
		return t, dateOnly, err
	}
	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		dateOnly = true
	}
	return t, dateOnly, nil
}

func paramLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tzs := p.ICalParameters["TZID"]; len(tzs) > 0 && tzs[0] != "" {
		if l, err := time.LoadLocation(tzs[0]); err == nil {
			return l
		}
		appLog.Warn("ics unknown TZID, using default zone", "tzid", tzs[0])
	}
	return fallback
}

// parseICSTime parses the UTC, floating and date-only forms of an ICS time.
func parseICSTime(v string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, false, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	case strings.Contains(v, "T"):
		t, err := time.ParseInLocation("20060102T150405", v, loc)
		return t, false, err
	default:
		t, err := time.ParseInLocation("20060102", v, loc)
		return t, true, err
	}
}
