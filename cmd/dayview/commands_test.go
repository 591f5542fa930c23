package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"dayview/internal/model"
)

func TestPrintLayout(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2025, 5, 20, h, m, 0, 0, time.UTC) }
	day := at(0, 0)
	events := []model.CalendarEvent{
		{ID: "a", Title: "Review", Start: at(9, 0), End: at(10, 0)},
		{ID: "b", Title: "Call", Start: at(9, 30), End: at(11, 0)},
		{ID: "h", Title: "Holiday", Start: day, End: day.AddDate(0, 0, 1), AllDay: true},
	}

	var buf bytes.Buffer
	if err := printLayout(&buf, day, events); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Tuesday 2025-05-20") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "all-day") || !strings.Contains(lines[1], "Holiday") {
		t.Errorf("all-day line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "09:00-10:00") || !strings.Contains(lines[2], "1/2") {
		t.Errorf("first timed line = %q", lines[2])
	}
	if !strings.Contains(lines[3], "09:30-11:00") || !strings.Contains(lines[3], "2/2") {
		t.Errorf("second timed line = %q", lines[3])
	}
}
