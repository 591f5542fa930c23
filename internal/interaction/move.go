package interaction

import (
	"context"
	"time"

	"dayview/internal/model"
	"dayview/internal/timeline"
)

// BeginMove starts dragging ev, shown on day as tile, with the pointer
// pressed at p. It is ignored while another session is active.
func (c *Controller) BeginMove(ctx context.Context, ev model.CalendarEvent, day time.Time, tile Rect, p Point) bool {
	if c.s != nil || !c.pointerReady() {
		return false
	}
	s := c.begin(ctx, ev, day, Move, Pointer)
	s.press, s.last, s.hasPointer = p, p, true
	s.tile = tile
	s.grabX = p.X - tile.X
	s.grabY = p.Y - tile.Y
	c.captureGeometry(s)
	c.started(s)
	return true
}

// updateMove places the event under the pointer. In the all-day band it
// becomes an all-day event on the displayed day; in the timed band its
// top follows the pointer minus the grab offset.
func (c *Controller) updateMove(s *session) {
	g := s.geo
	p := s.last
	if g.inAllDay(p) {
		s.inAllDay = true
		days := 1
		if s.original.AllDay {
			days = dayCount(s.original)
		}
		c.setProposal(s, model.Range{Start: s.day, End: s.day.AddDate(0, 0, days), AllDay: true})
		return
	}
	s.inAllDay = false

	top := p.Y - g.TimedTop + c.deps.Viewport.ScrollOffset()
	if !s.original.AllDay {
		top -= s.grabY
	}
	raw := timeline.OffsetToTime(top, s.day, c.st.StartHour, c.st.HourHeight, 0)
	c.setProposal(s, c.proposeMove(s, c.snapped(s, raw), s.day))
}

// proposeMove returns the timed range starting at start, clamped so it
// begins inside day's visible window. Timed events keep their wall-clock
// duration; all-day events take DefaultTimedDuration.
func (c *Controller) proposeMove(s *session, start, day time.Time) model.Range {
	dur := c.timedDuration(s)
	lo, hi := c.st.window(day)
	latest := timeline.AddWall(hi, -c.st.slot())
	if start.After(latest) {
		start = latest
	}
	if start.Before(lo) {
		start = lo
	}
	return model.Range{Start: start, End: timeline.AddWall(start, dur)}
}

func (c *Controller) timedDuration(s *session) time.Duration {
	dur := timeline.WallDiff(s.original.Start, s.original.End)
	if s.original.AllDay {
		dur = c.st.DefaultTimedDuration
	}
	if dur <= 0 {
		dur = c.st.slot()
	}
	return dur
}

// dayCount is the number of dates an all-day range covers.
func dayCount(r model.Range) int {
	n := timeline.DaysBetween(r.Start, r.End)
	if n < 1 {
		n = 1
	}
	return n
}
