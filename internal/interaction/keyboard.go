package interaction

import (
	"context"
	"time"

	"dayview/internal/model"
	"dayview/internal/timeline"
)

// BeginKeyboardMove starts a keyboard move of ev shown on day.
func (c *Controller) BeginKeyboardMove(ctx context.Context, ev model.CalendarEvent, day time.Time) bool {
	if c.s != nil {
		return false
	}
	s := c.begin(ctx, ev, day, Move, Keyboard)
	s.keyRaw = ev.Start
	c.started(s)
	return true
}

// BeginKeyboardResize starts a keyboard resize of ev's end edge.
func (c *Controller) BeginKeyboardResize(ctx context.Context, ev model.CalendarEvent, day time.Time) bool {
	if c.s != nil || ev.AllDay {
		return false
	}
	s := c.begin(ctx, ev, day, Resize, Keyboard)
	s.edge = End
	s.anchor = ev.Start
	s.keyRaw = ev.End
	c.started(s)
	return true
}

// HandleKey applies one key press to a keyboard session. Arrows step the
// unsnapped position by one slot vertically or one day horizontally, Tab
// swaps the resized edge, Enter commits and Escape cancels. Each step goes
// through the same snapping and clamping as a pointer drag of the same
// distance.
func (c *Controller) HandleKey(ctx context.Context, k Key) (Outcome, error) {
	s := c.s
	if s == nil || s.input != Keyboard || s.state != Dragging {
		return None, nil
	}
	switch k {
	case KeyEscape:
		return c.Cancel(), nil
	case KeyEnter:
		return c.commit(ctx, s)
	}

	slot := c.st.slot()
	switch s.mode {
	case Move:
		c.keyMove(ctx, s, k, slot)
	case Resize:
		c.keyResize(s, k, slot)
	}
	return None, nil
}

func (c *Controller) keyMove(ctx context.Context, s *session, k Key, slot time.Duration) {
	switch k {
	case KeyUp, KeyDown:
		if s.proposed.AllDay {
			return
		}
		step := slot
		if k == KeyUp {
			step = -slot
		}
		day := model.DateOf(s.keyRaw)
		lo, hi := c.st.window(day)
		s.keyRaw = clampTime(timeline.AddWall(s.keyRaw, step), lo, timeline.AddWall(hi, -slot))
		c.setProposal(s, c.proposeMove(s, c.snapped(s, s.keyRaw), day))
	case KeyLeft, KeyRight:
		days := 1
		if k == KeyLeft {
			days = -1
		}
		s.day = s.day.AddDate(0, 0, days)
		s.keyRaw = s.keyRaw.AddDate(0, 0, days)
		c.loadDay(ctx, s)
		if s.proposed.AllDay {
			r := s.proposed
			r.Start = r.Start.AddDate(0, 0, days)
			r.End = r.End.AddDate(0, 0, days)
			c.setProposal(s, r)
			return
		}
		c.setProposal(s, c.proposeMove(s, c.snapped(s, s.keyRaw), model.DateOf(s.keyRaw)))
	}
}

func (c *Controller) keyResize(s *session, k Key, slot time.Duration) {
	switch k {
	case KeyUp, KeyDown:
		step := slot
		if k == KeyUp {
			step = -slot
		}
		lo, hi := c.st.window(s.day)
		s.keyRaw = clampTime(timeline.AddWall(s.keyRaw, step), lo, hi)
		c.setProposal(s, c.proposeResize(s, c.snapped(s, s.keyRaw)))
	case KeyTab:
		if s.edge == End {
			s.edge = Start
		} else {
			s.edge = End
		}
		s.keyRaw, s.anchor = edgeTimes(s.proposed, s.edge)
		c.announce(s, Announcement{Kind: AnnounceUpdated})
	}
}

// clampTime limits the unsnapped keyboard position to what a pointer could
// reach on the displayed page.
func clampTime(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}
