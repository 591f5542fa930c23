package interaction

import (
	"context"
	"time"

	appLog "dayview/internal/log"
	"dayview/internal/model"
	"dayview/internal/timeline"
	"dayview/internal/validate"
)

// PressResizeHandle records a press on edge of ev shown on day. The session
// stays pending until the pointer has travelled ResizeThreshold pixels;
// releasing before that is a tap. All-day events cannot be resized.
func (c *Controller) PressResizeHandle(ctx context.Context, ev model.CalendarEvent, day time.Time, edge Edge, p Point) bool {
	if c.s != nil || ev.AllDay || !c.pointerReady() {
		return false
	}
	s := c.begin(ctx, ev, day, Resize, Pointer)
	s.state = Pending
	s.edge = edge
	s.press, s.last, s.hasPointer = p, p, true
	s.edgeBase, s.anchor = edgeTimes(ev.Range(), edge)
	s.accPointer = p.Y
	s.accScroll = c.deps.Viewport.ScrollOffset()
	c.captureGeometry(s)
	appLog.Debug("interaction: resize pressed", "session", s.id, "event", ev.ID, "edge", edge.String())
	return true
}

// edgeTimes returns the dragged edge and the stationary anchor of r.
func edgeTimes(r model.Range, edge Edge) (moving, anchor time.Time) {
	if edge == Start {
		return r.Start, r.End
	}
	return r.End, r.Start
}

// updateResize moves the dragged edge by the pointer and scroll distance
// accumulated since the edge was last based.
func (c *Controller) updateResize(s *session) {
	if s.needsRebase {
		c.rebaseResize(s)
	}
	scroll := c.deps.Viewport.ScrollOffset()
	s.acc += (s.last.Y - s.accPointer) + (scroll - s.accScroll)
	s.accPointer, s.accScroll = s.last.Y, scroll

	raw := timeline.AddWall(s.edgeBase, timeline.HeightToDuration(s.acc, c.st.HourHeight))
	c.setProposal(s, c.proposeResize(s, c.snapped(s, raw)))
}

// rebaseResize discards the accumulator after navigation and re-derives the
// dragged edge from the pointer's position on the new page. A pointer on
// the wrong side of the anchor scrolls the anchor into view first.
func (c *Controller) rebaseResize(s *session) {
	g := s.geo
	vp := c.deps.Viewport
	scroll := vp.ScrollOffset()
	at := c.pointerTime(s, g, scroll)

	wrongSide := (s.edge == End && at.Before(s.anchor)) || (s.edge == Start && at.After(s.anchor))
	if wrongSide && model.SameDate(s.anchor, s.day) {
		y := timeline.TimeToOffset(s.anchor, c.st.StartHour, c.st.HourHeight) - s.viewHeight/2
		vp.SetScrollOffset(clamp(y, 0, vp.MaxScrollOffset()))
		scroll = vp.ScrollOffset()
		at = c.pointerTime(s, g, scroll)
	}

	s.edgeBase = at
	s.acc = 0
	s.accPointer = s.last.Y
	s.accScroll = scroll
	s.needsRebase = false
}

func (c *Controller) pointerTime(s *session, g *Geometry, scroll float64) time.Time {
	return timeline.OffsetToTime(s.last.Y-g.TimedTop+scroll, s.day, c.st.StartHour, c.st.HourHeight, 0)
}

// proposeResize clamps the dragged edge to the displayed day's window and
// keeps it at least the minimum duration away from the anchor. Only the
// dragged edge ever moves.
func (c *Controller) proposeResize(s *session, edge time.Time) model.Range {
	lo, hi := c.st.window(s.day)
	if edge.Before(lo) {
		edge = lo
	}
	if edge.After(hi) {
		edge = hi
	}

	minDur := validate.MinimumDuration(c.st.Snap.SlotDuration)
	if s.edge == End {
		if earliest := timeline.AddWall(s.anchor, minDur); edge.Before(earliest) {
			edge = earliest
		}
		return model.Range{Start: s.anchor, End: edge}
	}
	if latest := timeline.AddWall(s.anchor, -minDur); edge.After(latest) {
		edge = latest
	}
	return model.Range{Start: edge, End: s.anchor}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
