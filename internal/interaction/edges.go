package interaction

import (
	appLog "dayview/internal/log"
	"dayview/internal/timeline"
)

// evaluateEdges arms day navigation while the gesture's horizontal center
// sits in a side zone and disarms it elsewhere. A zone fires once; the
// pointer has to leave and re-enter it to navigate again.
func (c *Controller) evaluateEdges(s *session) {
	zone := c.zoneAt(s)
	if zone != 0 && !c.navigationAllowed(s, zone) {
		zone = 0
	}
	s.zone = zone
	if zone == 0 {
		c.nav.Disarm()
		return
	}
	id := s.id
	if c.nav.Arm(id, zone, func() { c.fireNavigation(id, zone) }) {
		appLog.Debug("interaction: navigation armed", "session", id, "dir", zone)
	}
}

// zoneAt returns -1 or +1 when the gesture center is in the left or right
// activation zone of the timed band, 0 otherwise.
func (c *Controller) zoneAt(s *session) int {
	g := s.geo
	if c.deps.Navigator == nil || g.TimedWidth <= 0 || c.st.EdgeZoneFraction <= 0 {
		return 0
	}
	x := s.last.X
	if s.mode == Move {
		x = s.last.X - s.grabX + s.tile.W/2
	}
	width := g.TimedWidth * c.st.EdgeZoneFraction
	switch {
	case x < g.TimedLeft+width:
		return -1
	case x > g.TimedLeft+g.TimedWidth-width:
		return 1
	}
	return 0
}

// navigationAllowed applies the resize rule: extending always navigates,
// shortening only once the proposal already spans days.
func (c *Controller) navigationAllowed(s *session, dir int) bool {
	if s.mode != Resize {
		return true
	}
	extending := (s.edge == End && dir > 0) || (s.edge == Start && dir < 0)
	return extending || s.proposed.SpansDays()
}

func (c *Controller) fireNavigation(id uint64, dir int) {
	s := c.s
	if s == nil || s.id != id || s.state != Dragging {
		return
	}
	s.geo = nil
	s.navDir = dir
	c.scroll.Stop()
	s.scrollSpeed = 0
	appLog.Info("interaction: navigating", "session", id, "dir", dir)
	c.announce(s, Announcement{Kind: AnnounceNavigated, Direction: dir})
	if !c.deps.Navigator.Navigate(dir) {
		s.navDir = 0
	}
}

// evaluateScroll starts, retunes or stops auto-scroll from the dragged
// tile's position relative to the viewport's top and bottom bands.
func (c *Controller) evaluateScroll(s *session) {
	speed := c.scrollSpeedFor(s)
	vp := c.deps.Viewport
	offset := vp.ScrollOffset()
	if speed == 0 || (speed < 0 && offset <= 0) || (speed > 0 && offset >= vp.MaxScrollOffset()) {
		s.scrollSpeed = 0
		c.scroll.Stop()
		return
	}
	s.scrollSpeed = speed
	id := s.id
	c.scroll.Start(func() { c.scrollTick(id) })
}

func (c *Controller) scrollSpeedFor(s *session) float64 {
	if s.inAllDay || c.st.ScrollThreshold <= 0 || s.viewHeight <= 0 {
		return 0
	}
	g := s.geo
	top, bottom := s.last.Y, s.last.Y
	if s.mode == Move {
		top = s.last.Y - s.grabY
		if s.original.AllDay {
			top = s.last.Y
		}
		h := timeline.DurationToHeight(timeline.WallDiff(s.proposed.Start, s.proposed.End), c.st.HourHeight)
		if h > s.viewHeight {
			h = s.viewHeight
		}
		bottom = top + h
	}

	upper := g.TimedTop + c.st.ScrollThreshold
	lower := g.TimedTop + s.viewHeight - c.st.ScrollThreshold
	switch {
	case top < upper:
		return -c.st.ScrollMaxSpeed * proximity(upper-top, c.st.ScrollThreshold)
	case bottom > lower:
		return c.st.ScrollMaxSpeed * proximity(bottom-lower, c.st.ScrollThreshold)
	}
	return 0
}

// proximity maps a depth into the threshold band to (0, 1].
func proximity(depth, threshold float64) float64 {
	p := depth / threshold
	if p > 1 {
		return 1
	}
	return p
}

// scrollTick advances the viewport and re-derives the proposal from the
// live scroll offset.
func (c *Controller) scrollTick(id uint64) {
	s := c.s
	if s == nil || s.id != id || s.state != Dragging {
		c.scroll.Stop()
		return
	}
	if s.geo == nil {
		return
	}
	vp := c.deps.Viewport
	cur := vp.ScrollOffset()
	next := clamp(cur+s.scrollSpeed, 0, vp.MaxScrollOffset())
	if next == cur {
		s.scrollSpeed = 0
		c.scroll.Stop()
		return
	}
	vp.SetScrollOffset(next)
	c.recompute(id)
}
