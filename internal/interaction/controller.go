package interaction

import (
	"context"
	"fmt"
	"math"
	"time"

	appLog "dayview/internal/log"
	"dayview/internal/model"
	"dayview/internal/sched"
	"dayview/internal/snap"
	"dayview/internal/store"
	"dayview/internal/validate"
)

// Deps are the capabilities a Controller works through. Store and Scheduler
// are always required. Viewport and Geometry are required for pointer
// sessions; without them BeginMove and PressResizeHandle refuse to start.
// The rest may be nil.
type Deps struct {
	Store     EventStore
	Policy    Policy
	Announcer Announcer
	Viewport  Viewport
	Navigator Navigator
	Geometry  GeometryProvider
	Scheduler sched.Scheduler
}

// Controller runs gesture sessions against an event store.
type Controller struct {
	deps Deps
	st   Settings

	move   validate.Pipeline
	resize validate.Pipeline

	throttle *sched.Throttle
	nav      *sched.Debouncer
	scroll   *sched.Repeater

	s      *session
	nextID uint64
}

func New(deps Deps, st Settings) *Controller {
	if deps.Policy == nil {
		deps.Policy = PolicyFuncs{}
	}
	if deps.Announcer == nil {
		deps.Announcer = AnnouncerFunc(func(Announcement) {})
	}
	minDur := validate.MinimumDuration(st.Snap.SlotDuration)
	c := &Controller{
		deps:     deps,
		st:       st,
		throttle: sched.NewThrottle(deps.Scheduler, st.UpdateInterval),
		nav:      sched.NewDebouncer(deps.Scheduler, st.NavigationDelay),
		scroll:   sched.NewRepeater(deps.Scheduler, st.ScrollInterval),
	}
	c.move = validate.Standard(deps.Policy.AcceptMove, st.Regions, st.MinDate, st.MaxDate, minDur)
	c.resize = validate.Standard(deps.Policy.AcceptResize, st.Regions, st.MinDate, st.MaxDate, minDur)
	return c
}

// session is the state of one gesture, from press to commit or cancel.
type session struct {
	id    uint64
	state State
	mode  Mode
	input Input
	edge  Edge

	event    model.CalendarEvent
	original model.Range
	// day is the date currently displayed; it follows navigation.
	day      time.Time
	proposed model.Range
	verdict  validate.Verdict

	geo        *Geometry
	viewHeight float64
	// navDir is the direction of a navigation that has fired but whose
	// DayChanged has not arrived yet.
	navDir     int
	dayEvents  []model.CalendarEvent
	boundaries []time.Time

	hasPointer bool
	press      Point
	last       Point
	grabX      float64
	grabY      float64
	tile       Rect
	travelled  float64

	// Resize accumulator: the dragged edge sits at edgeBase shifted by acc
	// pixels. accPointer and accScroll are the pointer y and scroll offset
	// already folded into acc.
	acc         float64
	accPointer  float64
	accScroll   float64
	edgeBase    time.Time
	anchor      time.Time
	needsRebase bool

	zone        int
	scrollSpeed float64
	inAllDay    bool

	// keyRaw is the unsnapped keyboard position: the start for a move, the
	// dragged edge for a resize.
	keyRaw time.Time
}

func (s *session) live() bool {
	return s.state == Pending || s.state == Dragging
}

// SessionView is a read-only snapshot of the active session for rendering
// and announcement.
type SessionView struct {
	Active   bool
	State    State
	Mode     Mode
	Input    Input
	Edge     Edge
	Event    model.CalendarEvent
	Original model.Range
	Proposed model.Range
	Valid    bool
	Reason   validate.Reason
	Day      time.Time

	NavZone     int
	NavArmed    bool
	Scrolling   bool
	ScrollSpeed float64
}

func (c *Controller) View() SessionView {
	s := c.s
	if s == nil {
		return SessionView{State: Idle}
	}
	return SessionView{
		Active:      true,
		State:       s.state,
		Mode:        s.mode,
		Input:       s.input,
		Edge:        s.edge,
		Event:       s.event,
		Original:    s.original,
		Proposed:    s.proposed,
		Valid:       s.verdict.Valid,
		Reason:      s.verdict.Reason,
		Day:         s.day,
		NavZone:     s.zone,
		NavArmed:    c.nav.Armed(),
		Scrolling:   c.scroll.Running(),
		ScrollSpeed: s.scrollSpeed,
	}
}

// Active reports whether a session exists.
func (c *Controller) Active() bool { return c.s != nil }

func (c *Controller) pointerReady() bool {
	return c.deps.Viewport != nil && c.deps.Geometry != nil
}

func (c *Controller) begin(ctx context.Context, ev model.CalendarEvent, day time.Time, mode Mode, input Input) *session {
	c.nextID++
	s := &session{
		id:       c.nextID,
		state:    Dragging,
		mode:     mode,
		input:    input,
		event:    ev,
		original: ev.Range(),
		day:      model.DateOf(day),
		proposed: ev.Range(),
	}
	c.s = s
	c.loadDay(ctx, s)
	s.verdict = c.validate(s, s.proposed)
	return s
}

func (c *Controller) started(s *session) {
	appLog.Info("interaction: session started", "session", s.id, "event", s.event.ID, "mode", s.mode.String(), "day", s.day.Format("2006-01-02"))
	c.announce(s, Announcement{Kind: AnnounceStarted})
}

// loadDay reads the displayed day's events for snapping. A failed read
// leaves no boundaries rather than those of another day.
func (c *Controller) loadDay(ctx context.Context, s *session) {
	evs, err := c.deps.Store.EventsOn(ctx, s.day)
	if err != nil {
		appLog.Warn("interaction: loading day failed", "session", s.id, "day", s.day.Format("2006-01-02"), "err", err)
		s.dayEvents, s.boundaries = nil, nil
		return
	}
	s.dayEvents = evs
	s.boundaries = snap.Boundaries(evs, s.event.ID)
}

// captureGeometry snapshots the displayed page's geometry once per day.
func (c *Controller) captureGeometry(s *session) bool {
	if s.geo != nil {
		return true
	}
	if s.navDir != 0 {
		return false
	}
	g, ok := c.deps.Geometry.Geometry(s.day)
	if !ok || !model.SameDate(g.Day, s.day) {
		return false
	}
	s.geo = &g
	s.viewHeight = c.deps.Viewport.ViewportHeight()
	return true
}

// snapped resolves raw against the displayed day's boundaries. Pointer and
// keyboard updates both go through it.
func (c *Controller) snapped(s *session, raw time.Time) time.Time {
	return snap.Resolve(raw, c.st.Snap, s.boundaries, c.deps.Scheduler.Now()).Time
}

func (c *Controller) validate(s *session, r model.Range) validate.Verdict {
	pr := validate.Proposal{Event: s.event, Range: r, Resize: s.mode == Resize}
	if s.mode == Resize {
		return c.resize.Validate(pr)
	}
	return c.move.Validate(pr)
}

// setProposal validates r and makes it the session's proposal, announcing
// the change if anything visible moved.
func (c *Controller) setProposal(s *session, r model.Range) {
	v := c.validate(s, r)
	changed := !r.Equal(s.proposed) || v != s.verdict
	s.proposed, s.verdict = r, v
	if changed {
		appLog.Debug("interaction: proposal", "session", s.id, "start", r.Start, "end", r.End, "valid", v.Valid, "reason", v.Reason.String())
		c.announce(s, Announcement{Kind: AnnounceUpdated})
	}
}

func (c *Controller) announce(s *session, a Announcement) {
	a.Mode, a.Edge, a.Event = s.mode, s.edge, s.event
	if a.Range.Start.IsZero() {
		a.Range = s.proposed
	}
	if a.Kind != AnnounceRolledBack && a.Kind != AnnounceCancelled {
		a.Valid = s.verdict.Valid
	}
	c.deps.Announcer.Announce(a)
}

// PointerMove feeds a pointer position. Recomputation is throttled to one
// run per UpdateInterval; the latest position always wins.
func (c *Controller) PointerMove(p Point) {
	s := c.s
	if s == nil || s.input != Pointer || !s.live() {
		return
	}
	prev := s.last
	s.last, s.hasPointer = p, true

	if s.state == Pending {
		s.travelled += math.Hypot(p.X-prev.X, p.Y-prev.Y)
		if s.travelled < c.st.ResizeThreshold {
			return
		}
		s.state = Dragging
		c.started(s)
	}

	id := s.id
	c.throttle.Do(func() { c.recompute(id) })
}

// recompute derives the proposal from the latest pointer position. It is a
// no-op for a session other than id or while geometry is unavailable.
func (c *Controller) recompute(id uint64) {
	s := c.s
	if s == nil || s.id != id || s.state != Dragging || !s.hasPointer {
		return
	}
	if !c.captureGeometry(s) {
		return
	}
	switch s.mode {
	case Move:
		c.updateMove(s)
	case Resize:
		c.updateResize(s)
	}
	c.evaluateEdges(s)
	c.evaluateScroll(s)
}

// DayChanged tells the controller the displayed day is now day. Geometry
// captured for the previous day is dropped and the last pointer position
// is replayed against the new page.
func (c *Controller) DayChanged(ctx context.Context, day time.Time) {
	s := c.s
	if s == nil || !s.live() {
		return
	}
	s.day = model.DateOf(day)
	s.navDir = 0
	s.geo = nil
	c.loadDay(ctx, s)
	if s.mode == Resize && s.input == Pointer {
		s.needsRebase = true
	}
	appLog.Debug("interaction: day changed", "session", s.id, "day", s.day.Format("2006-01-02"))
	if s.state == Dragging && s.hasPointer {
		c.recompute(s.id)
	}
}

// PointerUp ends a pointer gesture: a resize press that never crossed the
// threshold is a tap, anything else commits.
func (c *Controller) PointerUp(ctx context.Context) (Outcome, error) {
	s := c.s
	if s == nil || s.input != Pointer {
		return None, nil
	}
	switch s.state {
	case Pending:
		c.finish(s)
		return Tap, nil
	case Dragging:
		c.throttle.Flush()
		return c.commit(ctx, s)
	}
	return None, nil
}

// Cancel discards the active session without writing to the store. It
// always returns the controller to idle, even while a commit is in flight.
func (c *Controller) Cancel() Outcome {
	s := c.s
	if s == nil {
		return None
	}
	c.stopTimers()
	s.state = Cancelled
	c.s = nil
	appLog.Info("interaction: session cancelled", "session", s.id, "event", s.event.ID)
	c.announce(s, Announcement{Kind: AnnounceCancelled, Range: s.original})
	return Aborted
}

// PointerLost handles loss of pointer capture; the gesture is cancelled.
func (c *Controller) PointerLost() Outcome {
	if c.s == nil || c.s.input != Pointer {
		return None
	}
	return c.Cancel()
}

// OnStoreChange is a store.Listener. A session whose event was deleted is
// cancelled; otherwise the displayed day's events are reloaded.
func (c *Controller) OnStoreChange(ctx context.Context, ch store.Change) {
	s := c.s
	if s == nil || !s.live() {
		return
	}
	switch ch.Kind {
	case store.Deleted:
		if ch.EventID == s.event.ID || (s.event.SeriesID != "" && ch.EventID == s.event.SeriesID) {
			c.Cancel()
			return
		}
	case store.Reloaded:
		if s.event.Source != "" && ch.Source == s.event.Source && !c.subjectExists(ctx, s) {
			c.Cancel()
			return
		}
	}
	c.loadDay(ctx, s)
}

func (c *Controller) subjectExists(ctx context.Context, s *session) bool {
	evs, err := c.deps.Store.EventsOn(ctx, s.original.Start)
	if err != nil {
		return true
	}
	for _, ev := range evs {
		if ev.ID == s.event.ID {
			return true
		}
	}
	return false
}

// commit writes the proposal. Commit and cancel are exclusive: a cancel
// that lands while the write is in flight rolls the write back.
func (c *Controller) commit(ctx context.Context, s *session) (Outcome, error) {
	c.stopTimers()
	if c.s != s || s.state != Dragging {
		return None, nil
	}
	if !s.verdict.Valid {
		c.finish(s)
		appLog.Info("interaction: invalid proposal discarded", "session", s.id, "event", s.event.ID, "reason", s.verdict.Reason.String())
		c.announce(s, Announcement{Kind: AnnounceCancelled, Range: s.original})
		return Invalid, nil
	}
	if s.proposed.Equal(s.original) {
		c.finish(s)
		return Unchanged, nil
	}

	s.state = Committing
	updated := s.event.WithRange(s.proposed)
	if err := c.write(ctx, s, updated); err != nil {
		if c.s == s {
			c.finish(s)
		}
		appLog.Error("interaction: commit failed", err, "session", s.id, "event", s.event.ID)
		return Failed, fmt.Errorf("commit %s: %w", s.event.ID, err)
	}

	if s.state == Cancelled {
		return Aborted, c.rollback(ctx, s)
	}

	accept := c.deps.Policy.AcceptMove
	if s.mode == Resize {
		accept = c.deps.Policy.AcceptResize
	}
	if !accept(s.event, s.proposed) {
		err := c.rollback(ctx, s)
		c.finish(s)
		appLog.Info("interaction: commit vetoed", "session", s.id, "event", s.event.ID)
		c.announce(s, Announcement{Kind: AnnounceRolledBack, Range: s.original})
		return RolledBack, err
	}

	c.finish(s)
	appLog.Info("interaction: committed", "session", s.id, "event", s.event.ID, "start", s.proposed.Start, "end", s.proposed.End)
	c.announce(s, Announcement{Kind: AnnounceCommitted})
	return Committed, nil
}

// write stores ev, detaching a single occurrence for recurring events.
func (c *Controller) write(ctx context.Context, s *session, ev model.CalendarEvent) error {
	if seriesID, occ, ok := occurrenceOf(s.event); ok {
		_, err := c.deps.Store.ModifyOccurrence(ctx, seriesID, occ, ev)
		return err
	}
	return c.deps.Store.Replace(ctx, ev)
}

// rollback restores the event's original bounds in the store.
func (c *Controller) rollback(ctx context.Context, s *session) error {
	if err := c.write(ctx, s, s.event); err != nil {
		appLog.Error("interaction: rollback failed", err, "session", s.id, "event", s.event.ID)
		return fmt.Errorf("rollback %s: %w", s.event.ID, err)
	}
	return nil
}

// occurrenceOf names the occurrence ev stands for when it belongs to a
// recurring series. A series master stands for its first occurrence.
func occurrenceOf(ev model.CalendarEvent) (string, time.Time, bool) {
	switch {
	case ev.SeriesID != "" && ev.RecurrenceID != nil:
		return ev.SeriesID, *ev.RecurrenceID, true
	case ev.RecurrenceRule != "":
		return ev.ID, ev.Start, true
	}
	return "", time.Time{}, false
}

func (c *Controller) finish(s *session) {
	c.stopTimers()
	s.state = Done
	if c.s == s {
		c.s = nil
	}
}

func (c *Controller) stopTimers() {
	c.throttle.Stop()
	c.nav.Disarm()
	c.scroll.Stop()
	if c.s != nil {
		c.s.scrollSpeed = 0
	}
}
