// Package interaction is the gesture engine of the day timeline: it turns
// pointer and keyboard input into a validated, committed change of one
// event's time range.
//
// A Controller owns at most one session at a time. Every method and every
// timer callback must run on the same goroutine; use sched.Loop to get that
// in a program and sched.Fake in tests.
package interaction

import (
	"context"
	"strings"
	"time"

	"dayview/internal/model"
	"dayview/internal/snap"
)

// EventStore is the part of the event store the engine writes through.
// store.Store satisfies it.
type EventStore interface {
	EventsOn(ctx context.Context, day time.Time) ([]model.CalendarEvent, error)
	Replace(ctx context.Context, ev model.CalendarEvent) error
	ModifyOccurrence(ctx context.Context, seriesID string, occurrenceStart time.Time, ev model.CalendarEvent) (model.CalendarEvent, error)
}

// Policy accepts or rejects a proposed range. It is consulted on every
// recomputation and once more after the commit has been written.
type Policy interface {
	AcceptMove(ev model.CalendarEvent, r model.Range) bool
	AcceptResize(ev model.CalendarEvent, r model.Range) bool
}

// PolicyFuncs adapts two functions to Policy. A nil function accepts.
type PolicyFuncs struct {
	Move   func(ev model.CalendarEvent, r model.Range) bool
	Resize func(ev model.CalendarEvent, r model.Range) bool
}

func (p PolicyFuncs) AcceptMove(ev model.CalendarEvent, r model.Range) bool {
	return p.Move == nil || p.Move(ev, r)
}

func (p PolicyFuncs) AcceptResize(ev model.CalendarEvent, r model.Range) bool {
	return p.Resize == nil || p.Resize(ev, r)
}

// Announcer receives a description of every visible state change.
type Announcer interface {
	Announce(a Announcement)
}

type AnnouncerFunc func(a Announcement)

func (f AnnouncerFunc) Announce(a Announcement) { f(a) }

// Viewport is the scrollable area holding the timed band.
type Viewport interface {
	ScrollOffset() float64
	ViewportHeight() float64
	MaxScrollOffset() float64
	SetScrollOffset(y float64)
}

// Navigator switches the displayed day. dir is -1 for the previous day and
// +1 for the next. A true result promises a later Controller.DayChanged.
type Navigator interface {
	Navigate(dir int) bool
}

// GeometryProvider reports where the page for day is laid out. ok is false
// while the page is not laid out yet.
type GeometryProvider interface {
	Geometry(day time.Time) (g Geometry, ok bool)
}

// Geometry positions a day page in pointer coordinates.
type Geometry struct {
	Day time.Time

	// Horizontal extent of the timed band.
	TimedLeft  float64
	TimedWidth float64

	// TimedTop is the pointer y of the top edge of the viewport. A content
	// offset y is visible at TimedTop + y - ScrollOffset.
	TimedTop float64

	// Vertical extent of the all-day band. Empty when AllDayBottom <= AllDayTop.
	AllDayTop    float64
	AllDayBottom float64
}

func (g Geometry) inAllDay(p Point) bool {
	return g.AllDayBottom > g.AllDayTop && p.Y >= g.AllDayTop && p.Y < g.AllDayBottom
}

type Point struct {
	X, Y float64
}

type Rect struct {
	X, Y, W, H float64
}

// Settings tunes the engine. DefaultSettings gives working values.
type Settings struct {
	StartHour  int
	EndHour    int
	HourHeight float64

	Snap snap.Options

	// DefaultTimedDuration is the length an all-day event takes when it is
	// dropped into the timed band.
	DefaultTimedDuration time.Duration

	MinDate time.Time
	MaxDate time.Time
	Regions []model.TimeRegion

	// EdgeZoneFraction is the share of the timed width, on each side, that
	// arms day navigation.
	EdgeZoneFraction float64
	NavigationDelay  time.Duration

	// UpdateInterval bounds pointer-driven recomputation.
	UpdateInterval time.Duration

	ScrollThreshold float64
	ScrollMaxSpeed  float64
	ScrollInterval  time.Duration

	// ResizeThreshold is the distance a resize press must travel before it
	// stops being a tap.
	ResizeThreshold float64
}

func DefaultSettings() Settings {
	return Settings{
		StartHour:  0,
		EndHour:    24,
		HourHeight: 60,
		Snap: snap.Options{
			ToTimeSlots:   true,
			ToOtherEvents: true,
			Range:         5 * time.Minute,
			SlotDuration:  15 * time.Minute,
		},
		DefaultTimedDuration: time.Hour,
		EdgeZoneFraction:     0.25,
		NavigationDelay:      600 * time.Millisecond,
		UpdateInterval:       16 * time.Millisecond,
		ScrollThreshold:      48,
		ScrollMaxSpeed:       12,
		ScrollInterval:       16 * time.Millisecond,
		ResizeThreshold:      8,
	}
}

func (st Settings) slot() time.Duration {
	if st.Snap.SlotDuration > 0 {
		return st.Snap.SlotDuration
	}
	return 15 * time.Minute
}

// window returns the visible span of day's timeline.
func (st Settings) window(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	lo := time.Date(y, m, d, st.StartHour, 0, 0, 0, day.Location())
	hi := time.Date(y, m, d, st.EndHour, 0, 0, 0, day.Location())
	return lo, hi
}

type Mode int

const (
	Move Mode = iota
	Resize
)

func (m Mode) String() string {
	if m == Resize {
		return "resize"
	}
	return "move"
}

// Edge is the side of an event a resize drags.
type Edge int

const (
	End Edge = iota
	Start
)

func (e Edge) String() string {
	if e == Start {
		return "start"
	}
	return "end"
}

type Input int

const (
	Pointer Input = iota
	Keyboard
)

type State int

const (
	Idle State = iota
	// Pending is a resize press that has not yet travelled far enough.
	Pending
	Dragging
	Committing
	Cancelled
	Done
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	case Cancelled:
		return "cancelled"
	case Done:
		return "done"
	default:
		return "idle"
	}
}

type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyTab
)

var keyNames = map[string]Key{
	"up":     KeyUp,
	"down":   KeyDown,
	"left":   KeyLeft,
	"right":  KeyRight,
	"enter":  KeyEnter,
	"escape": KeyEscape,
	"esc":    KeyEscape,
	"tab":    KeyTab,
}

// ParseKey maps a key name such as "down" or "enter" to a Key.
func ParseKey(name string) (Key, bool) {
	k, ok := keyNames[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Outcome is how a session ended.
type Outcome int

const (
	None Outcome = iota
	Tap
	Unchanged
	Committed
	RolledBack
	Invalid
	Aborted
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Tap:
		return "tap"
	case Unchanged:
		return "unchanged"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	case Invalid:
		return "invalid"
	case Aborted:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "none"
	}
}

type AnnouncementKind int

const (
	AnnounceStarted AnnouncementKind = iota
	AnnounceUpdated
	AnnounceNavigated
	AnnounceCommitted
	AnnounceRolledBack
	AnnounceCancelled
)

func (k AnnouncementKind) String() string {
	switch k {
	case AnnounceStarted:
		return "started"
	case AnnounceUpdated:
		return "updated"
	case AnnounceNavigated:
		return "navigated"
	case AnnounceCommitted:
		return "committed"
	case AnnounceRolledBack:
		return "rolled back"
	case AnnounceCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Announcement describes one state change of the active session.
type Announcement struct {
	Kind  AnnouncementKind
	Mode  Mode
	Edge  Edge
	Event model.CalendarEvent
	Range model.Range
	Valid bool
	// Direction is set on AnnounceNavigated.
	Direction int
}
