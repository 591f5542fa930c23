// Package replay drives the interaction engine from a YAML gesture script
// on a manual clock, printing every announcement and outcome.
//
// A script looks like:
//
//	day: 2025-05-20
//	timezone: Europe/Berlin
//	events:
//	  - {id: standup, start: "2025-05-20 09:00", end: "2025-05-20 09:30"}
//	steps:
//	  - move: {event: standup, tile: [150, 160, 300, 30], at: [300, 170]}
//	  - pointer: [300, 230]
//	  - wait: 16ms
//	  - up: true
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dayview/internal/interaction"
	appLog "dayview/internal/log"
	"dayview/internal/model"
	"dayview/internal/sched"
	"dayview/internal/store"
)

const stamp = "2006-01-02 15:04"

type Script struct {
	Day      string          `yaml:"day"`
	Timezone string          `yaml:"timezone"`
	Viewport ViewportSpec    `yaml:"viewport"`
	Geometry GeometrySpec    `yaml:"geometry"`
	Events   []EventSpec     `yaml:"events"`
	Steps    []Step          `yaml:"steps"`
	Refuse   bool            `yaml:"refuse_navigation"`
	Veto     map[string]bool `yaml:"veto"` // event ID -> reject on commit
}

type ViewportSpec struct {
	Offset float64 `yaml:"offset"`
	Height float64 `yaml:"height"`
	Max    float64 `yaml:"max"`
}

type GeometrySpec struct {
	TimedLeft    float64 `yaml:"timed_left"`
	TimedWidth   float64 `yaml:"timed_width"`
	TimedTop     float64 `yaml:"timed_top"`
	AllDayTop    float64 `yaml:"all_day_top"`
	AllDayBottom float64 `yaml:"all_day_bottom"`
}

type EventSpec struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	AllDay bool   `yaml:"all_day"`
	RRule  string `yaml:"rrule"`
}

// Step holds exactly one action.
type Step struct {
	Move      *PressSpec    `yaml:"move"`
	Resize    *PressSpec    `yaml:"resize"`
	KeyMove   string        `yaml:"key_move"`
	KeyResize string        `yaml:"key_resize"`
	Pointer   []float64     `yaml:"pointer"`
	Key       string        `yaml:"key"`
	Wait      time.Duration `yaml:"wait"`
	Scroll    *float64      `yaml:"scroll"`
	Up        bool          `yaml:"up"`
	Cancel    bool          `yaml:"cancel"`
	Lost      bool          `yaml:"lost"`
}

type PressSpec struct {
	Event string    `yaml:"event"`
	Edge  string    `yaml:"edge"`
	Tile  []float64 `yaml:"tile"`
	At    []float64 `yaml:"at"`
}

// Load reads a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading script: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("error parsing script: %w", err)
	}
	return &s, nil
}

// Result is the outcome of a replay.
type Result struct {
	Outcomes []interaction.Outcome
	Events   []model.CalendarEvent // store contents after the last step
}

// pageNavigator records requests; the runner delivers the day change after
// the step that triggered it, as a view would after rendering.
type pageNavigator struct {
	refuse  bool
	pending int
}

func (n *pageNavigator) Navigate(dir int) bool {
	if n.refuse {
		return false
	}
	n.pending = dir
	return true
}

type viewport struct{ offset, height, max float64 }

func (v *viewport) ScrollOffset() float64     { return v.offset }
func (v *viewport) ViewportHeight() float64   { return v.height }
func (v *viewport) MaxScrollOffset() float64  { return v.max }
func (v *viewport) SetScrollOffset(y float64) { v.offset = min(max(y, 0), v.max) }

type geometry struct{ g interaction.Geometry }

func (g geometry) Geometry(day time.Time) (interaction.Geometry, bool) {
	out := g.g
	out.Day = day
	return out, true
}

// Run executes s against st, writing a transcript to w. st may be nil, in
// which case the script's events seed an in-memory store.
func Run(ctx context.Context, s *Script, settings interaction.Settings, st store.Store, w io.Writer) (Result, error) {
	loc := time.UTC
	if s.Timezone != "" {
		l, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return Result{}, fmt.Errorf("timezone: %w", err)
		}
		loc = l
	}
	day, err := time.ParseInLocation("2006-01-02", s.Day, loc)
	if err != nil {
		return Result{}, fmt.Errorf("day: %w", err)
	}

	if st == nil {
		events, err := s.events(loc)
		if err != nil {
			return Result{}, err
		}
		st = store.NewMemory(events...)
	}

	s.defaults()
	clock := sched.NewFake(day.Add(12 * time.Hour))
	vp := &viewport{offset: s.Viewport.Offset, height: s.Viewport.Height, max: s.Viewport.Max}
	nav := &pageNavigator{refuse: s.Refuse}
	gs := s.Geometry

	c := interaction.New(interaction.Deps{
		Store: st,
		Policy: interaction.PolicyFuncs{
			Move:   func(ev model.CalendarEvent, _ model.Range) bool { return !s.Veto[ev.ID] },
			Resize: func(ev model.CalendarEvent, _ model.Range) bool { return !s.Veto[ev.ID] },
		},
		Announcer: interaction.AnnouncerFunc(func(a interaction.Announcement) {
			fmt.Fprintln(w, describe(a, loc))
		}),
		Viewport:  vp,
		Navigator: nav,
		Geometry: geometry{g: interaction.Geometry{
			TimedLeft:    gs.TimedLeft,
			TimedWidth:   gs.TimedWidth,
			TimedTop:     gs.TimedTop,
			AllDayTop:    gs.AllDayTop,
			AllDayBottom: gs.AllDayBottom,
		}},
		Scheduler: clock,
	}, settings)
	cancel := st.Subscribe(func(ctx context.Context, ch store.Change) { c.OnStoreChange(ctx, ch) })
	defer cancel()

	var res Result
	record := func(o interaction.Outcome, err error) error {
		if o == interaction.None {
			return err
		}
		res.Outcomes = append(res.Outcomes, o)
		fmt.Fprintf(w, "outcome %s\n", o)
		return err
	}

	for i, step := range s.Steps {
		if err := apply(ctx, c, clock, vp, st, day, step, record); err != nil {
			return res, fmt.Errorf("step %d: %w", i+1, err)
		}
		if dir := nav.pending; dir != 0 {
			nav.pending = 0
			day = day.AddDate(0, 0, dir)
			c.DayChanged(ctx, day)
		}
	}
	if c.Active() {
		record(c.Cancel(), nil)
	}

	res.Events, err = st.All(ctx)
	appLog.Info("replay finished", "steps", len(s.Steps), "outcomes", len(res.Outcomes))
	return res, err
}

func apply(ctx context.Context, c *interaction.Controller, clock *sched.Fake, vp *viewport, st store.Store, day time.Time, step Step, record func(interaction.Outcome, error) error) error {
	lookup := func(id string) (model.CalendarEvent, error) {
		events, err := st.EventsOn(ctx, day)
		if err != nil {
			return model.CalendarEvent{}, err
		}
		for _, ev := range events {
			if ev.ID == id {
				return ev, nil
			}
		}
		return model.CalendarEvent{}, fmt.Errorf("event %q not on %s", id, day.Format("2006-01-02"))
	}

	switch {
	case step.Move != nil:
		ev, err := lookup(step.Move.Event)
		if err != nil {
			return err
		}
		tile, err1 := rect(step.Move.Tile)
		p, err2 := point(step.Move.At)
		if err := errors.Join(err1, err2); err != nil {
			return err
		}
		if !c.BeginMove(ctx, ev, day, tile, p) {
			return errors.New("move refused")
		}
	case step.Resize != nil:
		ev, err := lookup(step.Resize.Event)
		if err != nil {
			return err
		}
		p, err := point(step.Resize.At)
		if err != nil {
			return err
		}
		edge := interaction.End
		if strings.EqualFold(step.Resize.Edge, "start") {
			edge = interaction.Start
		}
		if !c.PressResizeHandle(ctx, ev, day, edge, p) {
			return errors.New("resize refused")
		}
	case step.KeyMove != "":
		ev, err := lookup(step.KeyMove)
		if err != nil {
			return err
		}
		if !c.BeginKeyboardMove(ctx, ev, day) {
			return errors.New("keyboard move refused")
		}
	case step.KeyResize != "":
		ev, err := lookup(step.KeyResize)
		if err != nil {
			return err
		}
		if !c.BeginKeyboardResize(ctx, ev, day) {
			return errors.New("keyboard resize refused")
		}
	case step.Pointer != nil:
		p, err := point(step.Pointer)
		if err != nil {
			return err
		}
		c.PointerMove(p)
	case step.Key != "":
		k, ok := interaction.ParseKey(step.Key)
		if !ok {
			return fmt.Errorf("unknown key %q", step.Key)
		}
		return record(c.HandleKey(ctx, k))
	case step.Wait > 0:
		clock.Advance(step.Wait)
	case step.Scroll != nil:
		vp.SetScrollOffset(*step.Scroll)
	case step.Up:
		return record(c.PointerUp(ctx))
	case step.Cancel:
		return record(c.Cancel(), nil)
	case step.Lost:
		return record(c.PointerLost(), nil)
	default:
		return errors.New("empty step")
	}
	return nil
}

func (s *Script) defaults() {
	if s.Viewport.Height == 0 {
		s.Viewport = ViewportSpec{Offset: 480, Height: 600, Max: 840}
	}
	if s.Geometry.TimedWidth == 0 {
		s.Geometry = GeometrySpec{TimedLeft: 100, TimedWidth: 400, TimedTop: 100, AllDayTop: 40, AllDayBottom: 90}
	}
}

func (s *Script) events(loc *time.Location) ([]model.CalendarEvent, error) {
	out := make([]model.CalendarEvent, 0, len(s.Events))
	for _, e := range s.Events {
		start, err := time.ParseInLocation(stamp, e.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("event %s start: %w", e.ID, err)
		}
		end, err := time.ParseInLocation(stamp, e.End, loc)
		if err != nil {
			return nil, fmt.Errorf("event %s end: %w", e.ID, err)
		}
		out = append(out, model.CalendarEvent{
			ID: e.ID, Title: e.Title, Start: start, End: end, AllDay: e.AllDay, RecurrenceRule: e.RRule,
		})
	}
	return out, nil
}

func point(v []float64) (interaction.Point, error) {
	if len(v) != 2 {
		return interaction.Point{}, fmt.Errorf("point needs [x, y], got %v", v)
	}
	return interaction.Point{X: v[0], Y: v[1]}, nil
}

func rect(v []float64) (interaction.Rect, error) {
	if len(v) != 4 {
		return interaction.Rect{}, fmt.Errorf("tile needs [x, y, w, h], got %v", v)
	}
	return interaction.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

func describe(a interaction.Announcement, loc *time.Location) string {
	r := a.Range
	span := r.Start.In(loc).Format(stamp) + " - " + r.End.In(loc).Format(stamp)
	if r.AllDay {
		span = r.Start.In(loc).Format("2006-01-02") + " all-day"
	}
	switch a.Kind {
	case interaction.AnnounceNavigated:
		return fmt.Sprintf("%s %+d", a.Kind, a.Direction)
	case interaction.AnnounceUpdated:
		return fmt.Sprintf("%s %s %s valid=%t", a.Kind, a.Event.ID, span, a.Valid)
	default:
		return fmt.Sprintf("%s %s %s %s", a.Kind, a.Mode, a.Event.ID, span)
	}
}
