package interaction

import (
	"testing"
	"time"

	"dayview/internal/snap"
	"dayview/internal/validate"
)

func TestScenarioC_ResizeClampsToMinimumDuration(t *testing.T) {
	cases := []struct {
		name string
		snap snap.Options
	}{
		{"slot snapping", snap.Options{ToTimeSlots: true, SlotDuration: 15 * time.Minute}},
		{"no snapping", snap.Options{SlotDuration: 15 * time.Minute}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := testSettings()
			st.Snap = tc.snap
			ev := timed("a", 14, 0, 15, 0)
			h := newHarness(t, st, nil, ev)

			p := Point{X: 300, Y: h.y(ev.End)}
			if !h.c.PressResizeHandle(h.ctx, ev, day, End, p) {
				t.Fatal("press refused")
			}
			// 50px up puts the raw end at 14:10.
			h.c.PointerMove(Point{X: p.X, Y: p.Y - 50})
			v := h.c.View()
			assertRange(t, v.Proposed, at(20, 14, 0), at(20, 14, 15))
			if !v.Valid {
				t.Fatalf("clamped proposal invalid: %v", v.Reason)
			}
			h.up(Committed)
			assertRange(t, h.get("a").Range(), at(20, 14, 0), at(20, 14, 15))
		})
	}
}

func TestResizeMinimumDurationProperty(t *testing.T) {
	ev := timed("a", 14, 0, 15, 0)
	h := newHarness(t, testSettings(), nil, ev)
	minDur := validate.MinimumDuration(15 * time.Minute)

	for _, edge := range []Edge{End, Start} {
		for delta := -900.0; delta <= 900; delta += 13 {
			moving, anchor := edgeTimes(ev.Range(), edge)
			p := Point{X: 300, Y: h.y(moving)}
			if !h.c.PressResizeHandle(h.ctx, ev, day, edge, p) {
				t.Fatalf("press refused at delta %v", delta)
			}
			h.c.PointerMove(Point{X: p.X, Y: p.Y + delta})
			r := h.c.View().Proposed
			if r.Duration() < minDur {
				t.Fatalf("edge %v delta %v: duration %v below %v", edge, delta, r.Duration(), minDur)
			}
			if _, gotAnchor := edgeTimes(r, edge); !gotAnchor.Equal(anchor) {
				t.Fatalf("edge %v delta %v: anchor moved to %v", edge, delta, gotAnchor)
			}
			h.c.Cancel()
		}
	}
}

func TestResizeTapBelowThreshold(t *testing.T) {
	ev := timed("a", 14, 0, 15, 0)
	h := newHarness(t, testSettings(), nil, ev)

	p := Point{X: 300, Y: h.y(ev.End)}
	h.c.PressResizeHandle(h.ctx, ev, day, End, p)
	h.c.PointerMove(Point{X: p.X, Y: p.Y + 3})
	h.c.PointerMove(Point{X: p.X, Y: p.Y})
	if got := h.c.View().State; got != Pending {
		t.Fatalf("state = %v, want pending", got)
	}
	if h.ann.count(AnnounceStarted) != 0 {
		t.Fatal("pending press announced a start")
	}
	h.up(Tap)
	if h.writes != 0 {
		t.Fatal("tap wrote to the store")
	}
}

func TestResizeThresholdAccumulates(t *testing.T) {
	ev := timed("a", 14, 0, 15, 0)
	h := newHarness(t, testSettings(), nil, ev)

	p := Point{X: 300, Y: h.y(ev.End)}
	h.c.PressResizeHandle(h.ctx, ev, day, End, p)
	// 5px down and back up is 10px of travel.
	h.c.PointerMove(Point{X: p.X, Y: p.Y + 5})
	h.c.PointerMove(Point{X: p.X, Y: p.Y})
	if got := h.c.View().State; got != Dragging {
		t.Fatalf("state = %v, want dragging", got)
	}
	if h.ann.count(AnnounceStarted) != 1 {
		t.Fatal("start not announced once")
	}
}

func TestResizeThresholdCountsSidewaysTravel(t *testing.T) {
	ev := timed("a", 14, 0, 15, 0)
	h := newHarness(t, testSettings(), nil, ev)

	p := Point{X: 300, Y: h.y(ev.End)}
	h.c.PressResizeHandle(h.ctx, ev, day, End, p)
	// 6px right then 6px down is 12px of travel, though only 6 of it vertical.
	h.c.PointerMove(Point{X: p.X + 6, Y: p.Y})
	if got := h.c.View().State; got != Pending {
		t.Fatalf("state after 6px = %v, want pending", got)
	}
	h.c.PointerMove(Point{X: p.X + 6, Y: p.Y + 6})
	if got := h.c.View().State; got != Dragging {
		t.Fatalf("state = %v, want dragging", got)
	}
}

func TestResizeRejectsAllDay(t *testing.T) {
	ev := timed("a", 14, 0, 15, 0)
	ev.AllDay = true
	h := newHarness(t, testSettings(), nil, ev)
	if h.c.PressResizeHandle(h.ctx, ev, day, End, Point{X: 300, Y: 60}) {
		t.Fatal("all-day resize accepted")
	}
	if h.c.BeginKeyboardResize(h.ctx, ev, day) {
		t.Fatal("all-day keyboard resize accepted")
	}
}

func TestResizeStartEdge(t *testing.T) {
	ev := timed("a", 14, 0, 15, 0)
	h := newHarness(t, testSettings(), nil, ev)

	p := Point{X: 300, Y: h.y(ev.Start)}
	h.c.PressResizeHandle(h.ctx, ev, day, Start, p)
	h.c.PointerMove(Point{X: p.X, Y: p.Y - 95})
	assertRange(t, h.c.View().Proposed, at(20, 12, 15), at(20, 15, 0))
	h.up(Committed)
	assertRange(t, h.get("a").Range(), at(20, 12, 15), at(20, 15, 0))
}

func TestAutoScrollFollowsLiveOffset(t *testing.T) {
	ev := timed("a", 14, 0, 15, 0)
	h := newHarness(t, testSettings(), nil, ev)

	p := Point{X: 300, Y: h.y(ev.End)}
	h.c.PressResizeHandle(h.ctx, ev, day, End, p)
	// The viewport's bottom edge is y 700: full speed.
	h.c.PointerMove(Point{X: p.X, Y: 700})
	v := h.c.View()
	if !v.Scrolling || v.ScrollSpeed != 12 {
		t.Fatalf("scrolling = %v at %v, want true at 12", v.Scrolling, v.ScrollSpeed)
	}
	assertRange(t, v.Proposed, at(20, 14, 0), at(20, 18, 0))

	h.clock.Advance(5 * 16 * time.Millisecond)
	if h.vp.offset != 540 {
		t.Fatalf("scroll offset = %v, want 540", h.vp.offset)
	}
	assertRange(t, h.c.View().Proposed, at(20, 14, 0), at(20, 19, 0))

	h.c.PointerMove(Point{X: p.X, Y: 400})
	if h.c.View().Scrolling {
		t.Fatal("still scrolling outside the band")
	}
	h.up(Committed)
	if n := h.clock.Pending(); n != 0 {
		t.Fatalf("%d timers pending after commit", n)
	}
}

func TestAutoScrollStopsAtLimit(t *testing.T) {
	ev := timed("a", 14, 0, 15, 0)
	h := newHarness(t, testSettings(), nil, ev)
	h.vp.offset = 830

	p := Point{X: 300, Y: h.y(ev.End)}
	h.c.PressResizeHandle(h.ctx, ev, day, End, p)
	h.c.PointerMove(Point{X: p.X, Y: 700})
	h.clock.Advance(time.Second)

	if h.vp.offset != 840 {
		t.Fatalf("scroll offset = %v, want the 840 limit", h.vp.offset)
	}
	if h.c.View().Scrolling {
		t.Fatal("auto-scroll still running at the limit")
	}
}

func TestResizeAcrossDays(t *testing.T) {
	ev := timed("a", 22, 0, 23, 0)
	h := newHarness(t, testSettings(), nil, ev)
	h.vp.offset = 840

	p := Point{X: 300, Y: h.y(ev.End)}
	h.c.PressResizeHandle(h.ctx, ev, day, End, p)
	h.c.PointerMove(Point{X: p.X, Y: p.Y + 10})
	h.c.PointerMove(Point{X: 480, Y: p.Y + 10})
	h.clock.Advance(16 * time.Millisecond)
	if !h.c.View().NavArmed {
		t.Fatal("extending navigation not armed")
	}
	h.clock.Advance(600 * time.Millisecond)
	if len(h.nav.calls) != 1 || h.nav.calls[0] != 1 {
		t.Fatalf("navigation calls = %v, want [1]", h.nav.calls)
	}

	// The next page opens scrolled to the top.
	h.vp.offset = 0
	h.c.DayChanged(h.ctx, at(21, 0, 0))
	// Pointer y 650 on the new page is 09:10, floored to 09:00.
	assertRange(t, h.c.View().Proposed, at(20, 22, 0), at(21, 9, 0))

	h.clock.Advance(time.Second)
	if len(h.nav.calls) != 1 {
		t.Fatalf("stationary pointer navigated again: %v", h.nav.calls)
	}

	h.c.PointerMove(Point{X: 300, Y: 160})
	assertRange(t, h.c.View().Proposed, at(20, 22, 0), at(21, 1, 0))
	h.up(Committed)
	assertRange(t, h.get("a").Range(), at(20, 22, 0), at(21, 1, 0))
}

func TestResizeShorteningNavigationNeedsSpan(t *testing.T) {
	ev := timed("a", 14, 0, 15, 0)
	h := newHarness(t, testSettings(), nil, ev)

	p := Point{X: 300, Y: h.y(ev.End)}
	h.c.PressResizeHandle(h.ctx, ev, day, End, p)
	h.c.PointerMove(Point{X: p.X, Y: p.Y + 10})
	h.c.PointerMove(Point{X: 120, Y: p.Y + 10})
	h.clock.Advance(time.Second)
	if v := h.c.View(); v.NavArmed || v.NavZone != 0 {
		t.Fatalf("shortening navigation armed for a single-day proposal (zone %d)", v.NavZone)
	}
	if len(h.nav.calls) != 0 {
		t.Fatalf("navigated %v", h.nav.calls)
	}
	h.c.Cancel()

	// The start edge extends to the left.
	p = Point{X: 300, Y: h.y(ev.Start)}
	h.c.PressResizeHandle(h.ctx, ev, day, Start, p)
	h.c.PointerMove(Point{X: p.X, Y: p.Y + 10})
	h.c.PointerMove(Point{X: 120, Y: p.Y + 10})
	h.clock.Advance(16 * time.Millisecond)
	if !h.c.View().NavArmed {
		t.Fatal("extending start-edge navigation not armed")
	}
}

func TestResizeBackToAnchorDayScrollsAnchorIntoView(t *testing.T) {
	ev := timed("a", 22, 0, 23, 0)
	h := newHarness(t, testSettings(), nil, ev)
	h.vp.offset = 840

	p := Point{X: 300, Y: h.y(ev.End)}
	h.c.PressResizeHandle(h.ctx, ev, day, End, p)
	h.c.PointerMove(Point{X: p.X, Y: p.Y + 10})
	h.c.PointerMove(Point{X: 480, Y: p.Y + 10})
	h.clock.Advance(616 * time.Millisecond)
	h.vp.offset = 0
	h.c.DayChanged(h.ctx, at(21, 0, 0))
	if !h.c.View().Proposed.SpansDays() {
		t.Fatal("proposal does not span days after extending")
	}

	// Shortening back is allowed now that the proposal spans days.
	h.c.PointerMove(Point{X: 120, Y: p.Y + 10})
	h.clock.Advance(616 * time.Millisecond)
	if len(h.nav.calls) != 2 || h.nav.calls[1] != -1 {
		t.Fatalf("navigation calls = %v, want [1 -1]", h.nav.calls)
	}

	// The previous page opens at the top; the pointer's 09:10 would sit
	// before the 22:00 anchor, so the anchor is scrolled into view.
	h.vp.offset = 0
	h.c.DayChanged(h.ctx, day)
	if h.vp.offset != 840 {
		t.Fatalf("scroll offset = %v, want 840", h.vp.offset)
	}
	v := h.c.View()
	assertRange(t, v.Proposed, at(20, 22, 0), at(20, 23, 0))
	if v.NavArmed {
		t.Fatal("shortening navigation armed once the proposal is a single day again")
	}
}
