package interaction

import (
	"testing"
	"time"
)

func TestScenarioD_EdgeNavigationFiresOnce(t *testing.T) {
	ev := timed("a", 9, 0, 10, 0)
	h := newHarness(t, testSettings(), nil, ev)
	p := h.beginMove(ev, 10)

	// Tile center at x 160 is inside the left 25% (x < 200).
	h.c.PointerMove(Point{X: 160, Y: p.Y})
	if v := h.c.View(); !v.NavArmed || v.NavZone != -1 {
		t.Fatalf("zone = %d armed = %v, want -1 armed", v.NavZone, v.NavArmed)
	}
	h.clock.Advance(599 * time.Millisecond)
	if len(h.nav.calls) != 0 {
		t.Fatalf("navigated early: %v", h.nav.calls)
	}
	h.clock.Advance(time.Millisecond)
	if len(h.nav.calls) != 1 || h.nav.calls[0] != -1 {
		t.Fatalf("navigation calls = %v, want [-1]", h.nav.calls)
	}
	if got := h.ann.last(); got.Kind != AnnounceNavigated || got.Direction != -1 {
		t.Fatalf("last announcement = %+v, want navigated -1", got)
	}

	h.clock.Advance(5 * time.Second)
	h.c.DayChanged(h.ctx, at(19, 0, 0))
	h.clock.Advance(5 * time.Second)
	if len(h.nav.calls) != 1 {
		t.Fatalf("stationary pointer navigated %d times", len(h.nav.calls))
	}
	v := h.c.View()
	if !v.Day.Equal(at(19, 0, 0)) {
		t.Fatalf("session day = %v, want the 19th", v.Day)
	}
	assertRange(t, v.Proposed, at(19, 9, 0), at(19, 10, 0))

	// Leaving and re-entering the zone navigates again.
	h.c.PointerMove(Point{X: 300, Y: p.Y})
	if h.c.View().NavArmed {
		t.Fatal("navigation still armed outside the zone")
	}
	h.c.PointerMove(Point{X: 160, Y: p.Y})
	h.clock.Advance(616 * time.Millisecond)
	if len(h.nav.calls) != 2 {
		t.Fatalf("navigation calls = %v, want two", h.nav.calls)
	}
}

func TestLeavingZoneDisarms(t *testing.T) {
	ev := timed("a", 9, 0, 10, 0)
	h := newHarness(t, testSettings(), nil, ev)
	p := h.beginMove(ev, 10)

	h.c.PointerMove(Point{X: 460, Y: p.Y})
	if v := h.c.View(); v.NavZone != 1 {
		t.Fatalf("zone = %d, want 1", v.NavZone)
	}
	h.clock.Advance(300 * time.Millisecond)
	h.c.PointerMove(Point{X: 300, Y: p.Y})
	h.clock.Advance(time.Second)
	if len(h.nav.calls) != 0 {
		t.Fatalf("navigated %v after leaving the zone", h.nav.calls)
	}
}

func TestUpdatesSkippedUntilDayChanged(t *testing.T) {
	ev := timed("a", 9, 0, 10, 0)
	h := newHarness(t, testSettings(), nil, ev)
	p := h.beginMove(ev, 10)

	h.c.PointerMove(Point{X: 160, Y: p.Y})
	h.clock.Advance(600 * time.Millisecond)
	if len(h.nav.calls) != 1 {
		t.Fatalf("navigation calls = %v", h.nav.calls)
	}

	// Geometry still describes the old page; nothing may be derived from it.
	before := h.c.View().Proposed
	h.c.PointerMove(Point{X: 160, Y: p.Y + 120})
	h.clock.Advance(20 * time.Millisecond)
	if got := h.c.View().Proposed; !got.Equal(before) {
		t.Fatalf("proposal changed to %v before the new day arrived", got)
	}

	h.c.DayChanged(h.ctx, at(19, 0, 0))
	assertRange(t, h.c.View().Proposed, at(19, 11, 0), at(19, 12, 0))
}

func TestRefusedNavigationResumesUpdates(t *testing.T) {
	ev := timed("a", 9, 0, 10, 0)
	h := newHarness(t, testSettings(), nil, ev)
	h.nav.refuse = true
	p := h.beginMove(ev, 10)

	h.c.PointerMove(Point{X: 160, Y: p.Y})
	h.clock.Advance(600 * time.Millisecond)
	if len(h.nav.calls) != 1 {
		t.Fatalf("navigation calls = %v", h.nav.calls)
	}
	h.c.PointerMove(Point{X: 300, Y: p.Y + 60})
	assertRange(t, h.c.View().Proposed, at(20, 10, 0), at(20, 11, 0))
}

func TestNavigationWithoutNavigator(t *testing.T) {
	ev := timed("a", 9, 0, 10, 0)
	h := newHarness(t, testSettings(), nil, ev)
	h.c.deps.Navigator = nil
	p := h.beginMove(ev, 10)

	h.c.PointerMove(Point{X: 160, Y: p.Y})
	if h.c.View().NavArmed {
		t.Fatal("navigation armed without a navigator")
	}
}
