package interaction

import (
	"testing"
	"time"

	"dayview/internal/model"
	"dayview/internal/validate"
)

// TestKeyboardMatchesPointer drives the same logical delta through both
// input modalities and expects identical proposals.
func TestKeyboardMatchesPointer(t *testing.T) {
	onGrid := timed("a", 14, 0, 15, 0)
	offGrid := timed("a", 9, 10, 10, 10)
	nine := timed("a", 9, 0, 10, 0)
	cases := []struct {
		name   string
		st     Settings
		ev     model.CalendarEvent
		others []model.CalendarEvent
		mode   Mode
		edge   Edge
		delta  float64
		keys   []Key
	}{
		{"move down two slots", testSettings(), onGrid, nil, Move, End, 30, []Key{KeyDown, KeyDown}},
		{"move up three slots", testSettings(), onGrid, nil, Move, End, -45, []Key{KeyUp, KeyUp, KeyUp}},
		{"extend end", testSettings(), onGrid, nil, Resize, End, 30, []Key{KeyDown, KeyDown}},
		{"shrink end past minimum", testSettings(), onGrid, nil, Resize, End, -60, []Key{KeyUp, KeyUp, KeyUp, KeyUp}},
		{"shrink start", testSettings(), onGrid, nil, Resize, Start, 15, []Key{KeyTab, KeyDown}},
		{"extend start", testSettings(), onGrid, nil, Resize, Start, -30, []Key{KeyTab, KeyUp, KeyUp}},
		{"move off-grid event", testSettings(), offGrid, nil, Move, End, 15, []Key{KeyDown}},
		{"move off-grid event up twice", testSettings(), offGrid, nil, Move, End, -30, []Key{KeyUp, KeyUp}},
		{"resize off-grid end", testSettings(), offGrid, nil, Resize, End, 15, []Key{KeyDown}},
		{"move onto nearby boundary", DefaultSettings(), nine,
			[]model.CalendarEvent{timed("b", 8, 0, 9, 17)}, Move, End, 15, []Key{KeyDown}},
		{"resize onto nearby boundary", DefaultSettings(), nine,
			[]model.CalendarEvent{timed("b", 10, 33, 11, 0)}, Resize, End, 30, []Key{KeyDown, KeyDown}},
		{"move past boundary out of range", DefaultSettings(), nine,
			[]model.CalendarEvent{timed("b", 8, 0, 9, 17)}, Move, End, 45, []Key{KeyDown, KeyDown, KeyDown}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := tc.ev
			h := newHarness(t, tc.st, nil, append([]model.CalendarEvent{ev}, tc.others...)...)

			switch tc.mode {
			case Move:
				p := h.beginMove(ev, 10)
				h.c.PointerMove(Point{X: p.X, Y: p.Y + tc.delta})
			case Resize:
				edgeTime, _ := edgeTimes(ev.Range(), tc.edge)
				p := Point{X: 300, Y: h.y(edgeTime)}
				h.c.PressResizeHandle(h.ctx, ev, day, tc.edge, p)
				h.c.PointerMove(Point{X: p.X, Y: p.Y + tc.delta})
			}
			pointer := h.c.View()
			h.c.Cancel()

			switch tc.mode {
			case Move:
				h.c.BeginKeyboardMove(h.ctx, ev, day)
			case Resize:
				h.c.BeginKeyboardResize(h.ctx, ev, day)
			}
			for _, k := range tc.keys {
				if _, err := h.c.HandleKey(h.ctx, k); err != nil {
					t.Fatalf("HandleKey(%v): %v", k, err)
				}
			}
			keyboard := h.c.View()

			if !pointer.Proposed.Equal(keyboard.Proposed) || pointer.Valid != keyboard.Valid {
				t.Fatalf("pointer %v..%v valid=%v, keyboard %v..%v valid=%v",
					pointer.Proposed.Start, pointer.Proposed.End, pointer.Valid,
					keyboard.Proposed.Start, keyboard.Proposed.End, keyboard.Valid)
			}
			if keyboard.Edge != tc.edge {
				t.Fatalf("keyboard edge = %v, want %v", keyboard.Edge, tc.edge)
			}
		})
	}
}

func TestKeyboardSnapsLikePointer(t *testing.T) {
	cases := []struct {
		name      string
		st        Settings
		ev        model.CalendarEvent
		others    []model.CalendarEvent
		wantStart time.Time
	}{
		{"off-grid start floors to slot", testSettings(), timed("a", 9, 10, 10, 10), nil, at(20, 9, 15)},
		{"boundary within range wins", DefaultSettings(), timed("a", 9, 0, 10, 0),
			[]model.CalendarEvent{timed("b", 8, 0, 9, 17)}, at(20, 9, 17)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.st, nil, append([]model.CalendarEvent{tc.ev}, tc.others...)...)
			h.c.BeginKeyboardMove(h.ctx, tc.ev, day)
			h.c.HandleKey(h.ctx, KeyDown)
			assertRange(t, h.c.View().Proposed, tc.wantStart, tc.wantStart.Add(time.Hour))
		})
	}
}

func TestKeyboardDayStepReloadsBoundaries(t *testing.T) {
	ev := timed("a", 9, 0, 10, 0)
	next := model.CalendarEvent{ID: "b", Start: at(21, 8, 0), End: at(21, 9, 17)}
	h := newHarness(t, DefaultSettings(), nil, ev, next)

	h.c.BeginKeyboardMove(h.ctx, ev, day)
	h.c.HandleKey(h.ctx, KeyRight)
	h.c.HandleKey(h.ctx, KeyDown)
	assertRange(t, h.c.View().Proposed, at(21, 9, 17), at(21, 10, 17))
}

func TestKeyboardMoveCommit(t *testing.T) {
	ev := timed("a", 9, 0, 10, 0)
	h := newHarness(t, testSettings(), nil, ev)

	h.c.BeginKeyboardMove(h.ctx, ev, day)
	for _, k := range []Key{KeyRight, KeyDown, KeyDown} {
		h.c.HandleKey(h.ctx, k)
	}
	assertRange(t, h.c.View().Proposed, at(21, 9, 30), at(21, 10, 30))

	got, err := h.c.HandleKey(h.ctx, KeyEnter)
	if err != nil || got != Committed {
		t.Fatalf("Enter = %v, %v; want committed", got, err)
	}
	assertRange(t, h.get("a").Range(), at(21, 9, 30), at(21, 10, 30))
}

func TestKeyboardEscapeCancels(t *testing.T) {
	ev := timed("a", 9, 0, 10, 0)
	h := newHarness(t, testSettings(), nil, ev)

	h.c.BeginKeyboardResize(h.ctx, ev, day)
	h.c.HandleKey(h.ctx, KeyDown)
	got, _ := h.c.HandleKey(h.ctx, KeyEscape)
	if got != Aborted {
		t.Fatalf("Escape = %v, want cancelled", got)
	}
	if h.c.Active() || h.writes != 0 {
		t.Fatalf("active = %v writes = %d after escape", h.c.Active(), h.writes)
	}
}

func TestKeyboardDateBounds(t *testing.T) {
	st := testSettings()
	st.MaxDate = at(21, 0, 0)
	ev := timed("a", 9, 0, 10, 0)
	h := newHarness(t, st, nil, ev)

	h.c.BeginKeyboardMove(h.ctx, ev, day)
	h.c.HandleKey(h.ctx, KeyRight)
	if !h.c.View().Valid {
		t.Fatal("move onto the max date rejected")
	}
	h.c.HandleKey(h.ctx, KeyRight)
	if v := h.c.View(); v.Valid || v.Reason != validate.OutOfBounds {
		t.Fatalf("verdict = %v/%v, want invalid out of bounds", v.Valid, v.Reason)
	}
	got, _ := h.c.HandleKey(h.ctx, KeyEnter)
	if got != Invalid {
		t.Fatalf("Enter = %v, want invalid", got)
	}
	assertRange(t, h.get("a").Range(), at(20, 9, 0), at(20, 10, 0))
}

func TestKeyboardAllDayMove(t *testing.T) {
	ev := model.CalendarEvent{ID: "h", Start: at(20, 0, 0), End: at(21, 0, 0), AllDay: true}
	h := newHarness(t, testSettings(), nil, ev)

	h.c.BeginKeyboardMove(h.ctx, ev, day)
	h.c.HandleKey(h.ctx, KeyDown)
	assertRange(t, h.c.View().Proposed, at(20, 0, 0), at(21, 0, 0))
	h.c.HandleKey(h.ctx, KeyLeft)
	v := h.c.View()
	assertRange(t, v.Proposed, at(19, 0, 0), at(20, 0, 0))
	if !v.Proposed.AllDay {
		t.Fatal("day shift lost all-day")
	}
}

func TestKeysIgnoredForPointerSession(t *testing.T) {
	ev := timed("a", 9, 0, 10, 0)
	h := newHarness(t, testSettings(), nil, ev)
	h.beginMove(ev, 10)

	if got, _ := h.c.HandleKey(h.ctx, KeyEnter); got != None {
		t.Fatalf("Enter on pointer session = %v, want none", got)
	}
	if !h.c.Active() {
		t.Fatal("pointer session ended by a key")
	}
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		in   string
		want Key
		ok   bool
	}{
		{"down", KeyDown, true},
		{" Enter ", KeyEnter, true},
		{"ESC", KeyEscape, true},
		{"tab", KeyTab, true},
		{"space", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseKey(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseKey(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
