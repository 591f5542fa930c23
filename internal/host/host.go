// Package host runs an interaction controller on its own event loop and
// exposes keyboard sessions to other goroutines, such as HTTP handlers.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dayview/internal/interaction"
	appLog "dayview/internal/log"
	"dayview/internal/model"
	"dayview/internal/sched"
	"dayview/internal/store"
)

var (
	ErrBusy       = errors.New("host: another session is active")
	ErrNotOnDay   = errors.New("host: event is not shown on that day")
	ErrNotAllowed = errors.New("host: event cannot be edited that way")
)

// Host serializes every call onto the loop goroutine. Only keyboard
// sessions are offered; pointer input needs a view with real geometry.
type Host struct {
	loop  *sched.Loop
	ctrl  *interaction.Controller
	store store.Store
}

// New builds the controller on loop and subscribes it to st. Run the loop
// with loop.Run before calling any method.
func New(st store.Store, settings interaction.Settings, loop *sched.Loop, policy interaction.Policy) (*Host, func()) {
	h := &Host{loop: loop, store: st}
	h.ctrl = interaction.New(interaction.Deps{
		Store:     st,
		Policy:    policy,
		Announcer: interaction.AnnouncerFunc(logAnnouncement),
		Scheduler: loop,
	}, settings)
	cancel := st.Subscribe(func(ctx context.Context, ch store.Change) {
		loop.Post(func() { h.ctrl.OnStoreChange(context.WithoutCancel(ctx), ch) })
	})
	return h, cancel
}

// do runs fn on the loop and waits for it.
func (h *Host) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	go h.loop.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) View(ctx context.Context) (interaction.SessionView, error) {
	var v interaction.SessionView
	err := h.do(ctx, func() { v = h.ctrl.View() })
	return v, err
}

// Begin starts a keyboard move or resize of the event id shown on day.
func (h *Host) Begin(ctx context.Context, id string, day time.Time, mode interaction.Mode) error {
	events, err := h.store.EventsOn(ctx, day)
	if err != nil {
		return fmt.Errorf("read day: %w", err)
	}
	var ev model.CalendarEvent
	found := false
	for _, e := range events {
		if e.ID == id {
			ev, found = e, true
			break
		}
	}
	if !found {
		return ErrNotOnDay
	}

	var started, busy bool
	err = h.do(ctx, func() {
		if h.ctrl.Active() {
			busy = true
			return
		}
		// The loop context outlives the request that started the session.
		loopCtx := context.WithoutCancel(ctx)
		if mode == interaction.Resize {
			started = h.ctrl.BeginKeyboardResize(loopCtx, ev, day)
		} else {
			started = h.ctrl.BeginKeyboardMove(loopCtx, ev, day)
		}
	})
	switch {
	case err != nil:
		return err
	case busy:
		return ErrBusy
	case !started:
		return ErrNotAllowed
	}
	return nil
}

// Key applies k to the active keyboard session.
func (h *Host) Key(ctx context.Context, k interaction.Key) (interaction.Outcome, error) {
	var out interaction.Outcome
	var kerr error
	if err := h.do(ctx, func() {
		out, kerr = h.ctrl.HandleKey(context.WithoutCancel(ctx), k)
	}); err != nil {
		return interaction.None, err
	}
	return out, kerr
}

// Cancel ends the active session, if any.
func (h *Host) Cancel(ctx context.Context) (interaction.Outcome, error) {
	var out interaction.Outcome
	err := h.do(ctx, func() { out = h.ctrl.Cancel() })
	return out, err
}

func logAnnouncement(a interaction.Announcement) {
	appLog.Debug("session announcement",
		"kind", a.Kind.String(),
		"mode", a.Mode.String(),
		"event", a.Event.ID,
		"start", a.Range.Start.Format(time.RFC3339),
		"end", a.Range.End.Format(time.RFC3339),
		"valid", a.Valid,
	)
}
