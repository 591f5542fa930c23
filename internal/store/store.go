// Package store holds calendar events and answers per-day queries.
//
// Recurring series are stored once and expanded on read. Moving a single
// occurrence stores a detached event carrying the series ID and the
// occurrence's original start, which then replaces the generated instance.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"dayview/internal/model"
)

var (
	ErrNotFound  = errors.New("store: event not found")
	ErrInvalidID = errors.New("store: event id is empty")
)

type ChangeKind int

const (
	Created ChangeKind = iota
	Updated
	Deleted
	Reloaded
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	case Reloaded:
		return "reloaded"
	default:
		return "unknown"
	}
}

// Change describes one write. Reloaded carries the Source that was
// replaced instead of an EventID.
type Change struct {
	Kind    ChangeKind
	EventID string
	Source  string
}

// Listener is called after every successful write, on the writer's goroutine.
type Listener func(ctx context.Context, ch Change)

// Store is the event store the rest of the module reads and writes.
type Store interface {
	// EventsOn returns every event, expanded occurrences included, that
	// intersects day's calendar date.
	EventsOn(ctx context.Context, day time.Time) ([]model.CalendarEvent, error)

	Get(ctx context.Context, id string) (model.CalendarEvent, error)

	// All returns stored events (series unexpanded) ordered by start.
	All(ctx context.Context) ([]model.CalendarEvent, error)

	// Replace inserts ev or overwrites the stored event with the same ID.
	Replace(ctx context.Context, ev model.CalendarEvent) error

	// ModifyOccurrence stores ev as the detached occurrence of seriesID that
	// originally started at occurrenceStart, overwriting a previous
	// detachment of the same occurrence.
	ModifyOccurrence(ctx context.Context, seriesID string, occurrenceStart time.Time, ev model.CalendarEvent) (model.CalendarEvent, error)

	Delete(ctx context.Context, id string) error

	// ReplaceSource swaps every event imported from source for events.
	ReplaceSource(ctx context.Context, source string, events []model.CalendarEvent) error

	Subscribe(fn Listener) (cancel func())
}

// notifier fans changes out to listeners.
type notifier struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener
}

func (n *notifier) Subscribe(fn Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = make(map[int]Listener)
	}
	id := n.next
	n.next++
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

func (n *notifier) notify(ctx context.Context, ch Change) {
	n.mu.Lock()
	fns := make([]Listener, 0, len(n.listeners))
	for i := 0; i < n.next; i++ {
		if fn, ok := n.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(ctx, ch)
	}
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := model.DateOf(day)
	return start, start.AddDate(0, 0, 1)
}
