package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dayview/internal/model"
)

// Memory is an in-process Store.
type Memory struct {
	notifier

	mu     sync.RWMutex
	events map[string]model.CalendarEvent
}

func NewMemory(events ...model.CalendarEvent) *Memory {
	m := &Memory{events: make(map[string]model.CalendarEvent, len(events))}
	for _, ev := range events {
		m.events[ev.ID] = clone(ev)
	}
	return m
}

func (m *Memory) EventsOn(_ context.Context, day time.Time) ([]model.CalendarEvent, error) {
	m.mu.RLock()
	stored := m.snapshot()
	m.mu.RUnlock()
	return expandDay(stored, day), nil
}

func (m *Memory) Get(_ context.Context, id string) (model.CalendarEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return model.CalendarEvent{}, ErrNotFound
	}
	return clone(ev), nil
}

func (m *Memory) All(_ context.Context) ([]model.CalendarEvent, error) {
	m.mu.RLock()
	out := m.snapshot()
	m.mu.RUnlock()
	sortEvents(out)
	return out, nil
}

func (m *Memory) Replace(ctx context.Context, ev model.CalendarEvent) error {
	if ev.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	_, existed := m.events[ev.ID]
	m.events[ev.ID] = clone(ev)
	m.mu.Unlock()

	kind := Updated
	if !existed {
		kind = Created
	}
	m.notify(ctx, Change{Kind: kind, EventID: ev.ID})
	return nil
}

func (m *Memory) ModifyOccurrence(ctx context.Context, seriesID string, occurrenceStart time.Time, ev model.CalendarEvent) (model.CalendarEvent, error) {
	m.mu.Lock()
	if _, ok := m.events[seriesID]; !ok {
		m.mu.Unlock()
		return model.CalendarEvent{}, ErrNotFound
	}

	stored := detach(ev, seriesID, occurrenceStart)
	kind := Created
	for id, existing := range m.events {
		if existing.SeriesID == seriesID && existing.RecurrenceID != nil && existing.RecurrenceID.Equal(occurrenceStart) {
			stored.ID = id
			kind = Updated
			break
		}
	}
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	m.events[stored.ID] = clone(stored)
	m.mu.Unlock()

	m.notify(ctx, Change{Kind: kind, EventID: stored.ID})
	return stored, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.events[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.events, id)
	m.mu.Unlock()

	m.notify(ctx, Change{Kind: Deleted, EventID: id})
	return nil
}

func (m *Memory) ReplaceSource(ctx context.Context, source string, events []model.CalendarEvent) error {
	m.mu.Lock()
	for id, ev := range m.events {
		if ev.Source == source {
			delete(m.events, id)
		}
	}
	for _, ev := range events {
		ev.Source = source
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		m.events[ev.ID] = clone(ev)
	}
	m.mu.Unlock()

	m.notify(ctx, Change{Kind: Reloaded, Source: source})
	return nil
}

func (m *Memory) snapshot() []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, clone(ev))
	}
	return out
}

// detach shapes ev as the stored exception for one occurrence of seriesID.
func detach(ev model.CalendarEvent, seriesID string, occurrenceStart time.Time) model.CalendarEvent {
	rid := occurrenceStart
	ev.ID = ""
	ev.SeriesID = seriesID
	ev.RecurrenceID = &rid
	ev.RecurrenceRule = ""
	ev.ExDates = nil
	return ev
}

// clone copies the pointer and slice fields so callers never share storage.
func clone(ev model.CalendarEvent) model.CalendarEvent {
	if ev.RecurrenceID != nil {
		rid := *ev.RecurrenceID
		ev.RecurrenceID = &rid
	}
	if ev.ExDates != nil {
		ev.ExDates = append([]time.Time(nil), ev.ExDates...)
	}
	return ev
}
