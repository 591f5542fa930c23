// Package sched provides the timers the interaction engine runs on.
//
// The engine is single-threaded: every input handler and every timer
// callback must run on one goroutine. Loop gives production code that
// guarantee by funnelling timer callbacks onto a queue drained by Run.
// Fake gives tests a manual clock whose callbacks run synchronously inside
// Advance.
package sched

import (
	"context"
	"sort"
	"sync/atomic"
	"time"
)

// Timer is a pending callback. Stop reports whether it prevented the call.
type Timer interface {
	Stop() bool
}

// Scheduler is a clock that can run a callback after a delay.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop executes posted functions one at a time on the goroutine calling Run.
type Loop struct {
	queue chan func()
	done  chan struct{}
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn. It is safe from any goroutine; after Run returns it
// drops fn.
func (l *Loop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Run drains the queue until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

// AfterFunc runs fn on the loop after d. Stop called on the loop goroutine
// guarantees fn will not run afterwards, even if the underlying timer has
// already fired and queued it.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped.Load() {
				return
			}
			lt.stopped.Store(true)
			fn()
		})
	})
	return lt
}

type loopTimer struct {
	t       *time.Timer
	stopped atomic.Bool
}

func (lt *loopTimer) Stop() bool {
	if lt.stopped.Swap(true) {
		return false
	}
	lt.t.Stop()
	return true
}

// Fake is a manually advanced Scheduler. It is not goroutine-safe.
type Fake struct {
	now    time.Time
	seq    int
	timers []*fakeTimer
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time { return f.now }

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	f.seq++
	ft := &fakeTimer{due: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, ft)
	return ft
}

// Advance moves the clock forward by d, firing every timer that comes due
// in due-time order, including timers scheduled by earlier callbacks.
func (f *Fake) Advance(d time.Duration) {
	target := f.now.Add(d)
	for {
		next := f.nextDue(target)
		if next == nil {
			break
		}
		f.now = next.due
		next.stopped = true
		next.fn()
	}
	f.now = target
}

// Pending counts timers that have neither fired nor been stopped.
func (f *Fake) Pending() int {
	n := 0
	for _, t := range f.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (f *Fake) nextDue(limit time.Time) *fakeTimer {
	live := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	f.timers = live
	sort.SliceStable(f.timers, func(i, j int) bool {
		a, b := f.timers[i], f.timers[j]
		if !a.due.Equal(b.due) {
			return a.due.Before(b.due)
		}
		return a.seq < b.seq
	})
	if len(f.timers) == 0 || f.timers[0].due.After(limit) {
		return nil
	}
	return f.timers[0]
}

type fakeTimer struct {
	due     time.Time
	seq     int
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}
