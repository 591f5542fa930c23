package sched

import "time"

// Debouncer fires a callback once after a zone has been held for a delay.
//
// Arm is idempotent for the same (owner, key): the pending timer is left
// alone, and once the callback has fired the pair stays latched so it cannot
// fire again until Disarm. Arming a different pair replaces the old one.
type Debouncer struct {
	s     Scheduler
	delay time.Duration

	timer Timer
	owner uint64
	key   int
	armed bool
	fired bool
	gen   uint64
}

func NewDebouncer(s Scheduler, delay time.Duration) *Debouncer {
	return &Debouncer{s: s, delay: delay}
}

// Arm schedules fire for (owner, key). It reports whether a new timer was
// started.
func (d *Debouncer) Arm(owner uint64, key int, fire func()) bool {
	if (d.armed || d.fired) && d.owner == owner && d.key == key {
		return false
	}
	d.Disarm()
	d.owner, d.key, d.armed = owner, key, true
	d.gen++
	gen := d.gen
	d.timer = d.s.AfterFunc(d.delay, func() {
		if gen != d.gen || !d.armed {
			return
		}
		d.armed = false
		d.fired = true
		d.timer = nil
		fire()
	})
	return true
}

// Disarm cancels a pending fire and clears the latch.
func (d *Debouncer) Disarm() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.armed = false
	d.fired = false
	d.key = 0
	d.owner = 0
}

func (d *Debouncer) Armed() bool { return d.armed }

// Fired reports whether the current (owner, key) has already fired.
func (d *Debouncer) Fired() bool { return d.fired }

// Throttle coalesces bursts of calls to at most one run per interval. The
// first call in a quiet period runs immediately; later calls within the
// interval replace each other and the latest runs when the interval ends.
type Throttle struct {
	s        Scheduler
	interval time.Duration

	timer   Timer
	pending func()
	gen     uint64
}

func NewThrottle(s Scheduler, interval time.Duration) *Throttle {
	return &Throttle{s: s, interval: interval}
}

func (t *Throttle) Do(fn func()) {
	if t.timer != nil {
		t.pending = fn
		return
	}
	gen := t.gen
	fn()
	if t.timer == nil && gen == t.gen {
		t.arm()
	}
}

// Flush runs the pending call, if any, and ends the current interval.
func (t *Throttle) Flush() {
	fn := t.pending
	t.Stop()
	if fn != nil {
		fn()
	}
}

// Stop drops the pending call and ends the current interval.
func (t *Throttle) Stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
	t.gen++
}

// Busy reports whether an interval is open.
func (t *Throttle) Busy() bool { return t.timer != nil }

func (t *Throttle) arm() {
	var self Timer
	self = t.s.AfterFunc(t.interval, func() {
		if t.timer != self {
			return
		}
		t.timer = nil
		if fn := t.pending; fn != nil {
			t.pending = nil
			gen := t.gen
			fn()
			if t.timer == nil && gen == t.gen {
				t.arm()
			}
		}
	})
	t.timer = self
}

// Repeater calls fn every interval until stopped.
type Repeater struct {
	s        Scheduler
	interval time.Duration

	timer Timer
	fn    func()
	gen   uint64
}

func NewRepeater(s Scheduler, interval time.Duration) *Repeater {
	return &Repeater{s: s, interval: interval}
}

// Start begins ticking, or swaps the callback if already running.
func (r *Repeater) Start(fn func()) {
	r.fn = fn
	if r.timer != nil {
		return
	}
	r.gen++
	r.schedule(r.gen)
}

func (r *Repeater) Stop() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
	r.fn = nil
}

func (r *Repeater) Running() bool { return r.timer != nil }

func (r *Repeater) schedule(gen uint64) {
	r.timer = r.s.AfterFunc(r.interval, func() {
		if gen != r.gen {
			return
		}
		r.schedule(gen)
		if fn := r.fn; fn != nil {
			fn()
		}
	})
}
