package preview

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is the pause after the last edit before a preview renders.
const DefaultQuietPeriod = 300 * time.Millisecond

// Debouncer coalesces bursts of triggers into a single call that runs once
// the quiet period has passed without another trigger.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(seq uint64)
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// NewDebouncer returns a Debouncer calling fn with the sequence number of the
// trigger that won. Non-positive delays use DefaultQuietPeriod.
func NewDebouncer(delay time.Duration, fn func(seq uint64)) *Debouncer {
	if delay <= 0 {
		delay = DefaultQuietPeriod
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger restarts the quiet period and returns the trigger's sequence number.
func (d *Debouncer) Trigger() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return d.seq
	}
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(seq)
	})
	return seq
}

// Stop cancels any pending call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	current := !d.stopped && seq == d.seq
	d.mu.Unlock()
	if current {
		d.fn(seq)
	}
}

// Sequencer hands out request numbers and discards responses that arrive
// after a newer one has been applied.
type Sequencer struct {
	mu      sync.Mutex
	next    uint64
	applied uint64
}

// Next returns the number for a new request.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// Apply reports whether the response for seq is still current and, if so,
// records it as applied.
func (s *Sequencer) Apply(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		return false
	}
	s.applied = seq
	return true
}
