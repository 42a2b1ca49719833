// Package backoff implements the capped exponential backoff used inside
// CAS retry loops. It is a contention knob, never part of correctness: a
// zero Backoff is valid and simply spins with the defaults.
package backoff

import "runtime"

const (
	DefaultMinSpins = 4
	DefaultMaxSpins = 1024
)

// Config bounds the number of relax hints issued per Wait.
type Config struct {
	MinSpins int
	MaxSpins int
}

// Backoff tracks the current delay of one retry loop. It is owned by one
// goroutine and lives on its stack.
type Backoff struct {
	min, max int
	cur      int
}

// New returns a Backoff with defaults filled for zero fields.
func New(cfg Config) Backoff {
	b := Backoff{min: cfg.MinSpins, max: cfg.MaxSpins}
	if b.min <= 0 {
		b.min = DefaultMinSpins
	}
	if b.max < b.min {
		b.max = DefaultMaxSpins
		if b.max < b.min {
			b.max = b.min
		}
	}
	return b
}

// Wait delays the caller. The delay doubles on every call up to the cap;
// once capped, the goroutine also yields its P so a preempted CAS winner
// can finish.
func (b *Backoff) Wait() {
	if b.min == 0 {
		*b = New(Config{})
	}
	if b.cur == 0 {
		b.cur = b.min
	}
	for i := 0; i < b.cur; i++ {
		cpuRelax()
	}
	if b.cur >= b.max {
		runtime.Gosched()
		return
	}
	b.cur <<= 1
	if b.cur > b.max {
		b.cur = b.max
	}
}

// Reset drops the delay back to the minimum.
func (b *Backoff) Reset() { b.cur = 0 }

// Spins reports the delay the next Wait will use.
func (b *Backoff) Spins() int {
	if b.cur == 0 {
		if b.min == 0 {
			return DefaultMinSpins
		}
		return b.min
	}
	return b.cur
}
