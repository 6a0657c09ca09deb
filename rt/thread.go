// Package rt runs functions periodically in a fixed order, one cycle at
// a time, on a single goroutine.
package rt

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
)

var ErrRunning = errors.New("thread already running")

// Funct is called once per cycle with the thread period in nanoseconds
type Funct func(periodNs int64)

type funct struct {
	name string
	fn   Funct
}

// Stats are the thread counters
type Stats struct {
	Cycles   uint64
	Overruns uint64        // activations more than one period late
	MaxLate  time.Duration // worst lateness seen
}

// Thread is a periodic servo thread
type Thread struct {
	Name string

	period  time.Duration
	log     *zap.Logger
	functs  []funct
	stats   Stats
	running bool
}

// NewThread creates a thread with a nominal period
func NewThread(name string, period time.Duration, log *zap.Logger) *Thread {
	if log == nil {
		log = zap.NewNop()
	}
	return &Thread{
		Name:   name,
		period: period,
		log:    log.With(zap.String("thread", name)),
	}
}

// AddFunct appends fn to the cycle. Functs run in the order added.
func (t *Thread) AddFunct(name string, fn Funct) {
	t.functs = append(t.functs, funct{name: name, fn: fn})
}

// Functs returns the funct names in call order
func (t *Thread) Functs() []string {
	names := make([]string, len(t.functs))
	for i, f := range t.functs {
		names[i] = f.name
	}
	return names
}

// Period returns the nominal period
func (t *Thread) Period() time.Duration {
	return t.period
}

// SetPeriod changes the period passed to functs from the next cycle on.
// A running ticker keeps its original rate.
func (t *Thread) SetPeriod(d time.Duration) {
	t.period = d
}

// Stats returns a copy of the counters
func (t *Thread) Stats() Stats {
	return t.stats
}

// cycle calls every funct once
func (t *Thread) cycle() {
	periodNs := t.period.Nanoseconds()
	for _, f := range t.functs {
		f.fn(periodNs)
	}
	t.stats.Cycles++
}

// RunCycles runs n cycles back to back without waiting
func (t *Thread) RunCycles(n int) {
	for i := 0; i < n; i++ {
		t.cycle()
	}
}

// Run runs cycles on a ticker until ctx is done. The calling goroutine
// stays on its OS thread for the duration.
func (t *Thread) Run(ctx context.Context) error {
	if t.running {
		return ErrRunning
	}
	t.running = true
	defer func() { t.running = false }()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	t.log.Info("thread started",
		zap.Duration("period", t.period),
		zap.Strings("functs", t.Functs()))

	next := time.Now().Add(t.period)
	for {
		select {
		case <-ctx.Done():
			t.log.Info("thread stopped",
				zap.Uint64("cycles", t.stats.Cycles),
				zap.Uint64("overruns", t.stats.Overruns),
				zap.Duration("max_late", t.stats.MaxLate))
			return nil
		case now := <-ticker.C:
			late := now.Sub(next)
			if late > t.stats.MaxLate {
				t.stats.MaxLate = late
			}
			if late > t.period {
				t.stats.Overruns++
			}
			next = now.Add(t.period)
			t.cycle()
		}
	}
}
