// Package signals is an in-process named-signal registry. Slots are
// created once at start-up and then read and written every cycle without
// locking; each slot has a single writer.
package signals

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	ErrDuplicate = errors.New("signal already exists")
	ErrNotFound  = errors.New("signal not found")
	ErrType      = errors.New("signal has a different type")
)

// Float is a float64 slot
type Float struct {
	bits atomic.Uint64
}

func (f *Float) Get() float64  { return math.Float64frombits(f.bits.Load()) }
func (f *Float) Set(v float64) { f.bits.Store(math.Float64bits(v)) }

// Bit is a boolean slot
type Bit struct {
	v atomic.Bool
}

func (b *Bit) Get() bool  { return b.v.Load() }
func (b *Bit) Set(v bool) { b.v.Store(v) }

// U32 is an unsigned counter slot
type U32 struct {
	v atomic.Uint32
}

func (u *U32) Get() uint32  { return u.v.Load() }
func (u *U32) Set(v uint32) { u.v.Store(v) }

// Registry maps names to slots. Registration and lookup lock; slot
// access does not.
type Registry struct {
	mu    sync.Mutex
	slots map[string]any
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]any)}
}

func (r *Registry) add(name string, slot any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.slots[name] = slot
	return nil
}

// NewFloat creates a float slot with an initial value
func (r *Registry) NewFloat(name string, v float64) (*Float, error) {
	f := &Float{}
	f.Set(v)
	if err := r.add(name, f); err != nil {
		return nil, err
	}
	return f, nil
}

// NewBit creates a boolean slot with an initial value
func (r *Registry) NewBit(name string, v bool) (*Bit, error) {
	b := &Bit{}
	b.Set(v)
	if err := r.add(name, b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewU32 creates a counter slot with an initial value
func (r *Registry) NewU32(name string, v uint32) (*U32, error) {
	u := &U32{}
	u.Set(v)
	if err := r.add(name, u); err != nil {
		return nil, err
	}
	return u, nil
}

func lookup[T any](r *Registry, name string) (T, error) {
	r.mu.Lock()
	slot, ok := r.slots[name]
	r.mu.Unlock()

	var zero T
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	t, ok := slot.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrType, name)
	}
	return t, nil
}

// Float looks up a float slot
func (r *Registry) Float(name string) (*Float, error) {
	return lookup[*Float](r, name)
}

// Bit looks up a boolean slot
func (r *Registry) Bit(name string) (*Bit, error) {
	return lookup[*Bit](r, name)
}

// U32 looks up a counter slot
func (r *Registry) U32(name string) (*U32, error) {
	return lookup[*U32](r, name)
}

// Names returns all signal names, sorted
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Value returns the current value of a slot for display
func (r *Registry) Value(name string) (any, bool) {
	r.mu.Lock()
	slot, ok := r.slots[name]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	switch s := slot.(type) {
	case *Float:
		return s.Get(), true
	case *Bit:
		return s.Get(), true
	case *U32:
		return s.Get(), true
	}
	return nil, false
}
