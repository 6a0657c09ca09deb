package core

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

var (
	ErrUnsupported = errors.New("register mapping not supported on this platform")
)

// Region is a block of 32-bit hardware registers. Offsets are in bytes
// and must be 4-byte aligned.
type Region interface {
	Read32(off uintptr) uint32
	Write32(off uintptr, v uint32)
	Close() error
}

// wordRegion accesses registers through a word slice. Every access is a
// single 32-bit load or store so mapped device memory sees exactly one
// bus cycle.
type wordRegion struct {
	words []uint32
}

func (r *wordRegion) Read32(off uintptr) uint32 {
	return atomic.LoadUint32(&r.words[off>>2])
}

func (r *wordRegion) Write32(off uintptr, v uint32) {
	atomic.StoreUint32(&r.words[off>>2], v)
}

func wordsOf(b []byte) []uint32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// MemRegion is a Region backed by ordinary memory. Hooks let tests model
// registers with side effects (FIFOs, status bits).
type MemRegion struct {
	wordRegion

	// OnRead, when set, may override the value returned for an offset
	OnRead func(off uintptr) (uint32, bool)
	// OnWrite, when set, is called after every store
	OnWrite func(off uintptr, v uint32)
}

// NewMemRegion allocates a zeroed region of size bytes
func NewMemRegion(size int) *MemRegion {
	return &MemRegion{wordRegion: wordRegion{words: make([]uint32, size/4)}}
}

func (r *MemRegion) Read32(off uintptr) uint32 {
	if r.OnRead != nil {
		if v, ok := r.OnRead(off); ok {
			return v
		}
	}
	return r.wordRegion.Read32(off)
}

func (r *MemRegion) Write32(off uintptr, v uint32) {
	r.wordRegion.Write32(off, v)
	if r.OnWrite != nil {
		r.OnWrite(off, v)
	}
}

// Peek reads the stored value without running hooks
func (r *MemRegion) Peek(off uintptr) uint32 {
	return r.wordRegion.Read32(off)
}

func (r *MemRegion) Close() error {
	return nil
}
