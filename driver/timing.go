package driver

import (
	"picnc/motion"
	"picnc/protocol"
)

// Timing holds the limits derived from the servo period. They are
// recomputed only when the period changes.
type Timing struct {
	PeriodNs    int64
	Dt          float64 // s
	Recip       float64 // 1/s
	MaxVel      float64 // steps/s
	MaxAccelAbs float64 // steps/s^2

	stepLen uint32
}

// NewTiming creates the timing for a step pulse length in DDS ticks.
// One step needs stepLen ticks high and stepLen ticks low.
func NewTiming(stepLen uint32) Timing {
	return Timing{
		stepLen: stepLen,
		MaxVel:  protocol.BaseFreq / (2 * float64(stepLen)),
	}
}

// Update recomputes the limits if periodNs differs from the cached
// period and reports whether it did
func (t *Timing) Update(periodNs int64) bool {
	if periodNs == t.PeriodNs || periodNs <= 0 {
		return false
	}
	t.PeriodNs = periodNs
	t.Dt = float64(periodNs) * 1e-9
	t.Recip = 1.0 / t.Dt
	t.MaxAccelAbs = t.MaxVel * t.Recip
	return true
}

// Limits returns the planner bounds
func (t *Timing) Limits() motion.Limits {
	return motion.Limits{
		Dt:          t.Dt,
		Recip:       t.Recip,
		MaxVel:      t.MaxVel,
		MaxAccelAbs: t.MaxAccelAbs,
	}
}
