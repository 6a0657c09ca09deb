// Package motion holds the per-axis state carried across servo periods:
// the position feedback accumulator and the acceleration-limited
// velocity planner.
package motion

import "picnc/protocol"

// Scales with a magnitude below this are treated as unset
const minScale = 1e-20

// Axis is the state of one step generator. Fields written by the outside
// world between cycles are PosCmd, Scale and MaxAccel; PosFb, Vel and
// MaxAccel (after clamping) are written back by the driver.
type Axis struct {
	PosCmd   float64 // commanded position, units
	PosFb    float64 // feedback position, units
	Scale    float64 // steps per unit
	MaxAccel float64 // units/s^2

	Vel        float64 // last planned velocity, steps/s
	PrevPosCmd float64 // previous command, steps
	InvScale   float64 // (1/2^StepBit) / Scale
	LastCount  int32   // last raw counter word
	Accum      int64   // extended position, 2^-StepBit step units

	prevScale float64
}

// NewAxis returns an axis with unit scale and acceleration
func NewAxis() Axis {
	a := Axis{Scale: 1.0, MaxAccel: 1.0}
	a.UpdateScale()
	return a
}

// UpdateScale recomputes the inverse scale when Scale has changed.
// A zero or near-zero scale is reset to 1.0.
func (a *Axis) UpdateScale() {
	if a.Scale == a.prevScale && a.InvScale != 0 {
		return
	}
	if a.Scale > -minScale && a.Scale < minScale {
		a.Scale = 1.0
	}
	a.prevScale = a.Scale
	a.InvScale = (1.0 / protocol.StepScale) / a.Scale
}

// Position returns the accumulated position in steps
func (a *Axis) Position() float64 {
	return float64(a.Accum) / protocol.StepScale
}
