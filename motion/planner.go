package motion

import "math"

const (
	// Remaining position error, in steps, below which the planner just
	// matches the commanded velocity
	posTolerance = 1e-4
	// Command to feedback latency, in periods
	latency = 1.5
)

// Limits are the per-period planning bounds shared by all axes
type Limits struct {
	Dt          float64 // period, s
	Recip       float64 // 1/Dt
	MaxVel      float64 // steps/s
	MaxAccelAbs float64 // steps/s^2, the most one period can change
}

// Plan computes the next velocity in steps/s. It tracks the commanded
// ramp while never changing velocity by more than the acceleration limit
// in one period, and looks ahead to the end of the velocity match so the
// output converges on the commanded position rather than only its
// velocity. Every branch yields a velocity; there is no error path.
func (a *Axis) Plan(lim Limits) float64 {
	a.UpdateScale()
	scale := math.Abs(a.Scale)
	dt, recip := lim.Dt, lim.Recip

	// Clamp the acceleration limit to what the hardware can do and write
	// the clamped value back
	maxAccel := a.MaxAccel * scale
	if maxAccel > lim.MaxAccelAbs {
		maxAccel = lim.MaxAccelAbs
		a.MaxAccel = maxAccel / scale
	} else if maxAccel <= 0 {
		maxAccel = 0
		a.MaxAccel = 0
	}

	posCmd := a.PosCmd * a.Scale
	velCmd := (posCmd - a.PrevPosCmd) * recip
	a.PrevPosCmd = posCmd
	velCmd = clamp(velCmd, -lim.MaxVel, lim.MaxVel)

	oldVel := a.Vel
	if maxAccel == 0 {
		// Frozen: no acceleration allowed
		return a.setVel(oldVel, lim.MaxVel)
	}

	matchAccel := -maxAccel
	if velCmd > oldVel {
		matchAccel = maxAccel
	}
	matchTime := (velCmd - oldVel) / matchAccel

	// Where we end up if the match runs to completion, and where the
	// command will be by then
	estOut := a.Position() + (velCmd+oldVel)*0.5*matchTime
	estCmd := posCmd + velCmd*(matchTime-latency*dt)
	estErr := estOut - estCmd

	var newVel float64
	if matchTime < dt {
		if math.Abs(estErr) < posTolerance {
			newVel = velCmd
		} else {
			newVel = velCmd - 0.5*estErr*recip
			newVel = clamp(newVel, oldVel-maxAccel*dt, oldVel+maxAccel*dt)
		}
	} else {
		// Ramping the other way for one period shifts the final position
		// by dp; take whichever direction leaves less error
		dv := -2.0 * matchAccel * dt
		dp := dv * matchTime
		if math.Abs(estErr+dp*2.0) < math.Abs(estErr) {
			matchAccel = -matchAccel
		}
		newVel = oldVel + matchAccel*dt
	}

	return a.setVel(newVel, lim.MaxVel)
}

func (a *Axis) setVel(v, maxVel float64) float64 {
	a.Vel = clamp(v, -maxVel, maxVel)
	return a.Vel
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
