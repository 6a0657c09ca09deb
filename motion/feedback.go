package motion

// Accumulate extends a wrapping 32-bit counter into the 64-bit
// accumulator and refreshes PosFb. The true motion between two calls
// must stay well below 2^31 counts; this is not checked.
func (a *Axis) Accumulate(raw int32) {
	delta := raw - a.LastCount
	a.LastCount = raw
	a.Accum += int64(delta)
	a.PosFb = float64(a.Accum) * a.InvScale
}

// Refresh recomputes PosFb from the accumulator without a new sample,
// so a scale change shows up even on cycles whose feedback was dropped
func (a *Axis) Refresh() {
	a.PosFb = float64(a.Accum) * a.InvScale
}
