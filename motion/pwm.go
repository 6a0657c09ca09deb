package motion

import "picnc/protocol"

// PWM is the single duty-cycle output of the coprocessor
type PWM struct {
	Duty  float64 // commanded value
	Scale float64 // Duty/Scale is the fraction, 0 means 1
}

// Fraction returns the duty fraction clamped to [0,1]
func (p *PWM) Fraction() float64 {
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	return clamp(p.Duty/scale, 0, 1)
}

// Raw returns the wire word for a PWM period. The firmware drives the
// output inverted, so the complement of the fraction is encoded.
func (p *PWM) Raw(periodTicks uint32) uint32 {
	return protocol.EncodeDuty(1-p.Fraction(), periodTicks)
}
