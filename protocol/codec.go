package protocol

import "math"

// EncodeVelocity converts steps/s into the DDS velocity word.
// 1 LSB is 2^-StepBit step per DDS tick; the value is truncated.
func EncodeVelocity(stepsPerSec float64) int32 {
	return int32(stepsPerSec * VelScale)
}

// PWMPeriodTicks returns the PWM timer period for a frequency
func PWMPeriodTicks(freqHz float64) uint32 {
	return uint32(math.Round(PeripheralClock/freqHz)) - 1
}

// EncodeDuty converts a duty fraction into timer ticks for the given
// period. The fraction is expected in [0,1].
func EncodeDuty(fraction float64, periodTicks uint32) uint32 {
	return uint32(math.Round(fraction * float64(periodTicks+1)))
}

// DecodeRawCount reinterprets a counter word. Extending it past 32 bits
// is the caller's job.
func DecodeRawCount(w uint32) int32 {
	return int32(w)
}
