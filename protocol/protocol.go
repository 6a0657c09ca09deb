// Package protocol implements the fixed-size packet exchanged with the
// step-generation coprocessor once per servo period.
package protocol

// Version is the wire protocol revision the coprocessor firmware expects
const Version = "1.2"

// Coprocessor constants. These must match the firmware build.
const (
	StepBit         = 22       // DDS fixed-point position: 1 count = 2^-StepBit step
	MaxAxes         = 4        // Step generators per coprocessor
	BaseFreq        = 80000    // DDS update rate in Hz
	PeripheralClock = 40000000 // PWM timer clock in Hz
	OutputBits      = 16       // Remote digital outputs carried in the output word
	InputBits       = 16       // Remote digital inputs carried in the input word
)

// Packet layout, in 32-bit words
const (
	PacketWords = MaxAxes + 3
	PacketBytes = PacketWords * 4

	WordHeader = 0
	WordAxis0  = 1
	WordPWM    = MaxAxes + 1 // request: PWM duty (CMD) or period (CFG)
	WordOutput = MaxAxes + 2 // request: digital output bits
	WordInput  = MaxAxes + 1 // response: digital input bits
	WordCheck  = MaxAxes + 2 // response: trailing self-check tag
	WordStep   = WordAxis0   // CFG request: step pulse width
)

// Derived fixed-point scales
const (
	StepScale = float64(int64(1) << StepBit)
	// VelScale converts steps/s into the per-DDS-tick velocity word
	VelScale = StepScale / BaseFreq
)
