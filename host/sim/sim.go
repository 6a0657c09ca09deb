// Package sim emulates the coprocessor firmware behind the SPI link so
// the driver can run without hardware.
package sim

import (
	"errors"
	"math"
	"time"

	"picnc/core"
	"picnc/protocol"
)

var (
	ErrNotRequested = errors.New("transfer without request line asserted")
	ErrByteMode     = errors.New("firmware only exchanges whole packets")
)

var _ core.Exchanger = (*Coprocessor)(nil)

// Coprocessor is the emulated firmware. It is not safe for concurrent use.
type Coprocessor struct {
	period float64 // seconds between command packets

	configured bool
	stepLen    uint32
	pwmPeriod  uint32

	vel     [protocol.MaxAxes]int32
	counts  [protocol.MaxAxes]uint32
	steps   [protocol.MaxAxes]int64 // unwrapped counts
	duty    uint32
	outputs uint32
	inputs  uint32

	requested  bool
	inReset    bool
	notReady   bool
	corrupt    int
	transfers  int
	lastTag    protocol.Tag
	resets     int
	readyPolls int
}

// New creates a coprocessor for a servo period
func New(period time.Duration) *Coprocessor {
	return &Coprocessor{period: period.Seconds()}
}

// ticksPerCommand is the number of DDS updates between command packets
func (c *Coprocessor) ticksPerCommand() uint32 {
	return uint32(math.Round(protocol.BaseFreq * c.period))
}

type line struct {
	set func(bool)
	get func() bool
}

func (l line) Set(v bool) {
	if l.set != nil {
		l.set(v)
	}
}

func (l line) Get() bool {
	if l.get != nil {
		return l.get()
	}
	return false
}

// RequestLine is the host-driven request line
func (c *Coprocessor) RequestLine() core.Line {
	return line{
		set: func(v bool) { c.requested = v },
		get: func() bool { return c.requested },
	}
}

// ReadyLine is asserted while a request is pending and the firmware is
// out of reset
func (c *Coprocessor) ReadyLine() core.Line {
	return line{get: func() bool {
		c.readyPolls++
		return c.requested && !c.inReset && !c.notReady
	}}
}

// ResetLine holds the firmware in reset while asserted
func (c *Coprocessor) ResetLine() core.Line {
	return line{
		set: func(v bool) {
			if v && !c.inReset {
				c.reset()
			}
			c.inReset = v
		},
		get: func() bool { return c.inReset },
	}
}

// reset clears the firmware state; host-side bookkeeping is kept
func (c *Coprocessor) reset() {
	c.configured = false
	c.stepLen, c.pwmPeriod = 0, 0
	c.vel = [protocol.MaxAxes]int32{}
	c.counts = [protocol.MaxAxes]uint32{}
	c.steps = [protocol.MaxAxes]int64{}
	c.duty, c.outputs = 0, 0
	c.resets++
}

// Tx exchanges one packet
func (c *Coprocessor) Tx(w, r []byte) error {
	if !c.requested {
		return ErrNotRequested
	}
	var req, resp protocol.Packet
	if err := req.Unmarshal(w); err != nil {
		return err
	}
	if len(r) != protocol.PacketBytes {
		return protocol.ErrShortPacket
	}
	c.transfers++
	c.handle(&req, &resp)
	return resp.Marshal(r)
}

// Transfer is not supported by the firmware
func (c *Coprocessor) Transfer(byte) (byte, error) {
	return 0, ErrByteMode
}

func (c *Coprocessor) handle(req, resp *protocol.Packet) {
	tag := req.Tag()
	c.lastTag = tag

	switch tag {
	case protocol.TagConfig:
		c.stepLen = req[protocol.WordStep]
		c.pwmPeriod = req[protocol.WordPWM]
		c.configured = true
	case protocol.TagCommand:
		if c.configured {
			c.advance()
			for i := range c.vel {
				c.vel[i] = int32(req[protocol.WordAxis0+i])
			}
			c.duty = req[protocol.WordPWM]
			c.outputs = req[protocol.WordOutput]
		}
	}

	resp[protocol.WordHeader] = protocol.TagWord(tag)
	for i, n := range c.counts {
		resp[protocol.WordAxis0+i] = n
	}
	resp[protocol.WordInput] = c.inputs
	resp[protocol.WordCheck] = protocol.TagWord(tag)

	if c.corrupt > 0 {
		c.corrupt--
		resp[protocol.WordCheck] ^= 0xFF << 8
	}
}

// advance runs the DDS for one period at the latched velocities
func (c *Coprocessor) advance() {
	ticks := c.ticksPerCommand()
	for i, v := range c.vel {
		d := uint32(v) * ticks
		c.counts[i] += d
		c.steps[i] += int64(int32(d))
	}
}

// Corrupt makes the next n responses fail the tag check
func (c *Coprocessor) Corrupt(n int) {
	c.corrupt = n
}

// SetReady forces the ready line low when false
func (c *Coprocessor) SetReady(ready bool) {
	c.notReady = !ready
}

// SetInputs sets the digital input word reported to the host
func (c *Coprocessor) SetInputs(v uint32) {
	c.inputs = v
}

// SetCount overwrites the raw counter of an axis
func (c *Coprocessor) SetCount(axis int, v uint32) {
	c.counts[axis] = v
}

// Configured reports whether a configuration packet was received
func (c *Coprocessor) Configured() bool { return c.configured }

// StepLen returns the latched step pulse length
func (c *Coprocessor) StepLen() uint32 { return c.stepLen }

// PWMPeriod returns the latched PWM period
func (c *Coprocessor) PWMPeriod() uint32 { return c.pwmPeriod }

// Velocity returns the latched velocity word of an axis
func (c *Coprocessor) Velocity(axis int) int32 { return c.vel[axis] }

// Duty returns the latched duty word
func (c *Coprocessor) Duty() uint32 { return c.duty }

// Outputs returns the latched digital outputs
func (c *Coprocessor) Outputs() uint32 { return c.outputs }

// Steps returns the unwrapped position of an axis in steps
func (c *Coprocessor) Steps(axis int) float64 {
	return float64(c.steps[axis]) / protocol.StepScale
}

// Transfers returns the number of packets exchanged
func (c *Coprocessor) Transfers() int { return c.transfers }

// LastTag returns the tag of the last request
func (c *Coprocessor) LastTag() protocol.Tag { return c.lastTag }

// Resets returns how many times the reset line was pulsed
func (c *Coprocessor) Resets() int { return c.resets }

// ReadyPolls returns how many times the ready line was read
func (c *Coprocessor) ReadyPolls() int { return c.readyPolls }
