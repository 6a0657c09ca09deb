package driver

import (
	"fmt"

	"picnc/protocol"
	"picnc/signals"
)

// Registry creates the driver's signals
type Registry interface {
	NewFloat(name string, v float64) (*signals.Float, error)
	NewBit(name string, v bool) (*signals.Bit, error)
	NewU32(name string, v uint32) (*signals.U32, error)
}

type axisPins struct {
	posCmd   *signals.Float
	posFb    *signals.Float
	scale    *signals.Float
	maxAccel *signals.Float
	accelLim *signals.Float // maxAccel after the hardware clamp, driver-owned
	velocity *signals.Float
}

type pins struct {
	axes     [protocol.MaxAxes]axisPins
	pwmDuty  *signals.Float
	pwmScale *signals.Float
	out      [protocol.OutputBits]*signals.Bit
	in       [protocol.InputBits]*signals.Bit
	gpioOut  []*signals.Bit
	gpioIn   []*signals.Bit
	ready    *signals.Bit
	desyncs  *signals.U32
}

// exporter creates signals under a prefix and keeps the first error
type exporter struct {
	reg    Registry
	prefix string
	err    error
}

func (e *exporter) name(format string, args ...any) string {
	return e.prefix + "." + fmt.Sprintf(format, args...)
}

func (e *exporter) float(v float64, format string, args ...any) *signals.Float {
	if e.err != nil {
		return nil
	}
	f, err := e.reg.NewFloat(e.name(format, args...), v)
	e.err = err
	return f
}

func (e *exporter) bit(format string, args ...any) *signals.Bit {
	if e.err != nil {
		return nil
	}
	b, err := e.reg.NewBit(e.name(format, args...), false)
	e.err = err
	return b
}

func (e *exporter) u32(format string, args ...any) *signals.U32 {
	if e.err != nil {
		return nil
	}
	u, err := e.reg.NewU32(e.name(format, args...), 0)
	e.err = err
	return u
}

func exportPins(reg Registry, prefix string, axes, gpioOut, gpioIn int) (*pins, error) {
	e := &exporter{reg: reg, prefix: prefix}
	p := &pins{}

	for i := 0; i < axes; i++ {
		p.axes[i] = axisPins{
			posCmd:   e.float(0, "axis.%d.position-cmd", i),
			posFb:    e.float(0, "axis.%d.position-fb", i),
			scale:    e.float(1.0, "axis.%d.scale", i),
			maxAccel: e.float(1.0, "axis.%d.maxaccel", i),
			accelLim: e.float(0, "axis.%d.maxaccel-limit", i),
			velocity: e.float(0, "axis.%d.velocity", i),
		}
	}
	p.pwmDuty = e.float(0, "pwm.duty")
	p.pwmScale = e.float(1.0, "pwm.scale")

	for i := range p.out {
		p.out[i] = e.bit("out.%d", i)
	}
	for i := range p.in {
		p.in[i] = e.bit("in.%d", i)
	}
	p.gpioOut = make([]*signals.Bit, gpioOut)
	for i := range p.gpioOut {
		p.gpioOut[i] = e.bit("gpio.out.%d", i)
	}
	p.gpioIn = make([]*signals.Bit, gpioIn)
	for i := range p.gpioIn {
		p.gpioIn[i] = e.bit("gpio.in.%d", i)
	}

	p.ready = e.bit("ready")
	p.desyncs = e.u32("desync-count")

	if e.err != nil {
		return nil, fmt.Errorf("failed to export signals: %w", e.err)
	}
	return p, nil
}
