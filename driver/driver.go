// Package driver ties the link session, the feedback accumulator and the
// velocity planner to the named signals. Its three cycle functions run
// on one real-time thread in the order ReadFeedback, WriteOutputs,
// Update.
package driver

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"picnc/core"
	"picnc/motion"
	"picnc/protocol"
	"picnc/rt"
	"picnc/session"
)

// DefaultName prefixes all signals of a driver
const DefaultName = "picnc"

var ErrInvalidConfig = errors.New("invalid driver config")

// Config is fixed for the lifetime of a driver
type Config struct {
	Name    string
	Axes    int
	StepLen uint32  // DDS ticks per step pulse half
	PWMFreq float64 // Hz
	Session session.Config
}

// Hardware is what the driver runs on
type Hardware struct {
	SPI     core.Exchanger
	Lines   session.Lines
	Outputs []core.Line // local digital outputs
	Inputs  []core.Line // local digital inputs
	Closer  io.Closer   // released by Close, may be nil
}

// Driver is one coprocessor instance
type Driver struct {
	cfg  Config
	hw   Hardware
	log  *zap.Logger
	sess *session.Session
	pins *pins

	axes      [protocol.MaxAxes]motion.Axis
	pwm       motion.PWM
	pwmPeriod uint32
	timing    Timing

	out, in, resp protocol.Packet
	vel           [protocol.MaxAxes]int32
	ready         bool
}

func (c *Config) validate() error {
	if c.Axes < 1 || c.Axes > protocol.MaxAxes {
		return fmt.Errorf("%w: axes %d not in 1..%d", ErrInvalidConfig, c.Axes, protocol.MaxAxes)
	}
	if c.StepLen == 0 {
		return fmt.Errorf("%w: step length must be positive", ErrInvalidConfig)
	}
	if c.PWMFreq <= 0 || c.PWMFreq > protocol.PeripheralClock/2 {
		return fmt.Errorf("%w: pwm frequency %g out of range", ErrInvalidConfig, c.PWMFreq)
	}
	return nil
}

// New exports the driver's signals and performs the start-up exchange
func New(cfg Config, hw Hardware, reg Registry, log *zap.Logger) (*Driver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("driver", cfg.Name))

	p, err := exportPins(reg, cfg.Name, cfg.Axes, len(hw.Outputs), len(hw.Inputs))
	if err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:       cfg,
		hw:        hw,
		log:       log,
		pins:      p,
		pwm:       motion.PWM{Scale: 1.0},
		pwmPeriod: protocol.PWMPeriodTicks(cfg.PWMFreq),
		timing:    NewTiming(cfg.StepLen),
	}
	for i := range d.axes {
		d.axes[i] = motion.NewAxis()
	}

	d.sess = session.New(hw.SPI, hw.Lines, cfg.Session, log)
	if err := d.sess.Startup(cfg.StepLen, cfg.PWMFreq); err != nil {
		return nil, fmt.Errorf("failed to start coprocessor: %w", err)
	}

	log.Info("driver ready",
		zap.Int("axes", cfg.Axes),
		zap.Float64("max_velocity", d.timing.MaxVel),
		zap.Int("gpio_outputs", len(hw.Outputs)),
		zap.Int("gpio_inputs", len(hw.Inputs)))
	return d, nil
}

// Attach adds the cycle functions to a thread
func (d *Driver) Attach(t *rt.Thread) {
	t.AddFunct(d.cfg.Name+".read", d.ReadFeedback)
	t.AddFunct(d.cfg.Name+".write", d.WriteOutputs)
	t.AddFunct(d.cfg.Name+".update", d.Update)
}

// ReadFeedback requests a status packet and, if it checks out, folds the
// counters into the axis positions and publishes the inputs. A rejected
// packet leaves every feedback value as it was and drops ready.
func (d *Driver) ReadFeedback(int64) {
	for i, l := range d.hw.Inputs {
		d.pins.gpioIn[i].Set(l.Get())
	}

	d.out.SetStatus()
	ok := d.sess.Exchange(&d.out, &d.in)
	d.setReady(ok)
	d.publishDesyncs()
	if !ok {
		return
	}

	for i := 0; i < d.cfg.Axes; i++ {
		a, p := &d.axes[i], &d.pins.axes[i]
		a.Scale = p.scale.Get()
		a.UpdateScale()
		a.Accumulate(d.in.Count(i))
		p.posFb.Set(a.PosFb)
	}

	inputs := d.in.Inputs()
	for i, b := range d.pins.in {
		b.Set(inputs&(1<<i) != 0)
	}
}

// WriteOutputs drives the local output lines
func (d *Driver) WriteOutputs(int64) {
	for i, l := range d.hw.Outputs {
		l.Set(d.pins.gpioOut[i].Get())
	}
}

// Update plans every axis and sends the command packet. The counters in
// the command response are not used; feedback comes from ReadFeedback.
func (d *Driver) Update(periodNs int64) {
	if d.timing.Update(periodNs) {
		d.log.Debug("period changed",
			zap.Int64("period_ns", periodNs),
			zap.Float64("max_accel", d.timing.MaxAccelAbs))
	}
	lim := d.timing.Limits()

	for i := 0; i < d.cfg.Axes; i++ {
		a, p := &d.axes[i], &d.pins.axes[i]
		a.PosCmd = p.posCmd.Get()
		a.Scale = p.scale.Get()
		a.MaxAccel = p.maxAccel.Get()

		v := a.Plan(lim)
		d.vel[i] = protocol.EncodeVelocity(v)
		p.velocity.Set(v)
		p.accelLim.Set(a.MaxAccel)
	}

	d.pwm.Duty = d.pins.pwmDuty.Get()
	d.pwm.Scale = d.pins.pwmScale.Get()

	var outputs uint32
	for i, b := range d.pins.out {
		if b.Get() {
			outputs |= 1 << i
		}
	}

	d.out.SetCommand(&d.vel, d.pwm.Raw(d.pwmPeriod), outputs)
	d.sess.Exchange(&d.out, &d.resp)
	d.publishDesyncs()
}

func (d *Driver) setReady(ok bool) {
	d.pins.ready.Set(ok)
	if ok == d.ready {
		return
	}
	d.ready = ok

	st := d.sess.Stats()
	if ok {
		d.log.Info("link synchronized",
			zap.Uint64("exchanges", st.Exchanges),
			zap.Uint64("desyncs", st.Desyncs))
	} else {
		d.log.Warn("link desynchronized",
			zap.Uint64("exchanges", st.Exchanges),
			zap.Uint64("desyncs", st.Desyncs),
			zap.Uint64("errors", st.Errors))
	}
}

func (d *Driver) publishDesyncs() {
	st := d.sess.Stats()
	d.pins.desyncs.Set(uint32(st.Desyncs + st.Errors))
}

// Ready reports whether the last status packet was accepted
func (d *Driver) Ready() bool {
	return d.ready
}

// Axis returns a copy of an axis state
func (d *Driver) Axis(i int) motion.Axis {
	return d.axes[i]
}

// Timing returns the current period limits
func (d *Driver) Timing() Timing {
	return d.timing
}

// Stats returns the link counters
func (d *Driver) Stats() session.Stats {
	return d.sess.Stats()
}

// Close releases the hardware
func (d *Driver) Close() error {
	if d.hw.Closer == nil {
		return nil
	}
	if err := d.hw.Closer.Close(); err != nil {
		return fmt.Errorf("failed to release hardware: %w", err)
	}
	d.log.Info("driver closed")
	return nil
}
