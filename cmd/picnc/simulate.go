package main

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"picnc/config"
	"picnc/driver"
	"picnc/host/sim"
	"picnc/rt"
	"picnc/session"
	"picnc/signals"
)

// simRig is a driver wired to the coprocessor emulator
type simRig struct {
	reg *signals.Registry
	cop *sim.Coprocessor
	drv *driver.Driver
}

func newSimRig(cfg *config.Config, log *zap.Logger) (*simRig, error) {
	cop := sim.New(cfg.Driver.Period)
	hw := driver.Hardware{
		SPI: cop,
		Lines: session.Lines{
			Request: cop.RequestLine(),
			Ready:   cop.ReadyLine(),
			Reset:   cop.ResetLine(),
		},
	}

	dc := cfg.DriverConfig()
	// the emulator comes out of reset at once
	dc.Session.ResetSpins, dc.Session.SettleSpins = 1, 1

	reg := signals.NewRegistry()
	drv, err := driver.New(dc, hw, reg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start driver: %w", err)
	}
	return &simRig{reg: reg, cop: cop, drv: drv}, nil
}

type simResult struct {
	Cycles       int
	PositionCmd  float64
	PositionFb   float64
	Steps        float64
	PeakVelocity float64
	Stats        session.Stats
}

// simulate ramps axis 0 to the configured distance. When corrupt is
// positive every corrupt-th status response fails its check.
func simulate(cfg *config.Config, corrupt int, log *zap.Logger) (*simResult, error) {
	rig, err := newSimRig(cfg, log)
	if err != nil {
		return nil, err
	}

	prefix := cfg.Driver.Name + ".axis.0."
	lookup := func(name string) *signals.Float {
		if err != nil {
			return nil
		}
		var f *signals.Float
		f, err = rig.reg.Float(prefix + name)
		return f
	}
	posCmd := lookup("position-cmd")
	posFb := lookup("position-fb")
	velocity := lookup("velocity")
	scale := lookup("scale")
	maxAccel := lookup("maxaccel")
	if err != nil {
		return nil, err
	}

	sc := cfg.Simulate
	scale.Set(sc.Scale)
	maxAccel.Set(sc.MaxAccel)

	th := rt.NewThread("servo", cfg.Driver.Period, log)
	k := 0
	th.AddFunct("ramp", func(int64) {
		frac := 1.0
		if sc.Ramp > 0 {
			frac = math.Min(float64(k)/float64(sc.Ramp), 1.0)
		}
		posCmd.Set(frac * sc.Distance)
		if corrupt > 0 && k%corrupt == corrupt-1 {
			rig.cop.Corrupt(1)
		}
		k++
	})
	rig.drv.Attach(th)

	res := &simResult{Cycles: sc.Cycles}
	th.AddFunct("monitor", func(int64) {
		res.PeakVelocity = math.Max(res.PeakVelocity, math.Abs(velocity.Get()))
	})
	th.RunCycles(sc.Cycles)

	res.PositionCmd = posCmd.Get()
	res.PositionFb = posFb.Get()
	res.Steps = rig.cop.Steps(0)
	res.Stats = rig.drv.Stats()
	return res, nil
}
