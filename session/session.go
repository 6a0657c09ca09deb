// Package session runs the request/ready handshake with the coprocessor
// and the one-time configuration exchange.
package session

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"picnc/core"
	"picnc/protocol"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotReady       = errors.New("coprocessor did not become ready")
)

// State of the link
type State uint8

const (
	Idle State = iota
	Exchanging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Exchanging:
		return "exchanging"
	}
	return "unknown"
}

// Config tunes the reset timing and the ready wait
type Config struct {
	ResetSpins  int // iterations the reset line is held
	SettleSpins int // iterations after release before configuring
	SpinLimit   int // ready polls before giving up, 0 waits forever
}

// DefaultConfig returns the timing used on a Raspberry Pi
func DefaultConfig() Config {
	return Config{
		ResetSpins:  1000,
		SettleSpins: 2000000,
	}
}

// Lines are the handshake lines of the link. Reset may be nil.
type Lines struct {
	Request core.Line
	Ready   core.Line
	Reset   core.Line
}

// Stats are the link counters
type Stats struct {
	Exchanges uint64
	Desyncs   uint64 // responses that failed the tag check
	Errors    uint64 // transfers that failed outright
}

// Session owns the link for the lifetime of a driver
type Session struct {
	spi   core.Exchanger
	lines Lines
	cfg   Config
	log   *zap.Logger

	state   State
	started bool
	stats   Stats

	tx, rx [protocol.PacketBytes]byte
	resp   protocol.Packet
}

// New creates a session. Nothing is sent until Startup.
func New(spi core.Exchanger, lines Lines, cfg Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		spi:   spi,
		lines: lines,
		cfg:   cfg,
		log:   log,
	}
}

// State returns the link state
func (s *Session) State() State {
	return s.state
}

// Stats returns a copy of the counters
func (s *Session) Stats() Stats {
	return s.stats
}

// Started reports whether the configuration exchange has happened
func (s *Session) Started() bool {
	return s.started
}

// spin busy-waits n iterations, polling the ready line as the pacing read
func (s *Session) spin(n int) {
	for i := 0; i < n; i++ {
		_ = s.lines.Ready.Get()
	}
}

// Reset pulses the coprocessor reset line
func (s *Session) Reset() {
	if s.lines.Reset == nil {
		return
	}
	s.lines.Reset.Set(true)
	s.spin(s.cfg.ResetSpins)
	s.lines.Reset.Set(false)
	s.spin(s.cfg.SettleSpins)
}

// Startup resets the coprocessor and sends the configuration packet.
// It may be called once. The response is not checked: the firmware
// has only just come out of reset.
func (s *Session) Startup(stepLen uint32, pwmFreq float64) error {
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.Reset()

	pwmPeriod := protocol.PWMPeriodTicks(pwmFreq)
	cfg := protocol.NewConfig(stepLen, pwmPeriod)
	if err := s.transfer(&cfg); err != nil {
		return fmt.Errorf("failed to send configuration: %w", err)
	}

	s.log.Info("coprocessor configured",
		zap.Uint32("step_len", stepLen),
		zap.Float64("pwm_freq", pwmFreq),
		zap.Uint32("pwm_period", pwmPeriod))
	return nil
}

// transfer performs one handshake and byte exchange into s.resp
func (s *Session) transfer(out *protocol.Packet) error {
	s.state = Exchanging
	s.lines.Request.Set(true)

	for polls := 0; !s.lines.Ready.Get(); polls++ {
		if s.cfg.SpinLimit > 0 && polls >= s.cfg.SpinLimit {
			s.lines.Request.Set(false)
			s.state = Idle
			return ErrNotReady
		}
	}

	err := out.Marshal(s.tx[:])
	if err == nil {
		err = s.spi.Tx(s.tx[:], s.rx[:])
	}
	s.lines.Request.Set(false)
	s.state = Idle

	if err != nil {
		return err
	}
	return s.resp.Unmarshal(s.rx[:])
}

// Exchange sends out and, when the response carries the request's tag
// at both ends, copies it to in. On false in is left untouched and the
// caller must not use it. There is no retry. Before Startup it returns
// false without touching the link or the counters.
func (s *Session) Exchange(out, in *protocol.Packet) bool {
	if !s.started {
		return false
	}
	s.stats.Exchanges++

	if err := s.transfer(out); err != nil {
		s.stats.Errors++
		return false
	}
	if !s.resp.Check(out.Tag()) {
		s.stats.Desyncs++
		return false
	}
	*in = s.resp
	return true
}
