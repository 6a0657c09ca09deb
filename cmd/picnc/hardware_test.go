package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"picnc/config"
	"picnc/core"
	"picnc/host/sim"
	"picnc/protocol"
	"picnc/session"
)

// GPIO set, clear and level registers of bank 0
const (
	regSet   = 0x1C
	regClr   = 0x28
	regLevel = 0x34
)

// wiredGPIO is a register block whose set/clear writes on the request and
// reset pins drive the simulated coprocessor. The ready level is whatever
// the test stores in the level register.
func wiredGPIO(copro *sim.Coprocessor, pins config.PinsConfig) *core.MemRegion {
	gpio := core.NewMemRegion(core.BlockSize)
	request, reset := copro.RequestLine(), copro.ResetLine()
	gpio.OnWrite = func(off uintptr, v uint32) {
		if off != regSet && off != regClr {
			return
		}
		level := off == regSet
		if v&(1<<pins.Request.Pin) != 0 {
			request.Set(level)
		}
		if pins.Reset >= 0 && v&(1<<uint32(pins.Reset)) != 0 {
			reset.Set(level)
		}
	}
	return gpio
}

func TestHandshakeLinesReadyPolarity(t *testing.T) {
	tests := []struct {
		name   string
		invert bool
		level  uint32
		ready  bool
	}{
		{"active-low ready pulled low", true, 0, true},
		{"active-low ready idle high", true, 1 << 24, false},
		{"active-high ready driven high", false, 1 << 24, true},
		{"active-high ready low", false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pins := config.DefaultConfig().Pins
			pins.Ready.Invert = tt.invert

			copro := sim.New(time.Millisecond)
			gpio := wiredGPIO(copro, pins)
			gpio.Write32(regLevel, tt.level)
			bcm := core.NewBCM2835(gpio, nil)

			lines, err := handshakeLines(bcm, pins)
			require.NoError(t, err)
			assert.Equal(t, uint32(1<<25), gpio.Peek(regClr), "request starts deasserted")

			s := session.New(copro, lines, session.Config{ResetSpins: 1, SettleSpins: 1, SpinLimit: 100}, zap.NewNop())
			err = s.Startup(5, 20000)
			assert.Equal(t, 1, copro.Resets())

			var out, in protocol.Packet
			out.SetStatus()
			ok := s.Exchange(&out, &in)

			if !tt.ready {
				assert.ErrorIs(t, err, session.ErrNotReady)
				assert.False(t, ok)
				assert.Equal(t, uint64(1), s.Stats().Errors)
				assert.Zero(t, copro.Transfers())
				return
			}
			require.NoError(t, err)
			assert.True(t, copro.Configured())
			assert.Equal(t, uint32(5), copro.StepLen())
			require.True(t, ok)
			assert.Equal(t, protocol.TagStatus, in.Tag())
			assert.Equal(t, session.Stats{Exchanges: 1}, s.Stats())
			assert.Equal(t, 2, copro.Transfers())
		})
	}
}

func TestHandshakeLinesWithoutReset(t *testing.T) {
	pins := config.DefaultConfig().Pins
	pins.Reset = -1

	bcm := core.NewBCM2835(core.NewMemRegion(core.BlockSize), nil)
	lines, err := handshakeLines(bcm, pins)
	require.NoError(t, err)
	assert.Nil(t, lines.Reset)
	assert.NotNil(t, lines.Request)
	assert.NotNil(t, lines.Ready)
}

func TestHandshakeLinesInvalidPin(t *testing.T) {
	pins := config.DefaultConfig().Pins
	pins.Ready.Pin = core.MaxPin + 1

	bcm := core.NewBCM2835(core.NewMemRegion(core.BlockSize), nil)
	_, err := handshakeLines(bcm, pins)
	assert.ErrorIs(t, err, core.ErrInvalidPin)
}
