package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picnc/protocol"
)

func exchange(t *testing.T, c *Coprocessor, req protocol.Packet) protocol.Packet {
	t.Helper()
	var w, r [protocol.PacketBytes]byte
	require.NoError(t, req.Marshal(w[:]))

	c.RequestLine().Set(true)
	require.True(t, c.ReadyLine().Get())
	require.NoError(t, c.Tx(w[:], r[:]))
	c.RequestLine().Set(false)

	var resp protocol.Packet
	require.NoError(t, resp.Unmarshal(r[:]))
	return resp
}

func TestConfigLatches(t *testing.T) {
	c := New(time.Millisecond)
	resp := exchange(t, c, protocol.NewConfig(5, 1999))

	assert.True(t, c.Configured())
	assert.Equal(t, uint32(5), c.StepLen())
	assert.Equal(t, uint32(1999), c.PWMPeriod())
	assert.True(t, resp.Check(protocol.TagConfig))
}

func TestCommandAdvancesPreviousVelocity(t *testing.T) {
	c := New(time.Millisecond)
	exchange(t, c, protocol.NewConfig(5, 1999))

	vel := [protocol.MaxAxes]int32{1000, -2000, 0, 7}
	var req protocol.Packet
	req.SetCommand(&vel, 123, 0x5)

	resp := exchange(t, c, req)
	assert.True(t, resp.Check(protocol.TagCommand))
	assert.Equal(t, int32(0), resp.Count(0), "first command only latches")
	assert.Equal(t, int32(1000), c.Velocity(0))
	assert.Equal(t, uint32(123), c.Duty())
	assert.Equal(t, uint32(0x5), c.Outputs())

	resp = exchange(t, c, req)
	assert.Equal(t, int32(1000*80), resp.Count(0))
	assert.Equal(t, int32(-2000*80), resp.Count(1))
	assert.Equal(t, int32(0), resp.Count(2))
	assert.Equal(t, int32(7*80), resp.Count(3))

	req.SetStatus()
	resp = exchange(t, c, req)
	assert.True(t, resp.Check(protocol.TagStatus))
	assert.Equal(t, int32(1000*80), resp.Count(0), "status does not step")
}

func TestCommandIgnoredBeforeConfig(t *testing.T) {
	c := New(time.Millisecond)
	vel := [protocol.MaxAxes]int32{1000}
	var req protocol.Packet
	req.SetCommand(&vel, 0, 0)

	exchange(t, c, req)
	exchange(t, c, req)
	assert.Equal(t, int32(0), c.Velocity(0))
	assert.Equal(t, 0.0, c.Steps(0))
}

func TestCounterWraps(t *testing.T) {
	c := New(time.Millisecond)
	exchange(t, c, protocol.NewConfig(5, 1999))
	c.SetCount(0, 0x7FFFFFF0)

	vel := [protocol.MaxAxes]int32{1}
	var req protocol.Packet
	req.SetCommand(&vel, 0, 0)
	exchange(t, c, req)
	resp := exchange(t, c, req)

	assert.Equal(t, int32(-0x80000000+0x40), resp.Count(0))
	assert.InDelta(t, 80.0/protocol.StepScale, c.Steps(0), 1e-12)
}

func TestCorrupt(t *testing.T) {
	c := New(time.Millisecond)
	c.Corrupt(2)

	var req protocol.Packet
	req.SetStatus()
	assert.False(t, exchange(t, c, req).Check(protocol.TagStatus))
	assert.False(t, exchange(t, c, req).Check(protocol.TagStatus))
	assert.True(t, exchange(t, c, req).Check(protocol.TagStatus))
}

func TestReset(t *testing.T) {
	c := New(time.Millisecond)
	exchange(t, c, protocol.NewConfig(5, 1999))
	c.SetInputs(0xA)

	rst := c.ResetLine()
	rst.Set(true)
	c.RequestLine().Set(true)
	assert.False(t, c.ReadyLine().Get(), "not ready while in reset")
	rst.Set(false)
	assert.True(t, c.ReadyLine().Get())
	c.RequestLine().Set(false)

	assert.False(t, c.Configured())
	assert.Equal(t, 1, c.Resets())

	var req protocol.Packet
	req.SetStatus()
	assert.Equal(t, uint32(0xA), exchange(t, c, req).Inputs())
}

func TestTxErrors(t *testing.T) {
	c := New(time.Millisecond)
	var w, r [protocol.PacketBytes]byte

	assert.ErrorIs(t, c.Tx(w[:], r[:]), ErrNotRequested)

	c.RequestLine().Set(true)
	assert.ErrorIs(t, c.Tx(w[:4], r[:]), protocol.ErrShortPacket)
	assert.ErrorIs(t, c.Tx(w[:], r[:4]), protocol.ErrShortPacket)

	_, err := c.Transfer(0)
	assert.ErrorIs(t, err, ErrByteMode)

	c.SetReady(false)
	assert.False(t, c.ReadyLine().Get())
}
