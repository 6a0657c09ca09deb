package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackSPI models SPI0 with MOSI wired to MISO
func loopbackSPI() (*MemRegion, *[]uint32) {
	spi := NewMemRegion(BlockSize)
	fifo := &[]uint32{}
	spi.OnWrite = func(off uintptr, v uint32) {
		if off == spiFIFO {
			*fifo = append(*fifo, v)
		}
	}
	spi.OnRead = func(off uintptr) (uint32, bool) {
		switch off {
		case spiCS:
			v := spi.Peek(spiCS) | csTXD | csDone
			if len(*fifo) > 0 {
				v |= csRXD
			}
			return v, true
		case spiFIFO:
			if len(*fifo) == 0 {
				return 0, true
			}
			v := (*fifo)[0]
			*fifo = (*fifo)[1:]
			return v, true
		}
		return 0, false
	}
	return spi, fifo
}

func TestBCM2835SetFunction(t *testing.T) {
	gpio := NewMemRegion(BlockSize)
	gpio.Write32(gpfsel0+4, 0xFFFFFFFF)
	b := NewBCM2835(gpio, nil)

	require.NoError(t, b.ConfigureOutput(17))
	assert.Equal(t, uint32(1), (gpio.Peek(gpfsel0+4)>>21)&7)
	assert.Equal(t, uint32(0xFFFFFFFF)&^(6<<21), gpio.Peek(gpfsel0+4), "other pins untouched")

	assert.ErrorIs(t, b.ConfigureOutput(MaxPin+1), ErrInvalidPin)
}

func TestBCM2835SetGetPin(t *testing.T) {
	gpio := NewMemRegion(BlockSize)
	b := NewBCM2835(gpio, nil)

	require.NoError(t, b.SetPin(17, true))
	assert.Equal(t, uint32(1<<17), gpio.Peek(gpset0))

	require.NoError(t, b.SetPin(40, false))
	assert.Equal(t, uint32(1<<8), gpio.Peek(gpclr0+4))

	gpio.Write32(gplev0, 1<<4)
	v, err := b.GetPin(4)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = b.GetPin(5)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestBCM2835ActiveLowLine(t *testing.T) {
	gpio := NewMemRegion(BlockSize)
	b := NewBCM2835(gpio, nil)

	line, err := b.Line(22, true)
	require.NoError(t, err)

	line.Set(true)
	assert.Equal(t, uint32(1<<22), gpio.Peek(gpclr0), "asserting an active-low line clears it")

	gpio.Write32(gplev0, 0)
	assert.True(t, line.Get())
	gpio.Write32(gplev0, 1<<22)
	assert.False(t, line.Get())

	_, err = b.Line(60, false)
	assert.ErrorIs(t, err, ErrInvalidPin)
}

func TestBCM2835PullUp(t *testing.T) {
	gpio := NewMemRegion(BlockSize)
	var pud []uint32
	gpio.OnWrite = func(off uintptr, v uint32) {
		if off == gppud {
			pud = append(pud, v)
		}
	}
	b := NewBCM2835(gpio, nil)

	require.NoError(t, b.ConfigureInputPullUp(3))
	assert.Equal(t, []uint32{2, 0}, pud)
	assert.Equal(t, uint32(0), gpio.Peek(gppudclk0))
}

func TestBCM2835Tx(t *testing.T) {
	gpio := NewMemRegion(BlockSize)
	spi, _ := loopbackSPI()
	b := NewBCM2835(gpio, spi)

	require.NoError(t, b.ConfigureSPI(SPIConfig{Mode: 3, Divider: 64}))
	assert.Equal(t, uint32(64), spi.Peek(spiCLK))
	assert.Equal(t, uint32(FuncAlt0), (gpio.Peek(gpfsel0+4)>>0)&7, "MOSI on ALT0")

	w := []byte{0x3E, 0x43, 0x4D, 0x44, 0x01}
	r := make([]byte, len(w))
	require.NoError(t, b.Tx(w, r))
	assert.Equal(t, w, r)
	assert.Zero(t, spi.Peek(spiCS)&csTA, "transfer left active")
	assert.Equal(t, uint32(csCPHA|csCPOL), spi.Peek(spiCS))

	got, err := b.Transfer(0xA5)
	require.NoError(t, err)
	assert.Equal(t, byte(0xA5), got)

	assert.ErrorIs(t, b.Tx([]byte{1, 2}, []byte{1}), ErrLengthMismatch)
}

func TestBCM2835TxWithoutSPI(t *testing.T) {
	b := NewBCM2835(NewMemRegion(BlockSize), nil)
	assert.ErrorIs(t, b.Tx([]byte{1}, nil), ErrNoSPI)
	assert.ErrorIs(t, b.ConfigureSPI(SPIConfig{}), ErrNoSPI)
}

func TestBCM2835Restore(t *testing.T) {
	gpio := NewMemRegion(BlockSize)
	gpio.Write32(gpfsel0+8, 0x00012345)
	b := NewBCM2835(gpio, nil)

	require.NoError(t, b.ConfigureOutput(25))
	require.NotEqual(t, uint32(0x00012345), gpio.Peek(gpfsel0+8))

	require.NoError(t, b.Close())
	assert.Equal(t, uint32(0x00012345), gpio.Peek(gpfsel0+8))
}

func TestPeripheralBase(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
		want int64
	}{
		{"pi3", []byte{0x7e, 0, 0, 0, 0x3f, 0, 0, 0, 0x01, 0, 0, 0}, 0x3F000000},
		{"pi4", []byte{0x7e, 0, 0, 0, 0, 0, 0, 0, 0xfe, 0, 0, 0, 0x01, 0x80, 0, 0}, 0xFE000000},
		{"short", []byte{1, 2}, DefaultPeripheralBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, tt.data, 0o644))
			assert.Equal(t, tt.want, peripheralBaseFrom(path))
		})
	}

	assert.Equal(t, int64(DefaultPeripheralBase), peripheralBaseFrom(filepath.Join(dir, "missing")))
}

func TestIsSPIPin(t *testing.T) {
	for pin := GPIOPin(0); pin <= MaxPin; pin++ {
		assert.Equal(t, pin >= 8 && pin <= 11, IsSPIPin(pin), "pin %d", pin)
	}
}
