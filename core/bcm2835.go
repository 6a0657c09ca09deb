package core

import (
	"errors"
	"fmt"
)

// BCM2835 family (Raspberry Pi) GPIO and SPI0 register driver.
// All access goes through Region so the driver runs unchanged against
// mapped hardware or a MemRegion in tests.

// Peripheral block offsets from the SoC peripheral base
const (
	GPIOOffset = 0x200000
	SPI0Offset = 0x204000
	BlockSize  = 4096

	DefaultPeripheralBase = 0x3F000000
)

// GPIO registers
const (
	gpfsel0   = 0x00
	gpset0    = 0x1C
	gpclr0    = 0x28
	gplev0    = 0x34
	gppud     = 0x94
	gppudclk0 = 0x98
)

// GPIO pin functions
const (
	FuncInput  = 0
	FuncOutput = 1
	FuncAlt0   = 4
)

// SPI0 registers and CS register bits
const (
	spiCS   = 0x00
	spiFIFO = 0x04
	spiCLK  = 0x08

	csCPHA    = 1 << 2
	csCPOL    = 1 << 3
	csClearTX = 1 << 4
	csClearRX = 1 << 5
	csTA      = 1 << 7
	csDone    = 1 << 16
	csRXD     = 1 << 17
	csTXD     = 1 << 18
)

// SPI0 pins, all ALT0
const (
	pinSPI0CE0  = 8
	pinSPI0MISO = 9
	pinSPI0MOSI = 10
	pinSPI0SCLK = 11
)

const (
	MaxPin = 53

	pullSpins = 150
)

var (
	ErrInvalidPin     = errors.New("invalid GPIO pin")
	ErrLengthMismatch = errors.New("tx and rx buffers differ in length")
	ErrNoSPI          = errors.New("SPI0 registers not mapped")
)

// IsSPIPin reports whether pin is taken by SPI0
func IsSPIPin(pin GPIOPin) bool {
	return pin >= pinSPI0CE0 && pin <= pinSPI0SCLK
}

// BCM2835 drives GPIO and SPI0 through their register blocks
type BCM2835 struct {
	gpio Region
	spi  Region
	mode uint32

	saved [6]uint32 // function select registers at start-up
}

// NewBCM2835 wraps mapped GPIO and (optional) SPI0 register blocks. The
// current pin functions are saved so Restore can put them back.
func NewBCM2835(gpio, spi Region) *BCM2835 {
	b := &BCM2835{gpio: gpio, spi: spi}
	for i := range b.saved {
		b.saved[i] = gpio.Read32(gpfsel0 + uintptr(i)*4)
	}
	return b
}

// SetFunction selects the function of a pin
func (b *BCM2835) SetFunction(pin GPIOPin, fn uint32) error {
	if pin > MaxPin {
		return ErrInvalidPin
	}
	reg := gpfsel0 + uintptr(pin/10)*4
	shift := (pin % 10) * 3
	v := b.gpio.Read32(reg)
	v &^= 7 << shift
	v |= (fn & 7) << shift
	b.gpio.Write32(reg, v)
	return nil
}

// ConfigureOutput configures a pin as a digital output
func (b *BCM2835) ConfigureOutput(pin GPIOPin) error {
	return b.SetFunction(pin, FuncOutput)
}

// ConfigureInputPullUp configures a pin as an input with pull-up
func (b *BCM2835) ConfigureInputPullUp(pin GPIOPin) error {
	return b.configureInput(pin, 2)
}

// ConfigureInputPullDown configures a pin as an input with pull-down
func (b *BCM2835) ConfigureInputPullDown(pin GPIOPin) error {
	return b.configureInput(pin, 1)
}

func (b *BCM2835) configureInput(pin GPIOPin, pud uint32) error {
	if err := b.SetFunction(pin, FuncInput); err != nil {
		return err
	}
	clk := gppudclk0 + uintptr(pin/32)*4

	// The pull control needs 150 cycles of setup and hold around the clock
	b.gpio.Write32(gppud, pud)
	b.spin(pullSpins)
	b.gpio.Write32(clk, 1<<(pin%32))
	b.spin(pullSpins)
	b.gpio.Write32(gppud, 0)
	b.gpio.Write32(clk, 0)
	return nil
}

func (b *BCM2835) spin(n int) {
	for i := 0; i < n; i++ {
		_ = b.gpio.Read32(gplev0)
	}
}

// SetPin drives an output pin
func (b *BCM2835) SetPin(pin GPIOPin, value bool) error {
	if pin > MaxPin {
		return ErrInvalidPin
	}
	b.write(pin, value)
	return nil
}

// GetPin reads the level of a pin
func (b *BCM2835) GetPin(pin GPIOPin) (bool, error) {
	if pin > MaxPin {
		return false, ErrInvalidPin
	}
	return b.read(pin), nil
}

func (b *BCM2835) write(pin GPIOPin, value bool) {
	bank := uintptr(pin/32) * 4
	if value {
		b.gpio.Write32(gpset0+bank, 1<<(pin%32))
	} else {
		b.gpio.Write32(gpclr0+bank, 1<<(pin%32))
	}
}

func (b *BCM2835) read(pin GPIOPin) bool {
	return b.gpio.Read32(gplev0+uintptr(pin/32)*4)&(1<<(pin%32)) != 0
}

// Line returns a validated line for a pin
func (b *BCM2835) Line(pin GPIOPin, activeLow bool) (Line, error) {
	if pin > MaxPin {
		return nil, ErrInvalidPin
	}
	return PinLine{Driver: b, Pin: pin, ActiveLow: activeLow}, nil
}

// ConfigureSPI routes SPI0 to its pins and sets clock and mode
func (b *BCM2835) ConfigureSPI(cfg SPIConfig) error {
	if b.spi == nil {
		return ErrNoSPI
	}
	for _, pin := range []GPIOPin{pinSPI0CE0, pinSPI0MISO, pinSPI0MOSI, pinSPI0SCLK} {
		if err := b.SetFunction(pin, FuncAlt0); err != nil {
			return err
		}
	}

	b.mode = 0
	if cfg.Mode&1 != 0 {
		b.mode |= csCPHA
	}
	if cfg.Mode&2 != 0 {
		b.mode |= csCPOL
	}
	b.spi.Write32(spiCS, b.mode|csClearRX|csClearTX)
	b.spi.Write32(spiCLK, cfg.Divider)
	return nil
}

// Tx performs a polled full-duplex transfer. Either buffer may be nil;
// zeros are sent when w is nil. There is no timeout: the FIFO always
// drains at the configured clock.
func (b *BCM2835) Tx(w, r []byte) error {
	if b.spi == nil {
		return ErrNoSPI
	}
	n := len(w)
	if w == nil {
		n = len(r)
	} else if r != nil && len(r) != n {
		return ErrLengthMismatch
	}

	b.spi.Write32(spiCS, b.mode|csClearRX|csClearTX|csTA)
	sent, recv := 0, 0
	for recv < n {
		cs := b.spi.Read32(spiCS)
		if sent < n && cs&csTXD != 0 {
			var v byte
			if w != nil {
				v = w[sent]
			}
			b.spi.Write32(spiFIFO, uint32(v))
			sent++
		}
		if cs&csRXD != 0 {
			v := byte(b.spi.Read32(spiFIFO))
			if r != nil {
				r[recv] = v
			}
			recv++
		}
	}
	for b.spi.Read32(spiCS)&csDone == 0 {
	}
	b.spi.Write32(spiCS, b.mode)
	return nil
}

// Transfer exchanges a single byte
func (b *BCM2835) Transfer(w byte) (byte, error) {
	var r [1]byte
	err := b.Tx([]byte{w}, r[:])
	return r[0], err
}

// Restore puts the pin functions back as they were at start-up and
// stops any SPI transfer
func (b *BCM2835) Restore() {
	if b.spi != nil {
		b.spi.Write32(spiCS, csClearRX|csClearTX)
	}
	for i, v := range b.saved {
		b.gpio.Write32(gpfsel0+uintptr(i)*4, v)
	}
}

// Close restores the registers and releases the mappings
func (b *BCM2835) Close() error {
	b.Restore()
	var err error
	if b.spi != nil {
		err = b.spi.Close()
	}
	if gerr := b.gpio.Close(); err == nil {
		err = gerr
	}
	return err
}

// OpenBCM2835 maps the GPIO and SPI0 blocks of the peripheral window at
// base through device
func OpenBCM2835(device string, base int64) (*BCM2835, error) {
	gpio, err := Map(device, base+GPIOOffset, BlockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to map GPIO: %w", err)
	}
	spi, err := Map(device, base+SPI0Offset, BlockSize)
	if err != nil {
		_ = gpio.Close()
		return nil, fmt.Errorf("failed to map SPI0: %w", err)
	}
	return NewBCM2835(gpio, spi), nil
}
