package core

import "tinygo.org/x/drivers"

// SPIMode represents SPI clock polarity and phase (0-3)
// Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on rising edge)
// Mode 1: CPOL=0, CPHA=1 (clock idle low, sample on falling edge)
// Mode 2: CPOL=1, CPHA=0 (clock idle high, sample on falling edge)
// Mode 3: CPOL=1, CPHA=1 (clock idle high, sample on rising edge)
type SPIMode uint8

// SPIConfig holds the configuration for an SPI bus
type SPIConfig struct {
	Mode    SPIMode // SPI mode (0-3)
	Divider uint32  // Core clock divider, even
}

// Exchanger shifts a buffer out while shifting the same number of bytes
// in. It is the tinygo drivers SPI contract, so bus implementations from
// that ecosystem plug in directly.
type Exchanger = drivers.SPI
