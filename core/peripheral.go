package core

import (
	"encoding/binary"
	"os"
)

const deviceTreeRanges = "/proc/device-tree/soc/ranges"

// PeripheralBase returns the physical peripheral base of the running SoC
// from the device tree, falling back to the BCM2836/7 address.
func PeripheralBase() int64 {
	return peripheralBaseFrom(deviceTreeRanges)
}

func peripheralBaseFrom(path string) int64 {
	data, err := os.ReadFile(path)
	if err != nil || len(data) < 8 {
		return DefaultPeripheralBase
	}
	// Cell layout: child address, parent address[, parent high], size.
	// 64-bit SoCs (BCM2711) put a zero high word first.
	if base := binary.BigEndian.Uint32(data[4:8]); base != 0 {
		return int64(base)
	}
	if len(data) >= 12 {
		if base := binary.BigEndian.Uint32(data[8:12]); base != 0 {
			return int64(base)
		}
	}
	return DefaultPeripheralBase
}
