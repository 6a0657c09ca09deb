//go:build linux

package core

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mappedRegion is a Region backed by an mmap of a physical memory device
type mappedRegion struct {
	wordRegion
	mem []byte
}

// Map maps size bytes of physical memory at base through the given device
// (/dev/gpiomem or /dev/mem). Failure here is fatal for the driver.
func Map(device string, base int64, size int) (Region, error) {
	f, err := os.OpenFile(device, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", device, err)
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), base, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map 0x%08x+0x%x from %s: %w", base, size, device, err)
	}

	return &mappedRegion{wordRegion: wordRegion{words: wordsOf(mem)}, mem: mem}, nil
}

func (r *mappedRegion) Close() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	r.words = nil
	return err
}
