//go:build !linux

package core

// Map is only available on linux
func Map(device string, base int64, size int) (Region, error) {
	return nil, ErrUnsupported
}
