package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"picnc/core"
	"picnc/protocol"
)

var (
	ErrTimeout        = errors.New("no response from bridge")
	ErrFrameTooLarge  = errors.New("payload does not fit in a frame")
	ErrLengthMismatch = errors.New("response length differs from request")
)

var _ core.Exchanger = (*Bridge)(nil)

// Bridge exchanges packets with a coprocessor through a USB serial
// adapter that performs the SPI transfer on its side. Each request is
// one frame and is answered by one frame of the same length.
type Bridge struct {
	port    Port
	timeout time.Duration

	tx      []byte
	rx      [64]byte
	fb      protocol.FrameBuffer
	payload []byte
}

// NewBridge creates a bridge. timeout bounds the wait for each response.
func NewBridge(port Port, timeout time.Duration) *Bridge {
	return &Bridge{
		port:    port,
		timeout: timeout,
		tx:      make([]byte, 0, protocol.FrameMax+protocol.FrameOverhead),
		payload: make([]byte, 0, protocol.FrameMax),
	}
}

// Lines returns the handshake lines of a serial link. The bridge does
// its own handshake, so they are always asserted.
func Lines() (request, ready core.Line) {
	return core.NopLine{}, core.NopLine{}
}

// Tx sends w and reads the response into r
func (b *Bridge) Tx(w, r []byte) error {
	if len(w) > protocol.FrameMax {
		return ErrFrameTooLarge
	}

	// Anything left over belongs to an exchange that already failed
	b.fb.Reset()

	b.tx = protocol.AppendFrame(b.tx[:0], w)
	if _, err := b.port.Write(b.tx); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	deadline := time.Now().Add(b.timeout)
	for {
		if p, ok := b.fb.Next(b.payload); ok {
			b.payload = p
			if len(p) != len(r) {
				return ErrLengthMismatch
			}
			copy(r, p)
			return nil
		}

		n, err := b.port.Read(b.rx[:])
		if n > 0 && b.fb.Write(b.rx[:n]) < n {
			// Only garbage can overflow the buffer
			b.fb.Reset()
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read frame: %w", err)
		}
		if n == 0 && time.Now().After(deadline) {
			return ErrTimeout
		}
	}
}

// Transfer exchanges a single byte
func (b *Bridge) Transfer(w byte) (byte, error) {
	var r [1]byte
	if err := b.Tx([]byte{w}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// Close closes the port
func (b *Bridge) Close() error {
	return b.port.Close()
}
