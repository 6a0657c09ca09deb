package protocol

import "encoding/binary"

// Serial bridge framing: sync, length, payload, CRC16 (little-endian).
// The CRC covers the length byte and the payload.
const (
	FrameSync     = 0x7E
	FrameHeader   = 2
	FrameTrailer  = 2
	FrameOverhead = FrameHeader + FrameTrailer
	FrameMax      = 255
)

// AppendFrame appends a framed payload to dst
func AppendFrame(dst []byte, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, FrameSync, byte(len(payload)))
	dst = append(dst, payload...)
	crc := CRC16(dst[start+1:])
	return binary.LittleEndian.AppendUint16(dst, crc)
}

// FindFrame scans data for the first complete frame. It returns the
// payload, the number of bytes consumed (including any garbage skipped
// before the sync byte and frames with a bad CRC), and whether a frame
// was found. When no complete frame is present, consumed counts only
// bytes that can never start one.
func FindFrame(data []byte) (payload []byte, consumed int, ok bool) {
	for {
		syncPos := -1
		for i, b := range data[consumed:] {
			if b == FrameSync {
				syncPos = consumed + i
				break
			}
		}
		if syncPos < 0 {
			return nil, len(data), false
		}
		consumed = syncPos
		rest := data[syncPos:]
		if len(rest) < FrameHeader {
			return nil, consumed, false
		}
		n := int(rest[1])
		if len(rest) < FrameOverhead+n {
			return nil, consumed, false
		}
		body := rest[1 : FrameHeader+n]
		crc := binary.LittleEndian.Uint16(rest[FrameHeader+n:])
		if CRC16(body) != crc {
			// Resync on the next sync byte
			consumed = syncPos + 1
			continue
		}
		return rest[FrameHeader : FrameHeader+n], syncPos + FrameOverhead + n, true
	}
}

// FrameBuffer accumulates bytes read from the serial bridge until a
// complete frame is available
type FrameBuffer struct {
	buf [2 * (FrameMax + FrameOverhead)]byte
	n   int
}

// Write appends data, returning the number of bytes stored. Bytes that do
// not fit are dropped; the caller reads again after Next has drained.
func (f *FrameBuffer) Write(data []byte) int {
	n := copy(f.buf[f.n:], data)
	f.n += n
	return n
}

// Len returns the number of buffered bytes
func (f *FrameBuffer) Len() int {
	return f.n
}

// Next extracts the next complete frame payload into dst. The returned
// slice aliases dst.
func (f *FrameBuffer) Next(dst []byte) ([]byte, bool) {
	payload, consumed, ok := FindFrame(f.buf[:f.n])
	if ok {
		dst = append(dst[:0], payload...)
	}
	f.n = copy(f.buf[:], f.buf[consumed:f.n])
	if !ok {
		return nil, false
	}
	return dst, true
}

// Reset discards buffered data
func (f *FrameBuffer) Reset() {
	f.n = 0
}
