package protocol

import (
	"encoding/binary"
	"errors"
)

// Tag classifies a packet. On the wire a tag occupies the upper 24 bits
// of a word above a framing byte.
type Tag uint32

const (
	TagConfig  Tag = 0x474643 // "CFG"
	TagCommand Tag = 0x444D43 // "CMD"
	TagStatus  Tag = 0x535453 // "STS", velocity words are ignored

	FrameByte = 0x3E // '>'
)

var ErrShortPacket = errors.New("packet length mismatch")

// TagWord returns the wire word for a tag
func TagWord(t Tag) uint32 {
	return uint32(t)<<8 | FrameByte
}

// WordTag strips the framing byte from a wire word
func WordTag(w uint32) Tag {
	return Tag(w >> 8)
}

func (t Tag) String() string {
	b := [3]byte{byte(t), byte(t >> 8), byte(t >> 16)}
	return string(b[:])
}

// Packet is one request or response
type Packet [PacketWords]uint32

// NewConfig builds the one-time start-up packet
func NewConfig(stepLen uint32, pwmPeriod uint32) Packet {
	var p Packet
	p[WordHeader] = TagWord(TagConfig)
	p[WordStep] = stepLen
	p[WordPWM] = pwmPeriod
	return p
}

// Tag returns the tag carried by the header word
func (p Packet) Tag() Tag {
	return WordTag(p[WordHeader])
}

// SetStatus marks the packet as a status-only request. The command
// words are left as they are; the firmware ignores them.
func (p *Packet) SetStatus() {
	p[WordHeader] = TagWord(TagStatus)
}

// SetCommand fills a full command request
func (p *Packet) SetCommand(vel *[MaxAxes]int32, duty uint32, outputs uint32) {
	p[WordHeader] = TagWord(TagCommand)
	for i, v := range vel {
		p[WordAxis0+i] = uint32(v)
	}
	p[WordPWM] = duty
	p[WordOutput] = outputs
}

// Count returns the raw counter reported for an axis
func (p Packet) Count(axis int) int32 {
	return DecodeRawCount(p[WordAxis0+axis])
}

// Inputs returns the digital input word of a response
func (p Packet) Inputs() uint32 {
	return p[WordInput]
}

// Check reports whether a response belongs to a request with tag t:
// both the leading and the trailing word must carry it.
func (p Packet) Check(t Tag) bool {
	return WordTag(p[WordHeader]) == t && WordTag(p[WordCheck]) == t
}

// Marshal writes the packet into dst, little-endian per word
func (p *Packet) Marshal(dst []byte) error {
	if len(dst) != PacketBytes {
		return ErrShortPacket
	}
	for i, w := range p {
		binary.LittleEndian.PutUint32(dst[i*4:], w)
	}
	return nil
}

// Unmarshal reads the packet from src
func (p *Packet) Unmarshal(src []byte) error {
	if len(src) != PacketBytes {
		return ErrShortPacket
	}
	for i := range p {
		p[i] = binary.LittleEndian.Uint32(src[i*4:])
	}
	return nil
}
