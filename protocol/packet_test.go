package protocol

import "testing"

func TestTagWord(t *testing.T) {
	if w := TagWord(TagCommand); w != 0x444D433E {
		t.Errorf("Expected CMD word 0x444D433E, got 0x%08X", w)
	}
	if tag := WordTag(0x4746431F); tag != TagConfig {
		t.Errorf("Expected CFG regardless of framing byte, got %v", tag)
	}
	for _, tc := range []struct {
		tag  Tag
		name string
	}{
		{TagConfig, "CFG"},
		{TagCommand, "CMD"},
		{TagStatus, "STS"},
	} {
		if tc.tag.String() != tc.name {
			t.Errorf("Expected %s, got %s", tc.name, tc.tag.String())
		}
	}
}

func TestPacketMarshal(t *testing.T) {
	var p Packet
	vel := [MaxAxes]int32{1, -1, 0x01020304, 0}
	p.SetCommand(&vel, 7, 0x8001)

	buf := make([]byte, PacketBytes)
	if err := p.Marshal(buf); err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if string(buf[:4]) != ">CMD" {
		t.Errorf("Expected tag bytes \">CMD\", got %q", buf[:4])
	}
	if buf[4] != 1 || buf[5] != 0 {
		t.Errorf("Expected little-endian velocity word, got % X", buf[4:8])
	}
	if buf[8] != 0xFF || buf[11] != 0xFF {
		t.Errorf("Expected two's complement -1, got % X", buf[8:12])
	}
	if buf[12] != 0x04 || buf[15] != 0x01 {
		t.Errorf("Expected byte order 04 03 02 01, got % X", buf[12:16])
	}

	var q Packet
	if err := q.Unmarshal(buf); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if q != p {
		t.Errorf("Round trip mismatch: %v != %v", q, p)
	}
	if q[WordPWM] != 7 || q[WordOutput] != 0x8001 {
		t.Errorf("Expected duty 7 and outputs 0x8001, got %d and 0x%X", q[WordPWM], q[WordOutput])
	}
}

func TestPacketLengthMismatch(t *testing.T) {
	var p Packet
	if err := p.Marshal(make([]byte, PacketBytes-1)); err != ErrShortPacket {
		t.Errorf("Expected ErrShortPacket on short buffer, got %v", err)
	}
	if err := p.Unmarshal(make([]byte, PacketBytes+4)); err != ErrShortPacket {
		t.Errorf("Expected ErrShortPacket on long buffer, got %v", err)
	}
}

func TestConfigPacket(t *testing.T) {
	p := NewConfig(2, 1999)
	if p.Tag() != TagConfig {
		t.Errorf("Expected CFG tag, got %v", p.Tag())
	}
	if p[WordStep] != 2 || p[WordPWM] != 1999 {
		t.Errorf("Expected step length 2 and period 1999, got %d and %d", p[WordStep], p[WordPWM])
	}
}

func TestSetStatusKeepsCommandWords(t *testing.T) {
	var p Packet
	vel := [MaxAxes]int32{10, 20, 30, 40}
	p.SetCommand(&vel, 5, 3)
	p.SetStatus()

	if p.Tag() != TagStatus {
		t.Errorf("Expected STS tag, got %v", p.Tag())
	}
	if p[WordAxis0] != 10 || p[WordOutput] != 3 {
		t.Errorf("SetStatus should not touch command words: %v", p)
	}
}

func TestPacketCheck(t *testing.T) {
	var p Packet
	p[WordHeader] = TagWord(TagStatus)
	p[WordCheck] = uint32(TagStatus)<<8 | 0x01 // framing byte is not compared

	if !p.Check(TagStatus) {
		t.Error("Expected matching tags to pass")
	}
	if p.Check(TagCommand) {
		t.Error("Expected check against a different tag to fail")
	}

	p[WordCheck] = TagWord(TagCommand)
	if p.Check(TagStatus) {
		t.Error("Expected mismatched trailing word to fail")
	}

	p[WordCheck] = TagWord(TagStatus)
	p[WordHeader] = 0
	if p.Check(TagStatus) {
		t.Error("Expected mismatched leading word to fail")
	}
}

func TestPacketCount(t *testing.T) {
	var p Packet
	p[WordAxis0+2] = 0xFFFFFFFE
	p[WordInput] = 0x5A

	if c := p.Count(2); c != -2 {
		t.Errorf("Expected count -2, got %d", c)
	}
	if in := p.Inputs(); in != 0x5A {
		t.Errorf("Expected inputs 0x5A, got 0x%X", in)
	}
}

func TestAccessorsOnReturnedPacket(t *testing.T) {
	if tag := NewConfig(5, 1999).Tag(); tag != TagConfig {
		t.Errorf("Expected tag %v, got %v", TagConfig, tag)
	}
	if NewConfig(5, 1999).Check(TagConfig) {
		t.Error("Expected a request without trailing tag to fail the check")
	}
	if in := NewConfig(5, 1999).Inputs(); in != 1999 {
		t.Errorf("Expected word %d to read back 1999, got %d", WordInput, in)
	}
	if c := NewConfig(5, 1999).Count(0); c != 5 {
		t.Errorf("Expected step word 5, got %d", c)
	}
}
