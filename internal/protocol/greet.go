package protocol

import (
	"encoding/binary"
	"fmt"
)

// MinProtocolVersion is the lowest Protocol::Handshake version this driver
// accepts; the connection refuses anything older (spec.md §1, §4.2).
const MinProtocolVersion = 10

// Greet is the server's initial Protocol::Handshake (v10) packet.
type Greet struct {
	ProtocolVersion byte
	ServerVersion   string
	ThreadID        uint32
	Scramble        []byte // always 20 bytes, reassembled from the two parts
	Capabilities    Capability
	CharsetNo       byte
	StatusFlags     ServerStatus
	AuthPluginName  string
}

// ParseGreet parses a Protocol::Handshake packet. Packets whose field-count
// byte is 0xFF are ERR packets carrying a connect-time failure; callers
// should check that first via IsErrPacket.
func ParseGreet(data []byte) (*Greet, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty greet packet", ErrMalformedPacket)
	}

	g := &Greet{ProtocolVersion: data[0]}
	if g.ProtocolVersion < MinProtocolVersion {
		return g, fmt.Errorf("protocol: server protocol version %d older than %d", g.ProtocolVersion, MinProtocolVersion)
	}

	versionBytes, n, err := NullTerminated(data[1:])
	if err != nil {
		return nil, err
	}
	g.ServerVersion = string(versionBytes)
	pos := 1 + n

	if pos+4 > len(data) {
		return nil, fmt.Errorf("%w: truncated greet (thread id)", ErrMalformedPacket)
	}
	g.ThreadID = binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4

	if pos+8 > len(data) {
		return nil, fmt.Errorf("%w: truncated greet (scramble part 1)", ErrMalformedPacket)
	}
	scramble := make([]byte, 0, 20)
	scramble = append(scramble, data[pos:pos+8]...)
	pos += 8
	pos++ // filler

	if pos+2 > len(data) {
		return nil, fmt.Errorf("%w: truncated greet (capability low)", ErrMalformedPacket)
	}
	capLow := uint32(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2

	if pos >= len(data) {
		g.Capabilities = Capability(capLow)
		g.Scramble = scramble
		return g, nil
	}

	g.CharsetNo = data[pos]
	pos++

	if pos+2 > len(data) {
		return nil, fmt.Errorf("%w: truncated greet (status flags)", ErrMalformedPacket)
	}
	g.StatusFlags = ServerStatus(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2

	if pos+2 > len(data) {
		return nil, fmt.Errorf("%w: truncated greet (capability high)", ErrMalformedPacket)
	}
	capHigh := uint32(binary.LittleEndian.Uint16(data[pos : pos+2])) << 16
	g.Capabilities = Capability(capLow | capHigh)
	pos += 2

	var authPluginDataLen int
	if pos < len(data) {
		authPluginDataLen = int(data[pos])
	}
	pos++
	pos += 10 // reserved

	part2Len := authPluginDataLen - 8
	if part2Len < 13 {
		part2Len = 13
	}
	if pos+part2Len > len(data) {
		part2Len = len(data) - pos
	}
	if part2Len > 0 {
		part2 := data[pos : pos+part2Len]
		if len(part2) > 0 && part2[len(part2)-1] == 0 {
			part2 = part2[:len(part2)-1]
		}
		scramble = append(scramble, part2...)
	}
	pos += part2Len

	g.Scramble = scramble

	if g.Capabilities&ClientPluginAuth != 0 && pos < len(data) {
		name, _, err := NullTerminated(data[pos:])
		if err == nil {
			g.AuthPluginName = string(name)
		}
	}

	return g, nil
}
