package sysex

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Message is a complete DT1 message without the F0/F7 framing.
// It is a comparable value and never allocates.
type Message struct {
	n   uint8
	buf [MaxLen]byte
}

// Signature identifies a message for echo suppression. Two messages have
// equal signatures when their bytes are identical.
type Signature Message

// Encode builds the DT1 message for the given frame
func Encode(f Frame) (Message, error) {
	var m Message
	if !ValidWidth(f.Width) {
		return m, fmt.Errorf("%w: %d", ErrInvalidWidth, f.Width)
	}

	copy(m.buf[:], Header[:])
	m.buf[6] = CommandDT
	copy(m.buf[HeaderLen:], f.Address[:])

	data := m.buf[HeaderLen+AddrLen : HeaderLen+AddrLen+f.Width]
	pack(data, f.Value)

	// Checksum covers address and data bytes
	m.buf[HeaderLen+AddrLen+f.Width] = Checksum(m.buf[HeaderLen : HeaderLen+AddrLen+f.Width])
	m.n = uint8(HeaderLen + AddrLen + f.Width + 1)
	return m, nil
}

// pack spreads value over the data bytes. Width 1 carries 7 bits,
// wider values use only the low nibble of each byte, most significant first.
func pack(data []byte, value uint32) {
	switch len(data) {
	case 1:
		data[0] = byte(value & 0x7F)
		return
	case 2:
		value &= 0xFF
	case 3:
		value &= 0xFFF
	case 4:
		value &= 0xFFFF
	}
	// width 8 is a full register and is not masked
	for i := len(data) - 1; i >= 0; i-- {
		data[i] = byte(value & 0x0F)
		value >>= 4
	}
}

func unpack(data []byte) uint32 {
	if len(data) == 1 {
		return uint32(data[0])
	}
	var v uint32
	for _, b := range data {
		v = v<<4 + uint32(b)
	}
	return v
}

// Checksum computes the Roland checksum of address and data bytes.
// The running sum is reduced by 128 only when it exceeds 128, so a sum of
// exactly 128 stays 128 and yields 0. The device expects exactly this.
func Checksum(body []byte) byte {
	sum := 0
	for _, b := range body {
		sum += int(b)
		if sum > 128 {
			sum -= 128
		}
	}
	return byte(128 - sum)
}

// widthForLen maps a message length in bytes to its data byte width
func widthForLen(n int) int {
	switch n {
	case 13:
		return 1
	case 14:
		return 2
	case 15:
		return 3
	case 16:
		return 4
	case 20:
		return 8
	}
	return 0
}

// Parse checks raw bytes for the SY-1000 header and a known length and
// copies them into a Message. F0/F7 framing is stripped if present.
// ok is false for anything that is not an SY-1000 DT1 message.
func Parse(raw []byte) (m Message, ok bool) {
	raw = Unframe(raw)
	if !IsSY1000(raw) || widthForLen(len(raw)) == 0 {
		return m, false
	}
	m.n = uint8(copy(m.buf[:], raw))
	return m, true
}

// Decode parses raw bytes and returns the frame they carry
func Decode(raw []byte) (Frame, bool) {
	m, ok := Parse(raw)
	if !ok {
		return Frame{}, false
	}
	return m.Frame(), true
}

// Width returns the data byte width of the message
func (m Message) Width() int {
	return widthForLen(int(m.n))
}

// Address returns the target address of the message
func (m Message) Address() Address {
	var a Address
	copy(a[:], m.buf[HeaderLen:HeaderLen+AddrLen])
	return a
}

// Frame decodes the address, width and value of the message
func (m Message) Frame() Frame {
	w := m.Width()
	return Frame{
		Address: m.Address(),
		Width:   w,
		Value:   unpack(m.buf[HeaderLen+AddrLen : HeaderLen+AddrLen+w]),
	}
}

// Len returns the message length in bytes
func (m Message) Len() int { return int(m.n) }

// IsZero reports whether the message is empty
func (m Message) IsZero() bool { return m.n == 0 }

// Bytes returns a copy of the message bytes without framing
func (m Message) Bytes() []byte {
	out := make([]byte, m.n)
	copy(out, m.buf[:m.n])
	return out
}

// Framed returns the message wrapped in F0 ... F7
func (m Message) Framed() []byte {
	out := make([]byte, 0, int(m.n)+2)
	out = append(out, SysExStart)
	out = append(out, m.buf[:m.n]...)
	return append(out, SysExEnd)
}

// Checksum returns the trailing checksum byte
func (m Message) Checksum() byte {
	if m.n == 0 {
		return 0
	}
	return m.buf[m.n-1]
}

// Signature returns the echo suppression signature of the message
func (m Message) Signature() Signature { return Signature(m) }

// String returns the message as space separated upper case hex
func (m Message) String() string {
	var s strings.Builder
	for i, b := range m.buf[:m.n] {
		if i > 0 {
			s.WriteByte(' ')
		}
		fmt.Fprintf(&s, "%02X", b)
	}
	return s.String()
}

// ParseHex parses a hex string (spaces allowed, framing optional) into raw bytes
func ParseHex(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", "\t", "", "\n", "", ":", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}
