package sysex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("1000031a")
	require.NoError(t, err)
	assert.Equal(t, Address{0x10, 0x00, 0x03, 0x1A}, a)
	assert.Equal(t, "1000031A", a.String())

	for _, bad := range []string{"", "1000", "1000031G", "100003120"} {
		_, err := ParseAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func TestEncodeLayout(t *testing.T) {
	m, err := Encode(Frame{Address: MustParseAddress("10000312"), Width: 8, Value: 0})
	require.NoError(t, err)

	want := []byte{
		0x41, 0x00, 0x00, 0x00, 0x00, 0x69, 0x12,
		0x10, 0x00, 0x03, 0x12,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x5B, // 128 - (0x10 + 0x03 + 0x12)
	}
	assert.Equal(t, want, m.Bytes())
	assert.Equal(t, 20, m.Len())
	assert.Equal(t, byte(0x5B), m.Checksum())
}

func TestEncodePacking(t *testing.T) {
	addr := MustParseAddress("10001502")
	tests := []struct {
		name  string
		width int
		value uint32
		data  []byte
	}{
		{"width 1", 1, 100, []byte{0x64}},
		{"width 1 masks to 7 bits", 1, 0xFF, []byte{0x7F}},
		{"width 2", 2, 0xAB, []byte{0x0A, 0x0B}},
		{"width 2 wraps", 2, 0x1AB, []byte{0x0A, 0x0B}},
		{"width 3", 3, 0xABC, []byte{0x0A, 0x0B, 0x0C}},
		{"width 4", 4, 1200, []byte{0x00, 0x04, 0x0B, 0x00}},
		{"width 4 wraps", 4, 0x1ABCD, []byte{0x0A, 0x0B, 0x0C, 0x0D}},
		{"width 8 not masked", 8, 0xFEDCBA98, []byte{0x0F, 0x0E, 0x0D, 0x0C, 0x0B, 0x0A, 0x09, 0x08}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Encode(Frame{Address: addr, Width: tt.width, Value: tt.value})
			require.NoError(t, err)
			b := m.Bytes()
			assert.Equal(t, tt.data, b[HeaderLen+AddrLen:len(b)-1])
		})
	}
}

func TestEncodeInvalidWidth(t *testing.T) {
	for _, w := range []int{0, 5, 6, 7, 9} {
		_, err := Encode(Frame{Width: w})
		assert.ErrorIs(t, err, ErrInvalidWidth)
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want byte
	}{
		{"zero sum", []byte{0x00, 0x00}, 0x80},
		{"exactly 128 is not reduced", []byte{0x40, 0x40}, 0x00},
		{"129 is reduced", []byte{0x40, 0x41}, 0x7F},
		{"running reduction", []byte{0x7F, 0x7F, 0x7F}, 0x03},
		{"address only", []byte{0x10, 0x00, 0x03, 0x12}, 0x5B},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum(tt.body))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	addr := MustParseAddress("1000123E")
	limits := map[int]uint32{1: 0x7F, 2: 0xFF, 3: 0xFFF, 4: 0xFFFF}

	for width, max := range limits {
		for v := uint32(0); v <= max; v++ {
			m, err := Encode(Frame{Address: addr, Width: width, Value: v})
			require.NoError(t, err)
			f, ok := Decode(m.Bytes())
			require.True(t, ok)
			if f != (Frame{Address: addr, Width: width, Value: v}) {
				t.Fatalf("round trip width %d value %d: got %v", width, v, f)
			}
		}
	}

	for _, v := range []uint32{0, 1, 0xFF, 0x1234567, 0x80000000, 0xFFFFFFFF} {
		m, err := Encode(Frame{Address: addr, Width: 8, Value: v})
		require.NoError(t, err)
		f, ok := Decode(m.Framed())
		require.True(t, ok)
		assert.Equal(t, Frame{Address: addr, Width: 8, Value: v}, f)
	}
}

func TestDecodeIgnored(t *testing.T) {
	good, err := Encode(Frame{Address: MustParseAddress("10000312"), Width: 1, Value: 1})
	require.NoError(t, err)
	raw := good.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong manufacturer", append([]byte{0x43}, raw[1:]...)},
		{"wrong model", append(append([]byte{}, raw[:5]...), append([]byte{0x6A}, raw[6:]...)...)},
		{"truncated", raw[:12]},
		{"unknown length", append(append([]byte{}, raw...), 0x00, 0x00, 0x00, 0x00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Decode(tt.data)
			assert.False(t, ok)
		})
	}
}

func TestSignature(t *testing.T) {
	f := Frame{Address: MustParseAddress("10001502"), Width: 4, Value: 300}
	a, _ := Encode(f)
	b, _ := Encode(f)
	c, _ := Encode(Frame{Address: f.Address, Width: 4, Value: 301})

	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())

	parsed, ok := Parse(a.Framed())
	require.True(t, ok)
	assert.Equal(t, a.Signature(), parsed.Signature())
}

func TestParseHex(t *testing.T) {
	data, err := ParseHex("F0 41 00 00 00 00 69 12 10 00 03 12 01 5A F7")
	require.NoError(t, err)
	f, ok := Decode(data)
	require.True(t, ok)
	assert.Equal(t, "10000312", f.Address.String())
	assert.Equal(t, 1, f.Width)
	assert.Equal(t, uint32(1), f.Value)

	_, err = ParseHex("zz")
	assert.Error(t, err)
}

func TestMessageString(t *testing.T) {
	m, err := Encode(Frame{Address: MustParseAddress("7F000001"), Width: 1, Value: 1})
	require.NoError(t, err)
	assert.Equal(t, "41 00 00 00 00 69 12 7F 00 00 01 01 7F", m.String())
}
