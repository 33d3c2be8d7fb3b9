// Package sysex encodes and decodes Roland SY-1000 DT1 (data set) messages
package sysex

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SysEx framing bytes
const (
	SysExStart = 0xF0
	SysExEnd   = 0xF7
)

// SY-1000 protocol constants
const (
	RolandID  = 0x41 // Roland manufacturer ID
	ModelID   = 0x69 // SY-1000 model ID (last byte of the 4 byte model ID)
	CommandDT = 0x12 // Data set 1
	HeaderLen = 7    // Manufacturer + device + model ID + command
	AddrLen   = 4
	MaxLen    = HeaderLen + AddrLen + 8 + 1
)

// Header is the fixed prefix every SY-1000 message starts with
var Header = [6]byte{RolandID, 0x00, 0x00, 0x00, 0x00, ModelID}

var (
	// ErrInvalidWidth is returned when a byte width is not one of 1, 2, 3, 4 or 8
	ErrInvalidWidth = errors.New("invalid data byte width")
	// ErrInvalidAddress is returned when an address string is not 8 hex digits
	ErrInvalidAddress = errors.New("invalid address")
)

// Address is a 4 byte device memory location
type Address [AddrLen]byte

// ParseAddress parses an address written as 8 hex digits, e.g. "10000312"
func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) != 2*AddrLen {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the address as 8 upper case hex digits
func (a Address) String() string {
	return strings.ToUpper(hex.EncodeToString(a[:]))
}

// ValidWidth reports whether w is a supported data byte width
func ValidWidth(w int) bool {
	switch w {
	case 1, 2, 3, 4, 8:
		return true
	}
	return false
}

// Frame is a decoded DT1 message: where to write and what
type Frame struct {
	Address Address
	Width   int
	Value   uint32
}

func (f Frame) String() string {
	return fmt.Sprintf("%s/%d=%d", f.Address, f.Width, f.Value)
}
