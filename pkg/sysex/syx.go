package sysex

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Validate validates a framed SysEx message (as found in .syx files)
func Validate(data []byte) error {
	if len(data) < 2 {
		return errors.New("syx data too short")
	}

	if data[0] != SysExStart {
		return fmt.Errorf("invalid SysEx: expected start byte 0x%02X, got 0x%02X", SysExStart, data[0])
	}

	if data[len(data)-1] != SysExEnd {
		return fmt.Errorf("invalid SysEx: expected end byte 0x%02X, got 0x%02X", SysExEnd, data[len(data)-1])
	}

	// Check all data bytes are 7-bit (valid MIDI data)
	for i := 1; i < len(data)-1; i++ {
		if data[i] > 127 {
			return fmt.Errorf("invalid SysEx: byte at position %d is > 127 (0x%02X)", i, data[i])
		}
	}

	return nil
}

// Unframe strips a leading F0 and trailing F7 if present
func Unframe(data []byte) []byte {
	if len(data) > 0 && data[0] == SysExStart {
		data = data[1:]
	}
	if len(data) > 0 && data[len(data)-1] == SysExEnd {
		data = data[:len(data)-1]
	}
	return data
}

// IsSY1000 checks if unframed SysEx data carries the SY-1000 header
func IsSY1000(data []byte) bool {
	if len(data) < len(Header) {
		return false
	}
	for i, b := range Header {
		if data[i] != b {
			return false
		}
	}
	return true
}

// ExtractManufacturerID extracts the manufacturer ID from framed SysEx data
func ExtractManufacturerID(data []byte) ([]byte, error) {
	if len(data) < 3 {
		return nil, errors.New("syx data too short for manufacturer ID")
	}

	if data[0] != SysExStart {
		return nil, errors.New("invalid SysEx start")
	}

	// Check if extended manufacturer ID (starts with 0x00)
	if data[1] == 0x00 {
		if len(data) < 5 {
			return nil, errors.New("syx data too short for extended manufacturer ID")
		}
		return data[1:4], nil
	}

	// Single byte manufacturer ID
	return data[1:2], nil
}

// Split cuts a byte stream (e.g. the content of a .syx file) into framed
// SysEx messages. Bytes outside F0 ... F7 are skipped.
func Split(stream []byte) [][]byte {
	var out [][]byte
	start := -1
	for i, b := range stream {
		switch b {
		case SysExStart:
			start = i
		case SysExEnd:
			if start >= 0 {
				out = append(out, stream[start:i+1])
				start = -1
			}
		}
	}
	return out
}

// MIDI returns the message as a framed gomidi message ready to be sent
func (m Message) MIDI() midi.Message {
	return midi.SysEx(m.Bytes())
}

// FromMIDI parses a gomidi message. ok is false for non SysEx messages
// and for SysEx not addressed to or sent by an SY-1000.
func FromMIDI(msg midi.Message) (Message, bool) {
	var data []byte
	if !msg.GetSysEx(&data) {
		return Message{}, false
	}
	return Parse(data)
}
