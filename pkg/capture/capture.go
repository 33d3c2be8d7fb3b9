// Package capture reads and writes SY-1000 SysEx traffic files.
//
// Two formats are understood: raw .syx dumps (concatenated F0 ... F7
// messages) and Standard MIDI Files carrying SysEx events. Session
// recordings are written as SMF with one track per direction.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/sy1000sync/pkg/sysex"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatSyx     Format = "syx"
	FormatUnknown Format = "unknown"
)

// ErrUnknownFormat is returned when neither extension nor content identify a file
var ErrUnknownFormat = errors.New("unknown capture format")

// Direction tells which side sent a message
type Direction int

const (
	// FromDevice is traffic received from the SY-1000
	FromDevice Direction = iota
	// ToDevice is traffic sent to the SY-1000
	ToDevice
)

func (d Direction) String() string {
	if d == ToDevice {
		return "out"
	}
	return "in"
}

// Event is one captured message
type Event struct {
	Time      time.Duration // offset from the start of the capture
	Direction Direction
	Message   sysex.Message
}

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mid", ".midi":
		return FormatMIDI
	case ".syx":
		return FormatSyx
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}
	if data[0] == sysex.SysExStart {
		return FormatSyx
	}
	return FormatUnknown
}

// ReadSyx extracts SY-1000 messages from a .syx dump. Messages for other
// devices or with unknown lengths are skipped.
func ReadSyx(data []byte) []Event {
	var events []Event
	for _, raw := range sysex.Split(data) {
		if msg, ok := sysex.Parse(raw); ok {
			events = append(events, Event{Direction: FromDevice, Message: msg})
		}
	}
	return events
}

// ReadMIDI extracts SY-1000 SysEx events from a Standard MIDI File. Events
// of all tracks are merged in time order; the second track of a recording
// holds outbound traffic.
func ReadMIDI(data []byte) ([]Event, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	resolution := uint16(ticksPerQuarter)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		resolution = mt.Resolution()
	}

	var events []Event
	for i, track := range s.Tracks {
		dir := FromDevice
		if i == 1 {
			dir = ToDevice
		}
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			raw := []byte(ev.Message)
			if len(raw) == 0 || raw[0] != sysex.SysExStart {
				continue
			}
			msg, ok := sysex.Parse(raw)
			if !ok {
				continue
			}
			events = append(events, Event{
				Time:      ticksToDuration(tick, resolution),
				Direction: dir,
				Message:   msg,
			})
		}
	}

	sort.SliceStable(events, func(a, b int) bool { return events[a].Time < events[b].Time })
	return events, nil
}

// Read decodes a capture, detecting the format from content
func Read(data []byte) ([]Event, error) {
	switch DetectFormatFromContent(data) {
	case FormatMIDI:
		return ReadMIDI(data)
	case FormatSyx:
		return ReadSyx(data), nil
	}
	return nil, ErrUnknownFormat
}

// ReadFile reads a .syx or .mid capture
func ReadFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture file: %w", err)
	}

	switch DetectFormat(path) {
	case FormatMIDI:
		return ReadMIDI(data)
	case FormatSyx:
		return ReadSyx(data), nil
	}
	return Read(data)
}

// WriteSyx writes messages as a framed .syx dump
func WriteSyx(msgs []sysex.Message) []byte {
	var buf bytes.Buffer
	for _, m := range msgs {
		buf.Write(m.Framed())
	}
	return buf.Bytes()
}
