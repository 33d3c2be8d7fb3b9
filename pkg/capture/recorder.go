package capture

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/sy1000sync/pkg/sysex"
)

// At the fixed 120 BPM of a recording one tick is one millisecond
const (
	ticksPerQuarter = 500
	recordingTempo  = 120.0
)

func ticksToDuration(ticks int64, resolution uint16) time.Duration {
	// quarter note at 120 BPM is 500ms
	return time.Duration(ticks) * 500 * time.Millisecond / time.Duration(resolution)
}

// Recorder collects session traffic and writes it as a Standard MIDI File.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	now    func() time.Time
	start  time.Time
	events []Event
}

// NewRecorder creates a recorder; time starts at the first recorded message
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Record appends a message. outbound marks traffic sent to the device.
func (r *Recorder) Record(msg sysex.Message, outbound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.now()
	if r.start.IsZero() {
		r.start = t
	}
	dir := FromDevice
	if outbound {
		dir = ToDevice
	}
	r.events = append(r.events, Event{Time: t.Sub(r.start), Direction: dir, Message: msg})
}

// Len returns the number of recorded messages
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func trackName(name string) smf.Message {
	return smf.Message(append([]byte{0xFF, 0x03, byte(len(name))}, name...))
}

// WriteTo writes the recording as SMF format 1: track 0 holds messages
// from the device, track 1 messages to the device
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	events := r.Events()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	microsecondsPerBeat := uint32(60000000.0 / recordingTempo)
	tempo := smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	})

	for _, dir := range []Direction{FromDevice, ToDevice} {
		var track smf.Track
		if dir == FromDevice {
			track.Add(0, tempo)
			track.Add(0, trackName("SY-1000 in"))
		} else {
			track.Add(0, trackName("SY-1000 out"))
		}

		var last int64
		for _, ev := range events {
			if ev.Direction != dir {
				continue
			}
			tick := ev.Time.Milliseconds()
			track.Add(uint32(tick-last), ev.Message.MIDI())
			last = tick
		}
		track.Close(0)

		if err := s.Add(track); err != nil {
			return 0, fmt.Errorf("failed to add track: %w", err)
		}
	}

	n, err := s.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return n, nil
}

// WriteFile writes the recording to path
func (r *Recorder) WriteFile(path string) error {
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write capture file: %w", err)
	}
	return nil
}
