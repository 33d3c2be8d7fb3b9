package midiio

import "math"

// ClockPPQN is the number of MIDI timing clock messages per quarter note
const ClockPPQN = 24

// ClockFollower derives a tempo from MIDI timing clock timestamps. A
// tempo is reported once per quarter note, rounded to whole BPM so
// timestamp jitter does not retrigger tempo changes.
type ClockFollower struct {
	ticks   int
	started bool
	first   int32
}

// Reset forgets the running measurement (on Start, Stop or Continue)
func (f *ClockFollower) Reset() {
	*f = ClockFollower{}
}

// Tick feeds one clock message received at ms milliseconds. ok is set when
// a full quarter note has been measured.
func (f *ClockFollower) Tick(ms int32) (bpm float64, ok bool) {
	if !f.started {
		f.started = true
		f.first = ms
		return 0, false
	}
	f.ticks++
	if f.ticks < ClockPPQN {
		return 0, false
	}

	elapsed := ms - f.first
	f.first = ms
	f.ticks = 0
	if elapsed <= 0 {
		return 0, false
	}
	return math.Round(60000 / float64(elapsed)), true
}
