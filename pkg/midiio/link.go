package midiio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/james-see/sy1000sync/pkg/bridge"
	"github.com/james-see/sy1000sync/pkg/sysex"
)

// SysExBufferSize is the listener buffer for incoming SysEx
const SysExBufferSize = 2048

// Sender transmits raw MIDI bytes. drivers.Out implements it.
type Sender interface {
	Send(data []byte) error
}

// Recorder receives every SY-1000 message passing the link
type Recorder interface {
	Record(msg sysex.Message, outbound bool)
}

// Link pumps SysEx between MIDI ports and a controller
type Link struct {
	ctl    *bridge.Controller
	out    Sender
	log    *slog.Logger
	rec    Recorder
	follow bool

	clockMu sync.Mutex
	clock   ClockFollower

	sendErrors atomic.Uint64
}

// LinkOption configures a Link
type LinkOption func(*Link)

// WithLinkLogger sets the link logger
func WithLinkLogger(l *slog.Logger) LinkOption {
	return func(k *Link) { k.log = l }
}

// WithRecorder taps all traffic into rec
func WithRecorder(rec Recorder) LinkOption {
	return func(k *Link) { k.rec = rec }
}

// WithClockFollow derives the controller tempo from incoming MIDI clock
func WithClockFollow(on bool) LinkOption {
	return func(k *Link) { k.follow = on }
}

// NewLink creates a link that sends controller output to out
func NewLink(ctl *bridge.Controller, out Sender, opts ...LinkOption) *Link {
	k := &Link{ctl: ctl, out: out}
	for _, opt := range opts {
		opt(k)
	}
	if k.log == nil {
		k.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return k
}

// HandleMessage is the midi.ListenTo callback
func (k *Link) HandleMessage(msg midi.Message, ms int32) {
	switch {
	case msg.Is(midi.SysExMsg):
		if k.rec != nil {
			if m, ok := sysex.FromMIDI(msg); ok {
				k.rec.Record(m, false)
			}
		}
		k.ctl.HandleInbound(msg.Bytes())

	case k.follow && msg.Is(midi.TimingClockMsg):
		k.clockMu.Lock()
		bpm, ok := k.clock.Tick(ms)
		k.clockMu.Unlock()
		if ok {
			k.ctl.SetTempo(bpm)
		}

	case msg.Is(midi.StartMsg), msg.Is(midi.StopMsg), msg.Is(midi.ContinueMsg):
		k.clockMu.Lock()
		k.clock.Reset()
		k.clockMu.Unlock()
	}
}

// Listen starts listening on in. Call the returned function to stop.
func (k *Link) Listen(in drivers.In) (func(), error) {
	stop, err := midi.ListenTo(in, k.HandleMessage, midi.UseSysEx(), midi.SysExBufferSize(SysExBufferSize))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", in.String(), err)
	}
	k.log.Info("listening", "port", in.String())
	return stop, nil
}

// Flush sends the pending controller message, if any
func (k *Link) Flush() error {
	msg, ok := k.ctl.TakePending()
	if !ok {
		return nil
	}
	if k.rec != nil {
		k.rec.Record(msg, true)
	}
	if err := k.out.Send(msg.MIDI().Bytes()); err != nil {
		k.sendErrors.Add(1)
		return fmt.Errorf("failed to send %s: %w", msg.String(), err)
	}
	return nil
}

// SendErrors returns the number of failed sends
func (k *Link) SendErrors() uint64 { return k.sendErrors.Load() }

// Run forwards controller output until ctx is done. Send errors are
// logged and do not stop the loop.
func (k *Link) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-k.ctl.Ready():
			if err := k.Flush(); err != nil {
				k.log.Warn("send failed", "err", err)
			}
		}
	}
}
