package midiio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/james-see/sy1000sync/pkg/bridge"
	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/host"
	"github.com/james-see/sy1000sync/pkg/sysex"
)

type fakePort string

func (p fakePort) String() string { return string(p) }

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (s *fakeSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, append([]byte(nil), data...))
	return nil
}

func (s *fakeSender) messages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

type fakeRecorder struct {
	mu  sync.Mutex
	in  []sysex.Message
	out []sysex.Message
}

func (r *fakeRecorder) Record(m sysex.Message, outbound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if outbound {
		r.out = append(r.out, m)
	} else {
		r.in = append(r.in, m)
	}
}

func setup(t *testing.T) (*host.Store, *bridge.Controller) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	store := host.NewStore(cat)
	ctl := bridge.New(cat, store)
	store.Subscribe(ctl)
	return store, ctl
}

func encode(t *testing.T, addr string, width int, value uint32) sysex.Message {
	t.Helper()
	m, err := sysex.Encode(sysex.Frame{Address: sysex.MustParseAddress(addr), Width: width, Value: value})
	require.NoError(t, err)
	return m
}

func TestFindPort(t *testing.T) {
	ports := []fakePort{"Scarlett 2i2", "SY-1000 MIDI 1", "SY-1000 DAW CTRL"}

	p, err := findPort(ports, "sy-1000")
	require.NoError(t, err)
	assert.Equal(t, fakePort("SY-1000 MIDI 1"), p)

	_, err = findPort(ports, "blofeld")
	assert.ErrorIs(t, err, ErrPortNotFound)

	_, err = findPort([]fakePort{}, "sy-1000")
	assert.ErrorIs(t, err, ErrNoPorts)
}

func TestClockFollower(t *testing.T) {
	var f ClockFollower

	// 120 BPM is 500ms per quarter, 24 clocks per quarter
	var bpm float64
	var got int
	for i := 0; i <= 2*ClockPPQN; i++ {
		ms := int32(i * 500 / ClockPPQN)
		if v, ok := f.Tick(ms); ok {
			bpm = v
			got++
		}
	}
	assert.Equal(t, 2, got)
	assert.Equal(t, 120.0, bpm)

	f.Reset()
	for i := 0; i < ClockPPQN; i++ {
		_, ok := f.Tick(int32(i * 20))
		assert.False(t, ok)
	}
	bpm, ok := f.Tick(int32(ClockPPQN * 20))
	require.True(t, ok)
	assert.Equal(t, 125.0, bpm)
}

func TestHandleMessage(t *testing.T) {
	store, ctl := setup(t)
	rec := &fakeRecorder{}
	link := NewLink(ctl, &fakeSender{}, WithRecorder(rec), WithClockFollow(true))

	in := encode(t, "10000010", 4, 150)
	link.HandleMessage(in.MIDI(), 0)

	v, _ := store.Value("patch_level")
	assert.Equal(t, 150, v)
	assert.Equal(t, []sysex.Message{in}, rec.in)

	// notes are ignored
	link.HandleMessage(midi.NoteOn(0, 60, 100), 0)
	assert.Equal(t, uint64(1), ctl.Stats().Inbound)

	// 24 clocks over 600ms is 100 BPM
	link.HandleMessage(midi.Start(), 0)
	for i := 0; i <= ClockPPQN; i++ {
		link.HandleMessage(midi.TimingClock(), int32(i*25))
	}
	assert.Equal(t, 100.0, ctl.Stats().Tempo)
	m, ok := ctl.TakePending()
	require.True(t, ok)
	assert.Equal(t, sysex.Frame{Address: bridge.MasterTempoAddress, Width: 4, Value: 1000}, m.Frame())
}

func TestClockIgnoredWhenNotFollowing(t *testing.T) {
	_, ctl := setup(t)
	link := NewLink(ctl, &fakeSender{})
	for i := 0; i <= 2*ClockPPQN; i++ {
		link.HandleMessage(midi.TimingClock(), int32(i*25))
	}
	assert.Equal(t, -1.0, ctl.Stats().Tempo)
}

func TestFlush(t *testing.T) {
	store, ctl := setup(t)
	out := &fakeSender{}
	rec := &fakeRecorder{}
	link := NewLink(ctl, out, WithRecorder(rec))

	require.NoError(t, link.Flush())
	assert.Empty(t, out.messages())

	store.SetValue("inst1_level", 42)
	require.NoError(t, link.Flush())
	want := encode(t, "10001502", 1, 42)
	assert.Equal(t, [][]byte{want.Framed()}, out.messages())
	assert.Equal(t, []sysex.Message{want}, rec.out)

	out.err = errors.New("port closed")
	store.SetValue("inst1_level", 43)
	assert.Error(t, link.Flush())
	assert.Equal(t, uint64(1), link.SendErrors())
}

func TestRun(t *testing.T) {
	store, ctl := setup(t)
	out := &fakeSender{}
	link := NewLink(ctl, out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()

	require.True(t, ctl.Activate())
	assert.Eventually(t, func() bool { return len(out.messages()) == 1 }, time.Second, 5*time.Millisecond)

	store.SetValue("patch_level", 10)
	assert.Eventually(t, func() bool { return len(out.messages()) == 2 }, time.Second, 5*time.Millisecond)

	msgs := out.messages()
	assert.Equal(t, encode(t, "7F000001", 1, 1).Framed(), msgs[0])
	assert.Equal(t, encode(t, "10000010", 4, 10).Framed(), msgs[1])

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
