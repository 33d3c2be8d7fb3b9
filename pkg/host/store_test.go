package host

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/sy1000sync/pkg/catalog"
)

type recorder struct {
	changes []Change
}

func (r *recorder) ParameterChanged(c Change) { r.changes = append(r.changes, c) }

func newStore(t *testing.T) *Store {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return NewStore(c)
}

func TestDefaults(t *testing.T) {
	s := newStore(t)

	v, ok := s.Value("master_bpm")
	require.True(t, ok)
	assert.Equal(t, 1200, v)

	v, ok = s.Value("inst1_sw")
	require.True(t, ok)
	assert.Equal(t, 1, v, "choice default is an index")

	_, ok = s.Value("missing")
	assert.False(t, ok)
}

func TestSetNotifiesOnChangeOnly(t *testing.T) {
	s := newStore(t)
	rec := &recorder{}
	s.Subscribe(rec)

	s.SetValue("patch_level", 150)
	s.SetValue("patch_level", 150)
	s.SetValue("patch_level", 500) // clamped to 200

	require.Len(t, rec.changes, 2)
	assert.Equal(t, Change{ID: "patch_level", Value: 150}, rec.changes[0])
	assert.Equal(t, Change{ID: "patch_level", Value: 200}, rec.changes[1])

	assert.ErrorIs(t, s.Set("missing", 1), ErrUnknownParameter)
}

func TestSetProgrammatic(t *testing.T) {
	s := newStore(t)
	rec := &recorder{}
	s.Subscribe(rec)

	s.SetProgrammatic("delay1_feedback", 50)
	s.SetValue("delay1_feedback", 51)
	s.SetProgrammatic("delay1_feedback", 51)
	s.SetProgrammatic("missing", 1)

	require.Len(t, rec.changes, 2)
	assert.Equal(t, Change{ID: "delay1_feedback", Value: 50, Programmatic: true}, rec.changes[0])
	assert.Equal(t, Change{ID: "delay1_feedback", Value: 51}, rec.changes[1])
}

// a user edit made while a device write of the same id is being delivered
// stays a user edit
func TestUserEditDuringProgrammaticChange(t *testing.T) {
	s := newStore(t)
	rec := &recorder{}
	s.Subscribe(ListenerFunc(func(c Change) {
		if c.Programmatic && c.Value == 50 {
			s.SetValue("delay1_feedback", 60)
		}
	}))
	s.Subscribe(rec)

	s.SetProgrammatic("delay1_feedback", 50)

	require.Len(t, rec.changes, 2)
	assert.Equal(t, Change{ID: "delay1_feedback", Value: 60}, rec.changes[0])
	assert.Equal(t, Change{ID: "delay1_feedback", Value: 50, Programmatic: true}, rec.changes[1])
}

func TestListenerMayWriteBack(t *testing.T) {
	s := newStore(t)
	s.Subscribe(ListenerFunc(func(c Change) {
		if c.ID == "delay1_time" {
			s.SetValue("delay1_time_bpm", c.Value-2001)
		}
	}))

	s.SetValue("delay1_time", 2005)
	v, _ := s.Value("delay1_time_bpm")
	assert.Equal(t, 4, v)
}

func TestStateRoundTrip(t *testing.T) {
	s := newStore(t)
	s.SetValue("patch_level", 42)
	s.SetValue("register_a_03", 1)

	var buf bytes.Buffer
	require.NoError(t, s.WriteState(&buf))

	other := newStore(t)
	rec := &recorder{}
	other.Subscribe(rec)
	skipped, err := other.ReadState(&buf)
	require.NoError(t, err)
	assert.Empty(t, skipped)

	assert.Equal(t, s.Snapshot(), other.Snapshot())
	require.NotEmpty(t, rec.changes)
	for _, c := range rec.changes {
		assert.True(t, c.Programmatic, "restore must not look like a user edit")
	}
}

func TestRestoreSkipsUnknown(t *testing.T) {
	s := newStore(t)
	skipped := s.Restore(State{Parameters: map[string]int{"gone": 3, "patch_level": 7}})
	assert.Equal(t, []string{"gone"}, skipped)
	v, _ := s.Value("patch_level")
	assert.Equal(t, 7, v)
}

func TestStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	s := newStore(t)
	s.SetValue("eq_low_gain", 33)
	require.NoError(t, s.SaveStateFile(path))

	other := newStore(t)
	_, err := other.LoadStateFile(path)
	require.NoError(t, err)
	v, _ := other.Value("eq_low_gain")
	assert.Equal(t, 33, v)

	_, err = other.LoadStateFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
