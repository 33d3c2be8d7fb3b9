package session

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/james-see/sy1000sync/pkg/bridge"
	"github.com/james-see/sy1000sync/pkg/capture"
	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/config"
	"github.com/james-see/sy1000sync/pkg/sysex"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadCatalog(t *testing.T) {
	ctx := context.Background()

	c, err := LoadCatalog(ctx, config.Catalog{})
	require.NoError(t, err)
	def, err := catalog.Default()
	require.NoError(t, err)
	assert.Equal(t, def.Len(), c.Len())

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "params.yaml")
	f, err := os.Create(yamlPath)
	require.NoError(t, err)
	require.NoError(t, def.WriteYAML(f))
	require.NoError(t, f.Close())

	c, err = LoadCatalog(ctx, config.Catalog{Path: yamlPath})
	require.NoError(t, err)
	assert.Equal(t, def.All(), c.All())

	dbPath := filepath.Join(dir, "params.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	require.NoError(t, def.SaveSQL(ctx, db))
	require.NoError(t, db.Close())

	c, err = LoadCatalog(ctx, config.Catalog{SQLite: dbPath})
	require.NoError(t, err)
	assert.Equal(t, def.All(), c.All())

	_, err = LoadCatalog(ctx, config.Catalog{Path: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestStateSurvivesSessions(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.State = filepath.Join(t.TempDir(), "state.yaml")

	s, err := New(ctx, cfg, quiet())
	require.NoError(t, err)
	s.Store.SetValue("patch_level", 77)
	_, _ = s.Controller.TakePending()
	require.NoError(t, s.Save())

	s2, err := New(ctx, cfg, quiet())
	require.NoError(t, err)
	v, _ := s2.Store.Value("patch_level")
	assert.Equal(t, 77, v)

	// restoring is not a user edit
	_, ok := s2.Controller.TakePending()
	assert.False(t, ok)
}

func TestRestoredRegisterBits(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.State = filepath.Join(t.TempDir(), "state.yaml")

	s, err := New(ctx, cfg, quiet())
	require.NoError(t, err)
	s.Store.SetValue("register_a_03", 1)
	require.NoError(t, s.Save())

	s2, err := New(ctx, cfg, quiet())
	require.NoError(t, err)
	assert.Equal(t, uint32(0x08), s2.Controller.Registers().A.Load())
	_, ok := s2.Controller.TakePending()
	assert.False(t, ok, "restoring registers sends nothing")

	s2.Store.SetValue("register_a_05", 1)
	m, ok := s2.Controller.TakePending()
	require.True(t, ok)
	assert.Equal(t, uint32(0x28), m.Frame().Value)
}

func TestStartAndReplay(t *testing.T) {
	cfg := config.Default()
	cfg.Sync.BPM = 90
	s, err := New(context.Background(), cfg, quiet())
	require.NoError(t, err)

	var sent []sysex.Address
	require.NoError(t, s.Start(func() error {
		if m, ok := s.Controller.TakePending(); ok {
			sent = append(sent, m.Frame().Address)
		}
		return nil
	}))
	assert.Equal(t, []sysex.Address{bridge.SyncAddress, bridge.MasterTempoAddress}, sent)
	assert.Equal(t, uint64(0), s.Controller.Stats().Overwritten)

	boom := errors.New("port closed")
	assert.ErrorIs(t, s.Start(func() error { return boom }), boom)

	in, err := sysex.Encode(sysex.Frame{Address: sysex.MustParseAddress("10004006"), Width: 1, Value: 33})
	require.NoError(t, err)
	out, err := sysex.Encode(sysex.Frame{Address: sysex.MustParseAddress("10004008"), Width: 1, Value: 5})
	require.NoError(t, err)

	n := s.Replay([]capture.Event{
		{Direction: capture.FromDevice, Message: in},
		{Direction: capture.ToDevice, Message: out},
	})
	assert.Equal(t, 1, n)
	v, _ := s.Store.Value("delay1_feedback")
	assert.Equal(t, 33, v)
	v, _ = s.Store.Value("delay1_effect_level")
	assert.Equal(t, 100, v)
}
