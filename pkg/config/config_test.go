package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "SY-1000", cfg.MIDI.In)
	assert.True(t, cfg.Sync.Activate)
	assert.True(t, cfg.Sync.EchoSuppression)
	assert.Equal(t, "8080", cfg.API.Port)
	assert.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	src := `
midi:
  in: "SY-1000 MIDI 1"
sync:
  echo_suppression: false
  follow_clock: true
  bpm: 98.5
log:
  level: debug
  format: json
state: session.yaml
`
	cfg, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "SY-1000 MIDI 1", cfg.MIDI.In)
	assert.Equal(t, "SY-1000", cfg.MIDI.Out, "unset keys keep defaults")
	assert.False(t, cfg.Sync.EchoSuppression)
	assert.True(t, cfg.Sync.Activate)
	assert.True(t, cfg.Sync.FollowClock)
	assert.Equal(t, 98.5, cfg.Sync.BPM)
	assert.Equal(t, "session.yaml", cfg.State)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unknown key", "midi:\n  port: x\n", nil},
		{"bad level", "log:\n  level: loud\n", ErrInvalidLevel},
		{"bad format", "log:\n  format: xml\n", ErrInvalidFormat},
		{"two catalogs", "catalog:\n  path: a.yaml\n  sqlite: b.db\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "sy1000sync.yaml")
	want := Default()
	want.API.Port = "9090"
	want.Catalog.Path = "params.yaml"

	var buf bytes.Buffer
	require.NoError(t, want.Write(&buf))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.Log = Log{Level: "warn", Format: "json"}

	var buf bytes.Buffer
	log := cfg.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "id", "patch_level")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "sy1000sync", rec["app"])
	assert.Equal(t, "patch_level", rec["id"])
}
