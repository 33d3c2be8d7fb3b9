// Package config loads the sy1000sync YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/james-see/sy1000sync/pkg/midiio"
)

// Config is the full configuration file
type Config struct {
	MIDI    MIDI    `yaml:"midi"`
	Catalog Catalog `yaml:"catalog"`
	Sync    Sync    `yaml:"sync"`
	Log     Log     `yaml:"log"`
	API     API     `yaml:"api"`
	// State is the session snapshot file restored on start and saved on exit
	State string `yaml:"state"`
}

// MIDI selects the device ports by name fragment
type MIDI struct {
	In  string `yaml:"in"`
	Out string `yaml:"out"`
}

// Catalog selects the parameter table. Empty means the built-in table.
type Catalog struct {
	Path   string `yaml:"path"`   // YAML catalog file
	SQLite string `yaml:"sqlite"` // SQLite database with a parameters table
}

// Sync holds controller behavior
type Sync struct {
	Activate        bool    `yaml:"activate"`
	EchoSuppression bool    `yaml:"echo_suppression"`
	FollowClock     bool    `yaml:"follow_clock"`
	BPM             float64 `yaml:"bpm"`
	Record          string  `yaml:"record"`
}

// Log configures slog output
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// API configures the REST server
type API struct {
	Port string `yaml:"port"`
}

var (
	// ErrInvalidLevel is returned for unknown log levels
	ErrInvalidLevel = errors.New("invalid log level")
	// ErrInvalidFormat is returned for unknown log formats
	ErrInvalidFormat = errors.New("invalid log format")
)

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		MIDI: MIDI{In: midiio.DefaultPortHint, Out: midiio.DefaultPortHint},
		Sync: Sync{Activate: true, EchoSuppression: true},
		Log:  Log{Level: "info", Format: "text"},
		API:  API{Port: "8080"},
	}
}

// Parse reads YAML on top of the defaults
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads a config file. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks enumerated values
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Log.Format)
	}
	if c.Catalog.Path != "" && c.Catalog.SQLite != "" {
		return errors.New("catalog: path and sqlite are mutually exclusive")
	}
	return nil
}

// ParseLevel maps a level name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Logger builds the slog logger described by c.Log
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(c.Log.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("app", "sy1000sync")
}

// Write stores c as YAML
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return enc.Close()
}
