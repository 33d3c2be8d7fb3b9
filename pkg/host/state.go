package host

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// State is a saved session: parameter values by id
type State struct {
	Parameters map[string]int `yaml:"parameters"`
}

// Snapshot returns the current values of all parameters
func (s *Store) Snapshot() State {
	st := State{Parameters: make(map[string]int, s.cat.Len())}
	for _, p := range s.Parameters() {
		st.Parameters[p.ID] = p.Value
	}
	return st
}

// Restore applies a saved session. Values are written as programmatic
// changes, so listeners update their models without talking to the device.
// Ids missing from the catalog are skipped and returned.
func (s *Store) Restore(st State) []string {
	var skipped []string
	for _, d := range s.cat.All() {
		v, ok := st.Parameters[d.ID]
		if !ok {
			continue
		}
		s.SetProgrammatic(d.ID, v)
	}
	for id := range st.Parameters {
		if _, ok := s.cat.ByID(id); !ok {
			skipped = append(skipped, id)
		}
	}
	return skipped
}

// WriteState writes the current session as YAML
func (s *Store) WriteState(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return enc.Close()
}

// ReadState reads a YAML session and restores it
func (s *Store) ReadState(r io.Reader) ([]string, error) {
	var st State
	if err := yaml.NewDecoder(r).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return s.Restore(st), nil
}

// SaveStateFile writes the current session to path
func (s *Store) SaveStateFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	if err := s.WriteState(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadStateFile restores the session saved at path
func (s *Store) LoadStateFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.ReadState(f)
}
