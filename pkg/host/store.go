// Package host provides the parameter store the sync controller talks to.
//
// It plays the role of a plugin host's parameter tree: every catalog entry
// has an integer value, changes are announced to listeners, and writes made
// on behalf of the device are flagged so listeners can tell them apart
// from user edits.
package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/james-see/sy1000sync/pkg/catalog"
)

// ErrUnknownParameter is returned for ids not in the catalog
var ErrUnknownParameter = errors.New("unknown parameter")

// Change is a parameter change notification
type Change struct {
	ID    string
	Value int
	// Programmatic is set for writes made through SetProgrammatic
	Programmatic bool
}

// Listener receives parameter changes
type Listener interface {
	ParameterChanged(Change)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(Change)

// ParameterChanged calls f(c)
func (f ListenerFunc) ParameterChanged(c Change) { f(c) }

// Parameter is a definition together with its current host value
type Parameter struct {
	catalog.Definition
	Value int
}

// Store holds the host values of all catalog parameters
type Store struct {
	cat *catalog.Catalog

	mu        sync.RWMutex
	values    []int
	listeners []Listener
}

// NewStore creates a store with every parameter at its default value
func NewStore(cat *catalog.Catalog) *Store {
	s := &Store{
		cat:    cat,
		values: make([]int, cat.Len()),
	}
	for i, d := range cat.All() {
		s.values[i] = clamp(d, d.Default)
	}
	return s
}

func clamp(d catalog.Definition, v int) int {
	lo, hi := d.HostRange()
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Catalog returns the catalog the store was built from
func (s *Store) Catalog() *catalog.Catalog { return s.cat }

// Subscribe registers a listener. Listeners are called synchronously after
// the store lock is released, in registration order.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Value returns the current value of id
func (s *Store) Value(id string) (int, bool) {
	d, ok := s.cat.ByID(id)
	if !ok {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[d.Index], true
}

// SetValue sets id to v, clamped to the parameter range. Listeners are
// only notified when the value actually changes. Unknown ids are ignored.
func (s *Store) SetValue(id string, v int) {
	_ = s.Set(id, v)
}

// Set is SetValue with an error for unknown ids
func (s *Store) Set(id string, v int) error {
	return s.set(id, v, false)
}

// SetProgrammatic sets id to v on behalf of the device or a restore.
// Listeners see the change with Programmatic set; concurrent user edits
// of the same id are not affected.
func (s *Store) SetProgrammatic(id string, v int) {
	_ = s.set(id, v, true)
}

func (s *Store) set(id string, v int, programmatic bool) error {
	d, ok := s.cat.ByID(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, id)
	}
	v = clamp(d, v)

	s.mu.Lock()
	if s.values[d.Index] == v {
		s.mu.Unlock()
		return nil
	}
	s.values[d.Index] = v
	change := Change{ID: id, Value: v, Programmatic: programmatic}
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l.ParameterChanged(change)
	}
	return nil
}

// Parameters returns all parameters with their current values in catalog order
func (s *Store) Parameters() []Parameter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Parameter, len(s.values))
	for i, d := range s.cat.All() {
		out[i] = Parameter{Definition: d, Value: s.values[i]}
	}
	return out
}

// Parameter returns a single parameter with its current value
func (s *Store) Parameter(id string) (Parameter, bool) {
	d, ok := s.cat.ByID(id)
	if !ok {
		return Parameter{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Parameter{Definition: d, Value: s.values[d.Index]}, true
}
