package catalog

import (
	"errors"
	"fmt"

	"github.com/james-see/sy1000sync/pkg/sysex"
)

var (
	// ErrDuplicateID is returned when two definitions share an id
	ErrDuplicateID = errors.New("duplicate parameter id")
	// ErrDuplicateKey is returned when two definitions share address, width and kind
	ErrDuplicateKey = errors.New("duplicate parameter address")
)

type bitKey struct {
	addr sysex.Address
	bit  int
}

// Catalog is the read-only parameter table. It is safe for concurrent use.
type Catalog struct {
	defs   []Definition
	byID   map[string]int
	byKey  map[key]int
	byBit  map[bitKey]int
	byAddr map[key]Attributes // width only, kind and bit zeroed
}

// New builds a catalog and its indexes. Definitions keep their order;
// Index is rewritten to the position in defs.
func New(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:   make([]Definition, len(defs)),
		byID:   make(map[string]int, len(defs)),
		byKey:  make(map[key]int, len(defs)),
		byBit:  make(map[bitKey]int),
		byAddr: make(map[key]Attributes, len(defs)),
	}

	for i, d := range defs {
		if err := validate(d); err != nil {
			return nil, fmt.Errorf("parameter %d (%s): %w", i, d.ID, err)
		}
		if d.Kind != RegisterBit {
			d.Bit = -1
		}
		d.Index = i

		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
		}
		k := keyOf(d)
		if _, dup := c.byKey[k]; dup {
			return nil, fmt.Errorf("%w: %s (%s, %d bytes)", ErrDuplicateKey, d.AddressString(), d.Kind, d.Width)
		}

		c.defs[i] = d
		c.byID[d.ID] = i
		c.byKey[k] = i
		if d.Kind == RegisterBit {
			c.byBit[bitKey{addr: d.Address, bit: d.Bit}] = i
			continue
		}

		ak := key{addr: d.Address, width: d.Width}
		attrs := c.byAddr[ak]
		switch d.Kind {
		case Single:
			attrs.Single = true
		case DualTime, DualBpm:
			attrs.Dual = true
		case Register:
			attrs.Register = true
		}
		c.byAddr[ak] = attrs
	}

	return c, nil
}

func validate(d Definition) error {
	if d.ID == "" {
		return errors.New("empty id")
	}
	if !sysex.ValidWidth(d.Width) {
		return fmt.Errorf("%w: %d", sysex.ErrInvalidWidth, d.Width)
	}
	if d.Kind == RegisterBit && (d.Bit < 0 || d.Bit > 31) {
		return fmt.Errorf("register bit index %d out of range", d.Bit)
	}
	if !d.HasChoices() && d.Max < d.Min {
		return fmt.Errorf("max %d below min %d", d.Max, d.Min)
	}
	return nil
}

// Len returns the number of definitions
func (c *Catalog) Len() int { return len(c.defs) }

// All returns the definitions in catalog order. The slice must not be modified.
func (c *Catalog) All() []Definition { return c.defs }

// ByIndex returns the definition at position i
func (c *Catalog) ByIndex(i int) (Definition, bool) {
	if i < 0 || i >= len(c.defs) {
		return Definition{}, false
	}
	return c.defs[i], true
}

// ByID returns the definition with the given id
func (c *Catalog) ByID(id string) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Attributes reports which kinds are defined at address and width
func (c *Catalog) Attributes(addr sysex.Address, width int) Attributes {
	return c.byAddr[key{addr: addr, width: width}]
}

// Lookup resolves the definition of the given kind at address and width.
// RegisterBit entries are resolved with LookupBit.
func (c *Catalog) Lookup(addr sysex.Address, width int, kind Kind) (Definition, bool) {
	i, ok := c.byKey[key{addr: addr, width: width, kind: kind, bit: -1}]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// LookupBit resolves the RegisterBit definition for bit of the register at addr
func (c *Catalog) LookupBit(addr sysex.Address, bit int) (Definition, bool) {
	i, ok := c.byBit[bitKey{addr: addr, bit: bit}]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}
