// Package dualtime links the two views of an SY-1000 time parameter.
//
// A time slot encodes absolute time below MaxTime and tempo synced note
// values from MaxTime upwards. The DualTime parameter carries the raw slot
// value, the DualBpm parameter shows only the note part (0 means off).
package dualtime

import (
	"github.com/james-see/sy1000sync/pkg/catalog"
)

// BPMView returns the tempo relative view of a raw slot value
func BPMView(raw, maxTime int) int {
	if raw >= maxTime {
		return raw - maxTime
	}
	return 0
}

// TimeFromBPM returns the raw slot value for a BPM view value. ok is false
// for bpm <= 0, which means no tempo override.
func TimeFromBPM(bpm, maxTime int) (raw int, ok bool) {
	if bpm <= 0 {
		return 0, false
	}
	return bpm + maxTime, true
}

// Linker finds the partner of a DualTime or DualBpm definition
type Linker struct {
	cat *catalog.Catalog
}

// NewLinker creates a linker over cat
func NewLinker(cat *catalog.Catalog) *Linker {
	return &Linker{cat: cat}
}

// Partner returns the other half of the pair def belongs to
func (l *Linker) Partner(def catalog.Definition) (catalog.Definition, bool) {
	switch def.Kind {
	case catalog.DualTime:
		return l.cat.Lookup(def.Address, def.Width, catalog.DualBpm)
	case catalog.DualBpm:
		return l.cat.Lookup(def.Address, def.Width, catalog.DualTime)
	}
	return catalog.Definition{}, false
}

// BPMFor returns the BPM view for a raw time value, using the split point
// of the DualBpm partner
func (l *Linker) BPMFor(timeDef catalog.Definition, raw int) (bpmDef catalog.Definition, view int, ok bool) {
	bpmDef, ok = l.Partner(timeDef)
	if !ok {
		return bpmDef, 0, false
	}
	return bpmDef, BPMView(raw, bpmDef.MaxTime), true
}

// TimeFor returns the raw time value a BPM view change drives
func (l *Linker) TimeFor(bpmDef catalog.Definition, bpm int) (timeDef catalog.Definition, raw int, ok bool) {
	timeDef, ok = l.Partner(bpmDef)
	if !ok {
		return timeDef, 0, false
	}
	raw, ok = TimeFromBPM(bpm, bpmDef.MaxTime)
	return timeDef, raw, ok
}
