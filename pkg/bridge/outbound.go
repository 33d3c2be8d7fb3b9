package bridge

import (
	"math"

	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/host"
	"github.com/james-see/sy1000sync/pkg/register"
)

// ParameterChanged routes a host parameter change to the device.
// Programmatic changes never produce device traffic; they only keep
// derived host parameters (the BPM view of a time pair) consistent.
func (c *Controller) ParameterChanged(ch host.Change) {
	def, ok := c.cat.ByID(ch.ID)
	if !ok {
		return
	}
	c.log.Debug("parameter changed", "id", def.ID, "name", def.Name, "value", ch.Value, "programmatic", ch.Programmatic)

	switch def.Kind {
	case catalog.Single:
		if ch.Programmatic {
			return
		}
		c.Send(def.Address, def.Width, def.DeviceValue(ch.Value), false)

	case catalog.DualTime:
		if !ch.Programmatic {
			c.Send(def.Address, def.Width, ch.Value, false)
		}
		if bpmDef, view, ok := c.linker.BPMFor(def, ch.Value); ok {
			c.reflect(bpmDef, view)
		}

	case catalog.DualBpm:
		if ch.Programmatic {
			return
		}
		// Setting the time side sends the message through the DualTime branch
		if timeDef, raw, ok := c.linker.TimeFor(def, ch.Value); ok {
			c.host.SetValue(timeDef.ID, raw)
		}

	case catalog.Register:
		// registers are driven through their bits

	case catalog.RegisterBit:
		if ch.Programmatic {
			return
		}
		reg, ok := c.regs.Lookup(def.Address)
		if !ok {
			return
		}
		c.SendFrame(register.Collapse(reg, def.Bit, ch.Value != 0), false)
	}
}

// Push sends the current host value of id to the device, bypassing echo
// suppression. Register bits push their whole register.
func (c *Controller) Push(id string) bool {
	def, ok := c.cat.ByID(id)
	if !ok {
		return false
	}
	v, ok := c.host.Value(id)
	if !ok {
		return false
	}

	switch def.Kind {
	case catalog.Single, catalog.DualTime:
		return c.Send(def.Address, def.Width, def.DeviceValue(v), true)
	case catalog.DualBpm:
		timeDef, raw, ok := c.linker.TimeFor(def, v)
		if !ok {
			return false
		}
		return c.Send(timeDef.Address, timeDef.Width, raw, true)
	case catalog.Register, catalog.RegisterBit:
		reg, ok := c.regs.Lookup(def.Address)
		if !ok {
			return false
		}
		return c.SendFrame(reg.Frame(), true)
	}
	return false
}

// SetTempo reports the host tempo. When it changes the master BPM is sent
// to the device and mirrored into the host parameter at that address.
// Non-positive tempos are ignored.
func (c *Controller) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	bits := math.Float64bits(bpm)
	if c.tempo.Swap(bits) == bits {
		return
	}

	value := int(bpm) * 10
	c.log.Info("host tempo change", "bpm", bpm)
	c.Send(MasterTempoAddress, MasterTempoWidth, value, false)
	if def, ok := c.cat.Lookup(MasterTempoAddress, MasterTempoWidth, catalog.Single); ok {
		c.reflect(def, def.HostValue(value))
	}
}
