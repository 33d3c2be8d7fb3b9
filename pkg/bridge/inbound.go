package bridge

import (
	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/register"
	"github.com/james-see/sy1000sync/pkg/sysex"
)

// HandleInbound processes one SysEx message received from the device.
// Framing bytes are optional. Messages that are not SY-1000 DT1 messages,
// or that address nothing in the catalog, are ignored without any state
// change. It reports whether the message was applied.
func (c *Controller) HandleInbound(raw []byte) bool {
	msg, ok := sysex.Parse(raw)
	if !ok {
		c.stats.ignored.Add(1)
		return false
	}
	return c.apply(msg)
}

func (c *Controller) apply(msg sysex.Message) bool {
	f := msg.Frame()
	attrs := c.cat.Attributes(f.Address, f.Width)
	if !attrs.Any() {
		c.stats.ignored.Add(1)
		c.log.Debug("sysex in for unknown address", "hex", msg.String(), "address", f.Address.String(), "width", f.Width)
		return false
	}

	sig := msg.Signature()
	c.lastIn.Store(&sig)
	c.lastRx.Store(&msg)
	c.stats.inbound.Add(1)
	c.log.Debug("sysex in", "hex", msg.String(), "address", f.Address.String(), "width", f.Width, "value", f.Value)

	value := int(f.Value)
	if attrs.Single {
		if def, ok := c.cat.Lookup(f.Address, f.Width, catalog.Single); ok {
			c.reflect(def, def.HostValue(value))
		}
	}
	if attrs.Dual {
		// The BPM view follows through the DualTime change notification
		if def, ok := c.cat.Lookup(f.Address, f.Width, catalog.DualTime); ok {
			c.reflect(def, value)
		}
	}
	if attrs.Register {
		if _, ok := c.cat.Lookup(f.Address, f.Width, catalog.Register); ok {
			if reg, ok := c.regs.Lookup(f.Address); ok {
				reg.Store(f.Value)
				register.Expand(c.cat, reg, c.reflect)
			}
		}
	}
	return true
}
