// Package bridge keeps host parameters and an SY-1000 in sync.
//
// The Controller sits between a host parameter store and the device:
// inbound SysEx is decoded and reflected into host parameters, host
// parameter changes are encoded into SysEx for the device. Nothing in
// this package blocks or performs I/O. Inbound handling and outbound
// encoding may run on different goroutines; the state they share is
// kept in atomics.
package bridge

import (
	"io"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/dualtime"
	"github.com/james-see/sy1000sync/pkg/register"
	"github.com/james-see/sy1000sync/pkg/sysex"
)

// Special addresses
var (
	// SyncAddress switches the device into editor sync mode
	SyncAddress = sysex.Address{0x7F, 0x00, 0x00, 0x01}
	// MasterTempoAddress holds the master BPM x 10
	MasterTempoAddress = sysex.Address{0x10, 0x00, 0x12, 0x3E}
)

// MasterTempoWidth is the wire width of the master BPM value
const MasterTempoWidth = 4

// Host is the parameter store the controller reads and writes
type Host interface {
	Value(id string) (int, bool)
	SetValue(id string, v int)
	SetProgrammatic(id string, v int)
}

// Stats is a snapshot of the controller counters
type Stats struct {
	Inbound     uint64 // accepted device messages
	Ignored     uint64 // malformed or unresolved device messages
	Outbound    uint64 // messages queued for the device
	Suppressed  uint64 // outbound messages dropped as echoes
	Overwritten uint64 // queued messages replaced before they were taken
	LastIn      sysex.Message
	LastOut     sysex.Message
	Tempo       float64
}

type counters struct {
	inbound     atomic.Uint64
	ignored     atomic.Uint64
	outbound    atomic.Uint64
	suppressed  atomic.Uint64
	overwritten atomic.Uint64
}

// Controller is the sync engine
type Controller struct {
	cat    *catalog.Catalog
	host   Host
	regs   *register.Bank
	linker *dualtime.Linker
	log    *slog.Logger
	echo   bool

	lastIn  atomic.Pointer[sysex.Signature]
	lastRx  atomic.Pointer[sysex.Message]
	lastTx  atomic.Pointer[sysex.Message]
	pending atomic.Pointer[sysex.Message]
	ready   chan struct{}
	tempo   atomic.Uint64

	stats counters
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger used for diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithEchoSuppression turns echo suppression on or off (default on)
func WithEchoSuppression(on bool) Option {
	return func(c *Controller) { c.echo = on }
}

// WithRegisters uses an existing register bank instead of a fresh one
func WithRegisters(b *register.Bank) Option {
	return func(c *Controller) { c.regs = b }
}

// New creates a controller for cat that reads and writes host values
// through h. Register the controller as a listener of the host to route
// host changes to the device.
func New(cat *catalog.Catalog, h Host, opts ...Option) *Controller {
	c := &Controller{
		cat:    cat,
		host:   h,
		linker: dualtime.NewLinker(cat),
		echo:   true,
		ready:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.regs == nil {
		c.regs = register.NewBank()
	}
	c.tempo.Store(math.Float64bits(-1))
	return c
}

// Catalog returns the parameter catalog
func (c *Controller) Catalog() *catalog.Catalog { return c.cat }

// Registers returns the register bank
func (c *Controller) Registers() *register.Bank { return c.regs }

// Activate asks the device to start sending parameter changes
func (c *Controller) Activate() bool {
	c.log.Info("activate SysEx sync")
	return c.Send(SyncAddress, 1, 1, false)
}

// Send encodes a value for addr and queues it for the device. Unless force
// is set, a message identical to the last one received from the device is
// dropped once. It reports whether the message was queued.
func (c *Controller) Send(addr sysex.Address, width, value int, force bool) bool {
	return c.SendFrame(sysex.Frame{Address: addr, Width: width, Value: uint32(value)}, force)
}

// SendFrame is Send for an already assembled frame
func (c *Controller) SendFrame(f sysex.Frame, force bool) bool {
	msg, err := sysex.Encode(f)
	if err != nil {
		c.log.Debug("cannot encode frame", "frame", f.String(), "err", err)
		return false
	}

	if c.echo && !force {
		sig := msg.Signature()
		if last := c.lastIn.Load(); last != nil && *last == sig && c.lastIn.CompareAndSwap(last, nil) {
			c.stats.suppressed.Add(1)
			c.log.Debug("sysex out skipped (echo suppression)", "hex", msg.String())
			return false
		}
	}

	if prev := c.pending.Swap(&msg); prev != nil {
		c.stats.overwritten.Add(1)
		c.log.Debug("pending message replaced", "hex", prev.String())
	}
	c.lastTx.Store(&msg)
	c.stats.outbound.Add(1)
	c.log.Debug("sysex out", "hex", msg.String(), "address", f.Address.String(), "width", f.Width, "value", f.Value)

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// TakePending removes and returns the message waiting for transmission
func (c *Controller) TakePending() (sysex.Message, bool) {
	p := c.pending.Swap(nil)
	if p == nil {
		return sysex.Message{}, false
	}
	return *p, true
}

// Ready is signalled when a message has been queued
func (c *Controller) Ready() <-chan struct{} { return c.ready }

// Stats returns a snapshot of the counters
func (c *Controller) Stats() Stats {
	s := Stats{
		Inbound:     c.stats.inbound.Load(),
		Ignored:     c.stats.ignored.Load(),
		Outbound:    c.stats.outbound.Load(),
		Suppressed:  c.stats.suppressed.Load(),
		Overwritten: c.stats.overwritten.Load(),
		Tempo:       math.Float64frombits(c.tempo.Load()),
	}
	if m := c.lastRx.Load(); m != nil {
		s.LastIn = *m
	}
	if m := c.lastTx.Load(); m != nil {
		s.LastOut = *m
	}
	return s
}

// reflect writes a device driven value into the host as a programmatic
// change so it is not sent back out
func (c *Controller) reflect(def catalog.Definition, v int) {
	if cur, ok := c.host.Value(def.ID); ok && cur == v {
		return
	}
	c.log.Debug("update parameter", "id", def.ID, "name", def.Name, "value", v)
	c.host.SetProgrammatic(def.ID, v)
}

// LoadRegisters rebuilds the registers from the host values of their
// bits, e.g. after a saved session was restored. Nothing is sent.
func (c *Controller) LoadRegisters() {
	for _, reg := range c.regs.All() {
		v := register.Rebuild(c.cat, reg, func(def catalog.Definition) int {
			hv, _ := c.host.Value(def.ID)
			return hv
		})
		c.log.Debug("register loaded", "address", reg.Address.String(), "value", v)
	}
}
