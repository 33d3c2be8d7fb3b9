// Package midiio connects a sync controller to MIDI ports.
package midiio

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var (
	// ErrNoPorts is returned when the driver reports no ports at all
	ErrNoPorts = errors.New("no MIDI ports available")
	// ErrPortNotFound is returned when no port name contains the hint
	ErrPortNotFound = errors.New("no matching MIDI port")
)

// DefaultPortHint matches the SY-1000 USB ports
const DefaultPortHint = "SY-1000"

type port interface {
	String() string
}

func findPort[P port](ports []P, hint string) (P, error) {
	var zero P
	if len(ports) == 0 {
		return zero, ErrNoPorts
	}

	lower := strings.ToLower(hint)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), lower) {
			return p, nil
		}
	}
	return zero, fmt.Errorf("%w: %q", ErrPortNotFound, hint)
}

// FindInPort returns the first input port whose name contains hint
func FindInPort(hint string) (drivers.In, error) {
	in, err := findPort([]drivers.In(midi.GetInPorts()), hint)
	if err != nil {
		return nil, fmt.Errorf("MIDI input: %w", err)
	}
	return in, nil
}

// FindOutPort returns the first output port whose name contains hint
func FindOutPort(hint string) (drivers.Out, error) {
	out, err := findPort([]drivers.Out(midi.GetOutPorts()), hint)
	if err != nil {
		return nil, fmt.Errorf("MIDI output: %w", err)
	}
	return out, nil
}

// PortNames lists the names of all input and output ports
func PortNames() (ins, outs []string) {
	for _, in := range midi.GetInPorts() {
		ins = append(ins, in.String())
	}
	for _, out := range midi.GetOutPorts() {
		outs = append(outs, out.String())
	}
	return ins, outs
}

// OpenOut opens the output port matching hint. The returned closer also
// shuts down the driver.
func OpenOut(hint string) (drivers.Out, func(), error) {
	out, err := FindOutPort(hint)
	if err != nil {
		return nil, nil, err
	}
	if err := out.Open(); err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", out.String(), err)
	}
	closer := func() {
		_ = out.Close()
		drivers.Close()
	}
	return out, closer, nil
}
