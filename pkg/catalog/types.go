// Package catalog holds the static SY-1000 parameter table and its address index
package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/james-see/sy1000sync/pkg/sysex"
)

// Kind tells how a parameter maps onto device memory
type Kind int

const (
	Single      Kind = iota // plain value or choice list
	DualTime                // absolute time side of a time/BPM pair
	DualBpm                 // tempo relative side of a time/BPM pair
	Register                // bitfield register, not exposed as a value
	RegisterBit             // one bit of a register
)

var kindNames = map[Kind]string{
	Single:      "single",
	DualTime:    "dual_time",
	DualBpm:     "dual_bpm",
	Register:    "register",
	RegisterBit: "register_bit",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind parses the textual kind used in catalog files
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter kind %q", s)
}

// Definition describes one host parameter and where it lives on the device
type Definition struct {
	Index   int
	ID      string
	Name    string
	Address sysex.Address
	Bit     int // bit index for RegisterBit, -1 otherwise
	Width   int
	Kind    Kind
	Min     int
	Max     int
	Default int
	Choices []string
	MaxTime int // DualTime/DualBpm split point
}

// HasChoices reports whether the host value is an index into Choices
func (d Definition) HasChoices() bool { return len(d.Choices) > 0 }

// HostRange returns the bounds of the host side value
func (d Definition) HostRange() (lo, hi int) {
	switch {
	case d.Kind == RegisterBit:
		return 0, 1
	case d.HasChoices():
		return 0, len(d.Choices) - 1
	}
	return d.Min, d.Max
}

// DeviceValue converts a host value into the value sent on the wire
func (d Definition) DeviceValue(host int) int {
	if d.Kind == Single && d.HasChoices() {
		return host + d.Min
	}
	return host
}

// HostValue converts a received device value into the host value
func (d Definition) HostValue(device int) int {
	if d.Kind == Single && d.HasChoices() {
		return device - d.Min
	}
	return device
}

// AddressString returns the address in catalog notation, with the bit
// suffix for register bits (e.g. "10000312_07")
func (d Definition) AddressString() string {
	if d.Kind == RegisterBit {
		return fmt.Sprintf("%s_%02d", d.Address, d.Bit)
	}
	return d.Address.String()
}

// ParseAddressString parses catalog notation "AAAAAAAA" or "AAAAAAAA_NN"
func ParseAddressString(s string) (sysex.Address, int, error) {
	addr, bit, found := strings.Cut(s, "_")
	a, err := sysex.ParseAddress(addr)
	if err != nil {
		return a, -1, err
	}
	if !found {
		return a, -1, nil
	}
	n, err := strconv.Atoi(bit)
	if err != nil || n < 0 || n > 31 {
		return a, -1, fmt.Errorf("%w: bit suffix in %q", sysex.ErrInvalidAddress, s)
	}
	return a, n, nil
}

// Attributes reports which kinds are defined at an address
type Attributes struct {
	Single   bool
	Dual     bool
	Register bool
}

// Any reports whether anything is defined at the address
func (a Attributes) Any() bool { return a.Single || a.Dual || a.Register }

// key is the structured index key: address, width, kind and bit
type key struct {
	addr  sysex.Address
	width int
	kind  Kind
	bit   int
}

func keyOf(d Definition) key {
	return key{addr: d.Address, width: d.Width, kind: d.Kind, bit: d.Bit}
}
