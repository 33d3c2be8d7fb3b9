package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed sy1000.yaml
var defaultTable []byte

// Record is the textual form of a Definition as stored in catalog files
type Record struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Address string   `yaml:"address"`
	Width   int      `yaml:"width"`
	Kind    string   `yaml:"kind"`
	Min     int      `yaml:"min"`
	Max     int      `yaml:"max"`
	Default int      `yaml:"default"`
	Choices []string `yaml:"choices,omitempty"`
	MaxTime int      `yaml:"max_time,omitempty"`
}

type file struct {
	Parameters []Record `yaml:"parameters"`
}

// Definition converts the record into a Definition
func (r Record) Definition() (Definition, error) {
	addr, bit, err := ParseAddressString(r.Address)
	if err != nil {
		return Definition{}, err
	}
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return Definition{}, err
	}
	if kind == RegisterBit && bit < 0 {
		return Definition{}, fmt.Errorf("register bit %s needs a bit suffix", r.Address)
	}
	return Definition{
		ID:      r.ID,
		Name:    r.Name,
		Address: addr,
		Bit:     bit,
		Width:   r.Width,
		Kind:    kind,
		Min:     r.Min,
		Max:     r.Max,
		Default: r.Default,
		Choices: r.Choices,
		MaxTime: r.MaxTime,
	}, nil
}

// RecordOf converts a definition back into its textual form
func RecordOf(d Definition) Record {
	return Record{
		ID:      d.ID,
		Name:    d.Name,
		Address: d.AddressString(),
		Width:   d.Width,
		Kind:    d.Kind.String(),
		Min:     d.Min,
		Max:     d.Max,
		Default: d.Default,
		Choices: d.Choices,
		MaxTime: d.MaxTime,
	}
}

// FromRecords builds a catalog from records
func FromRecords(records []Record) (*Catalog, error) {
	defs := make([]Definition, 0, len(records))
	for i, r := range records {
		d, err := r.Definition()
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%s): %w", i, r.ID, err)
		}
		defs = append(defs, d)
	}
	return New(defs)
}

// Load reads a YAML catalog
func Load(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return FromRecords(f.Parameters)
}

// LoadFile reads a YAML catalog from disk
func LoadFile(path string) (*Catalog, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = fh.Close() }()
	return Load(fh)
}

// Default returns the built in SY-1000 table
func Default() (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(defaultTable, &f); err != nil {
		return nil, fmt.Errorf("failed to parse built in catalog: %w", err)
	}
	return FromRecords(f.Parameters)
}

// WriteYAML writes the catalog in the same format Load reads
func (c *Catalog) WriteYAML(w io.Writer) error {
	f := file{Parameters: make([]Record, 0, len(c.defs))}
	for _, d := range c.defs {
		f.Parameters = append(f.Parameters, RecordOf(d))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return enc.Close()
}
