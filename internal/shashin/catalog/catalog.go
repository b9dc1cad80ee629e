// Package catalog defines the fixed, ordered set of report fields together
// with their kinds, command aliases, default generators and zero values.
//
// The catalog is a YAML document validated against an embedded JSON Schema.
// The built-in catalog is embedded in the binary; operators may point
// SHASHIN_CATALOG_PATH at a replacement that follows the same schema.
//
//	cat := catalog.Default()
//	f, ok := cat.Lookup("setbalance") // f.Name == "balance"
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

//go:embed catalog.schema.json
var schemaJSON string

// Kind is the value kind of a field; it selects parsing and formatting rules.
type Kind string

const (
	KindIdentifier Kind = "identifier"
	KindText       Kind = "text"
	KindDate       Kind = "date"
	KindInteger    Kind = "integer"
	KindMoney      Kind = "money"
	KindPercent    Kind = "percent"
)

// Numeric reports whether set-commands for this kind take numbers or ranges.
func (k Kind) Numeric() bool {
	return k == KindInteger || k == KindMoney || k == KindPercent
}

// Reserved zero values.
const (
	ZeroToday   = "@today"
	ZeroDefault = "@default"
)

// Bounds is an inclusive numeric interval.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// DefaultSpec describes how a field's value is produced when a session has
// no entry for it. Exactly one member is set.
type DefaultSpec struct {
	Value   *string `yaml:"value,omitempty"`
	Range   *Bounds `yaml:"range,omitempty"`
	DaysAgo *Bounds `yaml:"days_ago,omitempty"`
}

// Derive computes a field from another field's sampled value when the field
// has no explicit entry: round(from * factor, 2).
type Derive struct {
	From   string  `yaml:"from"`
	Factor float64 `yaml:"factor"`
}

// Field is one report field.
type Field struct {
	Name     string      `yaml:"name"`
	Label    string      `yaml:"label"`
	Kind     Kind        `yaml:"kind"`
	Commands []string    `yaml:"commands,omitempty"`
	Default  DefaultSpec `yaml:"default"`
	Zero     string      `yaml:"zero,omitempty"`
	Derive   *Derive     `yaml:"derive,omitempty"`
}

type document struct {
	Version int     `yaml:"version"`
	Fields  []Field `yaml:"fields"`
}

// Catalog is an immutable, ordered field catalog.
type Catalog struct {
	fields     []Field
	index      map[string]int
	commands   map[string]string
	identifier int
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("catalog.schema.json", schemaJSON)
})

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
	}
	return c
})

// Default returns the embedded catalog. It is parsed once per process.
func Default() *Catalog {
	return defaultCatalog()
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates data against the catalog schema and builds a Catalog.
func Parse(data []byte) (*Catalog, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return build(doc.Fields)
}

// validateSchema converts the YAML document into its JSON data model and
// checks it against the embedded schema.
func validateSchema(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("catalog: compile schema: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("catalog: parse yaml: %w", err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("catalog: convert to json: %w", err)
	}
	var doc any
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return fmt.Errorf("catalog: convert to json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("catalog: schema: %w", err)
	}
	return nil
}

func build(fields []Field) (*Catalog, error) {
	c := &Catalog{
		fields:     fields,
		index:      make(map[string]int, len(fields)),
		commands:   make(map[string]string),
		identifier: -1,
	}

	var errs []error
	for i, f := range fields {
		if _, dup := c.index[f.Name]; dup {
			errs = append(errs, fmt.Errorf("field %q: duplicate name", f.Name))
			continue
		}
		c.index[f.Name] = i

		if f.Kind == KindIdentifier {
			if c.identifier >= 0 {
				errs = append(errs, fmt.Errorf("field %q: only one identifier field is allowed", f.Name))
			}
			c.identifier = i
		}
		for _, cmd := range f.Commands {
			if owner, dup := c.commands[cmd]; dup {
				errs = append(errs, fmt.Errorf("field %q: command %q already used by %q", f.Name, cmd, owner))
				continue
			}
			c.commands[cmd] = f.Name
		}
		if err := validateDefault(f); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", f.Name, err))
		}
	}
	if c.identifier < 0 {
		errs = append(errs, errors.New("no identifier field"))
	}

	for _, f := range fields {
		if f.Derive == nil {
			continue
		}
		src, ok := c.Field(f.Derive.From)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("field %q: derive.from %q does not exist", f.Name, f.Derive.From))
		case !src.Kind.Numeric():
			errs = append(errs, fmt.Errorf("field %q: derive.from %q is not numeric", f.Name, f.Derive.From))
		case !f.Kind.Numeric():
			errs = append(errs, fmt.Errorf("field %q: derived fields must be numeric", f.Name))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("catalog: %w", errors.Join(errs...))
	}
	return c, nil
}

func validateDefault(f Field) error {
	d := f.Default
	switch {
	case d.DaysAgo != nil:
		if f.Kind != KindDate {
			return errors.New("days_ago default is only valid for date fields")
		}
		if d.DaysAgo.Min < 0 || d.DaysAgo.Min > d.DaysAgo.Max {
			return fmt.Errorf("days_ago bounds %v..%v are invalid", d.DaysAgo.Min, d.DaysAgo.Max)
		}
	case d.Range != nil:
		if !f.Kind.Numeric() && f.Kind != KindIdentifier {
			return fmt.Errorf("range default is not valid for %s fields", f.Kind)
		}
		if d.Range.Min > d.Range.Max {
			return fmt.Errorf("range bounds %v..%v are invalid", d.Range.Min, d.Range.Max)
		}
	case d.Value == nil:
		return errors.New("default must set value, range or days_ago")
	}
	return nil
}

// Fields returns the fields in catalog order.
func (c *Catalog) Fields() []Field {
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Names returns the canonical field names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the field with the given canonical name.
func (c *Catalog) Field(name string) (Field, bool) {
	i, ok := c.index[name]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Lookup resolves a lower-case command alias (e.g. "setbalance") to its field.
func (c *Catalog) Lookup(command string) (Field, bool) {
	name, ok := c.commands[command]
	if !ok {
		return Field{}, false
	}
	return c.Field(name)
}

// Commands returns every set-command alias, sorted.
func (c *Catalog) Commands() []string {
	out := make([]string, 0, len(c.commands))
	for cmd := range c.commands {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Identifier returns the catalog's identifier field.
func (c *Catalog) Identifier() Field {
	return c.fields[c.identifier]
}

// WithDefaultValue returns a copy of the catalog whose field name uses value
// as its constant default. The receiver is left untouched.
func (c *Catalog) WithDefaultValue(name, value string) (*Catalog, error) {
	i, ok := c.index[name]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown field %q", name)
	}
	if c.fields[i].Default.Value == nil {
		return nil, fmt.Errorf("catalog: field %q has no constant default", name)
	}
	fields := c.Fields()
	v := value
	fields[i].Default = DefaultSpec{Value: &v}
	return build(fields)
}
