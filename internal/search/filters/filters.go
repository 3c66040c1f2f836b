// Package filters declares the filterable attributes of every entity type.
// The declarations drive the filter panel and document which FilterValue
// shapes the query builder accepts.
package filters

import (
	_ "embed"
	"fmt"
	"os"

	"crm_search_backend/internal/search/domain"

	"gopkg.in/yaml.v3"
)

// FieldType is the value contract of a filter field.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldDate        FieldType = "date"
	FieldDateRange   FieldType = "daterange"
	FieldNumber      FieldType = "number"
	FieldNumberRange FieldType = "numberrange"
	FieldBoolean     FieldType = "boolean"
)

func (t FieldType) valid() bool {
	switch t {
	case FieldText, FieldSelect, FieldMultiSelect, FieldDate, FieldDateRange,
		FieldNumber, FieldNumberRange, FieldBoolean:
		return true
	}
	return false
}

// Option is one choice of a select or multiselect field.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// FilterField declares one filterable attribute.
type FilterField struct {
	Key     string    `yaml:"key" json:"key"`
	Label   string    `yaml:"label" json:"label"`
	Type    FieldType `yaml:"type" json:"type"`
	Options []Option  `yaml:"options,omitempty" json:"options,omitempty"`
	Min     *float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *float64  `yaml:"max,omitempty" json:"max,omitempty"`
	Step    *float64  `yaml:"step,omitempty" json:"step,omitempty"`
}

// Config holds the filter fields of each entity type, in display order.
type Config struct {
	fields map[domain.EntityType][]FilterField
}

//go:embed default.yaml
var defaultYAML []byte

// Default returns the built-in filter configuration.
func Default() *Config {
	cfg, err := Parse(defaultYAML)
	if err != nil {
		panic("filters: invalid embedded configuration: " + err.Error())
	}
	return cfg
}

// Load reads a configuration file. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document of the form
// `entities: {<type>: [<field>...]}`.
func Parse(data []byte) (*Config, error) {
	var doc struct {
		Entities map[string][]FilterField `yaml:"entities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode filter config: %w", err)
	}

	cfg := &Config{fields: make(map[domain.EntityType][]FilterField, len(doc.Entities))}
	for name, fields := range doc.Entities {
		entityType, err := domain.ParseEntityType(name)
		if err != nil {
			return nil, fmt.Errorf("filter config: %w", err)
		}
		if err := validateFields(fields); err != nil {
			return nil, fmt.Errorf("filter config for %s: %w", name, err)
		}
		cfg.fields[entityType] = fields
	}
	return cfg, nil
}

func validateFields(fields []FilterField) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Key == "" {
			return fmt.Errorf("field without key")
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("duplicate key %q", f.Key)
		}
		seen[f.Key] = struct{}{}

		if !f.Type.valid() {
			return fmt.Errorf("field %q: unknown type %q", f.Key, f.Type)
		}
		hasOptions := f.Type == FieldSelect || f.Type == FieldMultiSelect
		if len(f.Options) > 0 && !hasOptions {
			return fmt.Errorf("field %q: options are only allowed on select fields", f.Key)
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("field %q: min is greater than max", f.Key)
		}
	}
	return nil
}

// Fields returns the fields of t. Unknown or unconfigured types yield nil.
func (c *Config) Fields(t domain.EntityType) []FilterField {
	fields := c.fields[t]
	if fields == nil {
		return nil
	}
	out := make([]FilterField, len(fields))
	copy(out, fields)
	return out
}

// All returns the fields of every configured type, keyed by type.
func (c *Config) All() map[domain.EntityType][]FilterField {
	out := make(map[domain.EntityType][]FilterField, len(c.fields))
	for _, t := range domain.AllEntityTypes() {
		if fields := c.Fields(t); fields != nil {
			out[t] = fields
		}
	}
	return out
}
