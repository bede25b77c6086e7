// Package normalize rewrites source text into a canonical form used only for
// comparison. The original text is always kept for reporting.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Flags enables individual rules.
type Flags struct {
	Whitespace      bool `yaml:"whitespace" json:"whitespace"`
	Tailwind        bool `yaml:"tailwind" json:"tailwind"`
	ImportOrder     bool `yaml:"importOrder" json:"importOrder"`
	NumericLiterals bool `yaml:"numericLiterals" json:"numericLiterals"`
}

// Override is a partial Flags; nil fields inherit the global value.
type Override struct {
	Whitespace      *bool `yaml:"whitespace,omitempty" json:"whitespace,omitempty"`
	Tailwind        *bool `yaml:"tailwind,omitempty" json:"tailwind,omitempty"`
	ImportOrder     *bool `yaml:"importOrder,omitempty" json:"importOrder,omitempty"`
	NumericLiterals *bool `yaml:"numericLiterals,omitempty" json:"numericLiterals,omitempty"`
}

// Config is the fully resolved normalizer configuration.
type Config struct {
	Global      Flags               `yaml:"global" json:"global"`
	PerLanguage map[string]Override `yaml:"perLanguage,omitempty" json:"perLanguage,omitempty"`
}

// DefaultConfig enables whitespace and class-token normalization.
func DefaultConfig() Config {
	return Config{
		Global: Flags{
			Whitespace: true,
			Tailwind:   true,
		},
	}
}

// Effective merges the override for lang over the global flags.
func (c Config) Effective(lang string) Flags {
	f := c.Global
	o, ok := c.PerLanguage[lang]
	if !ok {
		return f
	}
	if o.Whitespace != nil {
		f.Whitespace = *o.Whitespace
	}
	if o.Tailwind != nil {
		f.Tailwind = *o.Tailwind
	}
	if o.ImportOrder != nil {
		f.ImportOrder = *o.ImportOrder
	}
	if o.NumericLiterals != nil {
		f.NumericLiterals = *o.NumericLiterals
	}
	return f
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := Config{Global: c.Global}
	if c.PerLanguage != nil {
		out.PerLanguage = make(map[string]Override, len(c.PerLanguage))
		for k, v := range c.PerLanguage {
			out.PerLanguage[k] = v
		}
	}
	return out
}

// LoadConfig reads a YAML (or JSON) normalizer config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading normalizer config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a normalizer config. Fields missing from the global
// section keep their defaults; unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing normalizer config: %w", err)
	}
	return cfg, nil
}

// Bool returns a pointer to b, for building Overrides.
func Bool(b bool) *bool {
	return &b
}
