// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gotmc/labequip"
	"gopkg.in/yaml.v3"
)

// Entry describes one piece of equipment in a configuration.
type Entry struct {
	Name       string
	Object     string
	Definition string
	Address    string
	Kwargs     labequip.Args
	Init       []InitStep
}

// InitStep is one operation of an initialization sequence. In configuration
// files it is written as a pair: ["set_voltage", {"voltage": 0}].
type InitStep struct {
	Method string
	Args   labequip.Args
}

// UnmarshalJSON reads a [method] or [method, {args}] pair.
func (s *InitStep) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("init step must be [method, {args}]: %w", err)
	}
	if len(pair) == 0 || len(pair) > 2 {
		return fmt.Errorf("init step must be [method, {args}], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Method); err != nil {
		return fmt.Errorf("init step method: %w", err)
	}
	if len(pair) == 2 {
		if err := json.Unmarshal(pair[1], &s.Args); err != nil {
			return fmt.Errorf("init step %s arguments: %w", s.Method, err)
		}
	}
	return nil
}

// UnmarshalYAML reads a [method] or [method, {args}] pair.
func (s *InitStep) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) == 0 || len(node.Content) > 2 {
		return fmt.Errorf("line %d: init step must be [method, {args}]", node.Line)
	}
	if err := node.Content[0].Decode(&s.Method); err != nil {
		return err
	}
	if len(node.Content) == 2 {
		if err := node.Content[1].Decode(&s.Args); err != nil {
			return err
		}
	}
	return nil
}

// fields is the body of an entry as written in a file.
type fields struct {
	Object     string        `json:"object" yaml:"object"`
	Definition string        `json:"definition" yaml:"definition"`
	Address    string        `json:"address" yaml:"address"`
	Kwargs     labequip.Args `json:"kwargs" yaml:"kwargs"`
	Init       []InitStep    `json:"init" yaml:"init"`
}

func (f fields) entry(name string) (Entry, error) {
	var missing []string
	if f.Object == "" {
		missing = append(missing, "object")
	}
	if f.Definition == "" {
		missing = append(missing, "definition")
	}
	if f.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return Entry{}, fmt.Errorf("%w: %s: missing %s", labequip.ErrConfiguration, name, strings.Join(missing, ", "))
	}
	return Entry{
		Name:       name,
		Object:     f.Object,
		Definition: f.Definition,
		Address:    f.Address,
		Kwargs:     f.Kwargs,
		Init:       f.Init,
	}, nil
}

// Config is an equipment configuration: entries in the order they were
// written.
type Config struct {
	Entries []Entry
}

// Add appends an entry. Names must be unique.
func (c *Config) Add(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("%w: entry without a name", labequip.ErrConfiguration)
	}
	if _, ok := c.Lookup(e.Name); ok {
		return fmt.Errorf("%w: duplicate equipment name %q", labequip.ErrConfiguration, e.Name)
	}
	c.Entries = append(c.Entries, e)
	return nil
}

// Lookup returns the entry called name.
func (c *Config) Lookup(name string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Names returns the entry names in order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		names[i] = e.Name
	}
	return names
}

// Load reads a configuration file. Files ending in .yaml or .yml are parsed as
// YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", labequip.ErrConfiguration, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON parses a JSON object of equipment entries, keeping their order.
func ParseJSON(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", labequip.ErrConfiguration, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: configuration must be an object, got %v", labequip.ErrConfiguration, tok)
	}
	cfg := &Config{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", labequip.ErrConfiguration, err)
		}
		name := tok.(string)
		var f fields
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", labequip.ErrConfiguration, name, err)
		}
		e, err := f.entry(name)
		if err != nil {
			return nil, err
		}
		if err := cfg.Add(e); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", labequip.ErrConfiguration, err)
	}
	return cfg, nil
}

// ParseYAML parses a YAML mapping of equipment entries, keeping their order.
func ParseYAML(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", labequip.ErrConfiguration, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: configuration must be a mapping", labequip.ErrConfiguration)
	}
	root := doc.Content[0]
	cfg := &Config{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var f fields
		if err := root.Content[i+1].Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", labequip.ErrConfiguration, name, err)
		}
		e, err := f.entry(name)
		if err != nil {
			return nil, err
		}
		if err := cfg.Add(e); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
