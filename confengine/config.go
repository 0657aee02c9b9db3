// Copyright 2025 The flowkv Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package confengine

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
)

// Config wraps a parsed TOML document as a generic tree and provides the
// same navigation/unpack surface regardless of where a value sits in it.
type Config struct {
	tree map[string]any
}

// New wraps an already-decoded tree, e.g. produced by tests.
func New(tree map[string]any) *Config {
	return &Config{tree: tree}
}

// Has reports whether the dotted path s resolves to something in the tree.
func (c *Config) Has(s string) bool {
	_, ok := c.lookup(s)
	return ok
}

// Child returns the sub-tree rooted at the dotted path s.
func (c *Config) Child(s string) (*Config, error) {
	v, ok := c.lookup(s)
	if !ok {
		return nil, fmt.Errorf("confengine: no such key %q", s)
	}
	child, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("confengine: %q is not a table", s)
	}
	return &Config{tree: child}, nil
}

// MustChild is Child, panicking on error; used at startup where a missing
// required section should fail fast.
func (c *Config) MustChild(s string) *Config {
	child, err := c.Child(s)
	if err != nil {
		panic(err)
	}
	return child
}

// Unpack decodes this config's tree into to, a pointer to a struct tagged
// with `config:"..."`.
func (c *Config) Unpack(to any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		Result:           to,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(c.tree)
}

// UnpackChild decodes the sub-tree at s directly into to.
func (c *Config) UnpackChild(s string, to any) error {
	child, err := c.Child(s)
	if err != nil {
		return err
	}
	return child.Unpack(to)
}

// Disabled reports s.disabled == true.
func (c *Config) Disabled(s string) bool {
	return c.boolAt(s, "disabled")
}

// Enabled reports s.enabled == true.
func (c *Config) Enabled(s string) bool {
	return c.boolAt(s, "enabled")
}

func (c *Config) boolAt(s, field string) bool {
	v, ok := c.lookup(s + "." + field)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (c *Config) lookup(path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = c.tree
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// LoadConfigPath decodes the TOML file at path.
func LoadConfigPath(path string) (*Config, error) {
	var tree map[string]any
	if _, err := toml.DecodeFile(path, &tree); err != nil {
		return nil, err
	}
	return New(tree), nil
}

// LoadContent decodes b as TOML.
func LoadContent(b []byte) (*Config, error) {
	var tree map[string]any
	if _, err := toml.Decode(string(b), &tree); err != nil {
		return nil, err
	}
	return New(tree), nil
}
