// Package manifest handles tether.toml binding manifests: which classes and
// enums a Go package exports to script, how their members map to Go
// identifiers, and the order they must register in.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file name Load and FindAndLoad look for.
const FileName = "tether.toml"

// Manifest declares one Go package's script bindings.
type Manifest struct {
	Module  Module  `toml:"module"`
	Classes []Class `toml:"classes"`
	Enums   []Enum  `toml:"enums"`

	// Dir is the directory containing the tether.toml file (set at load time).
	Dir string `toml:"-"`
}

// Module identifies the Go package being bound and the default script-name
// prefix for classes and enums declared without one.
type Module struct {
	Name    string `toml:"name"`
	Package string `toml:"package"`
	Version string `toml:"version"`
}

// Class declares one class binding. Method and property keys are script
// names; the values name the Go method or field they bind to. A class with
// no methods and no properties declared gets every exported method and field
// of its Go type, under derived script names.
type Class struct {
	Name         string              `toml:"name"`
	Type         string              `toml:"type"`
	Base         string              `toml:"base"`
	Constructors []string            `toml:"constructors"`
	Methods      map[string]string   `toml:"methods"`
	Properties   map[string]Property `toml:"properties"`
	NoCopy       bool                `toml:"no-copy"`
}

// Property declares one bound field.
type Property struct {
	Field    string `toml:"field"`
	ReadOnly bool   `toml:"read-only"`
}

// Enum declares one enum binding. Values name Go constants of the enum type;
// the script entries carry the same names. An empty list binds every
// declared constant of the type.
type Enum struct {
	Name   string   `toml:"name"`
	Type   string   `toml:"type"`
	Values []string `toml:"values"`
}

// Parse parses manifest TOML and applies defaults: class and enum names
// without a dot get the module name as their prefix, and so do base
// references.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	m.applyDefaults()
	return &m, nil
}

// Load parses a tether.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a tether.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ClassByName returns the declared class under the given script name.
func (m *Manifest) ClassByName(name string) (*Class, bool) {
	for i := range m.Classes {
		if m.Classes[i].Name == name {
			return &m.Classes[i], true
		}
	}
	return nil, false
}

// EnumByName returns the declared enum under the given script name.
func (m *Manifest) EnumByName(name string) (*Enum, bool) {
	for i := range m.Enums {
		if m.Enums[i].Name == name {
			return &m.Enums[i], true
		}
	}
	return nil, false
}

func (m *Manifest) applyDefaults() {
	for i := range m.Classes {
		m.Classes[i].Name = m.qualify(m.Classes[i].Name)
		m.Classes[i].Base = m.qualify(m.Classes[i].Base)
	}
	for i := range m.Enums {
		m.Enums[i].Name = m.qualify(m.Enums[i].Name)
	}
}

func (m *Manifest) qualify(name string) string {
	if name == "" || m.Module.Name == "" || strings.Contains(name, ".") {
		return name
	}
	return m.Module.Name + "." + name
}
