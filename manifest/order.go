package manifest

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/chazu/tether/bridge"
)

// Validate checks the manifest: module identity, the script-name rules
// shared with the bridge registry, unique names and Go types, and base
// references that stay inside the manifest.
func (m *Manifest) Validate() error {
	if m.Module.Name == "" {
		return errors.New("manifest: module name is required")
	}
	if err := bridge.ValidateClassName(m.Module.Name); err != nil {
		return fmt.Errorf("manifest: module name: %w", err)
	}
	if m.Module.Package == "" {
		return errors.New("manifest: module package is required")
	}

	names := make(map[string]bool, len(m.Classes)+len(m.Enums))
	goTypes := make(map[string]bool, len(m.Classes)+len(m.Enums))

	for i := range m.Classes {
		c := &m.Classes[i]
		if err := bridge.ValidateClassName(c.Name); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		if IsReservedRoot(c.Name) {
			return fmt.Errorf("manifest: class %s uses a reserved name root", c.Name)
		}
		if c.Type == "" {
			return fmt.Errorf("manifest: class %s needs a Go type", c.Name)
		}
		if names[c.Name] {
			return fmt.Errorf("manifest: duplicate name %s", c.Name)
		}
		if goTypes[c.Type] {
			return fmt.Errorf("manifest: Go type %s bound twice", c.Type)
		}
		names[c.Name] = true
		goTypes[c.Type] = true

		for script := range c.Methods {
			if err := validateMemberName(script); err != nil {
				return fmt.Errorf("manifest: class %s: %w", c.Name, err)
			}
		}
		for script, p := range c.Properties {
			if err := validateMemberName(script); err != nil {
				return fmt.Errorf("manifest: class %s: %w", c.Name, err)
			}
			if p.Field == "" {
				return fmt.Errorf("manifest: class %s: property %s needs a field", c.Name, script)
			}
		}
	}

	for i := range m.Classes {
		c := &m.Classes[i]
		if c.Base == "" {
			continue
		}
		if c.Base == c.Name {
			return fmt.Errorf("manifest: class %s extends itself", c.Name)
		}
		if _, ok := m.ClassByName(c.Base); !ok {
			return fmt.Errorf("manifest: base class not declared in manifest: %s", c.Base)
		}
	}

	for i := range m.Enums {
		en := &m.Enums[i]
		if err := bridge.ValidateClassName(en.Name); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		if IsReservedRoot(en.Name) {
			return fmt.Errorf("manifest: enum %s uses a reserved name root", en.Name)
		}
		if en.Type == "" {
			return fmt.Errorf("manifest: enum %s needs a Go type", en.Name)
		}
		if names[en.Name] {
			return fmt.Errorf("manifest: duplicate name %s", en.Name)
		}
		if goTypes[en.Type] {
			return fmt.Errorf("manifest: Go type %s bound twice", en.Type)
		}
		names[en.Name] = true
		goTypes[en.Type] = true
	}

	return nil
}

func validateMemberName(name string) error {
	if name == "" {
		return errors.New("member name is empty")
	}
	if strings.HasPrefix(name, "$") {
		return fmt.Errorf("member name %s: names beginning with $ are reserved", name)
	}
	return nil
}

// RegistrationOrder returns the manifest's classes sorted so every base
// precedes its subclasses, with declaration order preserved among unrelated
// classes. An inheritance cycle is an error.
func (m *Manifest) RegistrationOrder() ([]Class, error) {
	index := make(map[string]int64, len(m.Classes))
	for i := range m.Classes {
		index[m.Classes[i].Name] = int64(i)
	}

	g := simple.NewDirectedGraph()
	for i := range m.Classes {
		g.AddNode(simple.Node(i))
	}
	for i := range m.Classes {
		c := &m.Classes[i]
		if c.Base == "" {
			continue
		}
		bi, ok := index[c.Base]
		if !ok {
			return nil, fmt.Errorf("manifest: base class not declared in manifest: %s", c.Base)
		}
		if bi == int64(i) {
			return nil, fmt.Errorf("manifest: class %s extends itself", c.Name)
		}
		g.SetEdge(g.NewEdge(simple.Node(bi), simple.Node(int64(i))))
	}

	sorted, err := topo.SortStabilized(g, nil)
	if err != nil {
		var uo topo.Unorderable
		if errors.As(err, &uo) && len(uo) > 0 {
			cycle := make([]string, 0, len(uo[0]))
			for _, n := range uo[0] {
				cycle = append(cycle, m.Classes[n.ID()].Name)
			}
			return nil, fmt.Errorf("manifest: inheritance cycle through %s", strings.Join(cycle, ", "))
		}
		return nil, fmt.Errorf("manifest: ordering classes: %w", err)
	}

	out := make([]Class, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, m.Classes[n.ID()])
	}
	return out, nil
}
