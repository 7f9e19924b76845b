package manifest

import (
	"strings"
	"testing"
)

func orderOf(t *testing.T, toml string) []string {
	t.Helper()
	m, err := Parse([]byte(toml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	classes, err := m.RegistrationOrder()
	if err != nil {
		t.Fatalf("RegistrationOrder failed: %v", err)
	}
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name
	}
	return names
}

func TestRegistrationOrder_BasesFirst(t *testing.T) {
	// Derived classes declared before their bases still register after them.
	names := orderOf(t, `
[module]
name = "zoo"
package = "example.com/zoo"

[[classes]]
name = "Puppy"
type = "Puppy"
base = "Dog"

[[classes]]
name = "Dog"
type = "Dog"
base = "Animal"

[[classes]]
name = "Animal"
type = "Animal"
`)

	want := []string{"zoo.Animal", "zoo.Dog", "zoo.Puppy"}
	if len(names) != len(want) {
		t.Fatalf("order = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestRegistrationOrder_DeclarationStable(t *testing.T) {
	// Unrelated classes keep their declaration order.
	names := orderOf(t, `
[module]
name = "app"
package = "example.com/app"

[[classes]]
name = "Window"
type = "Window"

[[classes]]
name = "Button"
type = "Button"

[[classes]]
name = "Label"
type = "Label"
`)

	want := []string{"app.Window", "app.Button", "app.Label"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestRegistrationOrder_Cycle(t *testing.T) {
	m, err := Parse([]byte(`
[module]
name = "bad"
package = "example.com/bad"

[[classes]]
name = "A"
type = "A"
base = "B"

[[classes]]
name = "B"
type = "B"
base = "A"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	_, err = m.RegistrationOrder()
	if err == nil {
		t.Fatal("RegistrationOrder of cyclic manifest succeeded, want error")
	}
	if !strings.Contains(err.Error(), "inheritance cycle") {
		t.Errorf("error = %q, want it to mention the cycle", err)
	}
	if !strings.Contains(err.Error(), "bad.A") || !strings.Contains(err.Error(), "bad.B") {
		t.Errorf("error = %q, want it to name the cycle members", err)
	}
}

func TestRegistrationOrder_UnknownBase(t *testing.T) {
	m, err := Parse([]byte(`
[module]
name = "bad"
package = "example.com/bad"

[[classes]]
name = "A"
type = "A"
base = "Ghost"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	_, err = m.RegistrationOrder()
	if err == nil || !strings.Contains(err.Error(), "not declared in manifest") {
		t.Errorf("error = %v, want unknown base error", err)
	}
}
