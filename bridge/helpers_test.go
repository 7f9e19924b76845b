package bridge

import (
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for bridge package tests.
//
// Every public engine operation requires an entered scope, so tests go
// through newScopedEngine, which enters one for the duration of the test and
// closes the engine afterwards.
// ---------------------------------------------------------------------------

func newScopedEngine(t *testing.T) *Engine {
	t.Helper()
	e := New()
	exit := e.Enter()
	t.Cleanup(func() {
		e.Close()
		exit()
	})
	return e
}

// ---------------------------------------------------------------------------
// Point is the plain value-class fixture: overloaded constructors, methods,
// read-write and read-only properties, statics, a constant and an equals
// hook.
// ---------------------------------------------------------------------------

type Point struct {
	X, Y float64
}

func NewPoint(x, y float64) *Point { return &Point{X: x, Y: y} }

func NewOrigin() *Point { return &Point{} }

func (p *Point) Translate(dx, dy float64) { p.X += dx; p.Y += dy }

func (p *Point) Norm() float64 { return math.Hypot(p.X, p.Y) }

func distance(a, b *Point) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

func registerPoint(t *testing.T, e *Engine) *Class {
	t.Helper()
	cls, err := DefineClass[Point]("geom.Point").
		Constructor(NewPoint).
		Constructor(NewOrigin).
		Method("translate", (*Point).Translate).
		ConstMethod("norm", (*Point).Norm).
		Property("x",
			func(p *Point) float64 { return p.X },
			func(p *Point, v float64) { p.X = v }).
		Property("y",
			func(p *Point) float64 { return p.Y },
			nil).
		Static("distance", distance).
		Const("dims", 2).
		Equals(func(a, b *Point) bool { return a.X == b.X && a.Y == b.Y }).
		Build(e)
	if err != nil {
		t.Fatalf("register geom.Point: %v", err)
	}
	return cls
}

// ---------------------------------------------------------------------------
// Animal / Dog is the polymorphic fixture. Animal carries the DynamicSelf
// back-reference; Dog embeds Animal. Both re-point the back-reference in
// their copy hooks.
// ---------------------------------------------------------------------------

type Animal struct {
	Name string
	self any
}

func NewAnimal(name string) *Animal {
	a := &Animal{Name: name}
	a.self = a
	return a
}

func (a *Animal) DynamicSelf() any { return a.self }

func (a *Animal) Speak() string { return a.Name + " makes a sound" }

type Dog struct {
	Animal
	Tricks int
}

func NewDog(name string) *Dog {
	d := &Dog{Animal: Animal{Name: name}}
	d.self = d
	return d
}

func (d *Dog) Teach() int {
	d.Tricks++
	return d.Tricks
}

func registerAnimal(t *testing.T, e *Engine) *Class {
	t.Helper()
	cls, err := DefineClass[Animal]("zoo.Animal").
		Constructor(NewAnimal).
		ConstMethod("speak", (*Animal).Speak).
		Property("name", func(a *Animal) string { return a.Name }, nil).
		CopyWith(func(a *Animal) *Animal {
			c := &Animal{Name: a.Name}
			c.self = c
			return c
		}).
		Build(e)
	if err != nil {
		t.Fatalf("register zoo.Animal: %v", err)
	}
	return cls
}

func registerDog(t *testing.T, e *Engine) *Class {
	t.Helper()
	b := DefineClass[Dog]("zoo.Dog").
		Constructor(NewDog).
		Method("teach", (*Dog).Teach).
		Property("tricks", func(d *Dog) int { return d.Tricks }, nil).
		CopyWith(func(d *Dog) *Dog {
			c := &Dog{Animal: Animal{Name: d.Name}, Tricks: d.Tricks}
			c.self = c
			return c
		})
	cls, err := Extends(b, func(d *Dog) *Animal { return &d.Animal }).Build(e)
	if err != nil {
		t.Fatalf("register zoo.Dog: %v", err)
	}
	return cls
}

// ---------------------------------------------------------------------------
// Gadget is the lifecycle fixture. Its finalize hook flips a flag the test
// owns, so teardown ordering is observable.
// ---------------------------------------------------------------------------

type Gadget struct {
	Label     string
	finalized *bool
}

func registerGadget(t *testing.T, e *Engine) *Class {
	t.Helper()
	cls, err := DefineClass[Gadget]("hw.Gadget").
		Constructor(func(label string) *Gadget { return &Gadget{Label: label} }).
		Property("label", func(g *Gadget) string { return g.Label }, nil).
		Finalize(func(g *Gadget) {
			if g.finalized != nil {
				*g.finalized = true
			}
		}).
		Build(e)
	if err != nil {
		t.Fatalf("register hw.Gadget: %v", err)
	}
	return cls
}

// mustKind fails the test unless err carries the wanted bridge error kind.
func mustKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil error", want)
	}
	kind, ok := KindOf(err)
	if !ok {
		t.Fatalf("expected %s, got untagged error %v", want, err)
	}
	if kind != want {
		t.Fatalf("expected %s, got %s: %v", want, kind, err)
	}
}
