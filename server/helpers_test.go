package server

import (
	"net/http/httptest"
	"testing"

	"github.com/chazu/tether/bridge"
)

// ---------------------------------------------------------------------------
// Fixture registry: a tiny scene-graph domain with one base class, one
// derived class and one enum, enough to exercise every inspection answer.
// ---------------------------------------------------------------------------

type Sprite struct {
	Name string
	X, Y float64
}

func (s *Sprite) MoveBy(dx, dy float64) {
	s.X += dx
	s.Y += dy
}

type Label struct {
	Sprite
	Text string
}

type BlendMode uint8

const (
	BlendNormal BlendMode = iota
	BlendAdd
	BlendMultiply
)

func newTestEngine(t *testing.T) *bridge.Engine {
	t.Helper()
	e := bridge.New()
	exit := e.Enter()
	defer exit()

	_, err := bridge.DefineClass[Sprite]("scene.Sprite").
		Constructor(func(name string) *Sprite { return &Sprite{Name: name} }).
		Property("name", func(s *Sprite) string { return s.Name }, nil).
		Property("x",
			func(s *Sprite) float64 { return s.X },
			func(s *Sprite, v float64) { s.X = v }).
		Method("moveBy", (*Sprite).MoveBy).
		Build(e)
	if err != nil {
		t.Fatalf("register scene.Sprite: %v", err)
	}

	lb := bridge.DefineClass[Label]("scene.Label").
		Constructor(func(name, text string) *Label {
			return &Label{Sprite: Sprite{Name: name}, Text: text}
		}).
		Property("text", func(l *Label) string { return l.Text }, nil)
	if _, err := bridge.Extends[Label, Sprite](lb, func(l *Label) *Sprite { return &l.Sprite }).Build(e); err != nil {
		t.Fatalf("register scene.Label: %v", err)
	}

	_, err = bridge.DefineEnum[BlendMode]("scene.BlendMode").
		Value("Normal", BlendNormal).
		Value("Add", BlendAdd).
		Value("Multiply", BlendMultiply).
		Build(e)
	if err != nil {
		t.Fatalf("register scene.BlendMode: %v", err)
	}

	return e
}

// newTestServer builds the fixture engine, serves it over httptest and
// returns a client wired to it.
func newTestServer(t *testing.T) (*bridge.Engine, *InspectionClient) {
	t.Helper()
	e := newTestEngine(t)

	srv := New(e, WithCollectionInterval(0))
	t.Cleanup(srv.Stop)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return e, NewInspectionClient(ts.Client(), ts.URL)
}
