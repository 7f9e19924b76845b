package bridge

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/tether/script"
)

func TestBuilder_NonStructRejected(t *testing.T) {
	e := newScopedEngine(t)

	_, err := DefineClass[int]("bad.Int").Build(e)
	mustKind(t, err, ErrRegistration)
}

func TestBuilder_NameValidation(t *testing.T) {
	e := newScopedEngine(t)

	_, err := DefineClass[Point]("").Build(e)
	mustKind(t, err, ErrRegistration)

	_, err = DefineClass[Point]("geom..Point").Build(e)
	mustKind(t, err, ErrRegistration)
}

func TestBuilder_DuplicateRegistration(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	// Same name.
	_, err := DefineClass[Animal]("geom.Point").Build(e)
	mustKind(t, err, ErrRegistration)
	if !strings.Contains(err.Error(), "already registered") {
		t.Errorf("expected duplicate message, got %v", err)
	}

	// Same Go type under a different name.
	_, err = DefineClass[Point]("geom.Point2").Build(e)
	mustKind(t, err, ErrRegistration)
}

func TestBuilder_BaseNotRegistered(t *testing.T) {
	e := newScopedEngine(t)

	b := DefineClass[Dog]("solo.Dog").Constructor(NewDog)
	_, err := Extends(b, func(d *Dog) *Animal { return &d.Animal }).Build(e)
	mustKind(t, err, ErrRegistration)
	if !strings.Contains(err.Error(), "Base class not registered") {
		t.Errorf("expected base-missing message, got %v", err)
	}
}

func TestBuilder_BaseWithoutConstructor(t *testing.T) {
	e := newScopedEngine(t)

	_, err := DefineClass[Animal]("noctor.Animal").Build(e)
	if err != nil {
		t.Fatalf("register base: %v", err)
	}

	b := DefineClass[Dog]("noctor.Dog").Constructor(NewDog)
	_, err = Extends(b, func(d *Dog) *Animal { return &d.Animal }).Build(e)
	mustKind(t, err, ErrRegistration)
	if !strings.Contains(err.Error(), "must have a constructor") {
		t.Errorf("expected base-constructor message, got %v", err)
	}
}

func TestBuilder_ConstructorShape(t *testing.T) {
	e := newScopedEngine(t)

	_, err := DefineClass[Point]("ctor.A").Constructor(42).Build(e)
	mustKind(t, err, ErrRegistration)

	_, err = DefineClass[Point]("ctor.B").Constructor(func() int { return 0 }).Build(e)
	mustKind(t, err, ErrRegistration)
	if !strings.Contains(err.Error(), "must return") {
		t.Errorf("expected result-shape message, got %v", err)
	}

	// (*T, error) is a valid constructor shape.
	cls, err := DefineClass[Point]("ctor.C").
		Constructor(func(x float64) (*Point, error) {
			if x < 0 {
				return nil, errors.New("negative")
			}
			return &Point{X: x}, nil
		}).
		Build(e)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := cls.New(script.Number(1)); err != nil {
		t.Errorf("New: %v", err)
	}
	if _, err := cls.New(script.Number(-1)); err == nil || err.Error() != "negative" {
		t.Errorf("expected constructor error, got %v", err)
	}
}

func TestBuilder_MethodReceiverMismatch(t *testing.T) {
	e := newScopedEngine(t)

	_, err := DefineClass[Point]("recv.Point").
		Constructor(NewOrigin).
		Method("speak", (*Animal).Speak).
		Build(e)
	mustKind(t, err, ErrRegistration)

	_, err = DefineClass[Point]("recv.Point2").
		Constructor(NewOrigin).
		Method("free", func() {}).
		Build(e)
	mustKind(t, err, ErrRegistration)
}

func TestBuilder_PropertyNeedsGetter(t *testing.T) {
	e := newScopedEngine(t)

	_, err := DefineClass[Point]("prop.Point").
		Constructor(NewOrigin).
		Property("x", nil, func(p *Point, v float64) { p.X = v }).
		Build(e)
	mustKind(t, err, ErrRegistration)
}

func TestBuilder_FirstErrorWins(t *testing.T) {
	e := newScopedEngine(t)

	// The chain latches the first failure and ignores the rest.
	_, err := DefineClass[Point]("latch.Point").
		Constructor(42).
		Method("also-bad", "nope").
		Build(e)
	mustKind(t, err, ErrRegistration)
	if !strings.Contains(err.Error(), "bound callback must be a function") {
		t.Errorf("expected the first error, got %v", err)
	}
}

func TestBuilder_NilUpcastRejected(t *testing.T) {
	e := newScopedEngine(t)
	registerAnimal(t, e)

	b := DefineClass[Dog]("nilup.Dog").Constructor(NewDog)
	_, err := Extends[Dog, Animal](b, nil).Build(e)
	mustKind(t, err, ErrRegistration)
}

func TestBuilder_EnumDuplicate(t *testing.T) {
	e := newScopedEngine(t)
	registerColor(t, e)

	_, err := DefineEnum[Color]("ui.Color").Value("Red", Red).Build(e)
	mustKind(t, err, ErrRegistration)

	// Same Go type under a different name is a duplicate too.
	_, err = DefineEnum[Color]("ui.Palette").Value("Red", Red).Build(e)
	mustKind(t, err, ErrRegistration)
}

func TestBuilder_EnumNameValidation(t *testing.T) {
	e := newScopedEngine(t)

	_, err := DefineEnum[Color](".bad").Value("Red", Red).Build(e)
	mustKind(t, err, ErrRegistration)
}

func TestBuilder_RegistrationNeedsScope(t *testing.T) {
	e := New() // no scope entered

	_, err := DefineClass[Point]("scopeless.Point").Constructor(NewOrigin).Build(e)
	mustKind(t, err, ErrAccess)

	_, err = DefineEnum[Color]("scopeless.Color").Value("Red", Red).Build(e)
	mustKind(t, err, ErrAccess)
}
