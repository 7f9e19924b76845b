package bridge

import (
	"testing"
)

func TestPolicy_String(t *testing.T) {
	cases := map[Policy]string{
		Automatic:         "Automatic",
		Copy:              "Copy",
		Move:              "Move",
		Reference:         "Reference",
		TakeOwnership:     "TakeOwnership",
		ReferenceInternal: "ReferenceInternal",
	}
	for p, want := range cases {
		if p.String() != want {
			t.Errorf("expected %s, got %s", want, p)
		}
	}
}

func TestPolicy_AutomaticPointerTakesOwnership(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	p := &Point{X: 1, Y: 2}
	v, err := e.ToScript(p)
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}
	inst, ok := e.InstancePayload(v)
	if !ok {
		t.Fatal("expected native instance")
	}
	if !inst.IsOwned() {
		t.Error("expected pointer source to be adopted")
	}
	if inst.Ptr().(*Point) != p {
		t.Error("expected the adopted pointer, not a copy")
	}
}

func TestPolicy_AutomaticValueCopies(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	p := Point{X: 1, Y: 2}
	v, err := e.ToScript(p)
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}
	inst, _ := e.InstancePayload(v)
	if !inst.IsOwned() {
		t.Error("expected value source to be copied into script ownership")
	}

	// The wrapped storage is detached from the local variable.
	p.X = 99
	got := inst.Ptr().(*Point)
	if got.X != 1 {
		t.Errorf("expected detached copy with X=1, got %v", got.X)
	}
}

func TestPolicy_CopyDetaches(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	p := &Point{X: 7}
	v, err := e.ToScript(p, WithPolicy(Copy))
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}
	inst, _ := e.InstancePayload(v)
	got := inst.Ptr().(*Point)
	if got == p {
		t.Fatal("expected a clone, got the source pointer")
	}
	p.X = 8
	if got.X != 7 {
		t.Errorf("expected clone to keep X=7, got %v", got.X)
	}
}

func TestPolicy_CopyWithoutHookFails(t *testing.T) {
	e := newScopedEngine(t)

	type Pinned struct{ N int }
	_, err := DefineClass[Pinned]("policy.Pinned").
		Constructor(func() *Pinned { return &Pinned{} }).
		NoCopy().
		Build(e)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	_, err = e.ToScript(&Pinned{}, WithPolicy(Copy))
	mustKind(t, err, ErrOwnership)

	// Move falls back to the copy hook; with neither it fails too.
	_, err = e.ToScript(&Pinned{}, WithPolicy(Move))
	mustKind(t, err, ErrOwnership)
}

func TestPolicy_MoveUsesMoveHook(t *testing.T) {
	e := newScopedEngine(t)

	type Buffer struct{ Data []byte }
	moves := 0
	_, err := DefineClass[Buffer]("policy.Buffer").
		Constructor(func() *Buffer { return &Buffer{} }).
		MoveWith(func(b *Buffer) *Buffer {
			moves++
			out := &Buffer{Data: b.Data}
			b.Data = nil
			return out
		}).
		Build(e)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	src := &Buffer{Data: []byte("payload")}
	v, err := e.ToScript(src, WithPolicy(Move))
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}
	if moves != 1 {
		t.Fatalf("expected one move, got %d", moves)
	}
	if src.Data != nil {
		t.Error("expected source to be drained by the move hook")
	}
	inst, _ := e.InstancePayload(v)
	if string(inst.Ptr().(*Buffer).Data) != "payload" {
		t.Error("expected moved payload in the wrapped value")
	}
}

func TestPolicy_ReferenceBorrows(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	p := &Point{X: 1}
	v, err := e.ToScript(p, WithPolicy(Reference))
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}
	inst, _ := e.InstancePayload(v)
	if inst.IsOwned() {
		t.Error("expected a borrowed holder")
	}

	// Native mutations are visible through the view.
	p.X = 42
	got, err := e.GetMember(v, "x")
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if got.Number() != 42 {
		t.Errorf("expected live view of X=42, got %s", got)
	}
}

func TestPolicy_PointerRequired(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	_, err := e.ToScript(Point{}, WithPolicy(TakeOwnership))
	mustKind(t, err, ErrOwnership)

	_, err = e.ToScript(Point{}, WithPolicy(Reference))
	mustKind(t, err, ErrOwnership)

	_, err = e.ToScript(Point{}, WithPolicy(ReferenceInternal))
	mustKind(t, err, ErrOwnership)
}

func TestPolicy_ReferenceInternalRequiresParent(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	_, err := e.ToScript(&Point{}, WithPolicy(ReferenceInternal))
	mustKind(t, err, ErrOwnership)
}

func TestPolicy_ReferenceInternalPinsParent(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	parentVal, err := e.ToScript(&Point{X: 1})
	if err != nil {
		t.Fatalf("ToScript(parent): %v", err)
	}
	parent := parentVal.Object()

	child, err := e.ToScript(&Point{X: 2}, WithPolicy(ReferenceInternal), WithParent(parent))
	if err != nil {
		t.Fatalf("ToScript(child): %v", err)
	}

	prop, ok := child.Object().Own("$parent")
	if !ok {
		t.Fatal("expected hidden $parent property on the child view")
	}
	if !prop.IsHidden() {
		t.Error("expected $parent to be hidden")
	}
	if prop.Value().Object() != parent {
		t.Error("expected $parent to reference the parent proxy")
	}

	// The pin is invisible to enumeration.
	for _, n := range child.Object().Names() {
		if n == "$parent" {
			t.Error("expected $parent to be excluded from Names")
		}
	}
}

func TestPolicy_NilPointerBecomesNull(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	v, err := e.ToScript((*Point)(nil))
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}
	if !v.IsNull() {
		t.Errorf("expected null, got %s", v.Kind())
	}
}

func TestPolicy_SlicingGuard(t *testing.T) {
	e := newScopedEngine(t)
	registerAnimal(t, e)
	registerDog(t, e)

	d := NewDog("rex")
	d.Tricks = 3

	// A base-typed view still copies the whole dog: the clone hook is keyed
	// by the resolved dynamic class.
	var base *Animal = &d.Animal
	v, err := e.ToScript(base, WithPolicy(Copy))
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}

	if !e.IsInstanceOf(v, "zoo.Dog") {
		t.Fatal("expected the copy to be a zoo.Dog")
	}
	inst, _ := e.InstancePayload(v)
	got := inst.Ptr().(*Dog)
	if got == d {
		t.Fatal("expected a clone, got the source pointer")
	}
	if got.Tricks != 3 || got.Name != "rex" {
		t.Errorf("expected full copy {rex 3}, got %+v", got)
	}

	// The copy's back-reference points at the copy, not the source.
	if got.DynamicSelf() != any(got) {
		t.Error("expected the clone to re-point its self reference")
	}
}

func TestPolicy_UnregisteredDynamicFallsBack(t *testing.T) {
	e := newScopedEngine(t)
	registerAnimal(t, e)

	// Cat is never registered; its base view falls back to the declared
	// class.
	type Cat struct{ Animal }
	c := &Cat{Animal: Animal{Name: "momo"}}
	c.self = c

	v, err := e.ToScript(&c.Animal, WithPolicy(Reference))
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}
	if !e.IsInstanceOf(v, "zoo.Animal") {
		t.Error("expected fallback to zoo.Animal")
	}
	inst, _ := e.InstancePayload(v)
	if inst.Meta().Name() != "zoo.Animal" {
		t.Errorf("expected zoo.Animal meta, got %s", inst.Meta().Name())
	}
}

func TestPolicy_DowncastThroughBaseView(t *testing.T) {
	e := newScopedEngine(t)
	registerAnimal(t, e)
	registerDog(t, e)

	d := NewDog("rex")
	v, err := e.ToScript(&d.Animal, WithPolicy(Reference))
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}

	// The instance is tagged with the dynamic class, so a derived-typed
	// request works even though the declared type was the base.
	got, err := FromScript[*Dog](e, v)
	if err != nil {
		t.Fatalf("FromScript[*Dog]: %v", err)
	}
	if got != d {
		t.Error("expected the original dog back")
	}

	if !e.IsInstanceOf(v, "zoo.Dog") || !e.IsInstanceOf(v, "zoo.Animal") {
		t.Error("expected instance-of both classes")
	}
}
