package bridge

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/tether/script"
)

func callFn(t *testing.T, fn *script.Function, args ...script.Value) (script.Value, error) {
	t.Helper()
	return fn.Call(script.Undefined(), args)
}

func TestDispatch_ArityMismatch(t *testing.T) {
	e := newScopedEngine(t)

	fn, err := e.BindFunction("inc", func(n int32) int32 { return n + 1 })
	if err != nil {
		t.Fatalf("BindFunction: %v", err)
	}

	if _, err := callFn(t, fn); err == nil {
		t.Error("expected error for missing argument")
	}
	_, err = callFn(t, fn, script.Number(1), script.Number(2))
	mustKind(t, err, ErrConversion)
	if !strings.Contains(err.Error(), "argument count mismatch") {
		t.Errorf("expected arity message, got %v", err)
	}
}

func TestDispatch_BindBeforeCall(t *testing.T) {
	e := newScopedEngine(t)

	ran := 0
	fn, err := e.BindFunction("record", func(a int32, b string) { ran++ })
	if err != nil {
		t.Fatalf("BindFunction: %v", err)
	}

	// The second argument fails to convert; the callback must not have run.
	_, err = callFn(t, fn, script.Number(1), script.Number(2))
	mustKind(t, err, ErrConversion)
	if ran != 0 {
		t.Errorf("expected no partial execution, callback ran %d times", ran)
	}

	if _, err := callFn(t, fn, script.Number(1), script.String("ok")); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ran != 1 {
		t.Errorf("expected one run, got %d", ran)
	}
}

func TestDispatch_OverloadOrder(t *testing.T) {
	e := newScopedEngine(t)

	var calls []string
	fn, err := e.BindFunction("pick",
		func(a, b string) string { calls = append(calls, "ss"); return "ss" },
		func(a string, b int32) string { calls = append(calls, "si"); return "si" },
	)
	if err != nil {
		t.Fatalf("BindFunction: %v", err)
	}

	v, err := callFn(t, fn, script.String("a"), script.Number(1))
	if err != nil {
		t.Fatalf("Call(si): %v", err)
	}
	if v.Str() != "si" {
		t.Errorf("expected si overload, got %s", v)
	}

	v, err = callFn(t, fn, script.String("a"), script.String("b"))
	if err != nil {
		t.Fatalf("Call(ss): %v", err)
	}
	if v.Str() != "ss" {
		t.Errorf("expected ss overload, got %s", v)
	}

	// Rejected candidates must not have run.
	if !reflect.DeepEqual(calls, []string{"si", "ss"}) {
		t.Errorf("expected [si ss], got %v", calls)
	}

	_, err = callFn(t, fn, script.Number(1), script.String("a"))
	mustKind(t, err, ErrConversion)
	if !strings.Contains(err.Error(), "no overload found") {
		t.Errorf("expected overload failure, got %v", err)
	}
}

func TestDispatch_SingleCandidateReportsRealError(t *testing.T) {
	e := newScopedEngine(t)

	fn, err := e.BindFunction("one", func(n int32) int32 { return n })
	if err != nil {
		t.Fatalf("BindFunction: %v", err)
	}

	_, err = callFn(t, fn, script.String("x"))
	mustKind(t, err, ErrConversion)
	if !strings.Contains(err.Error(), "Expected number value") {
		t.Errorf("expected the underlying conversion error, got %v", err)
	}
}

func TestDispatch_ResultShapes(t *testing.T) {
	e := newScopedEngine(t)

	noResult, err := e.BindFunction("no", func() {})
	if err != nil {
		t.Fatalf("BindFunction: %v", err)
	}
	v, err := callFn(t, noResult)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !v.IsUndefined() {
		t.Errorf("expected undefined for void result, got %s", v.Kind())
	}

	errOnly, err := e.BindFunction("errOnly", func() error { return nil })
	if err != nil {
		t.Fatalf("BindFunction: %v", err)
	}
	v, err = callFn(t, errOnly)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !v.IsUndefined() {
		t.Errorf("expected undefined for nil-error result, got %s", v.Kind())
	}

	both, err := e.BindFunction("both", func(ok bool) (int32, error) {
		if !ok {
			return 0, errors.New("refused")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("BindFunction: %v", err)
	}
	v, err = callFn(t, both, script.Bool(true))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v.Number() != 7 {
		t.Errorf("expected 7, got %s", v)
	}
	_, err = callFn(t, both, script.Bool(false))
	if err == nil || err.Error() != "refused" {
		t.Errorf("expected the callback's own error, got %v", err)
	}
}

func TestDispatch_RejectedSignatures(t *testing.T) {
	e := newScopedEngine(t)

	_, err := e.BindFunction("notfn", 42)
	mustKind(t, err, ErrRegistration)

	_, err = e.BindFunction("variadic", func(xs ...int32) {})
	mustKind(t, err, ErrRegistration)

	_, err = e.BindFunction("errfirst", func() (error, int32) { return nil, 0 })
	mustKind(t, err, ErrRegistration)

	_, err = e.BindFunction("twovals", func() (int32, string) { return 0, "" })
	mustKind(t, err, ErrRegistration)

	_, err = e.BindFunction("empty")
	mustKind(t, err, ErrRegistration)
}

func TestDispatch_MethodConstReceiver(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	v, err := e.ToScript(&Point{X: 3, Y: 4}, AsConst())
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}

	// Const methods bind on const instances.
	res, err := e.Invoke(v, "norm")
	if err != nil {
		t.Fatalf("Invoke(norm): %v", err)
	}
	if res.Number() != 5 {
		t.Errorf("expected 5, got %s", res)
	}

	// Mutating methods do not.
	_, err = e.Invoke(v, "translate", script.Number(1), script.Number(1))
	mustKind(t, err, ErrAccess)
}

func TestDispatch_MethodNeedsNativeReceiver(t *testing.T) {
	e := newScopedEngine(t)
	cls := registerPoint(t, e)

	prop, _, ok := cls.Prototype().Lookup("translate")
	if !ok {
		t.Fatal("expected translate on the prototype")
	}
	fn := prop.Value().Function()

	_, err := fn.Call(script.Undefined(), []script.Value{script.Number(1), script.Number(1)})
	mustKind(t, err, ErrConversion)

	// A foreign plain object is not a proxy either.
	foreign := script.ObjectValue(script.NewObject())
	_, err = fn.Call(foreign, []script.Value{script.Number(1), script.Number(1)})
	mustKind(t, err, ErrConversion)
}

func TestDispatch_ConstResultOption(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	type Vault struct{ spot Point }
	_, err := DefineClass[Vault]("dispatch.Vault").
		Constructor(func() *Vault { return &Vault{spot: Point{X: 9}} }).
		Method("peek", func(v *Vault) *Point { return &v.spot },
			WithReturnPolicy(ReferenceInternal), ConstResult()).
		Build(e)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	vault, err := e.Construct("dispatch.Vault")
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	view, err := e.Invoke(vault, "peek")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	inst, ok := e.InstancePayload(view)
	if !ok {
		t.Fatal("expected native instance result")
	}
	if !inst.IsConst() {
		t.Error("expected const result view")
	}
	if inst.IsOwned() {
		t.Error("expected a borrowed view into the receiver")
	}

	// Writing through the const view fails at the receiver unwrap.
	err = e.SetMember(view, "x", script.Number(1))
	mustKind(t, err, ErrAccess)
}

func TestDispatch_ConstReceiverPropagatesToReferenceResult(t *testing.T) {
	e := newScopedEngine(t)
	registerPoint(t, e)

	type Vault struct{ spot Point }
	_, err := DefineClass[Vault]("dispatch.Vault2").
		Constructor(func() *Vault { return &Vault{spot: Point{X: 1}} }).
		ConstMethod("peek", func(v *Vault) *Point { return &v.spot },
			WithReturnPolicy(Reference)).
		Build(e)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	owner := &Vault{spot: Point{X: 1}}
	constView, err := e.ToScript(owner, WithPolicy(Reference), AsConst())
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}

	res, err := e.Invoke(constView, "peek")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	inst, _ := e.InstancePayload(res)
	if !inst.IsConst() {
		t.Error("expected a reference out of a const receiver to stay const")
	}

	// The same method on a mutable receiver yields a mutable view.
	mutView, err := e.ToScript(&Vault{spot: Point{X: 2}}, WithPolicy(Reference))
	if err != nil {
		t.Fatalf("ToScript: %v", err)
	}
	res, err = e.Invoke(mutView, "peek")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	inst, _ = e.InstancePayload(res)
	if inst.IsConst() {
		t.Error("expected a mutable view from a mutable receiver")
	}
}

func TestDispatch_PanicErrorRecovered(t *testing.T) {
	e := newScopedEngine(t)

	// A bridge error panicking out of a callback surfaces as that error.
	fn, err := e.BindFunction("explode", func() {
		panic(accessErrorf("detonated"))
	})
	if err != nil {
		t.Fatalf("BindFunction: %v", err)
	}
	_, err = callFn(t, fn)
	mustKind(t, err, ErrAccess)
	if !strings.Contains(err.Error(), "detonated") {
		t.Errorf("expected panic message, got %v", err)
	}
}
