package script

import (
	"math/big"
	"testing"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"undefined", Undefined(), KindUndefined},
		{"null", Null(), KindNull},
		{"bool", Bool(true), KindBool},
		{"number", Number(4.5), KindNumber},
		{"bigint", BigIntFromInt64(7), KindBigInt},
		{"string", String("hi"), KindString},
		{"list", ListValue(NewList()), KindList},
		{"object", ObjectValue(NewObject()), KindObject},
		{"function", FunctionValue(NewFunction("f", 0, nil)), KindFunction},
	}
	for _, tt := range tests {
		if got := tt.v.Kind(); got != tt.kind {
			t.Errorf("%s: kind = %v, want %v", tt.name, got, tt.kind)
		}
	}

	if Undefined().Kind() != KindUndefined {
		t.Error("zero value should be undefined")
	}
	var zero Value
	if !zero.IsUndefined() {
		t.Error("var zero Value should be undefined")
	}
}

func TestValuePayloads(t *testing.T) {
	if !Bool(true).Bool() || Bool(false).Bool() {
		t.Error("bool payload mismatch")
	}
	if Number(2.25).Number() != 2.25 {
		t.Error("number payload mismatch")
	}
	if String("abc").Str() != "abc" {
		t.Error("string payload mismatch")
	}
	bi := BigIntFromUint64(1 << 60)
	want := new(big.Int).SetUint64(1 << 60)
	if bi.BigInt().Cmp(want) != 0 {
		t.Errorf("bigint payload = %v, want %v", bi.BigInt(), want)
	}

	// Wrong-kind access returns zero values, never panics.
	if Number(1).Str() != "" || String("x").Number() != 0 || Null().BigInt() != nil {
		t.Error("cross-kind payload access should return zero values")
	}
	if Null().Object() != nil || Null().List() != nil || Null().Function() != nil {
		t.Error("cross-kind ref access should return nil")
	}
}

func TestValueEqual(t *testing.T) {
	obj := NewObject()
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null==null", Null(), Null(), true},
		{"null!=undefined", Null(), Undefined(), false},
		{"bool", Bool(true), Bool(true), true},
		{"bool diff", Bool(true), Bool(false), false},
		{"number", Number(3), Number(3), true},
		{"number!=bigint", Number(3), BigIntFromInt64(3), false},
		{"bigint", BigIntFromInt64(42), BigIntFromInt64(42), true},
		{"string", String("a"), String("a"), true},
		{"list", ListValue(NewList(Number(1), String("x"))), ListValue(NewList(Number(1), String("x"))), true},
		{"list len", ListValue(NewList(Number(1))), ListValue(NewList()), false},
		{"object identity", ObjectValue(obj), ObjectValue(obj), true},
		{"object distinct", ObjectValue(NewObject()), ObjectValue(NewObject()), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%s: Equal = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Undefined(), "undefined"},
		{Null(), "null"},
		{Bool(true), "true"},
		{Number(3), "3"},
		{Number(2.5), "2.5"},
		{BigIntFromInt64(9), "9n"},
		{String("hi"), `"hi"`},
		{ListValue(NewList(Number(1), Number(2))), "[1, 2]"},
		{ObjectValue(NewObject()), "[object]"},
		{FunctionValue(NewFunction("f", 0, nil)), "[function f]"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}

	named := NewObject()
	named.SetClassName("pets.Dog")
	if got := ObjectValue(named).String(); got != "[object pets.Dog]" {
		t.Errorf("named object String() = %q", got)
	}
}

func TestListOps(t *testing.T) {
	l := NewList(Number(1))
	l.Append(Number(2), Number(3))
	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}
	l.SetAt(1, String("two"))
	if l.At(1).Str() != "two" {
		t.Errorf("At(1) = %v", l.At(1))
	}
	if len(l.Items()) != 3 {
		t.Errorf("Items len = %d", len(l.Items()))
	}
}

func TestObjectPropertyOrder(t *testing.T) {
	o := NewObject()
	o.Define("b", Number(1))
	o.Define("a", Number(2))
	o.DefineHidden("$secret", Number(3))
	o.Define("c", Number(4))

	got := o.Names()
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names = %v, want %v", got, want)
		}
	}

	// Hidden properties stay reachable by name.
	if v, ok := o.Get("$secret"); !ok || v.Number() != 3 {
		t.Error("hidden property should be readable")
	}

	// Redefining keeps the original position.
	o.Define("b", Number(9))
	if o.Names()[0] != "b" {
		t.Error("redefine should keep insertion order")
	}
	if v, _ := o.Get("b"); v.Number() != 9 {
		t.Error("redefine should update value")
	}
}

func TestObjectProtoLookup(t *testing.T) {
	proto := NewObject()
	proto.Define("shared", String("base"))
	o := NewObjectWithProto(proto)

	if v, ok := o.Get("shared"); !ok || v.Str() != "base" {
		t.Fatal("proto property should be visible through the chain")
	}
	if _, ok := o.Own("shared"); ok {
		t.Error("proto property must not appear as own")
	}

	// Set shadows with an own property.
	o.Set("shared", String("own"))
	if v, _ := o.Get("shared"); v.Str() != "own" {
		t.Error("own property should shadow prototype")
	}
	if v, _ := proto.Get("shared"); v.Str() != "base" {
		t.Error("prototype must be unaffected by shadowing")
	}

	_, owner, ok := o.Lookup("shared")
	if !ok || owner != o {
		t.Error("Lookup should report the shadowing owner")
	}
}

func TestObjectAccessor(t *testing.T) {
	o := NewObject()
	get := NewFunction("get x", 0, func(recv Value, args []Value) (Value, error) {
		return Number(11), nil
	})
	o.DefineAccessor("x", get, nil)

	if _, ok := o.Get("x"); ok {
		t.Error("Get must not report accessor properties")
	}
	p, _, ok := o.Lookup("x")
	if !ok || !p.IsAccessor() {
		t.Fatal("Lookup should find the accessor")
	}
	v, err := p.Getter().Call(ObjectValue(o), nil)
	if err != nil {
		t.Fatalf("getter: %v", err)
	}
	if v.Number() != 11 {
		t.Errorf("getter = %v, want 11", v)
	}
	if p.Setter() != nil {
		t.Error("read-only accessor should have nil setter")
	}
}

func TestObjectInternal(t *testing.T) {
	o := NewObject()
	if o.Internal() != nil {
		t.Fatal("fresh object should have nil payload")
	}
	type payload struct{ n int }
	p := &payload{n: 5}
	o.SetInternal(p)
	if got, ok := o.Internal().(*payload); !ok || got.n != 5 {
		t.Error("payload should round-trip")
	}
}

func TestFunctionCall(t *testing.T) {
	f := NewFunction("add", 2, func(recv Value, args []Value) (Value, error) {
		return Number(args[0].Number() + args[1].Number()), nil
	})
	v, err := f.Call(Undefined(), []Value{Number(1), Number(2)})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if v.Number() != 3 {
		t.Errorf("call = %v, want 3", v)
	}

	var nilFn *Function
	if _, err := nilFn.Call(Undefined(), nil); err == nil {
		t.Error("nil function call should error")
	}
}
