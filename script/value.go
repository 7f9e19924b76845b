// Package script defines the value model the bridge converts to and from.
//
// It is deliberately engine-shaped but engine-agnostic: a tagged value type
// covering the usual dynamic kinds (null, boolean, number, big integer,
// string, list, object, function), an object type with insertion-ordered
// properties and a prototype link, and a callable function wrapper. A host
// engine embeds or adapts these; the bridge only ever manipulates values
// through this package.
package script

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindBigInt
	KindString
	KindList
	KindObject
	KindFunction
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindBigInt:
		return "bigint"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	default:
		return "invalid"
	}
}

// Value is a tagged script value.
//
// The zero Value is Undefined. Numbers are IEEE 754 doubles; integers that
// must not lose precision beyond 53 bits travel as KindBigInt instead. Heap
// kinds (bigint, list, object, function) share the ref slot.
type Value struct {
	kind Kind
	num  float64
	str  string
	ref  any
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// Undefined returns the undefined value.
func Undefined() Value { return Value{} }

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Number returns a number value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// BigInt returns a big-integer value. The *big.Int is not copied; callers
// must not mutate it afterwards.
func BigInt(i *big.Int) Value { return Value{kind: KindBigInt, ref: i} }

// BigIntFromInt64 returns a big-integer value holding i.
func BigIntFromInt64(i int64) Value { return BigInt(big.NewInt(i)) }

// BigIntFromUint64 returns a big-integer value holding u.
func BigIntFromUint64(u uint64) Value { return BigInt(new(big.Int).SetUint64(u)) }

// ListValue wraps an existing list.
func ListValue(l *List) Value { return Value{kind: KindList, ref: l} }

// ObjectValue wraps an existing object.
func ObjectValue(o *Object) Value { return Value{kind: KindObject, ref: o} }

// FunctionValue wraps an existing function.
func FunctionValue(f *Function) Value { return Value{kind: KindFunction, ref: f} }

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the value's dynamic kind.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined returns true for the undefined value.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull returns true for the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNullish returns true for null or undefined.
func (v Value) IsNullish() bool { return v.kind == KindNull || v.kind == KindUndefined }

// IsBool returns true for boolean values.
func (v Value) IsBool() bool { return v.kind == KindBool }

// IsNumber returns true for number values.
func (v Value) IsNumber() bool { return v.kind == KindNumber }

// IsBigInt returns true for big-integer values.
func (v Value) IsBigInt() bool { return v.kind == KindBigInt }

// IsString returns true for string values.
func (v Value) IsString() bool { return v.kind == KindString }

// IsList returns true for list values.
func (v Value) IsList() bool { return v.kind == KindList }

// IsObject returns true for object values.
func (v Value) IsObject() bool { return v.kind == KindObject }

// IsFunction returns true for function values.
func (v Value) IsFunction() bool { return v.kind == KindFunction }

// ---------------------------------------------------------------------------
// Payload access
// ---------------------------------------------------------------------------

// Bool returns the boolean payload, or false if v is not a boolean.
func (v Value) Bool() bool { return v.kind == KindBool && v.num != 0 }

// Number returns the number payload, or 0 if v is not a number.
func (v Value) Number() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.num
}

// BigInt returns the big-integer payload, or nil if v is not a bigint.
func (v Value) BigInt() *big.Int {
	if v.kind != KindBigInt {
		return nil
	}
	return v.ref.(*big.Int)
}

// Str returns the string payload, or "" if v is not a string.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// List returns the list payload, or nil if v is not a list.
func (v Value) List() *List {
	if v.kind != KindList {
		return nil
	}
	return v.ref.(*List)
}

// Object returns the object payload, or nil if v is not an object.
func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.ref.(*Object)
}

// Function returns the function payload, or nil if v is not a function.
func (v Value) Function() *Function {
	if v.kind != KindFunction {
		return nil
	}
	return v.ref.(*Function)
}

// ---------------------------------------------------------------------------
// Comparison and printing
// ---------------------------------------------------------------------------

// Equal reports structural equality for primitive kinds and lists, and
// identity for objects and functions.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return v.Bool() == other.Bool()
	case KindNumber:
		return v.num == other.num
	case KindBigInt:
		return v.BigInt().Cmp(other.BigInt()) == 0
	case KindString:
		return v.str == other.str
	case KindList:
		a, b := v.List(), other.List()
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !a.At(i).Equal(b.At(i)) {
				return false
			}
		}
		return true
	default:
		return v.ref == other.ref
	}
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBigInt:
		return v.BigInt().String() + "n"
	case KindString:
		return strconv.Quote(v.str)
	case KindList:
		l := v.List()
		parts := make([]string, l.Len())
		for i := range parts {
			parts[i] = l.At(i).String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		o := v.Object()
		if o.class != "" {
			return fmt.Sprintf("[object %s]", o.class)
		}
		return "[object]"
	case KindFunction:
		f := v.Function()
		if f.Name != "" {
			return fmt.Sprintf("[function %s]", f.Name)
		}
		return "[function]"
	default:
		return "invalid"
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// List is an ordered, growable collection of values.
type List struct {
	items []Value
}

// NewList creates a list holding the given items.
func NewList(items ...Value) *List {
	l := &List{}
	if len(items) > 0 {
		l.items = append(l.items, items...)
	}
	return l
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// At returns the item at index i. Panics if i is out of range.
func (l *List) At(i int) Value { return l.items[i] }

// SetAt replaces the item at index i. Panics if i is out of range.
func (l *List) SetAt(i int, v Value) { l.items[i] = v }

// Append adds items at the end.
func (l *List) Append(items ...Value) { l.items = append(l.items, items...) }

// Items returns the backing slice. Callers must not grow it.
func (l *List) Items() []Value { return l.items }
