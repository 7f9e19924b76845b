package bridge

import (
	"math"
	"math/big"
	"reflect"

	"github.com/chazu/tether/script"
)

// ---------------------------------------------------------------------------
// Composite value types
// ---------------------------------------------------------------------------

// Pair is a positional two-tuple. It converts to and from a 2-element list.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Union2 is a tagged union over two alternatives. Tag is 1 when A is active
// and 2 when B is; the zero value counts as holding A's zero value.
//
// Decoding from script tries the alternatives in declared order and commits
// to the first that converts. When both could parse the same value, A wins;
// the ambiguity is accepted, not diagnosed.
type Union2[A, B any] struct {
	Tag int
	A   A
	B   B
}

// MakeUnion2A returns a Union2 holding a.
func MakeUnion2A[A, B any](a A) Union2[A, B] { return Union2[A, B]{Tag: 1, A: a} }

// MakeUnion2B returns a Union2 holding b.
func MakeUnion2B[A, B any](b B) Union2[A, B] { return Union2[A, B]{Tag: 2, B: b} }

// Union3 is a tagged union over three alternatives, with the same tag and
// decode-order rules as Union2.
type Union3[A, B, C any] struct {
	Tag int
	A   A
	B   B
	C   C
}

// Unit is the empty value. It converts to null and decodes only from null
// or undefined.
type Unit struct{}

// ---------------------------------------------------------------------------
// Primitive converters
// ---------------------------------------------------------------------------

type boolConverter struct {
	t reflect.Type
}

func (c boolConverter) ToScript(_ *Engine, rv reflect.Value) (script.Value, error) {
	return script.Bool(rv.Bool()), nil
}

func (c boolConverter) FromScript(_ *Engine, v script.Value) (reflect.Value, error) {
	if !v.IsBool() {
		return reflect.Value{}, conversionErrorf("Expected boolean value, got %s", v.Kind())
	}
	out := reflect.New(c.t).Elem()
	out.SetBool(v.Bool())
	return out, nil
}

// intConverter covers every integral width. Wide (64-bit) types encode as
// big integers; the rest ride the number representation. Decoding accepts
// either and narrows permissively: fractions truncate toward zero, excess
// bits wrap to the target width.
type intConverter struct {
	t        reflect.Type
	unsigned bool
	wide     bool
}

func (c intConverter) ToScript(_ *Engine, rv reflect.Value) (script.Value, error) {
	if c.wide {
		if c.unsigned {
			return script.BigIntFromUint64(rv.Uint()), nil
		}
		return script.BigIntFromInt64(rv.Int()), nil
	}
	if c.unsigned {
		return script.Number(float64(rv.Uint())), nil
	}
	return script.Number(float64(rv.Int())), nil
}

func (c intConverter) FromScript(_ *Engine, v script.Value) (reflect.Value, error) {
	var u uint64
	switch {
	case v.IsNumber():
		if c.unsigned {
			u = numberToUint64(v.Number())
		} else {
			u = uint64(numberToInt64(v.Number()))
		}
	case v.IsBigInt():
		u = truncateBigInt(v.BigInt())
	default:
		return reflect.Value{}, conversionErrorf("Expected number value, got %s", v.Kind())
	}
	out := reflect.New(c.t).Elem()
	if c.unsigned {
		out.SetUint(u)
	} else {
		out.SetInt(int64(u))
	}
	return out, nil
}

type floatConverter struct {
	t reflect.Type
}

func (c floatConverter) ToScript(_ *Engine, rv reflect.Value) (script.Value, error) {
	return script.Number(rv.Float()), nil
}

func (c floatConverter) FromScript(_ *Engine, v script.Value) (reflect.Value, error) {
	var f float64
	switch {
	case v.IsNumber():
		f = v.Number()
	case v.IsBigInt():
		f, _ = new(big.Float).SetInt(v.BigInt()).Float64()
	default:
		return reflect.Value{}, conversionErrorf("Expected number value, got %s", v.Kind())
	}
	out := reflect.New(c.t).Elem()
	out.SetFloat(f)
	return out, nil
}

type stringConverter struct {
	t reflect.Type
}

func (c stringConverter) ToScript(_ *Engine, rv reflect.Value) (script.Value, error) {
	return script.String(rv.String()), nil
}

func (c stringConverter) FromScript(_ *Engine, v script.Value) (reflect.Value, error) {
	if !v.IsString() {
		return reflect.Value{}, conversionErrorf("Expected string value, got %s", v.Kind())
	}
	out := reflect.New(c.t).Elem()
	out.SetString(v.Str())
	return out, nil
}

// enumConverter maps a registered enumeration to its underlying integral
// value. There is no name-based round trip.
type enumConverter struct {
	t    reflect.Type
	meta *EnumMeta
}

func (c enumConverter) ToScript(_ *Engine, rv reflect.Value) (script.Value, error) {
	if isUnsignedKind(c.t.Kind()) {
		return script.Number(float64(rv.Uint())), nil
	}
	return script.Number(float64(rv.Int())), nil
}

func (c enumConverter) FromScript(_ *Engine, v script.Value) (reflect.Value, error) {
	if !v.IsNumber() {
		return reflect.Value{}, conversionErrorf("Expected number value for enum %s, got %s", c.meta.name, v.Kind())
	}
	out := reflect.New(c.t).Elem()
	if isUnsignedKind(c.t.Kind()) {
		out.SetUint(numberToUint64(v.Number()))
	} else {
		out.SetInt(numberToInt64(v.Number()))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Container converters
// ---------------------------------------------------------------------------

// optionalConverter handles pointers to unregistered types: nil encodes to
// null, and null or undefined decode to nil.
type optionalConverter struct {
	t reflect.Type
}

func (c optionalConverter) ToScript(e *Engine, rv reflect.Value) (script.Value, error) {
	if rv.IsNil() {
		return script.Null(), nil
	}
	return e.toScriptValue(rv.Elem(), convOpts{})
}

func (c optionalConverter) FromScript(e *Engine, v script.Value) (reflect.Value, error) {
	if v.IsNullish() {
		return reflect.Zero(c.t), nil
	}
	inner, err := e.fromScriptValue(c.t.Elem(), v)
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(c.t.Elem())
	p.Elem().Set(inner)
	return p, nil
}

// bytesConverter treats byte slices as strings in both directions.
type bytesConverter struct {
	t reflect.Type
}

func (c bytesConverter) ToScript(_ *Engine, rv reflect.Value) (script.Value, error) {
	return script.String(string(rv.Bytes())), nil
}

func (c bytesConverter) FromScript(_ *Engine, v script.Value) (reflect.Value, error) {
	if !v.IsString() {
		return reflect.Value{}, conversionErrorf("Expected string value, got %s", v.Kind())
	}
	return reflect.ValueOf([]byte(v.Str())).Convert(c.t), nil
}

type sequenceConverter struct {
	t reflect.Type
}

func (c sequenceConverter) ToScript(e *Engine, rv reflect.Value) (script.Value, error) {
	l := script.NewList()
	for i := 0; i < rv.Len(); i++ {
		x, err := e.toScriptValue(rv.Index(i), convOpts{})
		if err != nil {
			return script.Value{}, err
		}
		l.Append(x)
	}
	return script.ListValue(l), nil
}

func (c sequenceConverter) FromScript(e *Engine, v script.Value) (reflect.Value, error) {
	if !v.IsList() {
		return reflect.Value{}, conversionErrorf("Expected list value, got %s", v.Kind())
	}
	l := v.List()
	out := reflect.MakeSlice(c.t, l.Len(), l.Len())
	for i := 0; i < l.Len(); i++ {
		x, err := e.fromScriptValue(c.t.Elem(), l.At(i))
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(x)
	}
	return out, nil
}

// mappingConverter handles string-keyed maps. Script object iteration order
// is insertion order, so the mapping direction does not preserve any
// particular key order.
type mappingConverter struct {
	t reflect.Type
}

func (c mappingConverter) ToScript(e *Engine, rv reflect.Value) (script.Value, error) {
	obj := script.NewObject()
	iter := rv.MapRange()
	for iter.Next() {
		x, err := e.toScriptValue(iter.Value(), convOpts{})
		if err != nil {
			return script.Value{}, err
		}
		obj.Define(iter.Key().String(), x)
	}
	return script.ObjectValue(obj), nil
}

func (c mappingConverter) FromScript(e *Engine, v script.Value) (reflect.Value, error) {
	if !v.IsObject() {
		return reflect.Value{}, conversionErrorf("Expected object value, got %s", v.Kind())
	}
	obj := v.Object()
	out := reflect.MakeMapWithSize(c.t, obj.Len())
	for _, name := range obj.Names() {
		pv, ok := obj.Get(name)
		if !ok {
			continue
		}
		x, err := e.fromScriptValue(c.t.Elem(), pv)
		if err != nil {
			return reflect.Value{}, err
		}
		key := reflect.ValueOf(name)
		if key.Type() != c.t.Key() {
			key = key.Convert(c.t.Key())
		}
		out.SetMapIndex(key, x)
	}
	return out, nil
}

type pairConverter struct {
	t reflect.Type
}

func (c pairConverter) ToScript(e *Engine, rv reflect.Value) (script.Value, error) {
	first, err := e.toScriptValue(rv.Field(0), convOpts{})
	if err != nil {
		return script.Value{}, err
	}
	second, err := e.toScriptValue(rv.Field(1), convOpts{})
	if err != nil {
		return script.Value{}, err
	}
	return script.ListValue(script.NewList(first, second)), nil
}

func (c pairConverter) FromScript(e *Engine, v script.Value) (reflect.Value, error) {
	if !v.IsList() || v.List().Len() != 2 {
		return reflect.Value{}, conversionErrorf("Invalid argument type, expected list with 2 elements")
	}
	l := v.List()
	out := reflect.New(c.t).Elem()
	for i := 0; i < 2; i++ {
		x, err := e.fromScriptValue(c.t.Field(i).Type, l.At(i))
		if err != nil {
			return reflect.Value{}, err
		}
		out.Field(i).Set(x)
	}
	return out, nil
}

// unionConverter handles Union2 and Union3. Field 0 is the tag; fields 1..n
// are the alternatives in declared order.
type unionConverter struct {
	t    reflect.Type
	alts int
}

func (c unionConverter) ToScript(e *Engine, rv reflect.Value) (script.Value, error) {
	idx := int(rv.Field(0).Int())
	if idx < 1 || idx > c.alts {
		// The zero union counts as holding the first alternative.
		idx = 1
	}
	return e.toScriptValue(rv.Field(idx), convOpts{})
}

func (c unionConverter) FromScript(e *Engine, v script.Value) (reflect.Value, error) {
	out := reflect.New(c.t).Elem()
	for i := 1; i <= c.alts; i++ {
		x, err := e.fromScriptValue(c.t.Field(i).Type, v)
		if err != nil {
			continue
		}
		out.Field(0).SetInt(int64(i))
		out.Field(i).Set(x)
		return out, nil
	}
	return reflect.Value{}, conversionErrorf("Cannot convert value to union; no matching type found.")
}

type unitConverter struct{}

func (unitConverter) ToScript(_ *Engine, _ reflect.Value) (script.Value, error) {
	return script.Null(), nil
}

func (unitConverter) FromScript(_ *Engine, v script.Value) (reflect.Value, error) {
	if !v.IsNullish() {
		return reflect.Value{}, conversionErrorf("Expected null or undefined for unit value, got %s", v.Kind())
	}
	return reflect.ValueOf(Unit{}), nil
}

// ---------------------------------------------------------------------------
// Function converter
// ---------------------------------------------------------------------------

// funcConverter bridges callables in both directions. A Go function becomes
// a script function through the dispatcher; a script function becomes a Go
// function that enters the engine on call, converts its arguments, and maps
// the script result into the Go signature.
type funcConverter struct {
	t reflect.Type
}

func (c funcConverter) ToScript(e *Engine, rv reflect.Value) (script.Value, error) {
	if rv.IsNil() {
		return script.Null(), nil
	}
	call, err := newCallable("", rv, Automatic)
	if err != nil {
		return script.Value{}, err
	}
	return script.FunctionValue(e.makeScriptFunction("", []*Callable{call})), nil
}

func (c funcConverter) FromScript(e *Engine, v script.Value) (reflect.Value, error) {
	if !v.IsFunction() {
		return reflect.Value{}, conversionErrorf("expected function")
	}
	if err := checkFuncShape(c.t); err != nil {
		return reflect.Value{}, err
	}
	fn := v.Function()
	t := c.t
	return reflect.MakeFunc(t, func(args []reflect.Value) []reflect.Value {
		exit := e.Enter()
		defer exit()

		svals := make([]script.Value, len(args))
		for i, a := range args {
			sv, err := e.toScriptValue(a, convOpts{})
			if err != nil {
				return failCall(t, err)
			}
			svals[i] = sv
		}
		res, err := fn.Call(script.Undefined(), svals)
		if err != nil {
			return failCall(t, err)
		}

		out := make([]reflect.Value, t.NumOut())
		n := t.NumOut()
		hasErr := n > 0 && t.Out(n-1) == errorType
		if hasErr {
			out[n-1] = reflect.Zero(errorType)
		}
		if (hasErr && n > 1) || (!hasErr && n == 1) {
			rv, err := e.fromScriptValue(t.Out(0), res)
			if err != nil {
				return failCall(t, err)
			}
			out[0] = rv
		}
		return out
	}), nil
}

// checkFuncShape accepts the same signatures the dispatcher binds: no
// variadics, at most one value result, error only in last position.
func checkFuncShape(t reflect.Type) error {
	if t.IsVariadic() {
		return conversionErrorf("Cannot bridge variadic function %s", t)
	}
	n := t.NumOut()
	for i := 0; i < n; i++ {
		if t.Out(i) == errorType && i != n-1 {
			return conversionErrorf("Cannot bridge function %s; error must be the last result", t)
		}
	}
	values := n
	if n > 0 && t.Out(n-1) == errorType {
		values--
	}
	if values > 1 {
		return conversionErrorf("Cannot bridge function %s; at most one value result is supported", t)
	}
	return nil
}

// failCall delivers err through the signature's error result when there is
// one, and otherwise panics with the bridge error so the dispatcher above
// the call surfaces it.
func failCall(t reflect.Type, err error) []reflect.Value {
	n := t.NumOut()
	if n > 0 && t.Out(n-1) == errorType {
		out := make([]reflect.Value, n)
		for i := 0; i < n-1; i++ {
			out[i] = reflect.Zero(t.Out(i))
		}
		ev := reflect.New(errorType).Elem()
		ev.Set(reflect.ValueOf(err))
		out[n-1] = ev
		return out
	}
	panic(AsScriptError(err))
}

// ---------------------------------------------------------------------------
// Numeric narrowing
// ---------------------------------------------------------------------------

var two64 = new(big.Int).Lsh(big.NewInt(1), 64)

// numberToInt64 truncates toward zero, saturating at the int64 range. NaN
// becomes zero.
func numberToInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// numberToUint64 truncates toward zero, saturating at the uint64 range.
// Negative inputs wrap the way integer conversion does.
func numberToUint64(f float64) uint64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxUint64:
		return math.MaxUint64
	case f < 0:
		return uint64(numberToInt64(f))
	}
	return uint64(f)
}

// truncateBigInt reduces a big integer to its low 64 bits, two's complement.
func truncateBigInt(b *big.Int) uint64 {
	if b.IsUint64() {
		return b.Uint64()
	}
	if b.IsInt64() {
		return uint64(b.Int64())
	}
	var m big.Int
	m.Mod(b, two64)
	return m.Uint64()
}

func isUnsignedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}
