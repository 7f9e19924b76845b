package bridge

import (
	"math/big"
	"reflect"
	"strings"

	"github.com/chazu/tether/script"
)

// ---------------------------------------------------------------------------
// Converter interface and conversion options
// ---------------------------------------------------------------------------

// Converter translates one native type to and from script values. Converters
// are synthesized per reflect.Type on first use and cached on the engine;
// they must be stateless and safe for concurrent use.
type Converter interface {
	ToScript(e *Engine, rv reflect.Value) (script.Value, error)
	FromScript(e *Engine, v script.Value) (reflect.Value, error)
}

type convOpts struct {
	policy   Policy
	parent   *script.Object
	constant bool
}

// ToScriptOption customizes how a native value crosses into script space.
// Options only affect registered-class values; plain value conversions
// ignore them.
type ToScriptOption func(*convOpts)

// WithPolicy selects the ownership policy for a class-bound conversion.
func WithPolicy(p Policy) ToScriptOption {
	return func(o *convOpts) { o.policy = p }
}

// WithParent names the proxy that must outlive the converted value. Required
// by the ReferenceInternal policy.
func WithParent(parent *script.Object) ToScriptOption {
	return func(o *convOpts) { o.parent = parent }
}

// AsConst marks the resulting instance as a read-only view.
func AsConst() ToScriptOption {
	return func(o *convOpts) { o.constant = true }
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// ToScript converts a native value to a script value. Registered classes
// route through the ownership-policy engine; everything else goes through
// the built-in converter table.
func (e *Engine) ToScript(v any, opts ...ToScriptOption) (script.Value, error) {
	if err := e.requireScope(); err != nil {
		return script.Value{}, err
	}
	var o convOpts
	for _, opt := range opts {
		opt(&o)
	}
	if v == nil {
		return script.Null(), nil
	}
	return e.toScriptValue(reflect.ValueOf(v), o)
}

// FromScript converts a script value to the native type T.
func FromScript[T any](e *Engine, v script.Value) (T, error) {
	var zero T
	if err := e.requireScope(); err != nil {
		return zero, err
	}
	rv, err := e.fromScriptValue(reflect.TypeOf(&zero).Elem(), v)
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

// ---------------------------------------------------------------------------
// Native -> script
// ---------------------------------------------------------------------------

func (e *Engine) toScriptValue(rv reflect.Value, o convOpts) (script.Value, error) {
	if !rv.IsValid() {
		return script.Null(), nil
	}

	// Script types pass through unconverted.
	switch rv.Type() {
	case scriptValueType:
		return rv.Interface().(script.Value), nil
	case scriptObjectType:
		if obj, _ := rv.Interface().(*script.Object); obj != nil {
			return script.ObjectValue(obj), nil
		}
		return script.Null(), nil
	case scriptListType:
		if l, _ := rv.Interface().(*script.List); l != nil {
			return script.ListValue(l), nil
		}
		return script.Null(), nil
	case scriptFunctionType:
		if f, _ := rv.Interface().(*script.Function); f != nil {
			return script.FunctionValue(f), nil
		}
		return script.Null(), nil
	}

	// Interface sources convert whatever they hold.
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return script.Null(), nil
		}
		return e.toScriptValue(rv.Elem(), o)
	}

	// Registered classes and pointers to them go through the ownership
	// policy engine, not the converter table.
	if e.classMetaByType(rv.Type()) != nil {
		return e.buildClassValue(rv, o.policy, o.parent, o.constant)
	}
	if rv.Kind() == reflect.Pointer && e.classMetaByType(rv.Type().Elem()) != nil {
		return e.buildClassValue(rv, o.policy, o.parent, o.constant)
	}

	conv, err := e.converterFor(rv.Type())
	if err != nil {
		return script.Value{}, err
	}
	return conv.ToScript(e, rv)
}

// ---------------------------------------------------------------------------
// Script -> native
// ---------------------------------------------------------------------------

func (e *Engine) fromScriptValue(t reflect.Type, v script.Value) (reflect.Value, error) {
	// Script types pass through unconverted.
	switch t {
	case scriptValueType:
		return reflect.ValueOf(v), nil
	case scriptObjectType:
		if v.IsObject() {
			return reflect.ValueOf(v.Object()), nil
		}
		return reflect.Value{}, conversionErrorf("Expected object value, got %s", v.Kind())
	case scriptListType:
		if v.IsList() {
			return reflect.ValueOf(v.List()), nil
		}
		return reflect.Value{}, conversionErrorf("Expected list value, got %s", v.Kind())
	case scriptFunctionType:
		if v.IsFunction() {
			return reflect.ValueOf(v.Function()), nil
		}
		return reflect.Value{}, conversionErrorf("expected function")
	}

	// A registered class requested by value copies out of the proxy.
	if m := e.classMetaByType(t); m != nil {
		p, err := e.unwrapProxy(v, m, false)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		out.Set(reflect.ValueOf(p).Elem())
		return out, nil
	}

	// A pointer to a registered class binds the proxy's own storage.
	if t.Kind() == reflect.Pointer {
		if m := e.classMetaByType(t.Elem()); m != nil {
			p, err := e.unwrapProxy(v, m, true)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(p), nil
		}
	}

	if t.Kind() == reflect.Interface {
		return e.interfaceFromScript(t, v)
	}

	conv, err := e.converterFor(t)
	if err != nil {
		return reflect.Value{}, err
	}
	return conv.FromScript(e, v)
}

// unwrapProxy extracts the native pointer behind a proxy object, adjusted to
// the class identified by want.
func (e *Engine) unwrapProxy(v script.Value, want *ClassMeta, mutable bool) (any, error) {
	if !v.IsObject() {
		return nil, conversionErrorf("Not a native instance")
	}
	inst, ok := e.instanceOf(v.Object())
	if !ok {
		return nil, conversionErrorf("Not a native instance")
	}
	return inst.unwrap(want.rtype, mutable)
}

// interfaceFromScript fills an interface-typed request. Proxies satisfy any
// interface their native value implements, at the dynamic type when one is
// known. Const is not enforced here: Go interfaces cannot express read-only
// views, so a const instance may still flow into an interface parameter.
func (e *Engine) interfaceFromScript(t reflect.Type, v script.Value) (reflect.Value, error) {
	if t == anyType {
		x, err := e.anyFromScript(v)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		if x != nil {
			out.Set(reflect.ValueOf(x))
		}
		return out, nil
	}

	if v.IsObject() {
		if inst, ok := e.instanceOf(v.Object()); ok {
			p, err := inst.unwrap(inst.rtype, false)
			if err != nil {
				return reflect.Value{}, err
			}
			if dp, _ := dynamicIdentity(inst.rtype, p); reflect.TypeOf(dp).Implements(t) {
				p = dp
			}
			if reflect.TypeOf(p).Implements(t) {
				out := reflect.New(t).Elem()
				out.Set(reflect.ValueOf(p))
				return out, nil
			}
		}
	}
	return reflect.Value{}, conversionErrorf("Cannot convert %s value to %s", v.Kind(), t)
}

// anyFromScript is the permissive decode used for interface{} requests: the
// script value picks the Go type.
func (e *Engine) anyFromScript(v script.Value) (any, error) {
	switch v.Kind() {
	case script.KindUndefined, script.KindNull:
		return nil, nil
	case script.KindBool:
		return v.Bool(), nil
	case script.KindNumber:
		return v.Number(), nil
	case script.KindBigInt:
		if b := v.BigInt(); b.IsInt64() {
			return b.Int64(), nil
		}
		return new(big.Int).Set(v.BigInt()), nil
	case script.KindString:
		return v.Str(), nil
	case script.KindList:
		l := v.List()
		items := make([]any, l.Len())
		for i := range items {
			x, err := e.anyFromScript(l.At(i))
			if err != nil {
				return nil, err
			}
			items[i] = x
		}
		return items, nil
	case script.KindObject:
		obj := v.Object()
		if inst, ok := e.instanceOf(obj); ok {
			return inst.unwrap(inst.rtype, false)
		}
		out := make(map[string]any, obj.Len())
		for _, name := range obj.Names() {
			pv, ok := obj.Get(name)
			if !ok {
				continue
			}
			x, err := e.anyFromScript(pv)
			if err != nil {
				return nil, err
			}
			out[name] = x
		}
		return out, nil
	case script.KindFunction:
		return v.Function(), nil
	default:
		return nil, conversionErrorf("Cannot convert %s value", v.Kind())
	}
}

// ---------------------------------------------------------------------------
// Converter synthesis
// ---------------------------------------------------------------------------

// converterFor returns the converter for t, synthesizing and caching it on
// first use. Registration invalidates the cache, since registering a class
// or enum changes how its type converts.
func (e *Engine) converterFor(t reflect.Type) (Converter, error) {
	e.convMu.RLock()
	c, ok := e.convCache[t]
	e.convMu.RUnlock()
	if ok {
		return c, nil
	}
	c, err := e.newConverter(t)
	if err != nil {
		return nil, err
	}
	e.convMu.Lock()
	e.convCache[t] = c
	e.convMu.Unlock()
	return c, nil
}

func (e *Engine) newConverter(t reflect.Type) (Converter, error) {
	if m := e.enumMetaByType(t); m != nil {
		return enumConverter{t: t, meta: m}, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return boolConverter{t: t}, nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return intConverter{t: t}, nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return intConverter{t: t, unsigned: true}, nil
	case reflect.Int, reflect.Int64:
		// 64-bit integral types travel as big integers so values beyond
		// 53 bits survive the trip.
		return intConverter{t: t, wide: true}, nil
	case reflect.Uint, reflect.Uint64:
		return intConverter{t: t, unsigned: true, wide: true}, nil
	case reflect.Float32, reflect.Float64:
		return floatConverter{t: t}, nil
	case reflect.String:
		return stringConverter{t: t}, nil
	case reflect.Pointer:
		return optionalConverter{t: t}, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return bytesConverter{t: t}, nil
		}
		return sequenceConverter{t: t}, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, conversionErrorf("Cannot convert mapping; key type %s is not a string", t.Key())
		}
		return mappingConverter{t: t}, nil
	case reflect.Func:
		return funcConverter{t: t}, nil
	case reflect.Struct:
		if t.PkgPath() == bridgePkgPath {
			switch genericBase(t.Name()) {
			case "Pair":
				return pairConverter{t: t}, nil
			case "Union2":
				return unionConverter{t: t, alts: 2}, nil
			case "Union3":
				return unionConverter{t: t, alts: 3}, nil
			case "Unit":
				return unitConverter{}, nil
			}
		}
		return nil, ownershipErrorf("Class not registered: %s", t)
	default:
		return nil, conversionErrorf("No converter for native type %s", t)
	}
}

// genericBase strips the instantiation part of a generic type name:
// "Pair[int,string]" becomes "Pair".
func genericBase(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

// ---------------------------------------------------------------------------
// Reflect type singletons
// ---------------------------------------------------------------------------

var (
	scriptValueType    = reflect.TypeOf(script.Value{})
	scriptObjectType   = reflect.TypeOf((*script.Object)(nil))
	scriptListType     = reflect.TypeOf((*script.List)(nil))
	scriptFunctionType = reflect.TypeOf((*script.Function)(nil))
	errorType          = reflect.TypeOf((*error)(nil)).Elem()
	anyType            = reflect.TypeOf((*any)(nil)).Elem()
	bridgePkgPath      = reflect.TypeOf(Unit{}).PkgPath()
)
