package bridge

import (
	"reflect"

	"github.com/chazu/tether/script"
)

// ---------------------------------------------------------------------------
// Callable
// ---------------------------------------------------------------------------

// Callable is one native function bound for script dispatch: the reflected
// function, its parameter types, and the ownership policy applied to its
// result. Methods carry their receiver as params[0].
type Callable struct {
	name        string
	fn          reflect.Value
	params      []reflect.Type
	policy      Policy
	hasRecv     bool
	constRecv   bool
	constResult bool
}

// newCallable validates and wraps a free function. Accepted result shapes
// are (), (T), (error) and (T, error).
func newCallable(name string, fn reflect.Value, policy Policy) (*Callable, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, registrationErrorf("bound callback must be a function, got %s", fn.Kind())
	}
	t := fn.Type()
	if t.IsVariadic() {
		return nil, registrationErrorf("variadic callbacks are not supported")
	}
	values := 0
	for i := 0; i < t.NumOut(); i++ {
		if t.Out(i) == errorType {
			if i != t.NumOut()-1 {
				return nil, registrationErrorf("error must be the last return value")
			}
			continue
		}
		values++
	}
	if values > 1 {
		return nil, registrationErrorf("callback may return at most one value")
	}
	params := make([]reflect.Type, t.NumIn())
	for i := range params {
		params[i] = t.In(i)
	}
	return &Callable{name: name, fn: fn, params: params, policy: policy}, nil
}

// newMethodCallable wraps a function whose first parameter is the receiver
// pointer. constRecv marks methods invocable on const instances; their
// receiver unwrap skips the mutability check.
func newMethodCallable(name string, fn reflect.Value, policy Policy, constRecv bool) (*Callable, error) {
	c, err := newCallable(name, fn, policy)
	if err != nil {
		return nil, err
	}
	if len(c.params) == 0 || c.params[0].Kind() != reflect.Pointer || c.params[0].Elem().Kind() != reflect.Struct {
		return nil, registrationErrorf("method callback must take the receiver pointer as its first parameter")
	}
	c.hasRecv = true
	c.constRecv = constRecv
	return c, nil
}

// arity is the script-visible parameter count, excluding the receiver.
func (c *Callable) arity() int {
	if c.hasRecv {
		return len(c.params) - 1
	}
	return len(c.params)
}

// bind converts the receiver and all arguments without calling anything, so
// overload trials never leave partial effects. It returns the prepared call
// frame and the receiver instance, if any.
func (c *Callable) bind(e *Engine, recv script.Value, args []script.Value) ([]reflect.Value, *NativeInstance, error) {
	if len(args) != c.arity() {
		return nil, nil, conversionErrorf("argument count mismatch")
	}

	in := make([]reflect.Value, 0, len(c.params))
	var recvInst *NativeInstance
	start := 0
	if c.hasRecv {
		if !recv.IsObject() {
			return nil, nil, conversionErrorf("Not a native instance")
		}
		inst, ok := e.instanceOf(recv.Object())
		if !ok {
			return nil, nil, conversionErrorf("Not a native instance")
		}
		p, err := inst.unwrap(c.params[0].Elem(), !c.constRecv)
		if err != nil {
			return nil, nil, err
		}
		in = append(in, reflect.ValueOf(p))
		recvInst = inst
		start = 1
	}
	for i := start; i < len(c.params); i++ {
		av, err := e.fromScriptValue(c.params[i], args[i-start])
		if err != nil {
			return nil, nil, err
		}
		in = append(in, av)
	}
	return in, recvInst, nil
}

// complete runs the bound call frame and converts the result. The result
// inherits const when a reference-family policy exposes the internals of a
// const receiver.
func (c *Callable) complete(e *Engine, recvInst *NativeInstance, recvObj *script.Object, in []reflect.Value) (script.Value, error) {
	rets, err := c.call(in)
	if err != nil {
		return script.Value{}, err
	}

	t := c.fn.Type()
	n := t.NumOut()
	if n > 0 && t.Out(n-1) == errorType {
		if ev := rets[n-1]; !ev.IsNil() {
			return script.Value{}, ev.Interface().(error)
		}
		rets = rets[:n-1]
	}
	if len(rets) == 0 {
		return script.Undefined(), nil
	}

	o := convOpts{policy: c.policy, parent: recvObj, constant: c.constResult}
	if recvInst != nil && recvInst.IsConst() && (c.policy == Reference || c.policy == ReferenceInternal) {
		// A reference into a const receiver stays const.
		o.constant = true
	}
	return e.toScriptValue(rets[0], o)
}

// call invokes the reflected function, turning bridge-error panics from
// wrapped script callbacks back into ordinary errors.
func (c *Callable) call(in []reflect.Value) (rets []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if be, ok := r.(*Error); ok {
				err = be
				return
			}
			panic(r)
		}
	}()
	return c.fn.Call(in), nil
}

// invoke is bind followed by complete, for single-candidate paths where
// conversion errors should surface as themselves.
func (c *Callable) invoke(e *Engine, recv script.Value, args []script.Value) (script.Value, error) {
	in, recvInst, err := c.bind(e, recv, args)
	if err != nil {
		return script.Value{}, err
	}
	return c.complete(e, recvInst, recv.Object(), in)
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// makeScriptFunction builds the script-callable wrapper over one or more
// candidates sharing a name. A single candidate reports its own conversion
// failures; multiple candidates are tried in declaration order and a joint
// failure collapses into one error.
func (e *Engine) makeScriptFunction(name string, cands []*Callable) *script.Function {
	arity := script.ArityAny
	if len(cands) > 0 {
		arity = cands[0].arity()
		for _, c := range cands[1:] {
			if c.arity() != arity {
				arity = script.ArityAny
				break
			}
		}
	}

	return script.NewFunction(name, arity, func(recv script.Value, args []script.Value) (script.Value, error) {
		if len(cands) == 1 {
			return cands[0].invoke(e, recv, args)
		}
		for _, c := range cands {
			in, recvInst, err := c.bind(e, recv, args)
			if err != nil {
				continue
			}
			return c.complete(e, recvInst, recv.Object(), in)
		}
		return script.Value{}, conversionErrorf("no overload found")
	})
}
