package bridge

import (
	"reflect"
	"sync"

	"github.com/chazu/tether/script"
)

// Class is the script-facing artifact of one registration: the shared
// prototype carrying instance members and the constructor object carrying
// statics and constants. Every proxy of the class links the prototype, so
// member dispatch is one proto-chain walk.
type Class struct {
	meta      *ClassMeta
	engine    *Engine
	proto     *script.Object
	ctor      *script.Object
	construct *script.Function
}

// Meta returns the class's registration record.
func (c *Class) Meta() *ClassMeta { return c.meta }

// Name returns the hierarchical script-visible name.
func (c *Class) Name() string { return c.meta.name }

// Prototype returns the shared prototype object.
func (c *Class) Prototype() *script.Object { return c.proto }

// Constructor returns the constructor object carrying statics, constants
// and the hidden construction entry point.
func (c *Class) Constructor() *script.Object { return c.ctor }

// New runs the constructor overloads against args and returns the proxy.
func (c *Class) New(args ...script.Value) (script.Value, error) {
	if err := c.engine.requireScope(); err != nil {
		return script.Value{}, err
	}
	if !c.meta.constructible {
		return script.Value{}, accessErrorf("This native class cannot be constructed.")
	}
	return c.construct.Call(script.Undefined(), args)
}

// ---------------------------------------------------------------------------
// Prototype and constructor assembly
// ---------------------------------------------------------------------------

// buildPrototype assembles the prototype carrying instance members. The
// prototype chains to the base class's, so inherited members resolve through
// ordinary script lookup.
func (e *Engine) buildPrototype(meta *ClassMeta, base *Class) *script.Object {
	var proto *script.Object
	if base != nil {
		proto = script.NewObjectWithProto(base.proto)
	} else {
		proto = script.NewObject()
	}
	proto.SetClassName(meta.name)

	meta.members.each(func(m *member) {
		switch m.kind {
		case memberMethod:
			proto.Define(m.name, script.FunctionValue(e.makeScriptFunction(m.name, m.overloads)))
		case memberProperty:
			var get, set *script.Function
			if m.getter != nil {
				get = e.makeScriptFunction(m.name, []*Callable{m.getter})
			}
			if m.setter != nil {
				set = e.makeScriptFunction(m.name, []*Callable{m.setter})
			}
			proto.DefineAccessor(m.name, get, set)
		case memberConst:
			proto.DefineAccessor(m.name, e.lazyConstGetter(m.name, m.constValue), nil)
		}
	})

	proto.Define("$equals", script.FunctionValue(e.makeEqualsFunction(meta)))
	return proto
}

// buildConstructor assembles the constructor object: statics, constants and
// the hidden construction entry point.
func (e *Engine) buildConstructor(cls *Class) *script.Object {
	meta := cls.meta
	ctor := script.NewObject()
	ctor.SetClassName(meta.name)

	if meta.constructible {
		cls.construct = e.makeScriptFunction(meta.name, meta.constructors)
	} else {
		cls.construct = script.NewFunction(meta.name, script.ArityAny, func(script.Value, []script.Value) (script.Value, error) {
			return script.Value{}, accessErrorf("This native class cannot be constructed.")
		})
	}
	ctor.DefineHidden("$construct", script.FunctionValue(cls.construct))
	ctor.DefineHidden("$name", script.String(meta.name))

	meta.statics.each(func(m *member) {
		switch m.kind {
		case memberMethod:
			ctor.Define(m.name, script.FunctionValue(e.makeScriptFunction(m.name, m.overloads)))
		case memberProperty:
			var get, set *script.Function
			if m.getter != nil {
				get = e.makeScriptFunction(m.name, []*Callable{m.getter})
			}
			if m.setter != nil {
				set = e.makeScriptFunction(m.name, []*Callable{m.setter})
			}
			ctor.DefineAccessor(m.name, get, set)
		case memberConst:
			ctor.DefineAccessor(m.name, e.lazyConstGetter(m.name, m.constValue), nil)
		}
	})
	return ctor
}

// lazyConstGetter converts a bound constant on first access, so constants of
// class types can reference classes registered after this one.
func (e *Engine) lazyConstGetter(name string, value any) *script.Function {
	var once sync.Once
	var val script.Value
	var err error
	return script.NewFunction(name, 0, func(script.Value, []script.Value) (script.Value, error) {
		once.Do(func() {
			if value == nil {
				val = script.Null()
				return
			}
			val, err = e.toScriptValue(reflect.ValueOf(value), convOpts{})
		})
		return val, err
	})
}

// makeEqualsFunction builds the script-visible $equals hook. Non-proxy
// arguments and proxies of unrelated classes compare unequal rather than
// erroring; the registered equals callback runs only when both sides cast to
// this class.
func (e *Engine) makeEqualsFunction(meta *ClassMeta) *script.Function {
	return script.NewFunction("$equals", 1, func(recv script.Value, args []script.Value) (script.Value, error) {
		if len(args) != 1 {
			return script.Value{}, conversionErrorf("argument count mismatch")
		}
		if !recv.IsObject() || !args[0].IsObject() {
			return script.Bool(false), nil
		}
		a, okA := e.instanceOf(recv.Object())
		b, okB := e.instanceOf(args[0].Object())
		if !okA || !okB || !a.Live() || !b.Live() {
			return script.Bool(false), nil
		}
		pa, okA := a.Cast(meta.rtype)
		pb, okB := b.Cast(meta.rtype)
		if !okA || !okB {
			return script.Bool(false), nil
		}
		if meta.equals != nil {
			return script.Bool(meta.equals(pa, pb)), nil
		}
		return script.Bool(pa == pb), nil
	})
}
