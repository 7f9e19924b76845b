package bridge

import (
	"reflect"
)

// ---------------------------------------------------------------------------
// Bind options
// ---------------------------------------------------------------------------

type bindOpts struct {
	policy      Policy
	constResult bool
}

// BindOption adjusts how one bound callable returns its result.
type BindOption func(*bindOpts)

// WithReturnPolicy sets the ownership policy applied to the callable's
// result when it is a registered class value. The default is Automatic.
func WithReturnPolicy(p Policy) BindOption {
	return func(o *bindOpts) { o.policy = p }
}

// ConstResult marks the callable's result as a read-only view.
func ConstResult() BindOption {
	return func(o *bindOpts) { o.constResult = true }
}

func applyBindOpts(opts []BindOption) bindOpts {
	var o bindOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ---------------------------------------------------------------------------
// Class builder
// ---------------------------------------------------------------------------

// ClassBuilder assembles the registration record for one native class. All
// methods record the first error and turn the rest of the chain into no-ops;
// Build reports it.
//
//	cls, err := bridge.DefineClass[Dog]("pets.Dog").
//		Constructor(NewDog).
//		Method("fetch", (*Dog).Fetch).
//		Property("name", func(d *Dog) string { return d.Name }, nil).
//		Build(engine)
type ClassBuilder[T any] struct {
	name  string
	rtype reflect.Type
	err   error

	baseType reflect.Type
	upcast   Upcaster

	ctors     []*Callable
	copyClone CloneFn
	moveClone CloneFn
	equals    EqualsFn
	finalize  FinalizeFn
	noCopy    bool

	members *memberTable
	statics *memberTable
}

// DefineClass starts a class registration for the native type T under the
// given hierarchical script name.
func DefineClass[T any](name string) *ClassBuilder[T] {
	rtype := reflect.TypeOf((*T)(nil)).Elem()
	b := &ClassBuilder[T]{
		name:    name,
		rtype:   rtype,
		members: newMemberTable(),
		statics: newMemberTable(),
	}
	if rtype.Kind() != reflect.Struct {
		b.err = registrationErrorf("class type must be a struct, got %s", rtype)
	}
	return b
}

// Extends declares B as the base class of the class being built. upcast maps
// a derived pointer to its embedded base sub-object; the address is allowed
// to change. B must already be registered when Build runs.
func Extends[T, B any](b *ClassBuilder[T], upcast func(*T) *B) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	if upcast == nil {
		b.err = registrationErrorf("base upcaster for %s cannot be nil", b.name)
		return b
	}
	b.baseType = reflect.TypeOf((*B)(nil)).Elem()
	b.upcast = func(ptr any) any { return upcast(ptr.(*T)) }
	return b
}

// Constructor adds a construction candidate. fn must return *T or (*T, error);
// multiple constructors overload on arity and argument types in declaration
// order.
func (b *ClassBuilder[T]) Constructor(fn any) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	c, err := newCallable(b.name, reflect.ValueOf(fn), TakeOwnership)
	if err != nil {
		b.err = err
		return b
	}
	t := c.fn.Type()
	if t.NumOut() == 0 || t.Out(0) != reflect.PointerTo(b.rtype) {
		b.err = registrationErrorf("constructor for %s must return *%s", b.name, b.rtype)
		return b
	}
	b.ctors = append(b.ctors, c)
	return b
}

// Method binds an instance method. fn takes the receiver pointer first:
// func(*T, args...) results. Repeated names accumulate overloads tried in
// declaration order. The receiver is mutable; use ConstMethod for methods
// safe on const instances.
func (b *ClassBuilder[T]) Method(name string, fn any, opts ...BindOption) *ClassBuilder[T] {
	return b.method(name, fn, false, opts)
}

// ConstMethod binds an instance method invocable on const instances.
func (b *ClassBuilder[T]) ConstMethod(name string, fn any, opts ...BindOption) *ClassBuilder[T] {
	return b.method(name, fn, true, opts)
}

func (b *ClassBuilder[T]) method(name string, fn any, constRecv bool, opts []BindOption) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	o := applyBindOpts(opts)
	c, err := newMethodCallable(name, reflect.ValueOf(fn), o.policy, constRecv)
	if err != nil {
		b.err = err
		return b
	}
	c.constResult = o.constResult
	if c.params[0] != reflect.PointerTo(b.rtype) {
		b.err = registrationErrorf("method %s.%s receiver must be *%s", b.name, name, b.rtype)
		return b
	}
	b.members.addMethod(name, c)
	return b
}

// Static binds a function on the constructor object rather than instances.
func (b *ClassBuilder[T]) Static(name string, fn any, opts ...BindOption) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	o := applyBindOpts(opts)
	c, err := newCallable(name, reflect.ValueOf(fn), o.policy)
	if err != nil {
		b.err = err
		return b
	}
	c.constResult = o.constResult
	b.statics.addMethod(name, c)
	return b
}

// Property binds an instance property. getter takes the receiver pointer and
// returns the value; setter takes the receiver pointer and the new value. A
// nil setter makes the property read-only. Getters run with a const
// receiver, so they work on const instances; setters always need a mutable
// one.
func (b *ClassBuilder[T]) Property(name string, getter, setter any, opts ...BindOption) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	if getter == nil {
		b.err = registrationErrorf("property %s.%s needs a getter", b.name, name)
		return b
	}
	o := applyBindOpts(opts)
	gc, err := newMethodCallable(name, reflect.ValueOf(getter), o.policy, true)
	if err != nil {
		b.err = err
		return b
	}
	gc.constResult = o.constResult
	var sc *Callable
	if setter != nil {
		sc, err = newMethodCallable(name, reflect.ValueOf(setter), Automatic, false)
		if err != nil {
			b.err = err
			return b
		}
	}
	b.members.setProperty(name, gc, sc, o.constResult)
	return b
}

// StaticProperty binds a property on the constructor object. getter takes no
// receiver; a nil setter makes it read-only.
func (b *ClassBuilder[T]) StaticProperty(name string, getter, setter any, opts ...BindOption) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	if getter == nil {
		b.err = registrationErrorf("property %s.%s needs a getter", b.name, name)
		return b
	}
	o := applyBindOpts(opts)
	gc, err := newCallable(name, reflect.ValueOf(getter), o.policy)
	if err != nil {
		b.err = err
		return b
	}
	gc.constResult = o.constResult
	var sc *Callable
	if setter != nil {
		sc, err = newCallable(name, reflect.ValueOf(setter), Automatic)
		if err != nil {
			b.err = err
			return b
		}
	}
	b.statics.setProperty(name, gc, sc, o.constResult)
	return b
}

// Const binds a constant on the constructor object. The value converts once,
// at first access.
func (b *ClassBuilder[T]) Const(name string, value any) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	b.statics.setConst(name, value)
	return b
}

// CopyWith replaces the default shallow copy hook. Types that keep interior
// references, such as a DynamicSelf back-reference, must re-point them here.
func (b *ClassBuilder[T]) CopyWith(fn func(*T) *T) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	b.copyClone = func(ptr any) any { return fn(ptr.(*T)) }
	return b
}

// MoveWith installs a move hook used by the Move policy. Without one, Move
// falls back to the copy hook.
func (b *ClassBuilder[T]) MoveWith(fn func(*T) *T) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	b.moveClone = func(ptr any) any { return fn(ptr.(*T)) }
	return b
}

// NoCopy drops the copy hook entirely: Copy-policy conversions and Clone
// calls on instances of this class fail instead of slicing or aliasing.
func (b *ClassBuilder[T]) NoCopy() *ClassBuilder[T] {
	b.noCopy = true
	return b
}

// Equals installs the comparison used by the script-visible $equals.
func (b *ClassBuilder[T]) Equals(fn func(a, b *T) bool) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	b.equals = func(x, y any) bool { return fn(x.(*T), y.(*T)) }
	return b
}

// Finalize installs the teardown hook run when an owning proxy is collected.
func (b *ClassBuilder[T]) Finalize(fn func(*T)) *ClassBuilder[T] {
	if b.err != nil {
		return b
	}
	b.finalize = func(ptr any) { fn(ptr.(*T)) }
	return b
}

// Build validates the accumulated definition and registers the class.
func (b *ClassBuilder[T]) Build(e *Engine) (*Class, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := ValidateClassName(b.name); err != nil {
		return nil, err
	}

	copyClone := b.copyClone
	if copyClone == nil && !b.noCopy {
		copyClone = func(ptr any) any {
			c := *ptr.(*T)
			return &c
		}
	}
	if b.noCopy {
		copyClone = nil
	}

	meta := &ClassMeta{
		name:          b.name,
		rtype:         b.rtype,
		upcast:        b.upcast,
		instanceSize:  b.rtype.Size(),
		copyClone:     copyClone,
		moveClone:     b.moveClone,
		equals:        b.equals,
		finalize:      b.finalize,
		constructors:  b.ctors,
		constructible: len(b.ctors) > 0,
		statics:       b.statics,
		members:       b.members,
	}
	return e.installClass(meta, b.baseType)
}

// ---------------------------------------------------------------------------
// Enum builder
// ---------------------------------------------------------------------------

type integral interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// EnumBuilder assembles the registration record for one native enumeration.
type EnumBuilder[T integral] struct {
	name   string
	names  []string
	values map[string]int64
}

// DefineEnum starts an enum registration for the named integer type T.
func DefineEnum[T integral](name string) *EnumBuilder[T] {
	return &EnumBuilder[T]{name: name, values: make(map[string]int64)}
}

// Value adds one entry. Re-adding a name replaces its value but keeps its
// declaration position.
func (b *EnumBuilder[T]) Value(name string, v T) *EnumBuilder[T] {
	if _, ok := b.values[name]; !ok {
		b.names = append(b.names, name)
	}
	b.values[name] = int64(v)
	return b
}

// Build validates the accumulated definition and registers the enum.
func (b *EnumBuilder[T]) Build(e *Engine) (*EnumMeta, error) {
	if err := ValidateClassName(b.name); err != nil {
		return nil, err
	}
	meta := &EnumMeta{
		name:   b.name,
		rtype:  reflect.TypeOf((*T)(nil)).Elem(),
		names:  b.names,
		values: b.values,
	}
	if err := e.installEnum(meta); err != nil {
		return nil, err
	}
	return meta, nil
}
