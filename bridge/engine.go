// Package bridge implements the native half of a script/native bridging
// layer: a class and enum registry keyed by Go type identity, a type-erased
// instance holder with explicit ownership policies, a bidirectional value
// converter, and declaration-order overload dispatch.
//
// Everything hangs off an Engine. Engines are independent handles passed
// explicitly; the package keeps no process-global registry, so embedders and
// tests can run several engines side by side.
package bridge

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/tether/script"
)

// Engine owns one bridging domain: the class and enum registries, the
// converter cache, and the live-instance table.
//
// Locking is split by concern. The registry lock guards registration and
// lookup; the converter cache has its own lock because conversions run far
// more often than registrations; the live table and the collection queue are
// separate so a finalizer enqueueing a payload never contends with
// conversions.
type Engine struct {
	id  string
	log commonlog.Logger

	mu            sync.RWMutex
	classesByName map[string]*Class
	classesByType map[reflect.Type]*ClassMeta
	classList     []*Class
	enumsByName   map[string]*registeredEnum
	enumsByType   map[reflect.Type]*EnumMeta
	enumList      []*registeredEnum
	nextID        uint32

	convMu    sync.RWMutex
	convCache map[reflect.Type]Converter

	instMu     sync.Mutex
	live       map[uint64]*proxyPayload
	nextSerial atomic.Uint64

	collectMu sync.Mutex
	pending   []*proxyPayload

	scopeDepth atomic.Int64
}

type registeredEnum struct {
	meta *EnumMeta
	obj  *script.Object
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		id:            uuid.New().String(),
		log:           commonlog.GetLogger("tether.engine"),
		classesByName: make(map[string]*Class),
		classesByType: make(map[reflect.Type]*ClassMeta),
		enumsByName:   make(map[string]*registeredEnum),
		enumsByType:   make(map[reflect.Type]*EnumMeta),
		convCache:     make(map[reflect.Type]Converter),
		live:          make(map[uint64]*proxyPayload),
	}
}

// ID returns the engine's unique id.
func (e *Engine) ID() string { return e.id }

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// installClass finishes a builder: resolves the base class, assigns the id,
// builds the script-facing prototype and constructor, and publishes the
// class. A failed install leaves the registry untouched.
func (e *Engine) installClass(meta *ClassMeta, baseType reflect.Type) (*Class, error) {
	if err := e.requireScope(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.classesByName[meta.name]; ok {
		return nil, registrationErrorf("Class already registered: %s", meta.name)
	}
	if _, ok := e.classesByType[meta.rtype]; ok {
		return nil, registrationErrorf("Class already registered: %s", meta.name)
	}

	var baseClass *Class
	if baseType != nil {
		baseMeta := e.classesByType[baseType]
		if baseMeta == nil {
			return nil, registrationErrorf("Base class not registered: %s", baseType)
		}
		if !baseMeta.constructible {
			return nil, registrationErrorf("Base class must have a constructor: %s", baseMeta.name)
		}
		meta.base = baseMeta
		baseClass = e.classesByName[baseMeta.name]
	}

	e.nextID++
	meta.id = e.nextID

	cls := &Class{meta: meta, engine: e}
	cls.proto = e.buildPrototype(meta, baseClass)
	cls.ctor = e.buildConstructor(cls)

	e.classesByName[meta.name] = cls
	e.classesByType[meta.rtype] = meta
	e.classList = append(e.classList, cls)
	e.invalidateConverters()

	e.log.Debugf("registered class %s (id %d, %s)", meta.name, meta.id, meta.rtype)
	return cls, nil
}

// installEnum publishes an enum and its script-facing entry object.
func (e *Engine) installEnum(meta *EnumMeta) error {
	if err := e.requireScope(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.enumsByName[meta.name]; ok {
		return registrationErrorf("Enum already registered: %s", meta.name)
	}
	if _, ok := e.enumsByType[meta.rtype]; ok {
		return registrationErrorf("Enum already registered: %s", meta.name)
	}

	e.nextID++
	meta.id = e.nextID

	obj := script.NewObject()
	obj.SetClassName(meta.name)
	obj.DefineHidden("$name", script.String(meta.name))
	meta.Entries(func(name string, v int64) {
		obj.Define(name, script.Number(float64(v)))
	})

	re := &registeredEnum{meta: meta, obj: obj}
	e.enumsByName[meta.name] = re
	e.enumsByType[meta.rtype] = meta
	e.enumList = append(e.enumList, re)
	e.invalidateConverters()

	e.log.Debugf("registered enum %s (id %d, %d entries)", meta.name, meta.id, meta.Len())
	return nil
}

// invalidateConverters drops the synthesized converter cache. Registering a
// class or enum changes how its type converts, and synthesized container
// converters may have captured the old classification.
func (e *Engine) invalidateConverters() {
	e.convMu.Lock()
	clear(e.convCache)
	e.convMu.Unlock()
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

func (e *Engine) classMetaByType(t reflect.Type) *ClassMeta {
	e.mu.RLock()
	m := e.classesByType[t]
	e.mu.RUnlock()
	return m
}

func (e *Engine) enumMetaByType(t reflect.Type) *EnumMeta {
	e.mu.RLock()
	m := e.enumsByType[t]
	e.mu.RUnlock()
	return m
}

func (e *Engine) classByMeta(m *ClassMeta) *Class {
	e.mu.RLock()
	cls := e.classesByName[m.name]
	e.mu.RUnlock()
	return cls
}

// ClassByName returns the registered class under the given hierarchical
// name.
func (e *Engine) ClassByName(name string) (*Class, bool) {
	e.mu.RLock()
	cls, ok := e.classesByName[name]
	e.mu.RUnlock()
	return cls, ok
}

// Classes returns all registered classes in registration order.
func (e *Engine) Classes() []*Class {
	e.mu.RLock()
	out := make([]*Class, len(e.classList))
	copy(out, e.classList)
	e.mu.RUnlock()
	return out
}

// EnumByName returns the registered enum under the given hierarchical name.
func (e *Engine) EnumByName(name string) (*EnumMeta, bool) {
	e.mu.RLock()
	re, ok := e.enumsByName[name]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return re.meta, true
}

// EnumObject returns the script object carrying an enum's entries.
func (e *Engine) EnumObject(name string) (*script.Object, bool) {
	e.mu.RLock()
	re, ok := e.enumsByName[name]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return re.obj, true
}

// Enums returns all registered enums in registration order.
func (e *Engine) Enums() []*EnumMeta {
	e.mu.RLock()
	out := make([]*EnumMeta, len(e.enumList))
	for i, re := range e.enumList {
		out[i] = re.meta
	}
	e.mu.RUnlock()
	return out
}

// ---------------------------------------------------------------------------
// Script-facing operations
// ---------------------------------------------------------------------------

// Construct creates an instance of a registered class from script values,
// dispatching over the constructor overloads in declaration order.
func (e *Engine) Construct(className string, args ...script.Value) (script.Value, error) {
	if err := e.requireScope(); err != nil {
		return script.Value{}, err
	}
	cls, ok := e.ClassByName(className)
	if !ok {
		return script.Value{}, ownershipErrorf("Class not registered: %s", className)
	}
	return cls.New(args...)
}

// NewInstance wraps a hand-built native instance in a proxy of cls without
// running any constructor. Each instance wraps at most once; the returned
// proxy owns the instance's further lifetime.
func (e *Engine) NewInstance(cls *Class, inst *NativeInstance) (script.Value, error) {
	if err := e.requireScope(); err != nil {
		return script.Value{}, err
	}
	if cls == nil || inst == nil {
		return script.Value{}, accessErrorf("Not a native instance")
	}
	if cls.engine != e || inst.meta != cls.meta {
		return script.Value{}, ownershipErrorf("Class not registered: %s", cls.Name())
	}
	if inst.serial != 0 {
		return script.Value{}, ownershipErrorf("Native instance already wrapped")
	}
	return script.ObjectValue(e.wrapInstance(inst)), nil
}

// GetMember reads a member from a proxy: accessors run their getter, plain
// properties and methods come back as values. Missing members read as
// undefined, matching script semantics.
func (e *Engine) GetMember(v script.Value, name string) (script.Value, error) {
	if err := e.requireScope(); err != nil {
		return script.Value{}, err
	}
	obj, err := e.proxyObject(v)
	if err != nil {
		return script.Value{}, err
	}
	prop, _, ok := obj.Lookup(name)
	if !ok {
		return script.Undefined(), nil
	}
	if prop.IsAccessor() {
		g := prop.Getter()
		if g == nil {
			return script.Undefined(), nil
		}
		return g.Call(v, nil)
	}
	return prop.Value(), nil
}

// SetMember writes a member on a proxy. Accessor properties run their
// setter; writing a read-only native property fails; anything else becomes
// an own property of the proxy.
func (e *Engine) SetMember(v script.Value, name string, val script.Value) error {
	if err := e.requireScope(); err != nil {
		return err
	}
	obj, err := e.proxyObject(v)
	if err != nil {
		return err
	}
	if prop, _, ok := obj.Lookup(name); ok && prop.IsAccessor() {
		s := prop.Setter()
		if s == nil {
			return accessErrorf("Cannot write to read-only native property")
		}
		_, err := s.Call(v, []script.Value{val})
		return err
	}
	obj.Set(name, val)
	return nil
}

// Invoke calls a member function on a proxy.
func (e *Engine) Invoke(v script.Value, name string, args ...script.Value) (script.Value, error) {
	fv, err := e.GetMember(v, name)
	if err != nil {
		return script.Value{}, err
	}
	if !fv.IsFunction() {
		return script.Value{}, accessErrorf("Member %s is not a function", name)
	}
	return fv.Function().Call(v, args)
}

// IsInstanceOf reports whether v is a proxy of the named class or one of its
// subclasses.
func (e *Engine) IsInstanceOf(v script.Value, className string) bool {
	cls, ok := e.ClassByName(className)
	if !ok || !v.IsObject() {
		return false
	}
	inst, ok := e.instanceOf(v.Object())
	if !ok {
		return false
	}
	return inst.meta.isaMeta(cls.meta)
}

// InstancePayload returns the native instance behind a proxy.
func (e *Engine) InstancePayload(v script.Value) (*NativeInstance, bool) {
	if !v.IsObject() {
		return nil, false
	}
	return e.instanceOf(v.Object())
}

// BindFunction builds a script function from one or more Go functions
// sharing a name. Multiple functions form an overload set tried in the
// given order.
func (e *Engine) BindFunction(name string, fns ...any) (*script.Function, error) {
	if err := e.requireScope(); err != nil {
		return nil, err
	}
	if len(fns) == 0 {
		return nil, registrationErrorf("BindFunction %s needs at least one function", name)
	}
	cands := make([]*Callable, 0, len(fns))
	for _, fn := range fns {
		c, err := newCallable(name, reflect.ValueOf(fn), Automatic)
		if err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	return e.makeScriptFunction(name, cands), nil
}

// proxyObject checks that v is a proxy created by this engine.
func (e *Engine) proxyObject(v script.Value) (*script.Object, error) {
	if v.IsObject() {
		if _, ok := e.instanceOf(v.Object()); ok {
			return v.Object(), nil
		}
	}
	return nil, accessErrorf("Not a native instance")
}
