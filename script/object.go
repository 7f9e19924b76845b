package script

// Property is one named member of an Object: either a plain data property
// or a getter/setter accessor pair. Hidden properties are excluded from
// enumeration; the bridge uses them for bookkeeping slots such as "$name".
type Property struct {
	value    Value
	getter   *Function
	setter   *Function
	accessor bool
	hidden   bool
}

// IsAccessor returns true if the property is a getter/setter pair.
func (p *Property) IsAccessor() bool { return p.accessor }

// IsHidden returns true if the property is excluded from enumeration.
func (p *Property) IsHidden() bool { return p.hidden }

// Value returns the data payload of a plain property.
func (p *Property) Value() Value { return p.value }

// Getter returns the accessor getter, or nil.
func (p *Property) Getter() *Function { return p.getter }

// Setter returns the accessor setter, or nil for read-only accessors.
func (p *Property) Setter() *Function { return p.setter }

// Object is a property bag with a prototype link.
//
// Properties keep insertion order for enumeration. An object may carry an
// opaque internal payload; the bridge stores the handle to the wrapped
// native instance there and retrieves it when converting back. Objects with
// a payload are called proxies.
type Object struct {
	class    string
	proto    *Object
	names    []string
	props    map[string]*Property
	internal any
}

// NewObject creates an empty object with no prototype.
func NewObject() *Object {
	return &Object{props: make(map[string]*Property)}
}

// NewObjectWithProto creates an empty object whose property lookups fall
// through to proto.
func NewObjectWithProto(proto *Object) *Object {
	o := NewObject()
	o.proto = proto
	return o
}

// ClassName returns the debug class name, if one was set.
func (o *Object) ClassName() string { return o.class }

// SetClassName sets the debug class name rendered by Value.String.
func (o *Object) SetClassName(name string) { o.class = name }

// Proto returns the prototype object, or nil.
func (o *Object) Proto() *Object { return o.proto }

// SetProto replaces the prototype link.
func (o *Object) SetProto(proto *Object) { o.proto = proto }

// Internal returns the opaque payload, or nil.
func (o *Object) Internal() any { return o.internal }

// SetInternal stores an opaque payload on the object.
func (o *Object) SetInternal(v any) { o.internal = v }

// ---------------------------------------------------------------------------
// Property definition
// ---------------------------------------------------------------------------

func (o *Object) define(name string, p *Property) {
	if _, ok := o.props[name]; !ok {
		o.names = append(o.names, name)
	}
	o.props[name] = p
}

// Define sets a plain enumerable property on the object itself.
func (o *Object) Define(name string, v Value) {
	o.define(name, &Property{value: v})
}

// DefineHidden sets a plain property excluded from enumeration.
func (o *Object) DefineHidden(name string, v Value) {
	o.define(name, &Property{value: v, hidden: true})
}

// DefineAccessor sets a getter/setter property. set may be nil for a
// read-only accessor.
func (o *Object) DefineAccessor(name string, get, set *Function) {
	o.define(name, &Property{getter: get, setter: set, accessor: true})
}

// ---------------------------------------------------------------------------
// Property lookup
// ---------------------------------------------------------------------------

// Own returns the object's own property with the given name.
func (o *Object) Own(name string) (*Property, bool) {
	p, ok := o.props[name]
	return p, ok
}

// Lookup walks the prototype chain and returns the first property with the
// given name along with the object that owns it.
func (o *Object) Lookup(name string) (*Property, *Object, bool) {
	for cur := o; cur != nil; cur = cur.proto {
		if p, ok := cur.props[name]; ok {
			return p, cur, true
		}
	}
	return nil, nil, false
}

// Get returns the value of a plain property found on the object or its
// prototype chain. Accessor properties are not invoked here; use
// bridge-level member access for those.
func (o *Object) Get(name string) (Value, bool) {
	p, _, ok := o.Lookup(name)
	if !ok || p.accessor {
		return Undefined(), false
	}
	return p.value, true
}

// Set updates an existing plain own property or defines a new one.
// Accessor properties are not invoked here.
func (o *Object) Set(name string, v Value) {
	if p, ok := o.props[name]; ok && !p.accessor {
		p.value = v
		return
	}
	o.Define(name, v)
}

// Names returns the enumerable own property names in insertion order.
func (o *Object) Names() []string {
	out := make([]string, 0, len(o.names))
	for _, n := range o.names {
		if p := o.props[n]; p != nil && !p.hidden {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of own properties, hidden ones included.
func (o *Object) Len() int { return len(o.props) }
