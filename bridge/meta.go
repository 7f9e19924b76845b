package bridge

import (
	"reflect"
	"strings"
)

// Upcaster adjusts a pointer to a derived value into a pointer to its base
// sub-object. The address may change: with struct embedding the base field
// sits at a non-zero offset, so callers must never assume identity.
type Upcaster func(ptr any) any

// CloneFn produces a fresh copy of the value behind ptr and returns a
// pointer to it. Clone hooks are keyed by the dynamic type of the value, so
// copying through a base-typed view still duplicates the whole object.
type CloneFn func(ptr any) any

// FinalizeFn releases resources held by the value behind ptr. It runs when
// an owning proxy is collected.
type FinalizeFn func(ptr any)

// EqualsFn compares two values of the same class.
type EqualsFn func(a, b any) bool

// ---------------------------------------------------------------------------
// Member tables
// ---------------------------------------------------------------------------

type memberKind uint8

const (
	memberMethod memberKind = iota + 1
	memberProperty
	memberConst
)

// member is one named static or instance member of a class.
type member struct {
	name        string
	kind        memberKind
	overloads   []*Callable // memberMethod
	getter      *Callable   // memberProperty
	setter      *Callable   // memberProperty, nil for read-only
	constResult bool        // memberProperty: getter result is const-held
	constValue  any         // memberConst
}

// memberTable keeps members by name, preserving insertion order for
// enumeration.
type memberTable struct {
	names   []string
	entries map[string]*member
}

func newMemberTable() *memberTable {
	return &memberTable{entries: make(map[string]*member)}
}

func (t *memberTable) insert(m *member) {
	if _, ok := t.entries[m.name]; !ok {
		t.names = append(t.names, m.name)
	}
	t.entries[m.name] = m
}

// addMethod appends an overload candidate under name. Later additions keep
// the declaration order used by overload resolution.
func (t *memberTable) addMethod(name string, c *Callable) {
	if existing, ok := t.entries[name]; ok && existing.kind == memberMethod {
		existing.overloads = append(existing.overloads, c)
		return
	}
	t.insert(&member{name: name, kind: memberMethod, overloads: []*Callable{c}})
}

func (t *memberTable) setProperty(name string, get, set *Callable, constResult bool) {
	t.insert(&member{name: name, kind: memberProperty, getter: get, setter: set, constResult: constResult})
}

func (t *memberTable) setConst(name string, v any) {
	t.insert(&member{name: name, kind: memberConst, constValue: v})
}

func (t *memberTable) get(name string) (*member, bool) {
	m, ok := t.entries[name]
	return m, ok
}

// each visits members in insertion order.
func (t *memberTable) each(fn func(*member)) {
	for _, n := range t.names {
		fn(t.entries[n])
	}
}

func (t *memberTable) len() int { return len(t.entries) }

// ---------------------------------------------------------------------------
// ClassMeta
// ---------------------------------------------------------------------------

// ClassMeta is the immutable per-class registration record. It is created
// once when a class is registered and shared by reference from every
// NativeInstance and every script-side constructor; nothing mutates it
// afterwards.
type ClassMeta struct {
	name         string
	id           uint32
	rtype        reflect.Type
	base         *ClassMeta
	upcast       Upcaster
	instanceSize uintptr

	copyClone CloneFn
	moveClone CloneFn
	equals    EqualsFn
	finalize  FinalizeFn

	constructors  []*Callable
	constructible bool

	statics *memberTable
	members *memberTable
}

// Name returns the hierarchical script-visible class name.
func (m *ClassMeta) Name() string { return m.name }

// ID returns the numeric registration id.
func (m *ClassMeta) ID() uint32 { return m.id }

// Type returns the Go type this class wraps (the struct type, not a
// pointer to it).
func (m *ClassMeta) Type() reflect.Type { return m.rtype }

// Base returns the parent class metadata, or nil.
func (m *ClassMeta) Base() *ClassMeta { return m.base }

// InstanceSize returns the byte size of one native value.
func (m *ClassMeta) InstanceSize() uintptr { return m.instanceSize }

// Constructible reports whether script code may construct instances.
func (m *ClassMeta) Constructible() bool { return m.constructible }

// CanCopy reports whether a copy clone hook is registered.
func (m *ClassMeta) CanCopy() bool { return m.copyClone != nil }

// CastTo walks the base chain from this class toward target, applying the
// upcaster at every hop. It returns the adjusted pointer, or (nil, false)
// when target is not an ancestor. Pure traversal; callers probe
// speculatively, so an unreachable target is not an error here.
func (m *ClassMeta) CastTo(ptr any, target reflect.Type) (any, bool) {
	for cur := m; cur != nil; cur = cur.base {
		if cur.rtype == target {
			return ptr, true
		}
		if cur.upcast == nil {
			break
		}
		ptr = cur.upcast(ptr)
	}
	return nil, false
}

// IsA reports whether target is this class or one of its ancestors. Same
// walk as CastTo without pointer adjustment.
func (m *ClassMeta) IsA(target reflect.Type) bool {
	for cur := m; cur != nil; cur = cur.base {
		if cur.rtype == target {
			return true
		}
	}
	return false
}

// isaMeta reports whether other is this class or one of its ancestors.
func (m *ClassMeta) isaMeta(other *ClassMeta) bool {
	for cur := m; cur != nil; cur = cur.base {
		if cur == other {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// EnumMeta
// ---------------------------------------------------------------------------

// EnumMeta is the immutable per-enum registration record. Entries keep
// declaration order; values are the underlying integers.
type EnumMeta struct {
	name   string
	id     uint32
	rtype  reflect.Type
	names  []string
	values map[string]int64
}

// Name returns the hierarchical script-visible enum name.
func (m *EnumMeta) Name() string { return m.name }

// ID returns the numeric registration id.
func (m *EnumMeta) ID() uint32 { return m.id }

// Type returns the named integer type backing the enum.
func (m *EnumMeta) Type() reflect.Type { return m.rtype }

// Entries visits entries in declaration order.
func (m *EnumMeta) Entries(fn func(name string, value int64)) {
	for _, n := range m.names {
		fn(n, m.values[n])
	}
}

// Value returns the underlying integer for an entry name.
func (m *EnumMeta) Value(name string) (int64, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Len returns the number of entries.
func (m *EnumMeta) Len() int { return len(m.names) }

// ---------------------------------------------------------------------------
// Name validation
// ---------------------------------------------------------------------------

// ValidateClassName checks the hierarchical name rules shared by classes,
// enums and binding manifests: non-empty, dot-separated, with no empty
// segments.
func ValidateClassName(name string) error {
	if name == "" {
		return registrationErrorf("Invalid class name: name is empty")
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return registrationErrorf("Invalid class name: %s", name)
	}
	return nil
}
