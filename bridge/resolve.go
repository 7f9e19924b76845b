package bridge

import "reflect"

// DynamicSelf lets a base type report the most-derived value containing it.
// Go structs have no virtual dispatch, so a registered class hierarchy that
// wants polymorphic resolution through base-typed pointers implements this
// on the base (typically storing the self reference at construction time):
//
//	type Animal struct{ self any }
//	func (a *Animal) DynamicSelf() any { return a.self }
//
// The returned value must be a pointer to the most-derived struct, or nil
// when unknown. Interface-typed sources do not need the hook; their dynamic
// value is visible directly.
type DynamicSelf interface {
	DynamicSelf() any
}

// ResolvedCastSource is the result of polymorphism resolution: the pointer
// and class to bridge with, and whether a dynamic identity was established.
type ResolvedCastSource struct {
	// Ptr is the most-derived address when a dynamic type was found and
	// registered, otherwise the original pointer.
	Ptr any
	// Meta is the class the instance will be tagged with.
	Meta *ClassMeta
	// Downcast reports that Meta came from the value's dynamic identity.
	// Copy and Move key their clone hooks off the dynamic class when set.
	Downcast bool
}

// resolveCastSource determines the dynamic most-derived type and address for
// ptr, declared as staticType. Resolution order: the dynamic identity if its
// class is registered, else the declared type's class, else failure.
func (e *Engine) resolveCastSource(staticType reflect.Type, ptr any) (ResolvedCastSource, error) {
	dynPtr, dynType := dynamicIdentity(staticType, ptr)

	if m := e.classMetaByType(dynType); m != nil {
		return ResolvedCastSource{Ptr: dynPtr, Meta: m, Downcast: true}, nil
	}
	if m := e.classMetaByType(staticType); m != nil {
		// The dynamic type is not registered; fall back to the declared
		// class and the original pointer, which is the address that
		// matches it.
		return ResolvedCastSource{Ptr: ptr, Meta: m, Downcast: false}, nil
	}
	return ResolvedCastSource{}, ownershipErrorf("Class not registered: %s", dynType)
}

// dynamicIdentity retrieves the runtime type and most-derived address of the
// value behind ptr. Without a DynamicSelf hook the dynamic identity is the
// declared one.
func dynamicIdentity(staticType reflect.Type, ptr any) (any, reflect.Type) {
	if ds, ok := ptr.(DynamicSelf); ok {
		if self := ds.DynamicSelf(); self != nil {
			t := reflect.TypeOf(self)
			if t.Kind() == reflect.Pointer {
				return self, t.Elem()
			}
		}
	}
	return ptr, staticType
}
