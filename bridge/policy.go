package bridge

import (
	"reflect"

	"github.com/chazu/tether/script"
)

// Policy selects how a native value crossing into script space is held:
// copied, moved, owned outright, or merely referenced.
type Policy uint8

const (
	// Automatic resolves by the shape of the source: a pointer becomes
	// TakeOwnership (a pointer return typically signals a factory result
	// the script should own), a plain value becomes Copy. Move is never
	// chosen automatically.
	Automatic Policy = iota
	// Copy clones the value; the script side owns the clone. Requires a
	// copy hook on the resolved class.
	Copy
	// Move transfers the value into a fresh script-owned clone using the
	// move hook, falling back to the copy hook.
	Move
	// Reference holds a non-owning view. Native code remains responsible
	// for the object's lifetime; use only when that lifetime provably
	// exceeds the script side's.
	Reference
	// TakeOwnership adopts a pointer: the bridge runs the class finalizer
	// when the script proxy is collected. Pointer sources only.
	TakeOwnership
	// ReferenceInternal holds a non-owning view and pins the parent proxy
	// that produced it, so the parent outlives the child view.
	ReferenceInternal
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Automatic:
		return "Automatic"
	case Copy:
		return "Copy"
	case Move:
		return "Move"
	case Reference:
		return "Reference"
	case TakeOwnership:
		return "TakeOwnership"
	case ReferenceInternal:
		return "ReferenceInternal"
	default:
		return "Policy(invalid)"
	}
}

// buildClassValue routes a registered-class value into script space: it
// resolves the dynamic type, applies the ownership policy, wraps the result
// in a NativeInstance and returns the script proxy.
//
// The instance is held at the resolved class: a base-typed pointer to a
// registered derived value is adjusted to the derived address, so the proxy
// exposes the derived prototype and derived members bind without a downcast.
func (e *Engine) buildClassValue(rv reflect.Value, pol Policy, parent *script.Object, constant bool) (script.Value, error) {
	ptrShaped := rv.Kind() == reflect.Pointer
	if ptrShaped && rv.IsNil() {
		return script.Null(), nil
	}

	if pol == Automatic {
		if ptrShaped {
			pol = TakeOwnership
		} else {
			pol = Copy
		}
	}

	var staticType reflect.Type
	var srcPtr any
	if ptrShaped {
		staticType = rv.Type().Elem()
		srcPtr = rv.Interface()
	} else {
		// Values arrive as copies. Reference-family policies need the
		// original object and are rejected below; Copy and Move work
		// from the copy's address.
		staticType = rv.Type()
		pv := reflect.New(staticType)
		pv.Elem().Set(rv)
		srcPtr = pv.Interface()
	}

	switch pol {
	case TakeOwnership:
		if !ptrShaped {
			return script.Value{}, ownershipErrorf("Cannot take ownership of non-pointer")
		}
	case Reference, ReferenceInternal:
		if !ptrShaped {
			return script.Value{}, ownershipErrorf("%s policy requires a pointer", pol)
		}
	}
	if pol == ReferenceInternal && parent == nil {
		return script.Value{}, ownershipErrorf("ReferenceInternal requires a valid parent object")
	}

	source, err := e.resolveCastSource(staticType, srcPtr)
	if err != nil {
		return script.Value{}, err
	}

	var inst *NativeInstance
	switch pol {
	case Copy:
		hook := source.Meta.copyClone
		if hook == nil {
			return script.Value{}, ownershipErrorf("Object is not copy constructible")
		}
		inst = newOwnedInstance(source.Meta, source.Meta.rtype, hook(source.Ptr), constant)
	case Move:
		hook := source.Meta.moveClone
		if hook == nil {
			hook = source.Meta.copyClone
		}
		if hook == nil {
			return script.Value{}, ownershipErrorf("Object is not move constructible")
		}
		inst = newOwnedInstance(source.Meta, source.Meta.rtype, hook(source.Ptr), constant)
	case TakeOwnership:
		inst = newOwnedInstance(source.Meta, source.Meta.rtype, source.Ptr, constant)
	case Reference, ReferenceInternal:
		inst = newBorrowedInstance(source.Meta, source.Meta.rtype, source.Ptr, constant)
	default:
		return script.Value{}, ownershipErrorf("unsupported ownership policy %s", pol)
	}

	obj := e.wrapInstance(inst)
	if pol == ReferenceInternal {
		e.pinParent(obj, parent)
	}
	return script.ObjectValue(obj), nil
}
