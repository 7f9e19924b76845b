package bridge

import (
	"reflect"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Holders
// ---------------------------------------------------------------------------

// holder owns or references exactly one native value. The variant set is
// closed: owned (unique), shared (refcounted) and borrowed (non-owning).
// Construction goes through the ownership-policy engine, never callers.
type holder interface {
	// get returns the typed pointer to the held value.
	get() any
	// owned reports whether this holder is responsible for teardown.
	owned() bool
	// release performs teardown at most once per holder. fin is the
	// finalizer of the held value's declared class; borrowed holders
	// ignore it.
	release(fin FinalizeFn)
}

type ownedHolder struct {
	p any
}

func (h *ownedHolder) get() any    { return h.p }
func (h *ownedHolder) owned() bool { return true }
func (h *ownedHolder) release(fin FinalizeFn) {
	if fin != nil {
		fin(h.p)
	}
}

// SharedBox is the refcount cell behind every shared holder of one value.
// The finalizer runs once, when the last holder releases.
type SharedBox struct {
	p    any
	refs atomic.Int64
	fin  FinalizeFn
}

// NewSharedBox creates a refcount cell for ptr. fin may be nil.
func NewSharedBox(ptr any, fin FinalizeFn) *SharedBox {
	return &SharedBox{p: ptr, fin: fin}
}

type sharedHolder struct {
	box *SharedBox
}

func newSharedHolder(box *SharedBox) *sharedHolder {
	box.refs.Add(1)
	return &sharedHolder{box: box}
}

func (h *sharedHolder) get() any    { return h.box.p }
func (h *sharedHolder) owned() bool { return true }
func (h *sharedHolder) release(FinalizeFn) {
	if h.box.refs.Add(-1) == 0 && h.box.fin != nil {
		h.box.fin(h.box.p)
	}
}

type borrowedHolder struct {
	p any
}

func (h *borrowedHolder) get() any           { return h.p }
func (h *borrowedHolder) owned() bool        { return false }
func (h *borrowedHolder) release(FinalizeFn) {}

// ---------------------------------------------------------------------------
// NativeInstance
// ---------------------------------------------------------------------------

// NativeInstance is the type-erased container for one native value crossing
// into script space.
//
// The holder keeps the pointer at the resolved class's type: polymorphism
// resolution upgrades a base-typed source to its registered dynamic class
// and adjusts the pointer to match, so casts start from the most-derived
// registered node of the meta chain and walk upward.
type NativeInstance struct {
	h        holder
	rtype    reflect.Type
	meta     *ClassMeta
	constant bool
	serial   uint64
	released atomic.Bool
}

func newOwnedInstance(meta *ClassMeta, rtype reflect.Type, ptr any, constant bool) *NativeInstance {
	return &NativeInstance{h: &ownedHolder{p: ptr}, rtype: rtype, meta: meta, constant: constant}
}

func newSharedInstance(meta *ClassMeta, rtype reflect.Type, box *SharedBox, constant bool) *NativeInstance {
	return &NativeInstance{h: newSharedHolder(box), rtype: rtype, meta: meta, constant: constant}
}

func newBorrowedInstance(meta *ClassMeta, rtype reflect.Type, ptr any, constant bool) *NativeInstance {
	return &NativeInstance{h: &borrowedHolder{p: ptr}, rtype: rtype, meta: meta, constant: constant}
}

// checkInstancePtr validates that ptr is a non-nil pointer to the class's
// registered struct type.
func checkInstancePtr(cls *Class, ptr any) error {
	if cls == nil {
		return registrationErrorf("nil class")
	}
	rv := reflect.ValueOf(ptr)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return conversionErrorf("Type mismatch or cast failed")
	}
	if rv.Type().Elem() != cls.meta.rtype {
		return conversionErrorf("Type mismatch or cast failed")
	}
	return nil
}

// NewOwnedInstance builds an owning instance of cls around ptr, which must
// be a non-nil pointer to the class's registered struct type. The class
// finalizer runs when the wrapping proxy is collected.
func NewOwnedInstance(cls *Class, ptr any) (*NativeInstance, error) {
	if err := checkInstancePtr(cls, ptr); err != nil {
		return nil, err
	}
	return newOwnedInstance(cls.meta, cls.meta.rtype, ptr, false), nil
}

// NewSharedInstance builds an instance sharing ownership of the value in
// box. The box finalizer runs when the last sharing holder releases.
func NewSharedInstance(cls *Class, box *SharedBox) (*NativeInstance, error) {
	if box == nil {
		return nil, conversionErrorf("Type mismatch or cast failed")
	}
	if err := checkInstancePtr(cls, box.p); err != nil {
		return nil, err
	}
	return newSharedInstance(cls.meta, cls.meta.rtype, box, false), nil
}

// NewBorrowedInstance builds a non-owning view of ptr. The caller keeps
// responsibility for the value's lifetime and teardown.
func NewBorrowedInstance(cls *Class, ptr any) (*NativeInstance, error) {
	if err := checkInstancePtr(cls, ptr); err != nil {
		return nil, err
	}
	return newBorrowedInstance(cls.meta, cls.meta.rtype, ptr, false), nil
}

// Meta returns the class metadata the instance is tagged with. This is the
// resolved (possibly dynamic) class, not necessarily the declared one.
func (inst *NativeInstance) Meta() *ClassMeta { return inst.meta }

// TypeID returns the concrete held type.
func (inst *NativeInstance) TypeID() reflect.Type { return inst.rtype }

// IsConst reports whether the instance was produced through a const view.
func (inst *NativeInstance) IsConst() bool { return inst.constant }

// IsOwned reports whether the bridge owns the value's teardown.
func (inst *NativeInstance) IsOwned() bool { return inst.h.owned() }

// Serial returns the live-table key assigned when the instance was wrapped,
// or 0 for instances that never crossed into script space.
func (inst *NativeInstance) Serial() uint64 { return inst.serial }

// Live reports whether the instance payload is still usable.
func (inst *NativeInstance) Live() bool { return !inst.released.Load() }

// Ptr returns the held pointer at its declared type. Callers that need a
// specific ancestor type must go through Cast.
func (inst *NativeInstance) Ptr() any { return inst.h.get() }

// declaredMeta locates the chain node matching the held type. It is the
// starting point for casts and the source of the teardown finalizer.
func (inst *NativeInstance) declaredMeta() *ClassMeta {
	for cur := inst.meta; cur != nil; cur = cur.base {
		if cur.rtype == inst.rtype {
			return cur
		}
	}
	return nil
}

// Cast returns the held pointer adjusted to target, or (nil, false) when
// target is not the declared type or one of its ancestors. Pure probe: no
// const or liveness enforcement here.
func (inst *NativeInstance) Cast(target reflect.Type) (any, bool) {
	start := inst.declaredMeta()
	if start == nil {
		return nil, false
	}
	return start.CastTo(inst.h.get(), target)
}

// unwrap is Cast plus the access rules converters rely on: the payload must
// be live, and a mutable request must not see a const-held value.
func (inst *NativeInstance) unwrap(target reflect.Type, mutable bool) (any, error) {
	if !inst.Live() {
		return nil, accessErrorf("Native instance already finalized")
	}
	if mutable && inst.constant {
		return nil, accessErrorf("Cannot unwrap const instance to mutable pointer")
	}
	ptr, ok := inst.Cast(target)
	if !ok {
		return nil, conversionErrorf("Type mismatch or cast failed")
	}
	return ptr, nil
}

// Clone copies the held value at its declared type and returns a fresh
// owned, mutable instance tagged with the declared class.
func (inst *NativeInstance) Clone() (*NativeInstance, error) {
	if !inst.Live() {
		return nil, accessErrorf("Native instance already finalized")
	}
	decl := inst.declaredMeta()
	if decl == nil || decl.copyClone == nil {
		return nil, ownershipErrorf("Object is not copy constructible")
	}
	return newOwnedInstance(decl, decl.rtype, decl.copyClone(inst.h.get()), false), nil
}

// release performs teardown exactly once. Safe to call from the collection
// path and from explicit disposal concurrently.
func (inst *NativeInstance) release() {
	if !inst.released.CompareAndSwap(false, true) {
		return
	}
	var fin FinalizeFn
	if decl := inst.declaredMeta(); decl != nil {
		fin = decl.finalize
	}
	inst.h.release(fin)
}
