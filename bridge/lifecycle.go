package bridge

import (
	"runtime"

	"github.com/chazu/tether/script"
)

// proxyPayload is the engine-internal state attached to every proxy object:
// the native instance plus any extra resources tied to the proxy's lifetime.
type proxyPayload struct {
	inst      *NativeInstance
	resources []func()
}

// wrapInstance builds the proxy for inst: an object chained to the class
// prototype, carrying the payload, tracked in the live table and hooked into
// the collection queue.
func (e *Engine) wrapInstance(inst *NativeInstance) *script.Object {
	cls := e.classByMeta(inst.meta)
	var obj *script.Object
	if cls != nil {
		obj = script.NewObjectWithProto(cls.proto)
	} else {
		obj = script.NewObject()
	}
	obj.SetClassName(inst.meta.name)

	pay := &proxyPayload{inst: inst}
	obj.SetInternal(pay)

	inst.serial = e.nextSerial.Add(1)
	e.instMu.Lock()
	e.live[inst.serial] = pay
	e.instMu.Unlock()

	// The finalizer only enqueues. Teardown happens in ProcessCollections
	// on a caller's goroutine, where hooks may safely re-enter the engine.
	runtime.SetFinalizer(obj, func(*script.Object) { e.enqueue(pay) })
	return obj
}

// instanceOf returns the native instance behind obj, when obj is a proxy.
func (e *Engine) instanceOf(obj *script.Object) (*NativeInstance, bool) {
	if obj == nil {
		return nil, false
	}
	pay, ok := obj.Internal().(*proxyPayload)
	if !ok {
		return nil, false
	}
	return pay.inst, true
}

// pinParent records the keep-alive edge from a ReferenceInternal child view
// to the parent it points into: while the child is reachable, the parent
// proxy and therefore the referenced native storage cannot be collected.
func (e *Engine) pinParent(child, parent *script.Object) {
	child.DefineHidden("$parent", script.ObjectValue(parent))
}

// ManageResource ties release to the proxy's lifetime. Releases run when the
// proxy is collected or explicitly released, in reverse registration order,
// before the instance's own teardown.
func (e *Engine) ManageResource(v script.Value, release func()) error {
	if err := e.requireScope(); err != nil {
		return err
	}
	if release == nil {
		return nil
	}
	obj := v.Object()
	if obj == nil {
		return accessErrorf("Not a native instance")
	}
	pay, ok := obj.Internal().(*proxyPayload)
	if !ok {
		return accessErrorf("Not a native instance")
	}
	e.instMu.Lock()
	pay.resources = append(pay.resources, release)
	e.instMu.Unlock()
	return nil
}

func (e *Engine) enqueue(pay *proxyPayload) {
	e.collectMu.Lock()
	e.pending = append(e.pending, pay)
	e.collectMu.Unlock()
}

// ProcessCollections drains the queue of payloads whose proxies were
// collected, running resource releases and instance teardown. It enters the
// engine itself, so finalize hooks may call back into the API. Returns the
// number of payloads processed.
func (e *Engine) ProcessCollections() int {
	defer e.Enter()()

	e.collectMu.Lock()
	batch := e.pending
	e.pending = nil
	e.collectMu.Unlock()

	for _, pay := range batch {
		e.releasePayload(pay)
	}
	if len(batch) > 0 {
		e.log.Debugf("collected %d proxies", len(batch))
	}
	return len(batch)
}

// releasePayload tears one payload down: resources first, then the instance,
// then the live-table entry. Safe to call twice; the second call is a no-op.
func (e *Engine) releasePayload(pay *proxyPayload) {
	e.instMu.Lock()
	res := pay.resources
	pay.resources = nil
	delete(e.live, pay.inst.serial)
	e.instMu.Unlock()

	for i := len(res) - 1; i >= 0; i-- {
		res[i]()
	}
	pay.inst.release()
}

// ReleaseInstance tears a proxy's payload down now instead of waiting for
// collection. The proxy stays usable as a plain object, but native reads
// through it fail afterwards.
func (e *Engine) ReleaseInstance(v script.Value) error {
	if err := e.requireScope(); err != nil {
		return err
	}
	obj := v.Object()
	if obj == nil {
		return accessErrorf("Not a native instance")
	}
	pay, ok := obj.Internal().(*proxyPayload)
	if !ok {
		return accessErrorf("Not a native instance")
	}
	runtime.SetFinalizer(obj, nil)
	e.releasePayload(pay)
	return nil
}

// LiveCount returns the number of instances currently tracked.
func (e *Engine) LiveCount() int {
	e.instMu.Lock()
	n := len(e.live)
	e.instMu.Unlock()
	return n
}

// Close releases every pending and live instance. The engine stays usable
// afterwards, but outstanding proxies turn into finalized payloads.
func (e *Engine) Close() {
	defer e.Enter()()

	e.collectMu.Lock()
	batch := e.pending
	e.pending = nil
	e.collectMu.Unlock()
	for _, pay := range batch {
		e.releasePayload(pay)
	}

	e.instMu.Lock()
	rest := make([]*proxyPayload, 0, len(e.live))
	for _, pay := range e.live {
		rest = append(rest, pay)
	}
	e.instMu.Unlock()
	for _, pay := range rest {
		e.releasePayload(pay)
	}
}
