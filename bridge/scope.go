package bridge

import "sync"

// Enter pins the engine for API use and returns the matching exit. Scopes
// are re-entrant and engine-wide; the exit function is idempotent.
//
// The registry context always travels explicitly as the *Engine handle, so a
// scope is a usage gate around script-artifact creation, not an ambient
// lookup mechanism.
func (e *Engine) Enter() func() {
	e.scopeDepth.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { e.scopeDepth.Add(-1) })
	}
}

// Scope runs fn with the engine entered.
func (e *Engine) Scope(fn func()) {
	defer e.Enter()()
	fn()
}

// requireScope gates operations that create or touch script artifacts.
func (e *Engine) requireScope() error {
	if e.scopeDepth.Load() == 0 {
		return accessErrorf("An engine scope must be entered before accessing the engine API")
	}
	return nil
}
