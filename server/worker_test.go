package server

import (
	"strings"
	"testing"

	"github.com/chazu/tether/bridge"
	"github.com/chazu/tether/script"
)

// The worker's goroutine holds the engine scope, so callers never enter one
// themselves.
func TestWorkerCoversEngineScope(t *testing.T) {
	e := newTestEngine(t)

	// Outside any scope the engine refuses script-artifact work.
	if _, err := e.Construct("scene.Sprite", script.String("stray")); !bridge.IsKind(err, bridge.ErrAccess) {
		t.Fatalf("Construct outside scope: got %v, want access error", err)
	}

	w := NewEngineWorker(e)
	defer w.Stop()

	result, err := w.Do(func(e *bridge.Engine) interface{} {
		v, err := e.Construct("scene.Sprite", script.String("hero"))
		if err != nil {
			return err
		}
		name, err := e.GetMember(v, "name")
		if err != nil {
			return err
		}
		return name.Str()
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if errVal, ok := result.(error); ok {
		t.Fatalf("engine op failed: %v", errVal)
	}
	if result != "hero" {
		t.Fatalf("result = %v, want hero", result)
	}
}

func TestWorkerSerializesRequests(t *testing.T) {
	e := newTestEngine(t)
	w := NewEngineWorker(e)
	defer w.Stop()

	v, err := w.Do(func(e *bridge.Engine) interface{} {
		sprite, err := e.Construct("scene.Sprite", script.String("walker"))
		if err != nil {
			return err
		}
		return sprite
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	sprite := v.(script.Value)

	const steps = 50
	done := make(chan error, steps)
	for i := 0; i < steps; i++ {
		go func() {
			_, err := w.Do(func(e *bridge.Engine) interface{} {
				_, err := e.Invoke(sprite, "moveBy", script.Number(1), script.Number(0))
				return err
			})
			done <- err
		}()
	}
	for i := 0; i < steps; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Do: %v", err)
		}
	}

	x, err := w.Do(func(e *bridge.Engine) interface{} {
		got, err := e.GetMember(sprite, "x")
		if err != nil {
			return err
		}
		return got.Number()
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if x != float64(steps) {
		t.Fatalf("x = %v after %d moves, want %d", x, steps, steps)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	e := newTestEngine(t)
	w := NewEngineWorker(e)
	defer w.Stop()

	_, err := w.Do(func(e *bridge.Engine) interface{} {
		panic("handler bug")
	})
	if err == nil || !strings.Contains(err.Error(), "handler bug") {
		t.Fatalf("Do after panic: got %v, want recovered error", err)
	}

	// The worker keeps serving after a recovered panic.
	result, err := w.Do(func(e *bridge.Engine) interface{} {
		return len(e.Classes())
	})
	if err != nil {
		t.Fatalf("Do after recovery: %v", err)
	}
	if result != 2 {
		t.Fatalf("class count = %v, want 2", result)
	}
}
