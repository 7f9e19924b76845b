package server

import (
	"fmt"

	"github.com/chazu/tether/bridge"
)

// engineRequest is a unit of work to run on the engine goroutine.
type engineRequest struct {
	fn   func(*bridge.Engine) interface{}
	done chan engineResult
}

// engineResult holds the return value from an engine operation.
type engineResult struct {
	value interface{}
	err   error
}

// EngineWorker serializes all engine access through a single goroutine
// holding one long-lived engine scope. Handlers run on arbitrary HTTP
// goroutines; everything touching the engine goes through the worker.
type EngineWorker struct {
	engine   *bridge.Engine
	requests chan engineRequest
	quit     chan struct{}
}

// NewEngineWorker creates an EngineWorker and starts the processing
// goroutine.
func NewEngineWorker(e *bridge.Engine) *EngineWorker {
	w := &EngineWorker{
		engine:   e,
		requests: make(chan engineRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes engine requests sequentially on a dedicated goroutine.
// The scope entered here covers every request the worker runs.
func (w *EngineWorker) loop() {
	exit := w.engine.Enter()
	defer exit()
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the engine, recovering from panics.
func (w *EngineWorker) execute(fn func(*bridge.Engine) interface{}) engineResult {
	var result engineResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.engine)
	}()
	return result
}

// Do submits a function for execution on the engine goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *EngineWorker) Do(fn func(*bridge.Engine) interface{}) (interface{}, error) {
	req := engineRequest{
		fn:   fn,
		done: make(chan engineResult, 1),
	}
	w.requests <- req
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine.
func (w *EngineWorker) Stop() {
	close(w.quit)
}

// Engine returns the wrapped engine for access that does not touch engine
// state, like its id.
func (w *EngineWorker) Engine() *bridge.Engine {
	return w.engine
}
