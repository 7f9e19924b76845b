package script

import "errors"

// ArityAny marks a function that accepts any number of arguments.
const ArityAny = -1

// Target is the Go implementation backing a script function. recv is the
// receiver object for method calls, or Undefined for plain calls.
type Target func(recv Value, args []Value) (Value, error)

// Function is a callable script value backed by a Go target.
type Function struct {
	// Name is the script-visible name, used in diagnostics.
	Name string
	// Arity is the declared parameter count, or ArityAny.
	Arity int

	fn Target
}

// NewFunction creates a function with the given name, arity hint and target.
func NewFunction(name string, arity int, fn Target) *Function {
	return &Function{Name: name, Arity: arity, fn: fn}
}

// Call invokes the function's target.
func (f *Function) Call(recv Value, args []Value) (Value, error) {
	if f == nil || f.fn == nil {
		return Undefined(), errors.New("script: call of nil function")
	}
	return f.fn(recv, args)
}
