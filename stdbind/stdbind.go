// Package stdbind carries the built-in native classes an embedder can
// install on any engine: the std.sql database and cursor pair and the
// std.grpc reflection-based channel. Everything registers under the
// reserved std root, so user manifests can never collide with it.
package stdbind

import (
	"github.com/chazu/tether/bridge"
)

// RegisterAll installs every standard binding on e. The caller must hold
// an engine scope.
func RegisterAll(e *bridge.Engine) error {
	if err := RegisterSQL(e); err != nil {
		return err
	}
	return RegisterGRPC(e)
}
