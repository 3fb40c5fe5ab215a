// Package engine abstracts the embedded JavaScript engine behind a common
// interface consumed by the bridge. The engine is an external collaborator:
// the bridge only uses its context creation, global binding, and script
// execution surface.
package engine

import (
	"context"
	"fmt"

	"github.com/andyherbert/crabzilla/hostfunc"
)

// Engine is a single embedded guest context. Implementations are not safe
// for concurrent use; the bridge serializes access.
type Engine interface {
	// Name identifies the backend ("goja", "quickjs").
	Name() string

	// Bind installs the host function registry into the guest global scope.
	// It is called exactly once, before any Execute.
	Bind(reg *hostfunc.Registry) error

	// Execute compiles and runs guest source. name labels the source in
	// error positions. Failures are reported as *CompileError, *ThrowError,
	// or the context's error when ctx was cancelled.
	Execute(ctx context.Context, name, src string) error

	// Close releases the guest context. Further Execute calls are invalid.
	Close() error
}

// CompileError reports guest source that failed to parse or compile.
// Line and Column are zero when the backend does not report a position.
type CompileError struct {
	Path   string
	Line   int
	Column int
	Msg    string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// ThrowError reports an exception thrown by guest code and left uncaught.
type ThrowError struct {
	Path  string
	Msg   string
	Stack string
}

func (e *ThrowError) Error() string {
	return fmt.Sprintf("%s: uncaught %s", e.Path, e.Msg)
}
