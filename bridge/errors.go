package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrRuntimeClosed is returned for operations on a closed Runtime.
	ErrRuntimeClosed = errors.New("runtime closed")

	// ErrLoadInProgress is returned when a load is attempted while another
	// is in flight on the same Runtime.
	ErrLoadInProgress = errors.New("module load already in progress")
)

// LoadErrorKind distinguishes how loading a module failed.
type LoadErrorKind int

const (
	// LoadNotFound: the module path does not exist.
	LoadNotFound LoadErrorKind = iota
	// LoadCompile: the module source failed to parse or compile.
	LoadCompile
	// LoadRuntime: the module threw an uncaught exception while executing.
	LoadRuntime
)

func (k LoadErrorKind) String() string {
	switch k {
	case LoadNotFound:
		return "not found"
	case LoadCompile:
		return "compile error"
	case LoadRuntime:
		return "runtime exception"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// LoadError reports a failed module load with enough context to render to
// an operator. The wrapped error carries engine detail, including source
// position for compile errors.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case LoadNotFound:
		return fmt.Sprintf("module %s: not found", e.Path)
	case LoadCompile:
		return fmt.Sprintf("module %s: %v", e.Path, e.Err)
	case LoadRuntime:
		return fmt.Sprintf("module %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("module %s: load failed: %v", e.Path, e.Err)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }
