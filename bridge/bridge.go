// Package bridge owns the host/guest function-call bridge: it builds the
// host function registry, binds it into an embedded JavaScript engine, and
// loads guest modules, translating failures on either side of the boundary
// into typed errors.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/andyherbert/crabzilla/engine"
	"github.com/andyherbert/crabzilla/engine/gojaengine"
	"github.com/andyherbert/crabzilla/hostfunc"
)

// State tracks the Runtime lifecycle.
type State int

const (
	// StateCreated: constructed, host functions not yet bound.
	StateCreated State = iota
	// StateInitialized: host functions bound into the guest global scope.
	StateInitialized
	// StateLoading: a module is being compiled or executed.
	StateLoading
	// StateIdle: between loads, ready for the next one.
	StateIdle
	// StateClosed: terminal; resources released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Runtime owns one embedded engine context and one host function registry.
// At most one load may be in flight at a time; the engine context is never
// shared across concurrent loads.
type Runtime struct {
	eng      engine.Engine
	registry *hostfunc.Registry
	timeout  time.Duration
	log      zerolog.Logger

	mu    sync.Mutex
	state State
}

// New builds a Runtime from a declarative list of host functions, creates
// the engine context, and binds every function into the guest global scope
// before any guest code can run. Duplicate names fail here with a
// RegistrationError.
func New(opts ...Option) (*Runtime, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	registry, err := hostfunc.NewRegistry(cfg.entries...)
	if err != nil {
		return nil, err
	}

	eng := cfg.engine
	if eng == nil {
		eng = gojaengine.New(gojaengine.WithLogger(cfg.log))
	}

	r := &Runtime{
		eng:      eng,
		registry: registry,
		timeout:  cfg.timeout,
		log:      cfg.log,
		state:    StateCreated,
	}

	if err := eng.Bind(registry); err != nil {
		eng.Close()
		return nil, fmt.Errorf("bind host functions: %w", err)
	}
	r.state = StateInitialized

	r.log.Debug().
		Str("engine", eng.Name()).
		Int("host_functions", registry.Len()).
		Msg("runtime initialized")

	r.state = StateIdle
	return r, nil
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Engine returns the backend name.
func (r *Runtime) Engine() string { return r.eng.Name() }

// LoadModule reads a JavaScript module from path and executes it on the
// runtime's engine context. It may block on file I/O and guest execution;
// cancel ctx to interrupt. Failures are typed: *LoadError with kind
// LoadNotFound, LoadCompile, or LoadRuntime, or ErrRuntimeClosed /
// ErrLoadInProgress. After a failed load the Runtime is Idle and usable.
func (r *Runtime) LoadModule(ctx context.Context, path string) error {
	if err := r.beginLoad(); err != nil {
		return err
	}
	defer r.endLoad()

	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LoadError{Kind: LoadNotFound, Path: path, Err: err}
		}
		return fmt.Errorf("read module %s: %w", path, err)
	}

	return r.execute(ctx, path, string(src))
}

// Eval executes JavaScript source directly, without file loading. It
// follows the same lifecycle and error rules as LoadModule, except that
// LoadNotFound cannot occur.
func (r *Runtime) Eval(ctx context.Context, src string) error {
	if err := r.beginLoad(); err != nil {
		return err
	}
	defer r.endLoad()

	return r.execute(ctx, "eval", src)
}

func (r *Runtime) beginLoad() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateClosed:
		return ErrRuntimeClosed
	case StateLoading:
		return ErrLoadInProgress
	}
	r.state = StateLoading
	return nil
}

// endLoad returns the Runtime to Idle. Close during a load wins: the state
// stays Closed.
func (r *Runtime) endLoad() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateLoading {
		r.state = StateIdle
	}
}

func (r *Runtime) execute(ctx context.Context, name, src string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	err := r.eng.Execute(ctx, name, src)
	dur := time.Since(start)

	if err == nil {
		r.log.Debug().Str("module", name).Dur("duration", dur).Msg("module loaded")
		return nil
	}

	var compileErr *engine.CompileError
	if errors.As(err, &compileErr) {
		r.log.Debug().Str("module", name).Err(err).Msg("module failed to compile")
		return &LoadError{Kind: LoadCompile, Path: name, Err: compileErr}
	}

	var throwErr *engine.ThrowError
	if errors.As(err, &throwErr) {
		r.log.Debug().Str("module", name).Err(err).Msg("module threw")
		return &LoadError{Kind: LoadRuntime, Path: name, Err: throwErr}
	}

	return err
}

// Close releases the engine context. It is idempotent; further loads
// return ErrRuntimeClosed. Closing during a load leaves the Runtime
// Closed once the load finishes.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return nil
	}
	r.state = StateClosed
	r.mu.Unlock()

	return r.eng.Close()
}
