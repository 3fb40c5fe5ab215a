// Package gojaengine implements the engine interface on dop251/goja, a
// pure Go JavaScript engine. It is the default backend: host functions bind
// directly as native functions, with no serialization boundary.
package gojaengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/rs/zerolog"

	"github.com/andyherbert/crabzilla/engine"
	"github.com/andyherbert/crabzilla/hostfunc"
	"github.com/andyherbert/crabzilla/value"
)

// Engine owns one goja runtime. Not safe for concurrent use.
type Engine struct {
	vm       *goja.Runtime
	registry *hostfunc.Registry
	log      zerolog.Logger

	// execCtx is the context of the in-flight Execute; host function
	// shims read it. Single-threaded per the engine contract.
	execCtx context.Context
	closed  bool
}

// Option configures the Engine.
type Option func(*config)

type config struct {
	log     zerolog.Logger
	console bool
}

// WithLogger sets the logger used for debug output and guest console calls.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithoutConsole leaves the guest without a console global.
func WithoutConsole() Option {
	return func(c *config) { c.console = false }
}

// New creates a goja-backed engine.
func New(opts ...Option) *Engine {
	cfg := config{log: zerolog.Nop(), console: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	vm := goja.New()
	e := &Engine{vm: vm, log: cfg.log}

	reg := require.NewRegistry()
	if cfg.console {
		reg.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer{log: cfg.log}))
	}
	reg.Enable(vm)
	if cfg.console {
		console.Enable(vm)
	}

	return e
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "goja" }

// Bind installs the registry into the guest global scope: one object per
// scope, then one native function per entry.
func (e *Engine) Bind(reg *hostfunc.Registry) error {
	e.registry = reg

	scopeObjs := make(map[string]*goja.Object)
	for _, scope := range reg.Scopes() {
		obj := e.vm.NewObject()
		if err := e.vm.Set(scope, obj); err != nil {
			return fmt.Errorf("bind scope %s: %w", scope, err)
		}
		scopeObjs[scope] = obj
	}

	for _, ent := range reg.Entries() {
		fn := e.nativeFunc(ent)
		if ent.Scope != "" {
			if err := scopeObjs[ent.Scope].Set(ent.Name, fn); err != nil {
				return fmt.Errorf("bind %s: %w", ent.Qualified(), err)
			}
			continue
		}
		if err := e.vm.Set(ent.Name, fn); err != nil {
			return fmt.Errorf("bind %s: %w", ent.Name, err)
		}
	}

	e.log.Debug().Int("functions", reg.Len()).Msg("host functions bound")
	return nil
}

// nativeFunc wraps a registry entry as a goja native function: it marshals
// guest arguments to Values, invokes the host callable, and marshals the
// result back. Host failures are thrown into the guest, never panicked
// through the engine.
func (e *Engine) nativeFunc(ent hostfunc.Entry) func(goja.FunctionCall) goja.Value {
	qualified := ent.Qualified()
	return func(call goja.FunctionCall) goja.Value {
		args := make([]value.Value, len(call.Arguments))
		for i, a := range call.Arguments {
			hv, err := fromGoja(a)
			if err != nil {
				panic(e.vm.NewTypeError("%s: argument %d: %s", qualified, i, err.Error()))
			}
			args[i] = hv
		}

		ctx := e.execCtx
		if ctx == nil {
			ctx = context.Background()
		}

		res, err := e.registry.Invoke(ctx, qualified, args)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		return e.toGoja(res)
	}
}

// Execute compiles and runs guest source on the engine's single context.
func (e *Engine) Execute(ctx context.Context, name, src string) error {
	if e.closed {
		return errors.New("engine closed")
	}

	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return &engine.CompileError{Path: name, Msg: err.Error()}
	}

	// The watchdog must be fully stopped before ClearInterrupt runs, or a
	// cancellation racing Execute's return could interrupt the vm after the
	// clear and poison the next Execute.
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-stopped
		e.vm.ClearInterrupt()
	}()

	e.execCtx = ctx
	defer func() { e.execCtx = nil }()

	_, err = e.vm.RunProgram(prog)
	if err == nil {
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) && ctx.Err() != nil {
		return fmt.Errorf("execution interrupted: %w", ctx.Err())
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		msg := exc.Error()
		if v := exc.Value(); v != nil {
			msg = v.String()
		}
		return &engine.ThrowError{
			Path:  name,
			Msg:   msg,
			Stack: exc.String(),
		}
	}

	return fmt.Errorf("execute %s: %w", name, err)
}

// Close releases the guest context.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.vm.Interrupt(errors.New("engine closed"))
	return nil
}

// toGoja converts a host Value to the guest representation. Unsupported
// kinds cannot occur: the Value union is closed.
func (e *Engine) toGoja(v value.Value) goja.Value {
	switch v.Kind() {
	case value.KindUndefined:
		return goja.Undefined()
	case value.KindNull:
		return goja.Null()
	default:
		return e.vm.ToValue(v.Interface())
	}
}

// fromGoja converts a guest value to a host Value, failing with a
// ConversionError when the guest runtime type has no host equivalent
// (functions, symbols).
func fromGoja(v goja.Value) (value.Value, error) {
	if v == nil || goja.IsUndefined(v) {
		return value.Undefined(), nil
	}
	if goja.IsNull(v) {
		return value.Null(), nil
	}
	return value.FromInterface(v.Export())
}

// printer routes guest console output to the engine's logger.
type printer struct {
	log zerolog.Logger
}

func (p printer) Log(s string)   { p.log.Info().Str("source", "guest").Msg(s) }
func (p printer) Warn(s string)  { p.log.Warn().Str("source", "guest").Msg(s) }
func (p printer) Error(s string) { p.log.Error().Str("source", "guest").Msg(s) }
