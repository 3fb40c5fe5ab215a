// Package quickjs implements the engine interface on QuickJS compiled to
// WASI, executed by wazero. The guest interpreter runs in a WASM sandbox;
// host function calls tunnel over a framed protocol on stderr, with
// responses delivered on stdin.
package quickjs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	quickjswasi "github.com/paralin/go-quickjs-wasi"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/andyherbert/crabzilla/engine"
	"github.com/andyherbert/crabzilla/hostfunc"
)

// Engine owns one wazero runtime with a compiled QuickJS module. Each
// Execute instantiates a fresh interpreter, so guest state does not leak
// between modules. Not safe for concurrent use.
type Engine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	registry *hostfunc.Registry
	prelude  string
	stdout   io.Writer
	stderr   io.Writer
	log      zerolog.Logger
	closed   bool
}

// Option configures the Engine.
type Option func(*config)

type config struct {
	stdout           io.Writer
	stderr           io.Writer
	log              zerolog.Logger
	memoryLimitPages uint32
}

// WithStdout redirects guest stdout. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(c *config) { c.stdout = w }
}

// WithStderr redirects guest stderr that is not protocol traffic.
// Defaults to os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(c *config) { c.stderr = w }
}

// WithLogger sets the logger for debug output.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithMemoryLimit caps guest memory. Each page is 64KB; 0 keeps the
// wazero default.
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) { c.memoryLimitPages = pages }
}

// New creates a QuickJS-backed engine. The interpreter is compiled once and
// cached on the wazero runtime.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	cfg := config{stdout: os.Stdout, stderr: os.Stderr, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, quickjswasi.QuickJSWASM)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile quickjs: %w", err)
	}

	return &Engine{
		runtime:  rt,
		compiled: compiled,
		stdout:   cfg.stdout,
		stderr:   cfg.stderr,
		log:      cfg.log,
	}, nil
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "quickjs" }

// Bind records the registry and generates the JavaScript prelude that shims
// every registered function onto the guest global scope.
func (e *Engine) Bind(reg *hostfunc.Registry) error {
	e.registry = reg
	e.prelude = buildPrelude(reg)
	e.log.Debug().Int("functions", reg.Len()).Msg("host call shims generated")
	return nil
}

// Execute runs guest source in a fresh interpreter instance.
func (e *Engine) Execute(ctx context.Context, name, src string) error {
	if e.closed {
		return errors.New("engine closed")
	}

	stdinReader, stdinWriter := io.Pipe()
	handler := newProtocolHandler(ctx, e.registry, stdinWriter)

	modConfig := wazero.NewModuleConfig().
		WithStdout(e.stdout).
		WithStderr(handler).
		WithStdin(stdinReader).
		WithArgs("qjs", "--std", "-e", e.prelude+src).
		WithName("")

	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, modConfig)
	stdinWriter.Close()
	stdinReader.Close()
	if mod != nil {
		mod.Close(context.Background())
	}

	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() == 0 {
				e.flushStderr(handler)
				return nil
			}
			return classify(name, handler.Stderr())
		}
		if ctx.Err() != nil {
			return fmt.Errorf("execution interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("execute %s: %w", name, err)
	}

	e.flushStderr(handler)
	return nil
}

func (e *Engine) flushStderr(handler *protocolHandler) {
	if s := handler.Stderr(); s != "" {
		io.WriteString(e.stderr, s)
	}
}

// Close releases the wazero runtime and the compiled interpreter.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.runtime.Close(context.Background())
}

// classify maps interpreter stderr to a typed engine error. QuickJS prints
// "SyntaxError: ..." for parse failures and the exception name for
// everything else. The guest shares the stderr channel, so the error is
// anchored on the last error-header line: output the guest printed before
// failing is not mistaken for the exception message.
func classify(path, stderr string) error {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	idx := -1
	for i, line := range lines {
		if isErrorHeader(line) {
			idx = i
		}
	}
	if idx == -1 {
		msg := strings.TrimSpace(lines[len(lines)-1])
		if msg == "" {
			msg = "guest execution failed"
		}
		return &engine.ThrowError{Path: path, Msg: msg}
	}

	header := lines[idx]
	if strings.HasPrefix(header, "SyntaxError") {
		return &engine.CompileError{Path: path, Msg: header}
	}
	return &engine.ThrowError{Path: path, Msg: header, Stack: strings.Join(lines[idx:], "\n")}
}

// isErrorHeader reports whether line looks like the first line of a QuickJS
// exception dump: an error class name, optionally followed by ": message".
func isErrorHeader(line string) bool {
	name := line
	if i := strings.IndexByte(line, ':'); i >= 0 {
		name = line[:i]
	}
	if !strings.HasSuffix(name, "Error") {
		return false
	}
	for _, r := range name {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
