package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andyherbert/crabzilla/engine"
	"github.com/andyherbert/crabzilla/hostfunc"
	"github.com/andyherbert/crabzilla/value"
)

// mockEngine records calls and returns canned errors.
type mockEngine struct {
	mu       sync.Mutex
	bound    *hostfunc.Registry
	executed []string
	execErr  error
	execFn   func(ctx context.Context) error
	closed   bool
}

func (m *mockEngine) Name() string { return "mock" }

func (m *mockEngine) Bind(reg *hostfunc.Registry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = reg
	return nil
}

func (m *mockEngine) Execute(ctx context.Context, name, src string) error {
	m.mu.Lock()
	m.executed = append(m.executed, name)
	m.mu.Unlock()
	if m.execFn != nil {
		return m.execFn(ctx)
	}
	return m.execErr
}

func (m *mockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func writeModule(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewDuplicateFunction(t *testing.T) {
	fn := func(ctx context.Context, args []value.Value) (value.Value, error) {
		return value.Undefined(), nil
	}
	_, err := New(
		WithScopedFunc("Stdout", "sayHello", fn),
		WithScopedFunc("Stdout", "sayHello", fn),
	)
	if err == nil {
		t.Fatal("expected registration error for duplicate function")
	}
	var regErr *hostfunc.RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got %T: %v", err, err)
	}
	if regErr.Name != "sayHello" {
		t.Errorf("RegistrationError.Name = %q, want %q", regErr.Name, "sayHello")
	}
}

func TestNewReachesIdle(t *testing.T) {
	mock := &mockEngine{}
	r, err := New(WithEngine(mock))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if got := r.State(); got != StateIdle {
		t.Errorf("state after New = %v, want %v", got, StateIdle)
	}
	if mock.bound == nil {
		t.Error("engine was not bound before runtime became usable")
	}
}

func TestLoadModuleNotFound(t *testing.T) {
	var invoked bool
	mock := &mockEngine{}
	r, err := New(
		WithEngine(mock),
		WithScopedFunc("Stdout", "sayHello", func(ctx context.Context, args []value.Value) (value.Value, error) {
			invoked = true
			return value.Undefined(), nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	err = r.LoadModule(context.Background(), filepath.Join(t.TempDir(), "missing.js"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %T: %v", err, err)
	}
	if loadErr.Kind != LoadNotFound {
		t.Errorf("LoadError.Kind = %v, want %v", loadErr.Kind, LoadNotFound)
	}
	if len(mock.executed) != 0 {
		t.Error("engine executed despite missing file")
	}
	if invoked {
		t.Error("host function invoked despite missing file")
	}
	if got := r.State(); got != StateIdle {
		t.Errorf("state after failed load = %v, want %v", got, StateIdle)
	}
}

func TestLoadModuleErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		want    LoadErrorKind
	}{
		{"compile", &engine.CompileError{Path: "m.js", Line: 1, Msg: "unexpected token"}, LoadCompile},
		{"throw", &engine.ThrowError{Path: "m.js", Msg: "boom"}, LoadRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockEngine{execErr: tt.execErr}
			r, err := New(WithEngine(mock))
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()

			path := writeModule(t, "m.js", "whatever")
			err = r.LoadModule(context.Background(), path)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected *LoadError, got %T: %v", err, err)
			}
			if loadErr.Kind != tt.want {
				t.Errorf("LoadError.Kind = %v, want %v", loadErr.Kind, tt.want)
			}
			if !errors.Is(err, tt.execErr) {
				t.Error("LoadError does not wrap the engine error")
			}
			if got := r.State(); got != StateIdle {
				t.Errorf("state after failed load = %v, want %v", got, StateIdle)
			}
		})
	}
}

func TestLoadModuleSequential(t *testing.T) {
	mock := &mockEngine{}
	r, err := New(WithEngine(mock))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	first := writeModule(t, "first.js", "1")
	second := writeModule(t, "second.js", "2")
	for _, p := range []string{first, second} {
		if err := r.LoadModule(context.Background(), p); err != nil {
			t.Fatalf("LoadModule(%s): %v", p, err)
		}
	}
	if len(mock.executed) != 2 {
		t.Errorf("executed %d modules, want 2", len(mock.executed))
	}
}

func TestLoadModuleWhileLoading(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	mock := &mockEngine{execFn: func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}}
	r, err := New(WithEngine(mock))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	path := writeModule(t, "slow.js", "while(0){}")
	done := make(chan error, 1)
	go func() { done <- r.LoadModule(context.Background(), path) }()

	<-entered
	if err := r.LoadModule(context.Background(), path); !errors.Is(err, ErrLoadInProgress) {
		t.Errorf("concurrent load error = %v, want ErrLoadInProgress", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if got := r.State(); got != StateIdle {
		t.Errorf("state after load = %v, want %v", got, StateIdle)
	}
}

func TestCloseIdempotent(t *testing.T) {
	mock := &mockEngine{}
	r, err := New(WithEngine(mock))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !mock.closed {
		t.Error("engine not closed")
	}
	if err := r.LoadModule(context.Background(), "x.js"); !errors.Is(err, ErrRuntimeClosed) {
		t.Errorf("load after close = %v, want ErrRuntimeClosed", err)
	}
	if err := r.Eval(context.Background(), "1"); !errors.Is(err, ErrRuntimeClosed) {
		t.Errorf("eval after close = %v, want ErrRuntimeClosed", err)
	}
}

func TestCloseDuringLoadWins(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	mock := &mockEngine{execFn: func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}}
	r, err := New(WithEngine(mock))
	if err != nil {
		t.Fatal(err)
	}

	path := writeModule(t, "slow.js", "")
	done := make(chan error, 1)
	go func() { done <- r.LoadModule(context.Background(), path) }()

	<-entered
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-done
	if got := r.State(); got != StateClosed {
		t.Errorf("state after close during load = %v, want %v", got, StateClosed)
	}
}

func TestLoadModuleTimeout(t *testing.T) {
	mock := &mockEngine{execFn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	r, err := New(WithEngine(mock), WithTimeout(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	path := writeModule(t, "spin.js", "for(;;){}")
	err = r.LoadModule(context.Background(), path)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("load error = %v, want DeadlineExceeded", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateInitialized, "initialized"},
		{StateLoading, "loading"},
		{StateIdle, "idle"},
		{StateClosed, "closed"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
