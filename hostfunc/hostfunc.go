package hostfunc

import (
	"context"
	"fmt"
	"sort"

	"github.com/andyherbert/crabzilla/value"
)

// Func is a host-implemented callable exposed to guest code. It receives the
// guest-supplied arguments marshalled into Values and returns a Value to hand
// back, or an error that surfaces to the guest as a thrown exception.
// Returning the zero Value yields the guest's undefined.
//
// Funcs complete synchronously relative to the guest; truly asynchronous host
// work belongs in goroutines owned by the host author.
type Func func(ctx context.Context, args []value.Value) (value.Value, error)

// Entry binds a Func to the name (and optional scope object) under which
// guest code can call it. With a scope, the function appears as
// Scope.name(...); without one, it is attached to the global object.
type Entry struct {
	Name  string
	Scope string
	Fn    Func
}

// Qualified returns the guest-visible dotted name of the entry.
func (e Entry) Qualified() string {
	return Qualified(e.Scope, e.Name)
}

// Qualified joins an optional scope and a name into the dotted form used as
// the registry key.
func Qualified(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// RegistrationError reports an Entry that could not be registered.
type RegistrationError struct {
	Name   string
	Scope  string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s: %s", Qualified(e.Scope, e.Name), e.Reason)
}

// Registry is an immutable collection of named host functions. It is built
// once at runtime construction and never changes afterwards, so lookups
// need no locking.
type Registry struct {
	entries []Entry
	index   map[string]Func
	scopes  []string
}

// NewRegistry builds a Registry from a declarative entry list. Registering
// two functions under the same qualified name is an error, whatever the
// order. Names and scopes must be non-empty printable ASCII without
// whitespace; scopes may be empty to bind on the global object.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]Func, len(entries)),
	}
	seenScopes := make(map[string]bool)

	for _, e := range entries {
		if err := validateWord(e.Name); err != nil {
			return nil, &RegistrationError{Name: e.Name, Scope: e.Scope, Reason: "invalid name: " + err.Error()}
		}
		if e.Scope != "" {
			if err := validateWord(e.Scope); err != nil {
				return nil, &RegistrationError{Name: e.Name, Scope: e.Scope, Reason: "invalid scope: " + err.Error()}
			}
		}
		if e.Fn == nil {
			return nil, &RegistrationError{Name: e.Name, Scope: e.Scope, Reason: "nil function"}
		}

		q := e.Qualified()
		if _, dup := r.index[q]; dup {
			return nil, &RegistrationError{Name: e.Name, Scope: e.Scope, Reason: "duplicate name"}
		}
		r.index[q] = e.Fn
		r.entries = append(r.entries, e)

		if e.Scope != "" && !seenScopes[e.Scope] {
			seenScopes[e.Scope] = true
			r.scopes = append(r.scopes, e.Scope)
		}
	}

	sort.Strings(r.scopes)
	return r, nil
}

// Lookup returns the Func registered under the qualified name.
func (r *Registry) Lookup(qualified string) (Func, bool) {
	fn, ok := r.index[qualified]
	return fn, ok
}

// Entries returns the registered entries in registration order, so engine
// bindings are deterministic.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Scopes returns the distinct scope names, sorted.
func (r *Registry) Scopes() []string {
	out := make([]string, len(r.scopes))
	copy(out, r.scopes)
	return out
}

// Len returns the number of registered functions.
func (r *Registry) Len() int { return len(r.entries) }

// Invoke dispatches a call by qualified name. Host failures, including
// panics inside the Func, come back as ordinary errors; the engine layer
// turns them into guest-visible exceptions. Panics never unwind across the
// engine boundary.
func (r *Registry) Invoke(ctx context.Context, qualified string, args []value.Value) (res value.Value, err error) {
	fn, ok := r.index[qualified]
	if !ok {
		return value.Undefined(), fmt.Errorf("unknown host function: %s", qualified)
	}

	defer func() {
		if rec := recover(); rec != nil {
			res = value.Undefined()
			err = fmt.Errorf("host function %s panicked: %v", qualified, rec)
		}
	}()

	return fn(ctx, args)
}

func validateWord(s string) error {
	if s == "" {
		return fmt.Errorf("empty")
	}
	for _, c := range s {
		if c > 0x7e || c <= ' ' {
			return fmt.Errorf("contains non-ASCII or whitespace")
		}
	}
	return nil
}
