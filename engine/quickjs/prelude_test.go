package quickjs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/andyherbert/crabzilla/engine"
	"github.com/andyherbert/crabzilla/hostfunc"
	"github.com/andyherbert/crabzilla/value"
)

func noop(ctx context.Context, args []value.Value) (value.Value, error) {
	return value.Undefined(), nil
}

func TestBuildPrelude(t *testing.T) {
	reg, err := hostfunc.NewRegistry(
		hostfunc.Entry{Scope: "Stdin", Name: "read", Fn: noop},
		hostfunc.Entry{Scope: "Stdout", Name: "sayHello", Fn: noop},
		hostfunc.Entry{Name: "now", Fn: noop},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	prelude := buildPrelude(reg)

	wants := []string{
		`g["Stdin"]={};`,
		`g["Stdout"]={};`,
		`g["Stdin"]["read"]=function(){return hostcall("Stdin.read"`,
		`g["Stdout"]["sayHello"]=function(){return hostcall("Stdout.sayHello"`,
		`g["now"]=function(){return hostcall("now"`,
		`"use strict"`,
		`std.err.puts`,
		`std.in.getline()`,
	}
	for _, want := range wants {
		if !strings.Contains(prelude, want) {
			t.Errorf("prelude missing %q", want)
		}
	}
}

func TestBuildPreludeScopeDefinedOnce(t *testing.T) {
	reg, _ := hostfunc.NewRegistry(
		hostfunc.Entry{Scope: "KV", Name: "get", Fn: noop},
		hostfunc.Entry{Scope: "KV", Name: "set", Fn: noop},
	)

	prelude := buildPrelude(reg)
	if got := strings.Count(prelude, `g["KV"]={};`); got != 1 {
		t.Errorf("scope object defined %d times, want 1", got)
	}
}

func TestBuildPreludeNilRegistry(t *testing.T) {
	prelude := buildPrelude(nil)
	if !strings.Contains(prelude, "hostcall") {
		t.Error("prelude should still define the hostcall helper")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		stderr  string
		compile bool
	}{
		{"syntax error", "SyntaxError: unexpected token in expression: ')'\n    at mod.js:3\n", true},
		{"reference error", "ReferenceError: x is not defined\n    at mod.js:1\n", false},
		{"thrown error", "Error: deliberate\n    at mod.js:2\n", false},
		{"empty stderr", "", false},
		{"guest output before failure", "progress line one\nTypeError: not a function\n    at mod.js:4\n", false},
		{"guest prints fake syntax error", "SyntaxError: just printed, not thrown\nReferenceError: x is not defined\n    at mod.js:1\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("mod.js", tt.stderr)

			var compileErr *engine.CompileError
			var throwErr *engine.ThrowError
			switch {
			case tt.compile && !errors.As(err, &compileErr):
				t.Errorf("expected CompileError, got %T: %v", err, err)
			case !tt.compile && !errors.As(err, &throwErr):
				t.Errorf("expected ThrowError, got %T: %v", err, err)
			}
		})
	}
}

func TestClassifyAnchorsOnLastErrorHeader(t *testing.T) {
	stderr := "loading data\nstill fine\nRangeError: invalid array length\n    at mod.js:7\n"
	err := classify("mod.js", stderr)

	var throwErr *engine.ThrowError
	if !errors.As(err, &throwErr) {
		t.Fatalf("expected ThrowError, got %T: %v", err, err)
	}
	if throwErr.Msg != "RangeError: invalid array length" {
		t.Errorf("Msg = %q, want the error header, not guest output", throwErr.Msg)
	}
	if strings.Contains(throwErr.Stack, "loading data") {
		t.Errorf("Stack should not include guest output before the error: %q", throwErr.Stack)
	}
}
