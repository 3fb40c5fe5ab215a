package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/andyherbert/crabzilla/bridge"
	"github.com/andyherbert/crabzilla/engine"
	"github.com/andyherbert/crabzilla/hostfunc"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"crabzilla",
		"JavaScript",
		"run",
		"repl",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLIRunHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "run", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"--timeout",
		"--kv",
		"--allow-host",
		"--mount",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("run help output should contain %q", phrase)
		}
	}
}

func TestCLIReplHelpScopesStateClaim(t *testing.T) {
	output, err := executeCommand(rootCmd, "repl", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "fresh interpreter") {
		t.Error("repl help should state that quickjs does not persist guest state")
	}
	if !strings.Contains(output, "goja engine, guest") {
		t.Error("repl help should scope state persistence to the goja engine")
	}
}

func TestReplBanner(t *testing.T) {
	if b := replBanner("goja"); strings.Contains(b, "does not persist") {
		t.Errorf("goja banner should not warn about state: %q", b)
	}
	b := replBanner("quickjs")
	if !strings.Contains(b, "does not persist between lines") {
		t.Errorf("quickjs banner should warn about per-line interpreter state: %q", b)
	}
}

func TestParseMount(t *testing.T) {
	tests := []struct {
		spec    string
		want    hostfunc.Mount
		wantErr bool
	}{
		{"/data:./input:ro", hostfunc.Mount{VirtualPath: "/data", HostPath: "./input", Mode: hostfunc.MountReadOnly}, false},
		{"/out:/tmp/out:rw", hostfunc.Mount{VirtualPath: "/out", HostPath: "/tmp/out", Mode: hostfunc.MountReadWrite}, false},
		{"/scratch:/tmp/s:rwc", hostfunc.Mount{VirtualPath: "/scratch", HostPath: "/tmp/s", Mode: hostfunc.MountReadWriteCreate}, false},
		{"/data:./input", hostfunc.Mount{}, true},
		{"/data:./input:banana", hostfunc.Mount{}, true},
		{"", hostfunc.Mount{}, true},
	}
	for _, tt := range tests {
		got, err := parseMount(tt.spec)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMount(%q): expected error", tt.spec)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMount(%q): %v", tt.spec, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMount(%q) = %+v, want %+v", tt.spec, got, tt.want)
		}
	}
}

func TestNewEngineUnknown(t *testing.T) {
	log := newLogger("")
	if _, err := newEngine(t.Context(), "v8", log); err == nil {
		t.Error("expected error for unknown engine")
	}
	eng, err := newEngine(t.Context(), "", log)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()
	if eng.Name() != "goja" {
		t.Errorf("default engine = %q, want goja", eng.Name())
	}
}

func TestFormatLoadError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"not found",
			&bridge.LoadError{Kind: bridge.LoadNotFound, Path: "missing.js", Err: os.ErrNotExist},
			"module not found: missing.js",
		},
		{
			"compile",
			&bridge.LoadError{Kind: bridge.LoadCompile, Path: "bad.js", Err: &engine.CompileError{Path: "bad.js", Line: 3, Msg: "unexpected token"}},
			"Compile error in bad.js",
		},
		{
			"runtime",
			&bridge.LoadError{Kind: bridge.LoadRuntime, Path: "boom.js", Err: &engine.ThrowError{Path: "boom.js", Msg: "boom"}},
			"Uncaught exception in boom.js",
		},
		{
			"plain",
			errors.New("out of cheese"),
			"Error: out of cheese",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatLoadError(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("formatLoadError = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crabzilla.toml")
	content := `
engine = "quickjs"
timeout = "45s"
log_level = "debug"
kv = true
allow_hosts = ["api.example.com"]

[[mounts]]
virtual = "/data"
host = "./input"
mode = "ro"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != "quickjs" {
		t.Errorf("Engine = %q, want quickjs", cfg.Engine)
	}
	if cfg.Timeout.Duration() != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout.Duration())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.KV {
		t.Error("KV not enabled")
	}
	if len(cfg.AllowHosts) != 1 || cfg.AllowHosts[0] != "api.example.com" {
		t.Errorf("AllowHosts = %v", cfg.AllowHosts)
	}
	if len(cfg.Mounts) != 1 {
		t.Fatalf("Mounts = %v", cfg.Mounts)
	}
	m, err := cfg.Mounts[0].toMount()
	if err != nil {
		t.Fatal(err)
	}
	if m.VirtualPath != "/data" || m.Mode != hostfunc.MountReadOnly {
		t.Errorf("mount = %+v", m)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	// Explicit path must exist.
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crabzilla.toml")
	if err := os.WriteFile(path, []byte(`enigne = "goja"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("expected error for unknown config key")
	}
}

func TestLoadConfigBadMode(t *testing.T) {
	mc := mountConfig{Virtual: "/data", Host: "./input", Mode: "append"}
	if _, err := mc.toMount(); err == nil {
		t.Error("expected error for invalid mount mode")
	}
}
