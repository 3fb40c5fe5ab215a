package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/andyherbert/crabzilla/bridge"
	"github.com/andyherbert/crabzilla/engine"
	"github.com/andyherbert/crabzilla/engine/gojaengine"
	"github.com/andyherbert/crabzilla/engine/quickjs"
	"github.com/andyherbert/crabzilla/hostfunc"
)

var rootCmd = &cobra.Command{
	Use:   "crabzilla [file...]",
	Short: "Run JavaScript modules against registered host functions",
	Long: `crabzilla - Embed JavaScript and bridge host functions into the guest.

Modules run with zero default capabilities. Host-side functionality
(key-value store, filesystem mounts, HTTP) is exposed to the guest
through global scope objects, enabled explicitly with flags.`,
	Args: cobra.ArbitraryArgs,
	Run:  runRun, // Default to run command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("engine", "e", "", "Engine: goja, quickjs (default: goja)")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: ./crabzilla.toml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: warn)")

	addRunFlags(rootCmd)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func parseMount(spec string) (hostfunc.Mount, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return hostfunc.Mount{}, fmt.Errorf("invalid mount spec %q (expected virtual:host:mode)", spec)
	}

	mode, err := parseMountMode(parts[2])
	if err != nil {
		return hostfunc.Mount{}, err
	}

	return hostfunc.Mount{
		VirtualPath: parts[0],
		HostPath:    parts[1],
		Mode:        mode,
	}, nil
}

func parseMountMode(s string) (hostfunc.MountMode, error) {
	switch s {
	case "ro":
		return hostfunc.MountReadOnly, nil
	case "rw":
		return hostfunc.MountReadWrite, nil
	case "rwc":
		return hostfunc.MountReadWriteCreate, nil
	default:
		return 0, fmt.Errorf("invalid mount mode %q (expected ro, rw, or rwc)", s)
	}
}

func newEngine(ctx context.Context, name string, log zerolog.Logger) (engine.Engine, error) {
	switch name {
	case "", "goja":
		return gojaengine.New(gojaengine.WithLogger(log)), nil
	case "quickjs", "qjs":
		return quickjs.New(ctx, quickjs.WithLogger(log))
	default:
		return nil, fmt.Errorf("unknown engine %q: use goja or quickjs", name)
	}
}

// buildRuntime assembles a bridge.Runtime from flags layered over the
// config file. Flags win.
func buildRuntime(ctx context.Context, cmd *cobra.Command) (*bridge.Runtime, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	engineName, _ := cmd.Flags().GetString("engine")
	if engineName == "" {
		engineName = cfg.Engine
	}
	logLevel, _ := cmd.Flags().GetString("log-level")
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	log := newLogger(logLevel)

	eng, err := newEngine(ctx, engineName, log)
	if err != nil {
		return nil, err
	}

	opts := []bridge.Option{
		bridge.WithEngine(eng),
		bridge.WithLogger(log),
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if !cmd.Flags().Changed("timeout") && cfg.Timeout > 0 {
		timeout = cfg.Timeout.Duration()
	}
	if timeout > 0 {
		opts = append(opts, bridge.WithTimeout(timeout))
	}

	enableKV, _ := cmd.Flags().GetBool("kv")
	if enableKV || cfg.KV {
		opts = append(opts, bridge.WithKV(hostfunc.NewKVStore()))
	}

	allowedHosts, _ := cmd.Flags().GetStringSlice("allow-host")
	allowedHosts = append(allowedHosts, cfg.AllowHosts...)
	if len(allowedHosts) > 0 {
		opts = append(opts, bridge.WithAllowedHosts(allowedHosts))
	}

	mountSpecs, _ := cmd.Flags().GetStringSlice("mount")
	mounts := make([]hostfunc.Mount, 0, len(mountSpecs)+len(cfg.Mounts))
	for _, spec := range mountSpecs {
		m, err := parseMount(spec)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}
	for _, mc := range cfg.Mounts {
		m, err := mc.toMount()
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}
	if len(mounts) > 0 {
		opts = append(opts, bridge.WithMounts(mounts))
	}

	return bridge.New(opts...)
}
