package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/andyherbert/crabzilla/bridge"
)

var runCmd = &cobra.Command{
	Use:   "run [file...]",
	Short: "Load and execute JavaScript modules",
	Long: `Load one or more JavaScript modules and execute them in order on a
single runtime. Host functions registered at startup are visible to
every module. Execution stops at the first module that fails.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout per module")
	cmd.Flags().Bool("kv", false, "Enable key-value store (KV scope)")
	cmd.Flags().StringSlice("allow-host", nil, "Allow HTTP to host (repeatable, HTTP scope)")
	cmd.Flags().StringSlice("mount", nil, "Mount filesystem virtual:host:mode (repeatable, FS scope)")
}

func runRun(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		return
	}

	ctx := context.Background()
	rt, err := buildRuntime(ctx, cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	for _, path := range args {
		if err := rt.LoadModule(ctx, path); err != nil {
			fmt.Fprintln(os.Stderr, formatLoadError(err))
			os.Exit(1)
		}
	}
}

func formatLoadError(err error) string {
	var loadErr *bridge.LoadError
	if !errors.As(err, &loadErr) {
		return fmt.Sprintf("Error: %v", err)
	}
	switch loadErr.Kind {
	case bridge.LoadNotFound:
		return fmt.Sprintf("Error: module not found: %s", loadErr.Path)
	case bridge.LoadCompile:
		return fmt.Sprintf("Compile error in %s: %v", loadErr.Path, loadErr.Err)
	case bridge.LoadRuntime:
		return fmt.Sprintf("Uncaught exception in %s: %v", loadErr.Path, loadErr.Err)
	default:
		return fmt.Sprintf("Error loading %s: %v", loadErr.Path, loadErr.Err)
	}
}
