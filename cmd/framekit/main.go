// Package main implements the framekit CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"framekit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "framekit",
	Short:         "Stack frame allocation and phi resolution for LIR units",
	Long:          `framekit assigns stack slots to virtual slots, finalizes frames and replaces phi bindings with explicit moves.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupRuntime(cmd)
	},
}

// runtimeCleanup releases tracing and profiling once the command returns.
var runtimeCleanup = func(err error) {}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(allocCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to framekit.toml (default: search upwards from the working directory)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("timings", false, "show per-stage timings")
	flags.String("trace", "", "trace output file (\"-\" for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	flags.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	flags.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 disables)")
	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	runtimeCleanup(err)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupRuntime(cmd *cobra.Command) error {
	stopTrace, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	stopProf, err := setupProfiling(cmd)
	if err != nil {
		stopTrace(err)
		return err
	}
	runtimeCleanup = func(err error) {
		stopProf()
		stopTrace(err)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
