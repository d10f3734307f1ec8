package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"framekit/internal/diag"
	"framekit/internal/trace"
)

// setupTracing inspects trace-related flags and attaches a tracer to the
// command context. When the command fails, the returned cleanup dumps the
// ring events of the units the error is located in to stderr.
func setupTracing(cmd *cobra.Command) (func(err error), error) {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := root.PersistentFlags().GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	formatStr, err := root.PersistentFlags().GetString("trace-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
	}
	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	// --trace alone implies phase-level tracing.
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func(error) {}, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace format: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: traceOutput,
		RingSize:   ringSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)

	cleanup := func(runErr error) {
		if runErr != nil {
			if ring := ringOf(tracer); ring != nil {
				if err := dumpFailure(os.Stderr, ring, runErr); err != nil {
					fmt.Fprintf(os.Stderr, "trace: dump error: %v\n", err)
				}
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}

// dumpFailure writes the ring events of the units named by the locations of
// err's diagnostics. Errors that carry no unit get the whole ring.
func dumpFailure(w io.Writer, ring *trace.RingTracer, err error) error {
	units := failedUnits(err)
	if len(units) > 0 {
		fmt.Fprintf(w, "trace: last events of %s before failure:\n", strings.Join(units, ", "))
		n, derr := ring.DumpUnits(w, trace.FormatText, units)
		if derr != nil || n > 0 {
			return derr
		}
		fmt.Fprintln(w, "trace: none recorded for these units, showing all")
	} else {
		fmt.Fprintln(w, "trace: last events before failure:")
	}
	return ring.Dump(w, trace.FormatText)
}

func failedUnits(err error) []string {
	var units []string
	for _, d := range diag.Collect(err) {
		if name := d.Primary.Func; name != "" && !slices.Contains(units, name) {
			units = append(units, name)
		}
	}
	return units
}

func ringOf(t trace.Tracer) *trace.RingTracer {
	switch t := t.(type) {
	case *trace.RingTracer:
		return t
	case *trace.MultiTracer:
		return t.Ring()
	}
	return nil
}
