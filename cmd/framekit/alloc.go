package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"framekit/internal/buildpipeline"
	"framekit/internal/lir"
	"framekit/internal/lirio"
)

var allocCmd = &cobra.Command{
	Use:   "alloc [flags] <path>...",
	Short: "Allocate stack frames and resolve phis",
	Long: `Allocate stack slots for every unit found in the given files or
directories, finalize their frames and replace phi bindings with moves.
Units are compiled in parallel; a failing unit does not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: allocExecution,
}

func init() {
	allocCmd.Flags().Int("jobs", 0, "units compiled at once (0 = GOMAXPROCS)")
	allocCmd.Flags().String("cache", "", "directory for cached results")
	allocCmd.Flags().Bool("no-verify", false, "skip phi and output verification")
	allocCmd.Flags().Bool("layout", false, "print the slot layout of every unit")
	allocCmd.Flags().StringP("out", "o", "", "write results into this directory instead of stdout")
	allocCmd.Flags().String("pack", "", "write all results into one lirpack file")
	allocCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
}

var errUnitsFailed = errors.New("some units failed")

// unitsFailedError keeps the unit errors behind the summary so the
// diagnostics and their locations stay reachable from the command error.
type unitsFailedError struct {
	failed, total int
	cause         error
}

func (e *unitsFailedError) Error() string {
	return fmt.Sprintf("%v: %d of %d", errUnitsFailed, e.failed, e.total)
}

func (e *unitsFailedError) Unwrap() []error { return []error{errUnitsFailed, e.cause} }

func allocExecution(cmd *cobra.Command, args []string) error {
	showLayout, err := cmd.Flags().GetBool("layout")
	if err != nil {
		return err
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	packPath, err := cmd.Flags().GetString("pack")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	rc, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	files, err := buildpipeline.ListUnitFiles(args)
	if err != nil {
		return err
	}
	inputs, err := buildpipeline.LoadInputs(ctx, files, nil)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no units found in %v", args)
	}

	req := &buildpipeline.BuildRequest{
		Options: rc.options,
		Inputs:  inputs,
		Jobs:    rc.jobs,
	}
	if req.Heartbeat, err = cmd.Root().PersistentFlags().GetDuration("trace-heartbeat"); err != nil {
		return err
	}
	if rc.cacheDir != "" {
		if req.Cache, err = buildpipeline.OpenDiskCache(rc.cacheDir, "framekit"); err != nil {
			return err
		}
	}

	stdoutBusy := outDir == "" && packPath == ""
	var res *buildpipeline.BuildResult
	if shouldUseTUI(uiModeValue, stdoutBusy) {
		res, err = runBuildWithUI(ctx, "framekit alloc", req)
	} else {
		res, err = buildpipeline.Build(ctx, req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var ok []*lir.Func
	for _, u := range res.Units {
		if u.Err != nil {
			continue
		}
		ok = append(ok, u.Func)
		if showLayout {
			if err := printLayout(cmd, u); err != nil {
				return err
			}
		}
		if stdoutBusy {
			if err := lir.Dump(out, u.Func); err != nil {
				return err
			}
		}
		if showTimings && !u.Cached {
			if err := printStageTimings(cmd.ErrOrStderr(), u.Name, u.Timings); err != nil {
				return err
			}
		}
	}

	if outDir != "" {
		if err := writeUnits(outDir, ok); err != nil {
			return err
		}
	}
	if packPath != "" {
		pack := &lirio.Pack{Target: rc.options.Target.Fingerprint(), Units: ok}
		if err := lirio.WritePackFile(packPath, pack); err != nil {
			return err
		}
	}
	if showTimings {
		if err := printSummary(cmd.ErrOrStderr(), res); err != nil {
			return err
		}
	}
	if failErr := res.Err(); failErr != nil {
		if err := reportError(cmd, failErr); err != nil {
			return err
		}
		return &unitsFailedError{failed: len(res.Failed()), total: len(res.Units), cause: failErr}
	}
	return nil
}

func printLayout(cmd *cobra.Command, u *buildpipeline.UnitResult) error {
	w := cmd.ErrOrStderr()
	if _, err := fmt.Fprintf(w, "# layout %s\n", u.Name); err != nil {
		return err
	}
	if u.Layout == nil {
		_, err := fmt.Fprintf(w, "frame %d (cached)\n", u.Func.FrameSize)
		return err
	}
	return u.Layout.WriteLayout(w)
}

func writeUnits(dir string, units []*lir.Func) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range units {
		path := filepath.Join(dir, lirio.NormalizeName(f.Name)+lirio.ExtText)
		if err := os.WriteFile(path, []byte(f.String()), 0o644); err != nil {
			return err
		}
	}
	return nil
}
