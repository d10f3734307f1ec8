package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"framekit/internal/buildpipeline"
	"framekit/internal/diag"
)

// reportError renders err as diagnostics on stderr.
func reportError(cmd *cobra.Command, err error) error {
	colorValue, flagErr := cmd.Root().PersistentFlags().GetString("color")
	if flagErr != nil {
		return flagErr
	}
	colored, flagErr := useColor(colorValue, os.Stderr)
	if flagErr != nil {
		return flagErr
	}
	bag := diag.NewBag(0)
	dedup := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	diag.ReportErr(dedup, err)
	bag.Sort()
	out := cmd.ErrOrStderr()
	if err := diag.Format(out, bag.Items(), diag.FormatOptions{Color: colored, Notes: true}); err != nil {
		return err
	}
	if n := dedup.Suppressed(); n > 0 {
		_, err := fmt.Fprintf(out, "(%d repeated diagnostics not shown)\n", n)
		return err
	}
	return nil
}

func printStageTimings(out io.Writer, unit string, timings buildpipeline.Timings) error {
	if _, err := fmt.Fprintf(out, "%s:", unit); err != nil {
		return err
	}
	for _, stage := range buildpipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, " %s %.1f ms", stage, toMillis(timings.Duration(stage))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(out)
	return err
}

func printSummary(out io.Writer, res *buildpipeline.BuildResult) error {
	cached := 0
	for _, u := range res.Units {
		if u.Cached {
			cached++
		}
	}
	if _, err := fmt.Fprintf(out, "%d units, %d failed, %d cached in %.1f ms\n",
		len(res.Units), len(res.Failed()), cached, toMillis(res.Elapsed)); err != nil {
		return err
	}
	_, err := io.WriteString(out, res.Counters.Summary())
	return err
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
