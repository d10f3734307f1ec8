package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"framekit/internal/buildpipeline"
	"framekit/internal/lir"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <path>...",
	Short: "Check unit structure and phi kinds without allocating",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := buildpipeline.ListUnitFiles(args)
		if err != nil {
			return err
		}
		inputs, err := buildpipeline.LoadInputs(cmd.Context(), files, nil)
		if err != nil {
			return err
		}
		var errs []error
		for _, in := range inputs {
			if err := verifyUnit(in.Func); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			if rerr := reportError(cmd, err); rerr != nil {
				return rerr
			}
			return &unitsFailedError{failed: len(errs), total: len(inputs), cause: err}
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d units ok\n", len(inputs))
		return err
	},
}

func verifyUnit(f *lir.Func) error {
	if err := lir.Validate(f); err != nil {
		return err
	}
	return lir.VerifyAllPhis(f)
}
