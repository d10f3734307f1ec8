package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framekit/internal/buildpipeline"
	"framekit/internal/lir"
	"framekit/internal/lirio"
)

var packCmd = &cobra.Command{
	Use:   "pack -o <out.lirpack> <path>...",
	Short: "Bundle unit files into one lirpack",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			return err
		}
		if outPath == "" {
			return fmt.Errorf("missing --out")
		}
		files, err := buildpipeline.ListUnitFiles(args)
		if err != nil {
			return err
		}
		inputs, err := buildpipeline.LoadInputs(cmd.Context(), files, nil)
		if err != nil {
			return err
		}
		pack := &lirio.Pack{Units: make([]*lir.Func, 0, len(inputs))}
		for _, in := range inputs {
			pack.Units = append(pack.Units, in.Func)
		}
		if err := lirio.WritePackFile(outPath, pack); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "packed %d units into %s\n", len(pack.Units), outPath)
		return err
	},
}

func init() {
	packCmd.Flags().StringP("out", "o", "", "output lirpack path")
}
