package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"framekit/internal/lir"
	"framekit/internal/lirio"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <file>",
	Short: "Print the units of a file in text or TOML form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}
		units, err := lirio.LoadFile(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, f := range units {
			if i > 0 {
				if _, err := fmt.Fprintln(out); err != nil {
					return err
				}
			}
			switch strings.ToLower(format) {
			case "text", "lir":
				err = lir.Dump(out, f)
			case "toml":
				err = lirio.EncodeUnit(out, f)
			default:
				return fmt.Errorf("unsupported format %q (must be text or toml)", format)
			}
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().String("format", "text", "output format (text|toml)")
}
