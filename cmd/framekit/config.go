package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framekit/internal/buildpipeline"
	"framekit/internal/project"
)

// runConfig is the merged result of framekit.toml and command flags.
type runConfig struct {
	project  project.Config
	options  buildpipeline.Options
	jobs     int
	cacheDir string
}

func loadRunConfig(cmd *cobra.Command) (*runConfig, error) {
	configPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := project.Discover(".", configPath)
	if err != nil {
		return nil, err
	}
	tgt, err := cfg.BuildTarget()
	if err != nil {
		return nil, err
	}
	rc := &runConfig{
		project: cfg,
		options: buildpipeline.Options{
			Target:       tgt,
			VerifyPhis:   cfg.Pipeline.VerifyPhis,
			VerifyOutput: cfg.Pipeline.VerifyOutput,
		},
		jobs:     cfg.Pipeline.Jobs,
		cacheDir: cfg.Pipeline.Cache,
	}

	flags := cmd.Flags()
	if f := flags.Lookup("jobs"); f != nil && f.Changed {
		if rc.jobs, err = flags.GetInt("jobs"); err != nil {
			return nil, err
		}
	}
	if f := flags.Lookup("cache"); f != nil && f.Changed {
		if rc.cacheDir, err = flags.GetString("cache"); err != nil {
			return nil, err
		}
	}
	if f := flags.Lookup("no-verify"); f != nil && f.Changed {
		noVerify, err := flags.GetBool("no-verify")
		if err != nil {
			return nil, err
		}
		if noVerify {
			rc.options.VerifyPhis = false
			rc.options.VerifyOutput = false
		}
	}
	return rc, nil
}
