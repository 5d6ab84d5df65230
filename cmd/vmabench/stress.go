//go:build linux && (amd64 || arm64)

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/vmabench/stressng"
)

type stressConfig struct {
	runs      int
	binary    string
	buildFrom string
	timeout   time.Duration
	instances int
}

func newStressCmd(logger *slog.Logger) *cobra.Command {
	var cfg stressConfig

	defaults := stressng.DefaultRunConfig()

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run the stress-ng pagemove stressor repeatedly",
		Long: `Run stress-ng --pagemove the given number of times and summarize the
page remaps per second it reports.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStress(cmd.Context(), logger, cmd.OutOrStdout(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.runs, "runs", defaults.Runs,
		"Number of stress-ng runs")
	flags.StringVar(&cfg.binary, "binary", "",
		"Path to stress-ng (default: stress-ng from $PATH)")
	flags.StringVar(&cfg.buildFrom, "build-from", "",
		"Build stress-ng from this source tree before running")
	flags.DurationVar(&cfg.timeout, "timeout", defaults.Timeout,
		"Duration of each stress-ng run")
	flags.IntVar(&cfg.instances, "instances", defaults.Instances,
		"Number of pagemove stressor instances")

	return cmd
}

func runStress(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	cfg stressConfig,
) error {
	var (
		binPath string
		err     error
	)

	if cfg.buildFrom != "" {
		binPath, err = stressng.Build(ctx, logger, cfg.buildFrom)
	} else {
		binPath, err = stressng.Resolve(cfg.binary)
	}

	if err != nil {
		return err
	}

	runner := stressng.NewRunner(binPath, logger)

	result, err := runner.Run(ctx, stressng.RunConfig{
		Runs:      cfg.runs,
		Timeout:   cfg.timeout,
		Instances: cfg.instances,
	})
	if err != nil {
		return fmt.Errorf("stress-ng: %w", err)
	}

	return stressng.WriteSummary(out, result)
}
