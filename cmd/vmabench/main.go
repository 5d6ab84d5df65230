//go:build linux && (amd64 || arm64)

// Package main provides the CLI entry point for vmabench, a benchmark of
// munmap, mprotect and madvise cost as a function of VMA count.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	root := newRootCmd(logger, level)
	if err := root.Execute(); err != nil {
		logger.Error("vmabench failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "vmabench",
		Short: "Memory-management syscall cost versus VMA count",
		Long: `Vmabench measures how long munmap, mprotect and madvise take on
mappings split into a growing number of VMAs, using either the monotonic
wall clock or a hardware reference-cycle counter, and reports the mean,
standard deviation and standard error of every configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if debug {
				level.Set(slog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug logging")

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newStressCmd(logger))

	return root
}
