//go:build linux && (amd64 || arm64)

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/weiihann/vmabench/bench"
	"github.com/weiihann/vmabench/config"
	"github.com/weiihann/vmabench/metrics"
	"github.com/weiihann/vmabench/plan"
	"github.com/weiihann/vmabench/report"
	"github.com/weiihann/vmabench/timing"
)

type runConfig struct {
	operations        []string
	vmaCounts         []int
	maxVMAs           int
	trials            int
	batchSize         int
	timer             string
	includeUserCycles bool
	errorMode         string
	protect           string
	advice            string
	verifyLayout      bool
	table             bool
	metricsFile       string
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		cfg        runConfig
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the VMA-count benchmark suite",
		Long: `Run every selected operation at every selected VMA count and print
one report line per configuration. Values from --config are used unless the
matching flag is given explicitly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				file, err := config.Load(configPath)
				if err != nil {
					return err
				}

				cfg.merge(file, cmd)
			}

			return runSuite(cmd.Context(), logger, cmd.OutOrStdout(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "",
		"YAML or JSON config file")
	flags.StringSliceVar(&cfg.operations, "ops", nil,
		"Operations to run: munmap, mprotect, madvise (default all)")
	flags.IntSliceVar(&cfg.vmaCounts, "vmas", nil,
		"VMA counts to run (default 1,2,4,8,16,32)")
	flags.IntVar(&cfg.maxVMAs, "max-vmas", 0,
		"Run powers of two up to this VMA count instead of --vmas")
	flags.IntVar(&cfg.trials, "trials", bench.DefaultTrials,
		"Trials per configuration")
	flags.IntVar(&cfg.batchSize, "batch", bench.DefaultBatchSize,
		"Mappings held and operated on per trial")
	flags.StringVar(&cfg.timer, "timer", timing.NameWall,
		"Timer: wall (ns) or cycles (kernel reference cycles)")
	flags.BoolVar(&cfg.includeUserCycles, "include-user-cycles", false,
		"Also count user-mode cycles with --timer cycles")
	flags.StringVar(&cfg.errorMode, "errors", "unchecked",
		"Syscall results inside timed windows: unchecked or checked")
	flags.StringVar(&cfg.protect, "protect", "read",
		"Protection mprotect applies: read, read-write, none")
	flags.StringVar(&cfg.advice, "advice", "dontneed",
		"Advice madvise gives: dontneed, free, cold, pageout")
	flags.BoolVar(&cfg.verifyLayout, "verify-layout", false,
		"Check the VMA layout via /proc/self/maps before timing")
	flags.BoolVar(&cfg.table, "table", false,
		"Print a markdown summary table after the report lines")
	flags.StringVar(&cfg.metricsFile, "metrics-file", "",
		"Write results in Prometheus text format to this file")

	return cmd
}

// merge copies file values into cfg for every flag not set on the command
// line.
func (cfg *runConfig) merge(file *config.File, cmd *cobra.Command) {
	changed := cmd.Flags().Changed

	if !changed("ops") && len(file.Operations) > 0 {
		cfg.operations = file.Operations
	}
	if !changed("vmas") && len(file.VMACounts) > 0 {
		cfg.vmaCounts = file.VMACounts
	}
	if !changed("max-vmas") && file.MaxVMAs != 0 {
		cfg.maxVMAs = file.MaxVMAs
	}
	if !changed("trials") && file.Trials != 0 {
		cfg.trials = file.Trials
	}
	if !changed("batch") && file.BatchSize != 0 {
		cfg.batchSize = file.BatchSize
	}
	if !changed("timer") && file.Timer != "" {
		cfg.timer = file.Timer
	}
	if !changed("include-user-cycles") && file.IncludeUserCycles {
		cfg.includeUserCycles = true
	}
	if !changed("errors") && file.ErrorMode != "" {
		cfg.errorMode = file.ErrorMode
	}
	if !changed("protect") && file.Protect != "" {
		cfg.protect = file.Protect
	}
	if !changed("advice") && file.Advice != "" {
		cfg.advice = file.Advice
	}
	if !changed("verify-layout") && file.VerifyLayout {
		cfg.verifyLayout = true
	}
	if !changed("table") && file.Table {
		cfg.table = true
	}
	if !changed("metrics-file") && file.MetricsFile != "" {
		cfg.metricsFile = file.MetricsFile
	}
}

// benchConfig resolves the names in cfg into the driver's base config.
func (cfg runConfig) benchConfig() (bench.Config, error) {
	counter := timing.CounterConfig{IncludeUser: cfg.includeUserCycles}

	timer, err := timing.New(cfg.timer, counter)
	if err != nil {
		return bench.Config{}, err
	}

	if timer.Name() == timing.NameCycles {
		if err := timing.CounterAvailable(counter); err != nil {
			return bench.Config{}, fmt.Errorf("cycle counter: %w", err)
		}
	}

	mode, err := bench.ParseErrorMode(cfg.errorMode)
	if err != nil {
		return bench.Config{}, err
	}

	prot, err := bench.ParseProtect(cfg.protect)
	if err != nil {
		return bench.Config{}, err
	}

	advice, err := bench.ParseAdvice(cfg.advice)
	if err != nil {
		return bench.Config{}, err
	}

	return bench.Config{
		Timer:        timer,
		ErrorMode:    mode,
		Protect:      prot,
		Advice:       advice,
		VerifyLayout: cfg.verifyLayout,
	}, nil
}

func runSuite(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	cfg runConfig,
) error {
	p, err := plan.Generate(plan.Config{
		Operations: cfg.operations,
		VMACounts:  cfg.vmaCounts,
		MaxVMAs:    cfg.maxVMAs,
		Trials:     cfg.trials,
		BatchSize:  cfg.batchSize,
	})
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	base, err := cfg.benchConfig()
	if err != nil {
		return err
	}

	base.Trials = p.Trials
	base.BatchSize = p.BatchSize

	for _, c := range p.Cases {
		if !c.PowerOfTwo {
			logger.WarnContext(ctx, "vma count outside the power-of-two series",
				slog.Int("vma", c.VMACount))
		}
	}

	summary := p.Summarize()
	logger.InfoContext(ctx, "starting benchmark",
		slog.Int("operations", summary.Operations),
		slog.Int("vma_counts", summary.VMACounts),
		slog.Int("trials", p.Trials),
		slog.Int("batch", p.BatchSize),
		slog.Int("mappings", summary.TotalMappings),
		slog.String("timer", base.Timer.Name()),
	)

	fmt.Fprintf(out, "vmabench, pid=%d\n", os.Getpid())

	results, err := bench.RunSuite(ctx, logger, p.BenchCases(), base,
		func(r *bench.Result) error { return report.WriteLine(out, r) })
	if err != nil {
		return err
	}

	if cfg.table {
		fmt.Fprintln(out)

		if err := report.Generate(out, results); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	if cfg.metricsFile != "" {
		if err := metrics.Export(cfg.metricsFile, results); err != nil {
			return err
		}

		logger.InfoContext(ctx, "metrics written",
			slog.String("path", cfg.metricsFile))
	}

	logger.InfoContext(ctx, "benchmark complete")

	return nil
}
