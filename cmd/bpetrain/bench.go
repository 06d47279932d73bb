package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/go-bpetrain/internal/bench"
	"github.com/example/go-bpetrain/internal/bpe"
	"github.com/example/go-bpetrain/internal/config"
	"github.com/example/go-bpetrain/internal/text"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		runs      int
		format    string
		minMerges float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark training latency and merge throughput",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			return runBench(cmd.Context(), cfg, runs, format, minMerges, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 3, "Number of training runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&minMerges, "min-merges-per-sec", 0, "Fail when mean warm throughput is below this (0 disables)")

	return cmd
}

func runBench(ctx context.Context, cfg config.Config, runs int, format string, floor float64, w io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	corpus, err := text.ReadCorpusFile(cfg.Paths.CorpusPath, text.Options{NFC: cfg.Train.NFC})
	if err != nil {
		return err
	}

	results, err := bench.Run(ctx, runs, func(ctx context.Context) (int, error) {
		res, err := bpe.NewTrainer(cfg.Train.VocabSize,
			bpe.WithSpecialTokens(cfg.Train.SpecialTokens...),
			bpe.WithSentinel(cfg.Train.Sentinel),
			bpe.WithPattern(cfg.Train.Pattern),
			bpe.WithWorkers(cfg.Train.Workers),
			bpe.WithLogger(slog.Default()),
		).Train(ctx, corpus)
		if err != nil {
			return 0, err
		}
		return len(res.Merges), nil
	})
	if err != nil {
		return err
	}

	stats := bench.ComputeStats(bench.Durations(results))

	switch format {
	case "json":
		bench.FormatJSON(results, stats, w)
	default:
		bench.FormatTable(results, stats, w)
	}

	return bench.CheckThroughputFloor(bench.MeanThroughput(results), floor)
}
