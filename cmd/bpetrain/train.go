package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/go-bpetrain/internal/bpe"
	"github.com/example/go-bpetrain/internal/config"
	"github.com/example/go-bpetrain/internal/metrics"
	"github.com/example/go-bpetrain/internal/text"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var (
		showMerges  int
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Learn a BPE vocabulary and merge list from a corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := runTrain(ctx, cfg)
			if err != nil {
				return err
			}

			if metricsFile != "" {
				if err := metrics.WriteTextfile(metricsFile); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}

			return writeTrainSummary(cmd.OutOrStdout(), cfg.Paths.ModelPath, res, showMerges)
		},
	}

	cmd.Flags().IntVar(&showMerges, "show-merges", 0, "Print the first N learned merges")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "",
		"Write training metrics to this file for the node exporter textfile collector")

	return cmd
}

// runTrain reads the configured corpus, trains, records metrics and saves the
// model to cfg.Paths.ModelPath.
func runTrain(ctx context.Context, cfg config.Config) (*bpe.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	corpus, err := text.ReadCorpusFile(cfg.Paths.CorpusPath, text.Options{NFC: cfg.Train.NFC})
	if err != nil {
		return nil, err
	}

	trainer := bpe.NewTrainer(cfg.Train.VocabSize,
		bpe.WithSpecialTokens(cfg.Train.SpecialTokens...),
		bpe.WithSentinel(cfg.Train.Sentinel),
		bpe.WithPattern(cfg.Train.Pattern),
		bpe.WithWorkers(cfg.Train.Workers),
		bpe.WithLogger(slog.Default()),
		bpe.WithMergeFunc(func(int, bpe.Merge, int) { metrics.RecordMerge() }),
	)

	start := time.Now()

	res, err := trainer.Train(ctx, corpus)
	if err != nil {
		return nil, err
	}

	metrics.RecordTraining(res.Vocab.Len(), time.Since(start))

	if err := res.SaveFile(cfg.Paths.ModelPath); err != nil {
		return nil, err
	}

	return res, nil
}

func writeTrainSummary(w io.Writer, path string, res *bpe.Result, showMerges int) error {
	if _, err := fmt.Fprintf(w, "trained %d merges, vocab size %d -> %s\n",
		len(res.Merges), res.Vocab.Len(), path); err != nil {
		return err
	}

	merges := res.MergeStrings()
	for i := 0; i < showMerges && i < len(merges); i++ {
		if _, err := fmt.Fprintf(w, "%d\t%s %s\t-> %d\n", i, merges[i][0], merges[i][1], res.Merges[i].ID); err != nil {
			return err
		}
	}

	return nil
}
