package main

import (
	"context"
	"fmt"
	"io"

	"github.com/example/go-bpetrain/internal/bpe"
	"github.com/example/go-bpetrain/internal/config"
	"github.com/example/go-bpetrain/internal/pretokenize"
	"github.com/example/go-bpetrain/internal/text"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print word and adjacent-pair statistics for the corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return runStats(cmd.Context(), cfg, top, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "Number of most frequent pairs to print (0 = all)")

	return cmd
}

func runStats(ctx context.Context, cfg config.Config, top int, w io.Writer) error {
	corpus, err := text.ReadCorpusFile(cfg.Paths.CorpusPath, text.Options{NFC: cfg.Train.NFC})
	if err != nil {
		return err
	}

	splitter, err := pretokenize.New(cfg.Train.Pattern)
	if err != nil {
		return err
	}

	table := bpe.NewBaseTable()
	counter := bpe.CorpusCounter{
		Splitter:      splitter,
		Sentinel:      cfg.Train.Sentinel,
		SpecialTokens: cfg.Train.SpecialTokens,
	}

	words, err := counter.Count(table, corpus)
	if err != nil {
		return err
	}

	counts, err := bpe.CountPairsParallel(ctx, words, cfg.Train.Workers)
	if err != nil {
		return err
	}

	occurrences := 0
	for _, word := range words {
		occurrences += word.Count
	}

	if _, err := fmt.Fprintf(w, "words: %d distinct, %d total\npairs: %d distinct, %d total\n",
		len(words), occurrences, len(counts), counts.Total()); err != nil {
		return err
	}

	for _, pf := range bpe.TopPairs(counts, table, top) {
		if _, err := fmt.Fprintf(w, "%d\t%s %s\n", pf.Freq,
			table.Symbol(pf.Pair.Left), table.Symbol(pf.Pair.Right)); err != nil {
			return err
		}
	}

	return nil
}
