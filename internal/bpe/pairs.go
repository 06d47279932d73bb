package bpe

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pair is an ordered pair of adjacent symbol IDs.
type Pair struct {
	Left  int
	Right int
}

// PairCounts maps adjacent pairs to their frequency across all words,
// weighted by word count. Pairs that never occur have no entry.
type PairCounts map[Pair]int

// Total returns the sum of all pair frequencies.
func (pc PairCounts) Total() int {
	n := 0
	for _, c := range pc {
		n += c
	}

	return n
}

// CountPairs adds each word's count to every adjacent pair in it. Overlapping
// pairs are counted independently, so "aaa" contributes (a,a) twice.
func CountPairs(words []Word) PairCounts {
	counts := make(PairCounts)
	addPairs(counts, words)

	return counts
}

func addPairs(counts PairCounts, words []Word) {
	for _, w := range words {
		if w.Count == 0 {
			continue
		}

		for i := 0; i+1 < len(w.IDs); i++ {
			counts[Pair{w.IDs[i], w.IDs[i+1]}] += w.Count
		}
	}
}

// CountPairsParallel shards words across up to workers goroutines and sums
// the partial counts. The result equals CountPairs(words).
func CountPairsParallel(ctx context.Context, words []Word, workers int) (PairCounts, error) {
	shards := shardBounds(len(words), workers)
	if len(shards) <= 1 {
		return CountPairs(words), nil
	}

	partial := make([]PairCounts, len(shards))

	g, ctx := errgroup.WithContext(ctx)
	for i, s := range shards {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			partial[i] = CountPairs(words[s.lo:s.hi])

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := partial[0]
	for _, p := range partial[1:] {
		for pair, c := range p {
			counts[pair] += c
		}
	}

	return counts, nil
}

type shard struct{ lo, hi int }

// minShardWords keeps tiny corpora on the calling goroutine.
const minShardWords = 256

func shardBounds(n, workers int) []shard {
	if workers < 1 {
		workers = 1
	}

	if limit := n / minShardWords; workers > limit {
		workers = limit
	}

	if workers <= 1 {
		return []shard{{0, n}}
	}

	size := (n + workers - 1) / workers
	out := make([]shard, 0, workers)
	for lo := 0; lo < n; lo += size {
		out = append(out, shard{lo, min(lo+size, n)})
	}

	return out
}
