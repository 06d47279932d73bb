package bpe

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Merge records that the adjacent pair Pair was replaced by symbol ID.
type Merge struct {
	Pair Pair
	ID   int
}

// ApplyMerge replaces every non-overlapping left-to-right occurrence of p in
// seq with newID. Both elements of a match are consumed, so [a a a] under
// (a,a) becomes [m a]. When p does not occur, seq itself is returned.
func ApplyMerge(seq []int, p Pair, newID int) []int {
	first := -1
	for i := 0; i+1 < len(seq); i++ {
		if seq[i] == p.Left && seq[i+1] == p.Right {
			first = i
			break
		}
	}

	if first < 0 {
		return seq
	}

	out := make([]int, first, len(seq)-1)
	copy(out, seq[:first])

	for i := first; i < len(seq); {
		if i+1 < len(seq) && seq[i] == p.Left && seq[i+1] == p.Right {
			out = append(out, newID)
			i += 2

			continue
		}

		out = append(out, seq[i])
		i++
	}

	return out
}

// ApplyMergeAll applies ApplyMerge to every word and returns a new word list;
// words is not modified. Work is sharded across up to workers goroutines.
func ApplyMergeAll(ctx context.Context, words []Word, p Pair, newID, workers int) ([]Word, error) {
	out := make([]Word, len(words))

	apply := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = Word{IDs: ApplyMerge(words[i].IDs, p, newID), Count: words[i].Count}
		}
	}

	shards := shardBounds(len(words), workers)
	if len(shards) <= 1 {
		apply(0, len(words))
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range shards {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			apply(s.lo, s.hi)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
