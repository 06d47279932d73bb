package bpe

import (
	"fmt"
	"slices"
	"strings"

	"github.com/example/go-bpetrain/internal/pretokenize"
)

// Word is one distinct segmentation unit of the corpus as a symbol-ID
// sequence, with the number of times it occurs.
type Word struct {
	IDs   []int
	Count int
}

// CorpusCounter turns raw text into a frequency-weighted set of words.
type CorpusCounter struct {
	Splitter      pretokenize.Splitter
	Sentinel      string
	SpecialTokens []string
}

// Count splits corpus into units and aggregates identical units. Every space
// except one at offset 0 of the corpus is encoded as the sentinel symbol; a
// leading space is dropped. Characters not yet in table are added in sorted
// order. The returned words are ordered by their text, so the result never
// depends on the order units appear in.
func (c CorpusCounter) Count(table *SymbolTable, corpus string) ([]Word, error) {
	if c.Splitter == nil {
		return nil, fmt.Errorf("corpus counter: %w", errNoSplitter)
	}

	sentinel := c.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}

	corpus = strings.TrimPrefix(corpus, " ")

	freq := make(map[string]int)
	for _, seg := range pretokenize.SplitSpecial(corpus, c.SpecialTokens) {
		if seg.Special {
			continue
		}

		units, err := c.Splitter.Split(seg.Text)
		if err != nil {
			return nil, err
		}

		for _, u := range units {
			if u != "" {
				freq[u]++
			}
		}
	}

	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	sentinelID := table.Add(sentinel)
	addNewChars(table, keys)

	words := make([]Word, 0, len(keys))
	for _, k := range keys {
		ids := make([]int, 0, len(k))
		for _, r := range k {
			if r == ' ' {
				ids = append(ids, sentinelID)
				continue
			}

			id, ok := table.ID(string(r))
			if !ok {
				panic(fmt.Sprintf("bpe: character %q missing from symbol table", r))
			}
			ids = append(ids, id)
		}

		words = append(words, Word{IDs: ids, Count: freq[k]})
	}

	return words, nil
}

func addNewChars(table *SymbolTable, units []string) {
	seen := make(map[rune]struct{})
	var fresh []rune

	for _, u := range units {
		for _, r := range u {
			if r == ' ' {
				continue
			}

			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}

			if _, ok := table.ID(string(r)); !ok {
				fresh = append(fresh, r)
			}
		}
	}

	slices.Sort(fresh)
	for _, r := range fresh {
		table.Add(string(r))
	}
}
