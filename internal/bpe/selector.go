package bpe

import "slices"

// SelectPair returns the most frequent pair in counts. Among pairs with the
// same frequency the one whose (left, right) symbol strings sort first wins,
// comparing left strings, then right strings, bytewise. ok is false when
// counts is empty.
func SelectPair(counts PairCounts, table *SymbolTable) (best Pair, freq int, ok bool) {
	for p, c := range counts {
		if c <= 0 {
			continue
		}

		if !ok || c > freq || (c == freq && pairLess(table, p, best)) {
			best, freq, ok = p, c, true
		}
	}

	return best, freq, ok
}

func pairLess(table *SymbolTable, a, b Pair) bool {
	al, bl := table.Symbol(a.Left), table.Symbol(b.Left)
	if al != bl {
		return al < bl
	}

	return table.Symbol(a.Right) < table.Symbol(b.Right)
}

// PairFreq is a pair with its weighted count.
type PairFreq struct {
	Pair Pair
	Freq int
}

// TopPairs returns up to n pairs in the order SelectPair would pick them.
// n <= 0 returns every pair.
func TopPairs(counts PairCounts, table *SymbolTable, n int) []PairFreq {
	out := make([]PairFreq, 0, len(counts))
	for p, c := range counts {
		if c > 0 {
			out = append(out, PairFreq{Pair: p, Freq: c})
		}
	}

	slices.SortFunc(out, func(a, b PairFreq) int {
		switch {
		case a.Freq != b.Freq:
			return b.Freq - a.Freq
		case pairLess(table, a.Pair, b.Pair):
			return -1
		case pairLess(table, b.Pair, a.Pair):
			return 1
		}
		return 0
	})

	if n > 0 && n < len(out) {
		out = out[:n]
	}

	return out
}
