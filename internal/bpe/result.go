package bpe

// Result is the output of training: the vocabulary and the merges in the
// order they were learned. Earlier merges take priority when encoding.
type Result struct {
	Vocab         *SymbolTable
	Merges        []Merge
	Sentinel      string
	SpecialTokens []string
	// Pattern names the pre-tokenization rule used; empty when a custom
	// splitter was supplied.
	Pattern string
}

// MergeRank maps a pair of symbol strings to its position in the merge list.
// Lower rank means higher priority.
type MergeRank map[[2]string]int

// Ranks derives the MergeRank for the learned merges. If a string pair was
// merged more than once only its first rank is kept.
func (r *Result) Ranks() MergeRank {
	ranks := make(MergeRank, len(r.Merges))
	for i, m := range r.Merges {
		key := [2]string{r.Vocab.Symbol(m.Pair.Left), r.Vocab.Symbol(m.Pair.Right)}
		if _, ok := ranks[key]; !ok {
			ranks[key] = i
		}
	}

	return ranks
}

// MergeStrings returns each merge as its (left, right) symbol strings.
func (r *Result) MergeStrings() [][2]string {
	out := make([][2]string, len(r.Merges))
	for i, m := range r.Merges {
		out[i] = [2]string{r.Vocab.Symbol(m.Pair.Left), r.Vocab.Symbol(m.Pair.Right)}
	}

	return out
}
