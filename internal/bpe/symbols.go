// Package bpe trains a byte-pair-encoding vocabulary: it counts words in a
// corpus, repeatedly merges the most frequent adjacent symbol pair and records
// each merge in the order it was learned.
package bpe

import "fmt"

// BaseAlphabetSize is the number of single-character symbols every table
// starts with: the code points U+0000..U+00FF.
const BaseAlphabetSize = 256

// DefaultSentinel stands in for a space preceding a word.
const DefaultSentinel = "Ġ"

// SymbolTable assigns dense, stable integer IDs to symbol strings.
// Invariants:
//   - symbols[id] is the string for id; IDs are never reused or renumbered.
//   - index[symbols[id]] == id for every id.
type SymbolTable struct {
	symbols []string
	index   map[string]int
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{index: make(map[string]int)}
}

// NewBaseTable returns a table seeded with the base alphabet.
func NewBaseTable() *SymbolTable {
	t := &SymbolTable{
		symbols: make([]string, 0, BaseAlphabetSize*2),
		index:   make(map[string]int, BaseAlphabetSize*2),
	}
	for r := rune(0); r < BaseAlphabetSize; r++ {
		t.Add(string(r))
	}

	return t
}

// Add returns the ID of s, appending it to the table if absent.
func (t *SymbolTable) Add(s string) int {
	if id, ok := t.index[s]; ok {
		return id
	}

	id := len(t.symbols)
	t.symbols = append(t.symbols, s)
	t.index[s] = id

	return id
}

// ID looks up the ID of s.
func (t *SymbolTable) ID(s string) (int, bool) {
	id, ok := t.index[s]
	return id, ok
}

// Symbol returns the string for id. An unknown id is a programming error.
func (t *SymbolTable) Symbol(id int) string {
	if id < 0 || id >= len(t.symbols) {
		panic(fmt.Sprintf("bpe: symbol id %d outside table of size %d", id, len(t.symbols)))
	}

	return t.symbols[id]
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int { return len(t.symbols) }

// Symbols returns a copy of all symbols ordered by ID.
func (t *SymbolTable) Symbols() []string { return append([]string(nil), t.symbols...) }

// Clone returns an independent copy of t.
func (t *SymbolTable) Clone() *SymbolTable {
	c := &SymbolTable{
		symbols: t.Symbols(),
		index:   make(map[string]int, len(t.index)),
	}
	for s, id := range t.index {
		c.index[s] = id
	}

	return c
}

// tableFromSymbols rebuilds a table, rejecting duplicate entries.
func tableFromSymbols(symbols []string) (*SymbolTable, error) {
	t := &SymbolTable{
		symbols: make([]string, 0, len(symbols)),
		index:   make(map[string]int, len(symbols)),
	}
	for id, s := range symbols {
		if prev, ok := t.index[s]; ok {
			return nil, fmt.Errorf("duplicate symbol %q at ids %d and %d", s, prev, id)
		}

		t.Add(s)
	}

	return t, nil
}
