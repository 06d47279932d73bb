package bpe

import (
	"testing"

	"github.com/example/go-bpetrain/internal/pretokenize"
	"github.com/example/go-bpetrain/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

// goldenCorpus is the classic low/lower/widest/newest example.
const goldenCorpus = testutil.GoldenCorpus

func gpt2Splitter(t *testing.T) pretokenize.Splitter {
	t.Helper()

	s, err := pretokenize.New(pretokenize.PatternGPT2)
	if err != nil {
		t.Fatalf("pretokenize.New: %v", err)
	}

	return s
}

// wordStrings renders words back to text keyed to their counts.
func wordStrings(table *SymbolTable, words []Word) map[string]int {
	out := make(map[string]int, len(words))
	for _, w := range words {
		s := ""
		for _, id := range w.IDs {
			s += table.Symbol(id)
		}
		out[s] += w.Count
	}

	return out
}

func TestCorpusCounter_GoldenWords(t *testing.T) {
	table := NewBaseTable()
	c := CorpusCounter{Splitter: gpt2Splitter(t), Sentinel: DefaultSentinel}

	words, err := c.Count(table, goldenCorpus)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}

	want := map[string]int{
		"low":     1,
		"Ġlow":    4,
		"Ġlower":  2,
		"Ġwidest": 3,
		"Ġnewest": 6,
	}
	if diff := cmp.Diff(want, wordStrings(table, words)); diff != "" {
		t.Errorf("word counts mismatch (-want +got):\n%s", diff)
	}

	total := 0
	for _, w := range words {
		total += w.Count
	}
	if total != 16 {
		t.Errorf("total occurrences = %d; want 16", total)
	}

	if table.Len() != BaseAlphabetSize+1 {
		t.Errorf("table Len() = %d; want %d (base + sentinel)", table.Len(), BaseAlphabetSize+1)
	}
}

func TestCorpusCounter_LeadingSpaceDropped(t *testing.T) {
	table := NewBaseTable()
	c := CorpusCounter{Splitter: pretokenize.WhitespaceSplitter{}, Sentinel: "_"}

	words, err := c.Count(table, " hi hi")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}

	want := map[string]int{"hi": 1, "_hi": 1}
	if diff := cmp.Diff(want, wordStrings(table, words)); diff != "" {
		t.Errorf("word counts mismatch (-want +got):\n%s", diff)
	}
}

func TestCorpusCounter_SentinelIsOneSymbol(t *testing.T) {
	table := NewBaseTable()
	c := CorpusCounter{Splitter: pretokenize.WhitespaceSplitter{}, Sentinel: "<sp>"}

	words, err := c.Count(table, "a b")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}

	sp, ok := table.ID("<sp>")
	if !ok {
		t.Fatal("sentinel not added to table")
	}

	b, _ := table.ID("b")
	want := []Word{{IDs: []int{sp, b}, Count: 1}, {IDs: []int{'a'}, Count: 1}}
	if diff := cmp.Diff(want, words); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
}

func TestCorpusCounter_NewCharactersSorted(t *testing.T) {
	table := NewBaseTable()
	table.Add(DefaultSentinel)

	c := CorpusCounter{Splitter: pretokenize.WhitespaceSplitter{}, Sentinel: DefaultSentinel}
	if _, err := c.Count(table, "ωα βα"); err != nil {
		t.Fatalf("Count: %v", err)
	}

	got := table.Symbols()[BaseAlphabetSize+1:]
	if diff := cmp.Diff([]string{"α", "β", "ω"}, got); diff != "" {
		t.Errorf("new symbols mismatch (-want +got):\n%s", diff)
	}
}

func TestCorpusCounter_SpecialTokensExcluded(t *testing.T) {
	table := NewBaseTable()
	c := CorpusCounter{
		Splitter:      pretokenize.WhitespaceSplitter{},
		Sentinel:      DefaultSentinel,
		SpecialTokens: []string{"<|eot|>"},
	}

	words, err := c.Count(table, "ab<|eot|>ab")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}

	want := map[string]int{"ab": 2}
	if diff := cmp.Diff(want, wordStrings(table, words)); diff != "" {
		t.Errorf("word counts mismatch (-want +got):\n%s", diff)
	}

	if _, ok := table.ID("<|eot|>"); ok {
		t.Error("special token added by counter; want it left to the trainer")
	}
}

func TestCorpusCounter_OrderIndependent(t *testing.T) {
	c := CorpusCounter{Splitter: pretokenize.WhitespaceSplitter{}, Sentinel: DefaultSentinel}

	w1, err := c.Count(NewBaseTable(), "x cat dog cat bird")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}

	w2, err := c.Count(NewBaseTable(), "x bird cat dog cat")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}

	if diff := cmp.Diff(w1, w2); diff != "" {
		t.Errorf("permuted corpus changed words (-first +second):\n%s", diff)
	}
}

func TestCorpusCounter_NoSplitter(t *testing.T) {
	if _, err := (CorpusCounter{}).Count(NewBaseTable(), "x"); err == nil {
		t.Fatal("expected error without splitter")
	}
}
