package bpe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/example/go-bpetrain/internal/pretokenize"
	"github.com/example/go-bpetrain/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

func mustTrain(t *testing.T, corpus string, vocabSize int, opts ...Option) *Result {
	t.Helper()

	opts = append([]Option{WithLogger(testutil.DiscardLogger())}, opts...)

	res, err := NewTrainer(vocabSize, opts...).Train(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	return res
}

// --- golden ---

func TestTrain_GoldenMerges(t *testing.T) {
	base := BaseAlphabetSize + 1

	res := mustTrain(t, goldenCorpus, base+3)

	want := [][2]string{{"e", "s"}, {"es", "t"}, {"l", "o"}}
	if diff := cmp.Diff(want, res.MergeStrings()); diff != "" {
		t.Fatalf("merges mismatch (-want +got):\n%s", diff)
	}

	wantMerges := []Merge{
		{Pair: Pair{'e', 's'}, ID: base},
		{Pair: Pair{base, 't'}, ID: base + 1},
		{Pair: Pair{'l', 'o'}, ID: base + 2},
	}
	if diff := cmp.Diff(wantMerges, res.Merges); diff != "" {
		t.Errorf("merge ids mismatch (-want +got):\n%s", diff)
	}

	if res.Vocab.Len() != base+3 {
		t.Errorf("vocab size = %d; want %d", res.Vocab.Len(), base+3)
	}

	for i, s := range []string{"es", "est", "lo"} {
		if got := res.Vocab.Symbol(base + i); got != s {
			t.Errorf("Symbol(%d) = %q; want %q", base+i, got, s)
		}
	}
}

func TestTrain_GoldenRanks(t *testing.T) {
	res := mustTrain(t, goldenCorpus, BaseAlphabetSize+4)

	ranks := res.Ranks()
	want := MergeRank{
		{"e", "s"}:  0,
		{"es", "t"}: 1,
		{"l", "o"}:  2,
		{"lo", "w"}: 3,
	}
	if diff := cmp.Diff(want, ranks); diff != "" {
		t.Errorf("ranks mismatch (-want +got):\n%s", diff)
	}
}

// --- properties ---

func TestTrain_Deterministic(t *testing.T) {
	corpus := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 20) + goldenCorpus

	var outs [][]byte
	for range 3 {
		res := mustTrain(t, corpus, 320, WithWorkers(3))

		var buf bytes.Buffer
		if err := res.Save(&buf); err != nil {
			t.Fatalf("Save: %v", err)
		}
		outs = append(outs, buf.Bytes())
	}

	for i := 1; i < len(outs); i++ {
		if !bytes.Equal(outs[0], outs[i]) {
			t.Fatalf("run %d produced a different model", i)
		}
	}
}

func TestTrain_MonotonicGrowth(t *testing.T) {
	base := BaseAlphabetSize + 1
	target := base + 20

	var steps []int
	res := mustTrain(t, goldenCorpus, target, WithMergeFunc(func(step int, m Merge, freq int) {
		if m.ID != base+step {
			t.Errorf("step %d assigned id %d; want %d", step, m.ID, base+step)
		}

		if freq <= 0 {
			t.Errorf("step %d freq = %d; want > 0", step, freq)
		}

		steps = append(steps, step)
	}))

	if len(steps) != len(res.Merges) {
		t.Errorf("callback ran %d times for %d merges", len(steps), len(res.Merges))
	}

	if res.Vocab.Len() > target {
		t.Errorf("vocab size %d exceeds target %d", res.Vocab.Len(), target)
	}

	if res.Vocab.Len() != base+len(res.Merges) {
		t.Errorf("vocab size = %d; want base + merges = %d", res.Vocab.Len(), base+len(res.Merges))
	}
}

func TestTrain_TerminatesWhenCorpusCollapses(t *testing.T) {
	base := BaseAlphabetSize + 1
	target := 5000

	res := mustTrain(t, goldenCorpus, target)

	if n := len(res.Merges); n > target-base {
		t.Errorf("%d merges; want at most %d", n, target-base)
	}

	// Every distinct word collapses into one symbol: low, Ġlow, Ġlower,
	// Ġwidest, Ġnewest.
	for _, w := range []string{"low", "Ġlow", "Ġlower", "Ġwidest", "Ġnewest"} {
		if _, ok := res.Vocab.ID(w); !ok {
			t.Errorf("vocab lacks fully merged word %q", w)
		}
	}

	if res.Vocab.Len() >= target {
		t.Errorf("vocab size %d reached target; want early stop", res.Vocab.Len())
	}
}

func TestTrain_ParallelMatchesSerial(t *testing.T) {
	var sb strings.Builder
	for i := range 3000 {
		fmt.Fprintf(&sb, "w%dq%d ", i%997, i%11)
	}
	corpus := sb.String()

	serial := mustTrain(t, corpus, 400, WithWorkers(1))
	parallel := mustTrain(t, corpus, 400, WithWorkers(8))

	if diff := cmp.Diff(serial.MergeStrings(), parallel.MergeStrings()); diff != "" {
		t.Errorf("parallel training diverged (-serial +parallel):\n%s", diff)
	}
}

func TestTrain_TriviallySmallCorpusSucceeds(t *testing.T) {
	res := mustTrain(t, "a", BaseAlphabetSize+10)

	if len(res.Merges) != 0 {
		t.Errorf("merges = %v; want none", res.Merges)
	}
}

func TestTrain_TargetEqualsBase(t *testing.T) {
	res := mustTrain(t, goldenCorpus, BaseAlphabetSize+1)

	if len(res.Merges) != 0 {
		t.Errorf("merges = %d; want 0", len(res.Merges))
	}
}

// --- special tokens ---

func TestTrain_SpecialTokens(t *testing.T) {
	specials := []string{"<|endoftext|>", "<pad>"}
	corpus := "hello<|endoftext|>hello hello<pad><|endoftext|>"

	res := mustTrain(t, corpus, 300, WithSpecialTokens(specials...))

	for i, tok := range specials {
		id, ok := res.Vocab.ID(tok)
		if !ok || id != BaseAlphabetSize+1+i {
			t.Errorf("ID(%q) = %d, %v; want %d", tok, id, ok, BaseAlphabetSize+1+i)
		}
	}

	specialIDs := map[int]bool{BaseAlphabetSize + 1: true, BaseAlphabetSize + 2: true}
	for _, m := range res.Merges {
		if specialIDs[m.Pair.Left] || specialIDs[m.Pair.Right] || specialIDs[m.ID] {
			t.Errorf("merge %+v involves a special token", m)
		}
	}

	for _, s := range res.Vocab.Symbols()[BaseAlphabetSize+3:] {
		if strings.ContainsAny(s, "<|>") {
			t.Errorf("merged symbol %q contains special-token characters", s)
		}
	}
}

func TestTrain_SpecialTokenAlreadyInAlphabet(t *testing.T) {
	res := mustTrain(t, goldenCorpus, BaseAlphabetSize+2, WithSpecialTokens("a"))

	if res.Vocab.Len() != BaseAlphabetSize+2 {
		t.Errorf("vocab size = %d; want %d", res.Vocab.Len(), BaseAlphabetSize+2)
	}

	if len(res.Merges) != 1 {
		t.Errorf("merges = %d; want 1", len(res.Merges))
	}
}

func TestTrain_MergeMatchingExistingSymbolReusesID(t *testing.T) {
	// "Ġx" is both a special token and the merge of (Ġ, x).
	res := mustTrain(t, "x x x", BaseAlphabetSize+3, WithSpecialTokens("Ġx"))

	special, _ := res.Vocab.ID("Ġx")
	want := []Merge{{Pair: Pair{BaseAlphabetSize, 'x'}, ID: special}}
	if diff := cmp.Diff(want, res.Merges); diff != "" {
		t.Errorf("merges mismatch (-want +got):\n%s", diff)
	}
}

// --- custom splitter and sentinel ---

func TestTrain_CustomSentinelAndSplitter(t *testing.T) {
	res := mustTrain(t, "ab ab ab", BaseAlphabetSize+2,
		WithSentinel("_"),
		WithSplitter(pretokenize.WhitespaceSplitter{}),
	)

	if res.Sentinel != "_" {
		t.Errorf("Sentinel = %q; want %q", res.Sentinel, "_")
	}

	if res.Pattern != "" {
		t.Errorf("Pattern = %q; want empty for a custom splitter", res.Pattern)
	}

	// "_" is inside the base alphabet, so the first new id is 256.
	want := [][2]string{{"a", "b"}, {"_", "ab"}}
	if diff := cmp.Diff(want, res.MergeStrings()); diff != "" {
		t.Errorf("merges mismatch (-want +got):\n%s", diff)
	}
}

// --- errors ---

func TestTrain_InvalidConfig(t *testing.T) {
	tests := []struct {
		name      string
		vocabSize int
		opts      []Option
	}{
		{"below base alphabet", 100, nil},
		{"below base plus sentinel", BaseAlphabetSize, nil},
		{"below base plus specials", BaseAlphabetSize + 2, []Option{WithSpecialTokens("<a>", "<b>")}},
		{"empty sentinel", 1000, []Option{WithSentinel("")}},
		{"empty special token", 1000, []Option{WithSpecialTokens("")}},
		{"bad pattern", 1000, []Option{WithPattern("(unclosed")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithLogger(testutil.DiscardLogger())}, tt.opts...)

			res, err := NewTrainer(tt.vocabSize, opts...).Train(context.Background(), goldenCorpus)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v; want ErrInvalidConfig", err)
			}

			if res != nil {
				t.Error("partial result returned alongside error")
			}
		})
	}
}

func TestTrain_CorpusCharactersExceedTarget(t *testing.T) {
	const corpus = "世界 世界 世界"
	base := BaseAlphabetSize + 1

	_, err := NewTrainer(base, WithLogger(testutil.DiscardLogger())).Train(context.Background(), corpus)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v; want ErrInvalidConfig", err)
	}

	// Room for exactly the two new characters: no merges, no overshoot.
	res := mustTrain(t, corpus, base+2)
	if res.Vocab.Len() != base+2 || len(res.Merges) != 0 {
		t.Errorf("vocab %d, %d merges; want %d, 0", res.Vocab.Len(), len(res.Merges), base+2)
	}

	res = mustTrain(t, corpus, base+3)
	if res.Vocab.Len() != base+3 {
		t.Errorf("vocab %d; want %d", res.Vocab.Len(), base+3)
	}

	if got := res.MergeStrings(); len(got) != 1 || got[0] != [2]string{"世", "界"} {
		t.Errorf("merges = %q; want [世 界]", got)
	}
}

func TestTrain_EmptyCorpus(t *testing.T) {
	for _, corpus := range []string{"", " ", "<eot><eot>"} {
		_, err := NewTrainer(1000, WithLogger(testutil.DiscardLogger()), WithSpecialTokens("<eot>")).
			Train(context.Background(), corpus)
		if !errors.Is(err, ErrEmptyCorpus) {
			t.Errorf("Train(%q) err = %v; want ErrEmptyCorpus", corpus, err)
		}
	}
}

func TestTrain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewTrainer(1000, WithLogger(testutil.DiscardLogger()))

	_, err := tr.Train(ctx, goldenCorpus)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}

	if tr.State() != StateMerging {
		t.Errorf("State() = %v; want %v", tr.State(), StateMerging)
	}
}

func TestTrainer_StateTransitions(t *testing.T) {
	tr := NewTrainer(BaseAlphabetSize+3, WithLogger(testutil.DiscardLogger()))
	if tr.State() != StateInitializing {
		t.Errorf("initial State() = %v; want %v", tr.State(), StateInitializing)
	}

	var during []State
	tr = NewTrainer(BaseAlphabetSize+3,
		WithLogger(testutil.DiscardLogger()),
		WithMergeFunc(func(int, Merge, int) { during = append(during, tr.State()) }),
	)

	if _, err := tr.Train(context.Background(), goldenCorpus); err != nil {
		t.Fatalf("Train: %v", err)
	}

	for _, s := range during {
		if s != StateMerging {
			t.Errorf("state during merge = %v; want %v", s, StateMerging)
		}
	}

	if tr.State() != StateDone {
		t.Errorf("final State() = %v; want %v", tr.State(), StateDone)
	}

	if got := State(7).String(); got != "State(7)" {
		t.Errorf("State(7).String() = %q", got)
	}
}

func TestTrain_EntryPoint(t *testing.T) {
	res, err := Train(goldenCorpus, BaseAlphabetSize+1+2+2, []string{"<s>", "</s>"})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	want := [][2]string{{"e", "s"}, {"es", "t"}}
	if diff := cmp.Diff(want, res.MergeStrings()); diff != "" {
		t.Errorf("merges mismatch (-want +got):\n%s", diff)
	}
}
