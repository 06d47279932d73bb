package tokenizer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/example/go-bpetrain/internal/bpe"
	"github.com/example/go-bpetrain/internal/pretokenize"
)

var (
	// ErrNilModel is returned when NewBPETokenizer is called without a model.
	ErrNilModel = errors.New("bpe model must not be nil")
	// ErrUnknownSymbol is returned when text contains a character the
	// vocabulary cannot represent.
	ErrUnknownSymbol = errors.New("character not in vocabulary")
	// ErrUnknownID is returned when decoding an ID outside the vocabulary.
	ErrUnknownID = errors.New("token id not in vocabulary")
)

type mergeRule struct {
	rank int
	id   int
}

// BPETokenizer applies a trained model's merges to new text. It is immutable
// after construction and safe for concurrent use.
//
// Every space, including a leading one, is encoded as the model's sentinel,
// so Decode(Encode(s)) == s for any text built from vocabulary characters
// that does not contain the sentinel itself.
type BPETokenizer struct {
	vocab      *bpe.SymbolTable
	rules      map[bpe.Pair]mergeRule
	splitter   pretokenize.Splitter
	sentinel   string
	sentinelID int
	specials   []string
}

// NewBPETokenizer builds a tokenizer from model, using the pre-tokenization
// rule recorded in the model.
func NewBPETokenizer(model *bpe.Result) (*BPETokenizer, error) {
	if model == nil {
		return nil, ErrNilModel
	}

	splitter, err := pretokenize.New(model.Pattern)
	if err != nil {
		return nil, fmt.Errorf("model split pattern: %w", err)
	}

	return NewBPETokenizerWithSplitter(model, splitter)
}

// NewBPETokenizerWithSplitter builds a tokenizer with an explicit splitter,
// for models trained with a custom one.
func NewBPETokenizerWithSplitter(model *bpe.Result, splitter pretokenize.Splitter) (*BPETokenizer, error) {
	if model == nil {
		return nil, ErrNilModel
	}

	sentinelID, ok := model.Vocab.ID(model.Sentinel)
	if !ok {
		return nil, fmt.Errorf("sentinel %q: %w", model.Sentinel, ErrUnknownSymbol)
	}

	rules := make(map[bpe.Pair]mergeRule, len(model.Merges))
	for rank, m := range model.Merges {
		if _, dup := rules[m.Pair]; !dup {
			rules[m.Pair] = mergeRule{rank: rank, id: m.ID}
		}
	}

	return &BPETokenizer{
		vocab:      model.Vocab,
		rules:      rules,
		splitter:   splitter,
		sentinel:   model.Sentinel,
		sentinelID: sentinelID,
		specials:   append([]string(nil), model.SpecialTokens...),
	}, nil
}

// VocabSize returns the number of entries in the vocabulary.
func (t *BPETokenizer) VocabSize() int { return t.vocab.Len() }

// MergeCount returns the number of merge rules.
func (t *BPETokenizer) MergeCount() int { return len(t.rules) }

// Encode implements Tokenizer. Special tokens in text map directly to their
// IDs; everything else is split, mapped to single-character symbols and
// merged.
func (t *BPETokenizer) Encode(text string) ([]int64, error) {
	if text == "" {
		return []int64{}, nil
	}

	var out []int64

	for _, seg := range pretokenize.SplitSpecial(text, t.specials) {
		if seg.Special {
			id, _ := t.vocab.ID(seg.Text)
			out = append(out, int64(id))

			continue
		}

		units, err := t.splitter.Split(seg.Text)
		if err != nil {
			return nil, err
		}

		for _, u := range units {
			seq, err := t.symbols(u)
			if err != nil {
				return nil, err
			}

			for _, id := range t.merge(seq) {
				out = append(out, int64(id))
			}
		}
	}

	return out, nil
}

func (t *BPETokenizer) symbols(unit string) ([]int, error) {
	seq := make([]int, 0, len(unit))
	for _, r := range unit {
		if r == ' ' {
			seq = append(seq, t.sentinelID)
			continue
		}

		id, ok := t.vocab.ID(string(r))
		if !ok {
			return nil, fmt.Errorf("%q: %w", r, ErrUnknownSymbol)
		}
		seq = append(seq, id)
	}

	return seq, nil
}

// merge repeatedly applies the lowest-ranked rule present in seq. Applying
// the earliest applicable merge to all its occurrences at each step
// reproduces replaying the merge list in order.
func (t *BPETokenizer) merge(seq []int) []int {
	for len(seq) > 1 {
		best := mergeRule{rank: math.MaxInt}
		var bestPair bpe.Pair

		for i := 0; i+1 < len(seq); i++ {
			p := bpe.Pair{Left: seq[i], Right: seq[i+1]}
			if r, ok := t.rules[p]; ok && r.rank < best.rank {
				best, bestPair = r, p
			}
		}

		if best.rank == math.MaxInt {
			break
		}

		seq = bpe.ApplyMerge(seq, bestPair, best.id)
	}

	return seq
}

// Decode implements Decoder. The sentinel is rendered as a space.
func (t *BPETokenizer) Decode(ids []int64) (string, error) {
	var sb strings.Builder

	for _, id := range ids {
		if id < 0 || id >= int64(t.vocab.Len()) {
			return "", fmt.Errorf("%d: %w", id, ErrUnknownID)
		}

		sb.WriteString(t.vocab.Symbol(int(id)))
	}

	return strings.ReplaceAll(sb.String(), t.sentinel, " "), nil
}
