package bpe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-bpetrain/internal/pretokenize"
)

// State is the trainer's lifecycle phase.
type State int

const (
	StateInitializing State = iota
	StateMerging
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MergeFunc observes each accepted merge. step counts from 0.
type MergeFunc func(step int, m Merge, freq int)

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	specialTokens []string
	sentinel      string
	pattern       string
	splitter      pretokenize.Splitter
	workers       int
	logger        *slog.Logger
	onMerge       MergeFunc
}

func defaultOptions() options {
	return options{
		sentinel: DefaultSentinel,
		pattern:  pretokenize.PatternGPT2,
		workers:  1,
		logger:   slog.Default(),
	}
}

// Option configures a Trainer.
type Option func(*options)

// WithSpecialTokens sets the allow-list of special tokens. They are added to
// the vocabulary and cut out of the corpus before counting.
func WithSpecialTokens(tokens ...string) Option {
	return func(o *options) { o.specialTokens = append([]string(nil), tokens...) }
}

// WithSentinel sets the symbol that encodes a space before a word.
func WithSentinel(s string) Option {
	return func(o *options) { o.sentinel = s }
}

// WithPattern selects the pre-tokenization rule by name or raw regex.
func WithPattern(p string) Option {
	return func(o *options) { o.pattern = p }
}

// WithSplitter overrides the pre-tokenization rule. The resulting model
// records no pattern.
func WithSplitter(s pretokenize.Splitter) Option {
	return func(o *options) { o.splitter = s }
}

// WithWorkers sets the number of goroutines used for per-word passes.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the slog.Logger used for progress logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMergeFunc registers a callback invoked after every accepted merge.
func WithMergeFunc(fn MergeFunc) Option {
	return func(o *options) { o.onMerge = fn }
}

// ---------------------------------------------------------------------------
// Trainer
// ---------------------------------------------------------------------------

// Trainer learns a BPE vocabulary of at most vocabSize symbols.
// A Trainer runs one training at a time.
type Trainer struct {
	vocabSize int
	opts      options
	state     State
}

// NewTrainer returns a trainer targeting vocabSize symbols.
func NewTrainer(vocabSize int, optFns ...Option) *Trainer {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	return &Trainer{vocabSize: vocabSize, opts: opts}
}

// State reports the current lifecycle phase.
func (t *Trainer) State() State { return t.state }

// Train is the one-shot entry point: it trains on corpus with default
// options.
func Train(corpus string, vocabSize int, specialTokens []string) (*Result, error) {
	return NewTrainer(vocabSize, WithSpecialTokens(specialTokens...)).Train(context.Background(), corpus)
}

// Train learns merges from corpus until the vocabulary reaches the target
// size or no adjacent pair remains. ctx is checked between merges.
func (t *Trainer) Train(ctx context.Context, corpus string) (*Result, error) {
	t.state = StateInitializing
	log := t.opts.logger

	table, err := t.baseTable()
	if err != nil {
		return nil, err
	}

	splitter, err := t.splitter()
	if err != nil {
		return nil, err
	}

	counter := CorpusCounter{
		Splitter:      splitter,
		Sentinel:      t.opts.sentinel,
		SpecialTokens: t.opts.specialTokens,
	}

	words, err := counter.Count(table, corpus)
	if err != nil {
		return nil, fmt.Errorf("count corpus: %w", err)
	}

	if len(words) == 0 {
		return nil, ErrEmptyCorpus
	}

	// Characters outside the base alphabet are only known after counting.
	if table.Len() > t.vocabSize {
		return nil, fmt.Errorf("%w: vocab size %d below the %d symbols the corpus needs before merging",
			ErrInvalidConfig, t.vocabSize, table.Len())
	}

	start := time.Now()
	initial := table.Len()

	log.Debug("bpe training initialized",
		slog.Int("words", len(words)),
		slog.Int("initial_vocab", initial),
		slog.Int("target_vocab", t.vocabSize),
	)

	t.state = StateMerging

	var merges []Merge
	for table.Len() < t.vocabSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}

		counts, err := CountPairsParallel(ctx, words, t.opts.workers)
		if err != nil {
			return nil, fmt.Errorf("count pairs: %w", err)
		}

		pair, freq, ok := SelectPair(counts, table)
		if !ok {
			break
		}

		// A concatenation that already exists keeps its ID.
		id := table.Add(table.Symbol(pair.Left) + table.Symbol(pair.Right))
		m := Merge{Pair: pair, ID: id}
		merges = append(merges, m)

		words, err = ApplyMergeAll(ctx, words, pair, id, t.opts.workers)
		if err != nil {
			return nil, fmt.Errorf("apply merge: %w", err)
		}

		log.Debug("bpe merge",
			slog.Int("step", len(merges)-1),
			slog.String("left", table.Symbol(pair.Left)),
			slog.String("right", table.Symbol(pair.Right)),
			slog.Int("id", id),
			slog.Int("freq", freq),
		)

		if t.opts.onMerge != nil {
			t.opts.onMerge(len(merges)-1, m, freq)
		}
	}

	t.state = StateDone

	log.Info("bpe training complete",
		slog.Int("vocab_size", table.Len()),
		slog.Int("merges", len(merges)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	pattern := t.opts.pattern
	if t.opts.splitter != nil {
		pattern = ""
	}

	return &Result{
		Vocab:         table,
		Merges:        merges,
		Sentinel:      t.opts.sentinel,
		SpecialTokens: append([]string(nil), t.opts.specialTokens...),
		Pattern:       pattern,
	}, nil
}

// baseTable builds the mandatory entries: base alphabet, sentinel, then
// special tokens in allow-list order.
func (t *Trainer) baseTable() (*SymbolTable, error) {
	if t.opts.sentinel == "" {
		return nil, fmt.Errorf("%w: sentinel must not be empty", ErrInvalidConfig)
	}

	table := NewBaseTable()
	table.Add(t.opts.sentinel)

	for _, tok := range t.opts.specialTokens {
		if tok == "" {
			return nil, fmt.Errorf("%w: empty special token", ErrInvalidConfig)
		}

		table.Add(tok)
	}

	if t.vocabSize < table.Len() {
		return nil, fmt.Errorf("%w: vocab size %d below base vocabulary of %d",
			ErrInvalidConfig, t.vocabSize, table.Len())
	}

	return table, nil
}

func (t *Trainer) splitter() (pretokenize.Splitter, error) {
	if t.opts.splitter != nil {
		return t.opts.splitter, nil
	}

	s, err := pretokenize.New(t.opts.pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return s, nil
}
