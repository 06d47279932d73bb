package bpe

import "errors"

var (
	// ErrInvalidConfig is returned when the target vocabulary cannot hold the
	// mandatory base entries or an option is malformed.
	ErrInvalidConfig = errors.New("invalid bpe config")
	// ErrEmptyCorpus is returned when the corpus yields no words.
	ErrEmptyCorpus = errors.New("corpus contains no words")
	// ErrInvalidModel is returned when a persisted model fails validation.
	ErrInvalidModel = errors.New("invalid bpe model")

	errNoSplitter = errors.New("no splitter configured")
)
