// Package pretokenize splits raw corpus text into the segmentation units that
// BPE training and encoding operate on. Splitters never merge across the
// boundaries their pattern defines and never return empty units.
package pretokenize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// GPT2Pattern is the segmentation rule used by GPT-2: contractions, letter
// runs, digit runs and punctuation runs, each optionally preceded by a single
// space, plus whitespace runs.
const GPT2Pattern = `'(?:[sdmt]|ll|ve|re)| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// GPT4Pattern approximates the cl100k split rule. regexp2 has no possessive
// quantifiers, so atomic groups stand in for them.
const GPT4Pattern = `'(?i:[sdmt]|ll|ve|re)|(?>[^\r\n\p{L}\p{N}]?)\p{L}+|\p{N}{1,3}| ?(?>[^\s\p{L}\p{N}]+)[\r\n]*|\s*[\r\n]|\s+(?!\S)|\s+`

const (
	PatternGPT2       = "gpt2"
	PatternGPT4       = "gpt4"
	PatternWhitespace = "whitespace"
)

// ErrEmptyPattern is returned when a regex splitter is built from an empty pattern.
var ErrEmptyPattern = errors.New("split pattern must not be empty")

// Splitter turns text into segmentation units. Implementations must be
// deterministic pure functions of their input.
type Splitter interface {
	Split(text string) ([]string, error)
}

// RegexSplitter yields every successive match of a compiled pattern.
type RegexSplitter struct {
	re *regexp2.Regexp
}

// NewRegexSplitter compiles pattern. A zero timeout disables the per-match
// backtracking limit.
func NewRegexSplitter(pattern string, timeout time.Duration) (*RegexSplitter, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile split pattern: %w", err)
	}

	if timeout > 0 {
		re.MatchTimeout = timeout
	}

	return &RegexSplitter{re: re}, nil
}

// Split implements Splitter.
func (s *RegexSplitter) Split(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}

	var units []string

	m, err := s.re.FindStringMatch(text)
	for m != nil && err == nil {
		if u := m.String(); u != "" {
			units = append(units, u)
		}

		m, err = s.re.FindNextMatch(m)
	}

	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	return units, nil
}

// WhitespaceSplitter cuts text immediately before every run of spaces, so
// each unit after the first carries its leading spaces.
type WhitespaceSplitter struct{}

// Split implements Splitter.
func (WhitespaceSplitter) Split(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}

	var units []string

	start := 0
	for i := 1; i < len(text); i++ {
		if text[i] == ' ' && text[i-1] != ' ' {
			units = append(units, text[start:i])
			start = i
		}
	}

	units = append(units, text[start:])

	return units, nil
}

// New resolves a named rule (gpt2, gpt4, whitespace) or treats name as a raw
// regular expression.
func New(name string) (Splitter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PatternGPT2:
		return NewRegexSplitter(GPT2Pattern, 0)
	case PatternGPT4:
		return NewRegexSplitter(GPT4Pattern, 0)
	case PatternWhitespace:
		return WhitespaceSplitter{}, nil
	default:
		return NewRegexSplitter(name, 0)
	}
}
