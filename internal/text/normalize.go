// Package text prepares raw corpus text for BPE training and encoding.
package text

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// ErrInvalidUTF8 is returned when the input is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("text is not valid UTF-8")

// Options controls Normalize.
type Options struct {
	// NFC applies Unicode canonical composition so visually identical
	// strings share one symbol sequence.
	NFC bool
}

// Normalize prepares raw corpus text. It normalizes line endings to \n and,
// if requested, applies NFC. Interior and leading spaces are preserved since
// they carry word-boundary information. Empty or whitespace-only input is
// rejected.
func Normalize(s string, opts Options) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}

	// Normalize line endings: CRLF → LF, then bare CR → LF.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	if strings.TrimSpace(s) == "" {
		return "", ErrEmptyText
	}

	if opts.NFC {
		s = norm.NFC.String(s)
	}

	return s, nil
}

// ReadCorpus reads all of r and normalizes it.
func ReadCorpus(r io.Reader, opts Options) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read corpus: %w", err)
	}

	return Normalize(string(data), opts)
}

// ReadCorpusFile reads and normalizes the corpus at path. "-" reads stdin.
func ReadCorpusFile(path string, opts Options) (string, error) {
	if path == "-" {
		return ReadCorpus(os.Stdin, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return ReadCorpus(f, opts)
}
