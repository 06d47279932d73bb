package bpe

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Hugging Face style file names written by ExportGPT2.
const (
	VocabFileName  = "vocab.json"
	MergesFileName = "merges.txt"

	mergesHeader = "#version: 0.2"
)

// ErrNotExportable is returned when two vocabulary entries map to the same
// exported token.
var ErrNotExportable = errors.New("symbol not representable in GPT-2 export")

// byteEncoder is the GPT-2 byte-to-unicode table: printable bytes map to
// themselves, the rest to U+0100 onwards in byte order.
var byteEncoder = func() [256]rune {
	var enc [256]rune

	printable := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}

	n := 0
	for b := range 256 {
		if printable(b) {
			enc[b] = rune(b)
			continue
		}
		enc[b] = rune(256 + n)
		n++
	}

	return enc
}()

// exportToken renders a symbol the way GPT-2 files store it. The sentinel
// stands for a space, so it is replaced before the UTF-8 bytes are remapped.
// Special tokens are written verbatim.
func (r *Result) exportToken(s string) string {
	if slices.Contains(r.SpecialTokens, s) {
		return s
	}

	if r.Sentinel != "" {
		s = strings.ReplaceAll(s, r.Sentinel, " ")
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		sb.WriteRune(byteEncoder[s[i]])
	}

	return sb.String()
}

// GPT2Vocab maps every exported token to its ID. The base alphabet's space
// is left out: spaces only reach words as the sentinel, which exports to the
// same token.
func (r *Result) GPT2Vocab() (map[string]int, error) {
	symbols := r.Vocab.Symbols()
	vocab := make(map[string]int, len(symbols))

	for id, s := range symbols {
		if s == " " && r.Sentinel != " " {
			continue
		}

		tok := r.exportToken(s)
		if prev, ok := vocab[tok]; ok && prev != id {
			return nil, fmt.Errorf("ids %d and %d both export as %q: %w", prev, id, tok, ErrNotExportable)
		}
		vocab[tok] = id
	}

	return vocab, nil
}

// WriteVocabJSON writes vocab.json, a JSON object mapping each exported token
// to its ID.
func (r *Result) WriteVocabJSON(w io.Writer) error {
	vocab, err := r.GPT2Vocab()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(vocab); err != nil {
		return fmt.Errorf("encode vocab: %w", err)
	}

	return nil
}

// WriteMerges writes a versioned merges.txt listing one "left right" pair per
// line in rank order. The byte remapping keeps whitespace out of every token.
func (r *Result) WriteMerges(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, mergesHeader); err != nil {
		return err
	}

	for _, m := range r.MergeStrings() {
		if _, err := fmt.Fprintf(bw, "%s %s\n", r.exportToken(m[0]), r.exportToken(m[1])); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ExportGPT2 writes vocab.json and merges.txt into dir.
func (r *Result) ExportGPT2(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir %s: %w", dir, err)
	}

	if err := writeFile(filepath.Join(dir, VocabFileName), r.WriteVocabJSON); err != nil {
		return err
	}

	return writeFile(filepath.Join(dir, MergesFileName), r.WriteMerges)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
