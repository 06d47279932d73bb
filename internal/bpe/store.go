package bpe

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ModelFormatVersion is written to every saved model.
const ModelFormatVersion = 1

type modelFile struct {
	Version       int      `json:"version"`
	Sentinel      string   `json:"sentinel"`
	Pattern       string   `json:"pattern,omitempty"`
	SpecialTokens []string `json:"special_tokens"`
	Vocab         []string `json:"vocab"`
	Merges        [][3]int `json:"merges"`
}

// Save writes r as JSON.
func (r *Result) Save(w io.Writer) error {
	mf := modelFile{
		Version:       ModelFormatVersion,
		Sentinel:      r.Sentinel,
		Pattern:       r.Pattern,
		SpecialTokens: r.SpecialTokens,
		Vocab:         r.Vocab.Symbols(),
		Merges:        make([][3]int, len(r.Merges)),
	}
	if mf.SpecialTokens == nil {
		mf.SpecialTokens = []string{}
	}

	for i, m := range r.Merges {
		mf.Merges[i] = [3]int{m.Pair.Left, m.Pair.Right, m.ID}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(mf); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	return nil
}

// SaveFile writes r to path, creating parent directories as needed.
func (r *Result) SaveFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model dir %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := r.Save(f); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// Load reads a model written by Save and validates it.
func Load(rd io.Reader) (*Result, error) {
	var mf modelFile
	if err := json.NewDecoder(rd).Decode(&mf); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	if mf.Version != ModelFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidModel, mf.Version)
	}

	if mf.Sentinel == "" {
		return nil, fmt.Errorf("%w: missing sentinel", ErrInvalidModel)
	}

	table, err := tableFromSymbols(mf.Vocab)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	if _, ok := table.ID(mf.Sentinel); !ok {
		return nil, fmt.Errorf("%w: sentinel %q not in vocab", ErrInvalidModel, mf.Sentinel)
	}

	for _, tok := range mf.SpecialTokens {
		if _, ok := table.ID(tok); !ok {
			return nil, fmt.Errorf("%w: special token %q not in vocab", ErrInvalidModel, tok)
		}
	}

	merges := make([]Merge, len(mf.Merges))
	for i, m := range mf.Merges {
		for _, id := range m {
			if id < 0 || id >= table.Len() {
				return nil, fmt.Errorf("%w: merge %d references id %d outside vocab", ErrInvalidModel, i, id)
			}
		}

		if got, want := table.Symbol(m[2]), table.Symbol(m[0])+table.Symbol(m[1]); got != want {
			return nil, fmt.Errorf("%w: merge %d yields %q, vocab has %q", ErrInvalidModel, i, want, got)
		}

		merges[i] = Merge{Pair: Pair{m[0], m[1]}, ID: m[2]}
	}

	return &Result{
		Vocab:         table,
		Merges:        merges,
		Sentinel:      mf.Sentinel,
		SpecialTokens: mf.SpecialTokens,
		Pattern:       mf.Pattern,
	}, nil
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}
