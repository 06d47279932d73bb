// Package doctor provides environment preflight checks for bpetrain.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/example/go-bpetrain/internal/bpe"
	"github.com/example/go-bpetrain/internal/pretokenize"
	"github.com/example/go-bpetrain/internal/text"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// minGoMinor is the oldest Go 1.x release whose loop semantics the trainer
// relies on.
const minGoMinor = 22

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// GoVersion returns the runtime version, e.g. runtime.Version().
	GoVersion VersionFunc
	// CorpusPath is read and normalized when non-empty.
	CorpusPath string
	// NFC mirrors the training normalization setting.
	NFC bool
	// ModelPath is loaded and validated when the file exists.
	ModelPath string
	// RequireModel turns a missing model file into a failure.
	RequireModel bool
	// Pattern is the pre-tokenization rule to compile.
	Pattern string
	// VocabSize, Sentinel and SpecialTokens are checked against the base
	// vocabulary they must fit on top of.
	VocabSize     int
	Sentinel      string
	SpecialTokens []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- Go runtime -------------------------------------------------------
	if cfg.GoVersion != nil {
		ver, err := cfg.GoVersion()
		if err != nil {
			res.fail(fmt.Sprintf("go version: %v", err))
			fmt.Fprintf(w, "%s go version: unavailable (%v)\n", FailMark, err)
		} else if goErr := checkGoVersion(ver); goErr != nil {
			res.fail(fmt.Sprintf("go version: %v", goErr))
			fmt.Fprintf(w, "%s go version %s: %v\n", FailMark, ver, goErr)
		} else {
			fmt.Fprintf(w, "%s go version: %s\n", PassMark, ver)
		}
	}

	// ---- pre-tokenization pattern -----------------------------------------
	if _, err := pretokenize.New(cfg.Pattern); err != nil {
		res.fail(fmt.Sprintf("pattern %q: %v", cfg.Pattern, err))
		fmt.Fprintf(w, "%s pattern %q: %v\n", FailMark, cfg.Pattern, err)
	} else {
		fmt.Fprintf(w, "%s pattern: %s\n", PassMark, displayPattern(cfg.Pattern))
	}

	// ---- vocabulary budget ------------------------------------------------
	if err := checkVocab(cfg); err != nil {
		res.fail(fmt.Sprintf("vocab size: %v", err))
		fmt.Fprintf(w, "%s vocab size %d: %v\n", FailMark, cfg.VocabSize, err)
	} else {
		fmt.Fprintf(w, "%s vocab size: %d (%d merges available)\n",
			PassMark, cfg.VocabSize, cfg.VocabSize-baseSize(cfg))
	}

	// ---- corpus -----------------------------------------------------------
	if cfg.CorpusPath != "" {
		corpus, err := text.ReadCorpusFile(cfg.CorpusPath, text.Options{NFC: cfg.NFC})
		if err != nil {
			res.fail(fmt.Sprintf("corpus %q: %v", cfg.CorpusPath, err))
			fmt.Fprintf(w, "%s corpus %s: %v\n", FailMark, cfg.CorpusPath, err)
		} else {
			fmt.Fprintf(w, "%s corpus: %s (%d bytes)\n", PassMark, cfg.CorpusPath, len(corpus))
		}
	}

	// ---- trained model ----------------------------------------------------
	if cfg.ModelPath != "" {
		checkModel(cfg, w, &res)
	}

	return res
}

func checkModel(cfg Config, w io.Writer, res *Result) {
	if _, err := os.Stat(cfg.ModelPath); errors.Is(err, fs.ErrNotExist) {
		if cfg.RequireModel {
			res.fail(fmt.Sprintf("model %q: not found", cfg.ModelPath))
			fmt.Fprintf(w, "%s model %s: not found\n", FailMark, cfg.ModelPath)
			return
		}
		fmt.Fprintf(w, "%s model %s: not trained yet\n", PassMark, cfg.ModelPath)
		return
	}

	model, err := bpe.LoadFile(cfg.ModelPath)
	if err != nil {
		res.fail(fmt.Sprintf("model %q: %v", cfg.ModelPath, err))
		fmt.Fprintf(w, "%s model %s: %v\n", FailMark, cfg.ModelPath, err)
		return
	}

	fmt.Fprintf(w, "%s model: %s (vocab %d, %d merges)\n",
		PassMark, cfg.ModelPath, model.Vocab.Len(), len(model.Merges))
}

func baseSize(cfg Config) int {
	return bpe.BaseAlphabetSize + 1 + len(cfg.SpecialTokens)
}

// checkVocab mirrors the trainer's configuration checks.
func checkVocab(cfg Config) error {
	if cfg.Sentinel == "" {
		return errors.New("sentinel must not be empty")
	}

	seen := make(map[string]bool, len(cfg.SpecialTokens))
	for _, tok := range cfg.SpecialTokens {
		if tok == "" {
			return errors.New("special tokens must not be empty")
		}
		if seen[tok] {
			return fmt.Errorf("duplicate special token %q", tok)
		}
		seen[tok] = true
	}

	if floor := baseSize(cfg); cfg.VocabSize < floor {
		return fmt.Errorf("must be at least %d (base alphabet, sentinel and special tokens)", floor)
	}

	return nil
}

func displayPattern(p string) string {
	if p == "" {
		return pretokenize.PatternGPT2
	}
	return p
}

// checkGoVersion returns an error if ver is older than go1.22.
// ver is expected to look like "go1.25.0".
func checkGoVersion(ver string) error {
	major, minor, err := parseMajorMinor(strings.TrimPrefix(ver, "go"))
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 1 {
		return fmt.Errorf("requires Go 1, got %d", major)
	}
	if minor < minGoMinor {
		return fmt.Errorf("requires Go >=1.%d, got 1.%d", minGoMinor, minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
