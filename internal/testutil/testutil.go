// Package testutil provides shared fixtures and skip helpers for tests.
//
// Skip helpers call t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestLargeCorpus(t *testing.T) {
//	    path := testutil.RequireCorpus(t)
//	    ...
//	}
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// CorpusEnv names the environment variable pointing at an optional large
// training corpus for integration tests.
const CorpusEnv = "BPETRAIN_TEST_CORPUS"

// GoldenCorpus is the reference corpus. Training it to a vocabulary of 260
// with no special tokens yields the merges (e,s), (es,t), (l,o) in order.
const GoldenCorpus = "low low low low low lower lower widest widest widest " +
	"newest newest newest newest newest newest"

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WriteFile writes content to name inside a fresh temp dir and returns the
// full path.
func WriteFile(tb testing.TB, name, content string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}

	return path
}

// RequireCorpus skips the test unless CorpusEnv names a readable file, and
// returns that path.
func RequireCorpus(tb testing.TB) string {
	tb.Helper()

	path := os.Getenv(CorpusEnv)
	if path == "" {
		tb.Skipf("no integration corpus configured; set %s to a text file", CorpusEnv)
		return ""
	}

	if _, err := os.Stat(path); err != nil {
		tb.Skipf("integration corpus not available at %s=%q: %v", CorpusEnv, path, err)
		return ""
	}

	return path
}
