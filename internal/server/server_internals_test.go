package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/go-bpetrain/internal/config"
	"github.com/example/go-bpetrain/internal/testutil"
)

type fixedTokenizer struct{}

func (fixedTokenizer) Encode(string) ([]int64, error)  { return []int64{1}, nil }
func (fixedTokenizer) Decode([]int64) (string, error) { return "a", nil }
func (fixedTokenizer) VocabSize() int                  { return 257 }
func (fixedTokenizer) MergeCount() int                 { return 0 }

// --- New / WithShutdownTimeout ---

func TestNew_DefaultShutdownTimeout(t *testing.T) {
	s := New(config.DefaultConfig(), fixedTokenizer{})
	if s.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdownTimeout = %v; want 30s", s.shutdownTimeout)
	}
}

func TestWithShutdownTimeout_Chaining(t *testing.T) {
	s := New(config.DefaultConfig(), fixedTokenizer{}).
		WithShutdownTimeout(5 * time.Second).
		WithLogger(testutil.DiscardLogger())

	if s.shutdownTimeout != 5*time.Second {
		t.Errorf("shutdownTimeout = %v; want 5s", s.shutdownTimeout)
	}
}

// --- Start ---

func TestStart_NoTokenizer(t *testing.T) {
	err := New(config.DefaultConfig(), nil).Start(context.Background())
	if err == nil {
		t.Error("Start() = nil; want error without a tokenizer")
	}
}

func TestStart_InvalidListenAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = "not-an-address"

	err := New(cfg, fixedTokenizer{}).WithLogger(testutil.DiscardLogger()).Start(context.Background())
	if err == nil {
		t.Error("Start() = nil; want listen error")
	}
}

func TestStart_LifecycleHealthAndShutdown(t *testing.T) {
	// Find an available port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	addr := ln.Addr().String()
	ln.Close()

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = addr

	s := New(cfg, fixedTokenizer{}).
		WithShutdownTimeout(2 * time.Second).
		WithLogger(testutil.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.Start(ctx)
	}()

	client := &http.Client{Timeout: 2 * time.Second}

	var resp *http.Response

	for range 50 {
		resp, err = client.Get(fmt.Sprintf("http://%s/vocab", addr))
		if err == nil {
			break
		}

		time.Sleep(20 * time.Millisecond)
	}

	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}
	defer resp.Body.Close()

	var body vocabResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode /vocab: %v", err)
	}

	if body.VocabSize != 257 {
		t.Errorf("vocab_size = %d; want 257", body.VocabSize)
	}

	if err := ProbeHTTP(context.Background(), addr); err != nil {
		t.Errorf("ProbeHTTP(%q) = %v; want nil", addr, err)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return within 5s of context cancel")
	}
}

// --- ProbeHTTP ---

func TestProbeHTTP_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := ProbeHTTP(context.Background(), srv.Listener.Addr().String()); err == nil {
		t.Error("ProbeHTTP() = nil; want error for non-200 response")
	}
}

func TestProbeHTTP_ConnectionRefused(t *testing.T) {
	if err := ProbeHTTP(context.Background(), "127.0.0.1:1"); err == nil {
		t.Error("ProbeHTTP() = nil; want error for unreachable host")
	}
}

func TestProbeHTTP_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := ProbeHTTP(ctx, srv.Listener.Addr().String())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ProbeHTTP() = %v; want context.DeadlineExceeded", err)
	}

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("ProbeHTTP() took %v; want it bounded by ctx", elapsed)
	}
}

// --- Functional options ---

func TestOptions(t *testing.T) {
	logger := slog.Default()

	opts := defaultOptions()
	for _, fn := range []Option{
		WithMaxTextBytes(10),
		WithWorkers(3),
		WithRequestTimeout(time.Second),
		WithLogger(logger),
	} {
		fn(&opts)
	}

	if opts.maxTextBytes != 10 {
		t.Errorf("maxTextBytes = %d; want 10", opts.maxTextBytes)
	}

	if opts.workers != 3 {
		t.Errorf("workers = %d; want 3", opts.workers)
	}

	if opts.requestTimeout != time.Second {
		t.Errorf("requestTimeout = %v; want 1s", opts.requestTimeout)
	}

	if opts.logger != logger {
		t.Error("logger was not applied")
	}
}

func TestInstrument_UnknownRouteLabel(t *testing.T) {
	h := NewHandler(fixedTokenizer{}, WithLogger(testutil.DiscardLogger()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404", rec.Code)
	}
}
