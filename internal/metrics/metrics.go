// Package metrics exposes Prometheus collectors for training runs and the
// tokenizer HTTP service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bpetrain"

// Registry holds every collector in this package. It is separate from the
// global default registry so tests and embedders see only bpetrain series.
var Registry = prometheus.NewRegistry()

// TrainRegistry holds only the training collectors. It backs the textfile
// written by a one-shot train run, which must not repeat the go_ and
// process_ series of the exporter that picks it up.
var TrainRegistry = prometheus.NewRegistry()

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"route"},
	)
	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokenizer",
			Name:      "tokens_total",
			Help:      "Count of token IDs produced by encode or consumed by decode.",
		},
		[]string{"op"},
	)
	mergesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "merges_total",
			Help:      "Count of merge rules learned across training runs.",
		},
	)
	vocabSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "vocab_size",
			Help:      "Vocabulary size of the most recent training run or loaded model.",
		},
	)
	trainDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "duration_seconds",
			Help:      "Wall time of the most recent training run.",
		},
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(requestsTotal)
		Registry.MustRegister(requestDuration)
		Registry.MustRegister(tokensTotal)
		Registry.MustRegister(mergesTotal)
		Registry.MustRegister(vocabSize)
		Registry.MustRegister(trainDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		TrainRegistry.MustRegister(mergesTotal, vocabSize, trainDuration)
	})
}

// WriteTextfile writes the training collectors to path in the format read by
// the node exporter textfile collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	Register()
	return prometheus.WriteToTextfile(path, TrainRegistry)
}

// Handler serves the registry in the Prometheus text exposition format.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordRequest records one served HTTP request.
func RecordRequest(route string, code int, d time.Duration) {
	requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordTokens adds n to the token counter for op ("encode" or "decode").
func RecordTokens(op string, n int) {
	tokensTotal.WithLabelValues(op).Add(float64(n))
}

// RecordMerge counts one learned merge rule.
func RecordMerge() {
	mergesTotal.Inc()
}

// RecordVocabSize sets the vocabulary size gauge.
func RecordVocabSize(n int) {
	vocabSize.Set(float64(n))
}

// RecordTraining records the outcome of a completed training run.
func RecordTraining(vocab int, d time.Duration) {
	vocabSize.Set(float64(vocab))
	trainDuration.Set(d.Seconds())
}
