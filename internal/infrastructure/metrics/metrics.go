// Package metrics exports ingestion and mutation counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "farmlog"

// Recorder implements ports.Metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	filesScanned   *prometheus.CounterVec
	entriesStored  prometheus.Counter
	mutations      *prometheus.CounterVec
	ingestDuration prometheus.Histogram
}

// New creates a recorder with every collector registered.
func New() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		filesScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_files_total",
			Help:      "Source files seen by ingestion, by outcome.",
		}, []string{"outcome"}),
		entriesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_entries_total",
			Help:      "Entries written to the content store by ingestion.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Mutation API calls, by operation and result.",
		}, []string{"op", "result"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Wall time of one ingestion pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{r.filesScanned, r.entriesStored, r.mutations, r.ingestDuration} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// FileScanned counts one source file with its outcome.
func (r *Recorder) FileScanned(outcome string) {
	r.filesScanned.WithLabelValues(outcome).Inc()
}

// EntriesStored adds n stored entries.
func (r *Recorder) EntriesStored(n int) {
	if n > 0 {
		r.entriesStored.Add(float64(n))
	}
}

// Mutation counts one mutation call.
func (r *Recorder) Mutation(op string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.mutations.WithLabelValues(op, result).Inc()
}

// IngestDuration observes the duration of one ingestion pass.
func (r *Recorder) IngestDuration(d time.Duration) {
	r.ingestDuration.Observe(d.Seconds())
}

// Registry returns the registry the collectors live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down metrics server", "err", err)
		}
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
