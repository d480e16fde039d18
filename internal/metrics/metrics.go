// Package metrics exposes conversion counters for long-running commands.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leapstack-labs/uqtable/internal/convert"
)

const namespace = "uqtable"

// Conversion outcome labels.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Recorder counts conversions on its own registry.
type Recorder struct {
	reg         *prometheus.Registry
	conversions *prometheus.CounterVec
	rows        prometheus.Counter
	duration    prometheus.Histogram
}

// New creates a Recorder with the Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Dataset files converted, by outcome.",
		}, []string{"status", "format"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "converted_rows_total",
			Help:      "Rows written by successful conversions.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Time spent decoding and encoding one file.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	r.reg.MustRegister(
		r.conversions,
		r.rows,
		r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe records one finished conversion.
func (r *Recorder) Observe(res convert.Result) {
	format := string(res.Job.To)
	if res.Err != nil {
		r.conversions.WithLabelValues(StatusFailed, format).Inc()
		return
	}
	r.conversions.WithLabelValues(StatusSuccess, format).Inc()
	r.rows.Add(float64(res.Rows))
	r.duration.Observe(res.Duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Serve exposes /metrics on ln until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("serving metrics", "addr", ln.Addr().String())
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
