// Package metrics exposes Prometheus collectors for a refresh run.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder owns a private registry so a batch run can push exactly the
// series it produced.
type Recorder struct {
	registry         *prometheus.Registry
	projectsTotal    *prometheus.CounterVec
	captureSeconds   *prometheus.HistogramVec
	ledgerEntries    prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

// New registers the refresh collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		projectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showcase_projects_total",
				Help: "Projects processed, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		captureSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "showcase_capture_duration_seconds",
				Help:    "Histogram of screenshot capture latencies, labeled by site.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"site"},
		),
		ledgerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "showcase_ledger_entries",
			Help: "Entries in the timestamp ledger after the run.",
		}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "showcase_last_run_timestamp_seconds",
			Help: "Unix time the last refresh run completed.",
		}),
	}
	r.registry.MustRegister(r.projectsTotal, r.captureSeconds, r.ledgerEntries, r.lastRunTimestamp)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveOutcome counts one processed project.
func (r *Recorder) ObserveOutcome(outcome string) {
	r.projectsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCapture records a capture duration against the page host.
func (r *Recorder) ObserveCapture(rawURL string, d time.Duration) {
	r.captureSeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(d.Seconds())
}

// ObserveRun records end-of-run gauges.
func (r *Recorder) ObserveRun(ledgerEntries int, finished time.Time) {
	r.ledgerEntries.Set(float64(ledgerEntries))
	r.lastRunTimestamp.Set(float64(finished.Unix()))
}

// Push sends the registry to a Prometheus push gateway under job.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
