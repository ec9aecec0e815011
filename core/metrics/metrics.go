// Package metrics exposes Prometheus collectors for the bot. Label sets are
// small enums (outcome, update kind) so cardinality stays bounded.
//
// A nil *Recorder is valid and records nothing, which keeps tests and
// metrics-disabled deployments free of nil checks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "tunebot"

// Recorder owns a private registry and the bot's collectors.
type Recorder struct {
	reg *prometheus.Registry

	updates     *prometheus.CounterVec
	searches    *prometheus.CounterVec
	navigations *prometheus.CounterVec
	downloads   *prometheus.CounterVec
	downloadDur prometheus.Histogram
	inflight    prometheus.Gauge
	cleanups    *prometheus.CounterVec
}

// New builds a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates received by kind.",
		}, []string{"kind"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Search attempts by outcome (accepted, quota_exceeded, query_too_short, failed, empty).",
		}, []string{"outcome"}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Result page navigations by outcome (moved, edge, not_found, out_of_range).",
		}, []string{"outcome"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Finished downloads by outcome.",
		}, []string{"outcome"}),
		downloadDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Time from job start to audio delivered or failed.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_inflight",
			Help:      "Downloads currently running.",
		}),
		cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_removals_total",
			Help:      "Temporary file removals by result (removed, abandoned).",
		}, []string{"result"}),
	}
	r.reg.MustRegister(
		r.updates, r.searches, r.navigations, r.downloads,
		r.downloadDur, r.inflight, r.cleanups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry, e.g. for promhttp.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Update counts an incoming update.
func (r *Recorder) Update(kind string) {
	if r == nil {
		return
	}
	r.updates.WithLabelValues(kind).Inc()
}

// Search counts a search attempt.
func (r *Recorder) Search(outcome string) {
	if r == nil {
		return
	}
	r.searches.WithLabelValues(outcome).Inc()
}

// Navigation counts a pagination request.
func (r *Recorder) Navigation(outcome string) {
	if r == nil {
		return
	}
	r.navigations.WithLabelValues(outcome).Inc()
}

// DownloadStarted marks a job as running.
func (r *Recorder) DownloadStarted() {
	if r == nil {
		return
	}
	r.inflight.Inc()
}

// DownloadFinished records the terminal outcome of a job started with
// DownloadStarted.
func (r *Recorder) DownloadFinished(outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.inflight.Dec()
	r.downloads.WithLabelValues(outcome).Inc()
	r.downloadDur.Observe(took.Seconds())
}

// FileRemoval counts a temporary file cleanup result.
func (r *Recorder) FileRemoval(result string) {
	if r == nil {
		return
	}
	r.cleanups.WithLabelValues(result).Inc()
}

// GaugeFunc registers a gauge sampled from fn at scrape time. Used for store
// sizes owned by other packages.
func (r *Recorder) GaugeFunc(name, help string, fn func() float64) {
	if r == nil || fn == nil {
		return
	}
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}
