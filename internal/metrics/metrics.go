// Package metrics exposes Prometheus counters for synchronization passes.
//
// Registers:
//
//	foliosync_pass_total
//	foliosync_notes_created_total
//	foliosync_notes_updated_total
//	foliosync_merges_total
//	foliosync_merge_failures_total
//	foliosync_pass_duration_seconds
//	foliosync_last_pass_timestamp_seconds
//	go_* and process_* system metrics
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foliosync/internal/syncer"
)

var (
	once sync.Once

	passes        *prometheus.CounterVec
	notesCreated  prometheus.Counter
	notesUpdated  prometheus.Counter
	merges        prometheus.Counter
	mergeFailures prometheus.Counter
	passDuration  prometheus.Histogram
	lastPass      prometheus.Gauge
)

// Init registers all collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		passes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foliosync_pass_total",
				Help: "Synchronization passes by result",
			},
			[]string{"result"},
		)
		notesCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foliosync_notes_created_total",
			Help: "Notes first seen in a snapshot",
		})
		notesUpdated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foliosync_notes_updated_total",
			Help: "Existing notes reconciled against a snapshot",
		})
		merges = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foliosync_merges_total",
			Help: "Detail documents merged successfully",
		})
		mergeFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foliosync_merge_failures_total",
			Help: "Detail documents that failed to fetch or merge",
		})
		passDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "foliosync_pass_duration_seconds",
			Help:    "Wall time of one synchronization pass",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		})
		lastPass = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "foliosync_last_pass_timestamp_seconds",
			Help: "Unix time of the last completed pass",
		})

		_ = prometheus.Register(passes)
		_ = prometheus.Register(notesCreated)
		_ = prometheus.Register(notesUpdated)
		_ = prometheus.Register(merges)
		_ = prometheus.Register(mergeFailures)
		_ = prometheus.Register(passDuration)
		_ = prometheus.Register(lastPass)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// ObservePass records the outcome of one synchronization pass.
func ObservePass(report *syncer.Report, err error) {
	if passes == nil || report == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	passes.WithLabelValues(result).Inc()

	notesCreated.Add(float64(report.Created))
	notesUpdated.Add(float64(report.Updated))
	merges.Add(float64(report.Merged))
	mergeFailures.Add(float64(report.Failed))
	passDuration.Observe(report.Duration.Seconds())
	if err == nil {
		lastPass.SetToCurrentTime()
	}
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
