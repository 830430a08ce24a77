package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry            *prometheus.Registry
	NavigationsTotal    *prometheus.CounterVec
	NavigationDuration  prometheus.Histogram
	CardsTotal          prometheus.Counter
	RetriesTotal        prometheus.Counter
	EnrichmentFailures  prometheus.Counter
	JobsTotal           *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
	RunsTotal           *prometheus.CounterVec
	LastRunRecordsGauge prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	navigations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_navigations_total",
			Help: "Listing page navigations by result.",
		},
		[]string{"result"},
	)
	navigationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_navigation_duration_seconds",
			Help:    "Listing page load latency including selector waits.",
			Buckets: prometheus.DefBuckets,
		},
	)
	cards := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_cards_total",
			Help: "Total number of listing cards extracted.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of card extraction retries.",
		},
	)
	enrichFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_enrichment_failures_total",
			Help: "Detail views that degraded to the sentinel value.",
		},
	)
	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_jobs_total",
			Help: "Vehicle and period jobs by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Orchestration runs by outcome.",
		},
		[]string{"outcome"},
	)
	lastRunRecords := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_last_run_records",
			Help: "Records collected by the most recent run.",
		},
	)

	registry.MustRegister(navigations, navigationDuration, cards, retries, enrichFailures, jobs, errorsTotal, runs, lastRunRecords)

	return &Metrics{
		Registry:            registry,
		NavigationsTotal:    navigations,
		NavigationDuration:  navigationDuration,
		CardsTotal:          cards,
		RetriesTotal:        retries,
		EnrichmentFailures:  enrichFailures,
		JobsTotal:           jobs,
		ErrorsTotal:         errorsTotal,
		RunsTotal:           runs,
		LastRunRecordsGauge: lastRunRecords,
	}
}

// IncNavigation increments the navigation counter for a result label.
func (m *Metrics) IncNavigation(result string) {
	if m == nil {
		return
	}
	m.NavigationsTotal.WithLabelValues(result).Inc()
}

// ObserveNavigation records a listing load duration.
func (m *Metrics) ObserveNavigation(d time.Duration) {
	if m == nil {
		return
	}
	m.NavigationDuration.Observe(d.Seconds())
}

// IncCards increments the extracted cards counter.
func (m *Metrics) IncCards() {
	if m == nil {
		return
	}
	m.CardsTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncEnrichmentFailure increments the degraded detail view counter.
func (m *Metrics) IncEnrichmentFailure() {
	if m == nil {
		return
	}
	m.EnrichmentFailures.Inc()
}

// IncJob counts a finished job.
func (m *Metrics) IncJob(kind, outcome string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(kind, outcome).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveRun counts a finished run and records its size.
func (m *Metrics) ObserveRun(outcome string, records int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.LastRunRecordsGauge.Set(float64(records))
}
