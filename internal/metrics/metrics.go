// Package metrics exposes Prometheus counters and histograms for crawl runs.
//
// All methods are safe to call on a nil *CrawlMetrics, so components can
// record unconditionally and callers opt in by passing a collector.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Namespace prefixes every metric name.
const Namespace = "docscrape"

// Fetch outcomes recorded by RecordFetch.
const (
	OutcomeOK             = "ok"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
	OutcomeCancelled      = "cancelled"
)

// Skip reasons recorded by RecordSkip.
const (
	SkipVisited  = "visited"
	SkipDepth    = "depth"
	SkipPattern  = "pattern"
	SkipMaxPages = "max_pages"
)

// CrawlMetrics collects crawler and flattener metrics.
type CrawlMetrics struct {
	fetchesTotal     *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
	skippedTotal     *prometheus.CounterVec
	documentsTotal   prometheus.Counter
	pagesWithoutText prometheus.Counter
	gatherer         prometheus.Gatherer
}

// NewCrawlMetrics creates collectors registered on a fresh registry.
func NewCrawlMetrics() *CrawlMetrics {
	reg := prometheus.NewRegistry()
	return NewCrawlMetricsWithRegistry(reg, reg)
}

// NewCrawlMetricsWithRegistry creates collectors registered on registerer.
// gatherer is used by WriteText and may be nil when the caller exposes the
// registry itself.
func NewCrawlMetricsWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *CrawlMetrics {
	m := &CrawlMetrics{gatherer: gatherer}

	m.fetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "crawler",
		Name:      "fetches_total",
		Help:      "Total page fetch attempts by outcome",
	}, []string{"outcome"}) // outcome: ok, http_error, transport_error, cancelled

	m.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "crawler",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching and reading a page",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
	})

	m.skippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "crawler",
		Name:      "skipped_total",
		Help:      "Links not fetched, by reason",
	}, []string{"reason"}) // reason: visited, depth, pattern, max_pages

	m.documentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "flatten",
		Name:      "documents_total",
		Help:      "Total indexable documents emitted",
	})

	m.pagesWithoutText = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "flatten",
		Name:      "pages_without_text_total",
		Help:      "Pages skipped by the flattener because their text was empty",
	})

	registerer.MustRegister(
		m.fetchesTotal,
		m.fetchDuration,
		m.skippedTotal,
		m.documentsTotal,
		m.pagesWithoutText,
	)

	return m
}

// RecordFetch records one fetch attempt.
func (m *CrawlMetrics) RecordFetch(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetchesTotal.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

// RecordSkip records a link that was not fetched.
func (m *CrawlMetrics) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.skippedTotal.WithLabelValues(reason).Inc()
}

// RecordFlatten records the result of flattening one tree.
func (m *CrawlMetrics) RecordFlatten(documents, pagesWithoutText int) {
	if m == nil {
		return
	}
	m.documentsTotal.Add(float64(documents))
	m.pagesWithoutText.Add(float64(pagesWithoutText))
}

// WriteText writes every gathered metric family in the Prometheus text
// exposition format.
func (m *CrawlMetrics) WriteText(w io.Writer) error {
	if m == nil || m.gatherer == nil {
		return nil
	}
	families, err := m.gatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
