package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records storefront sync activity.
type SyncMetrics struct {
	runs         *prometheus.CounterVec
	duration     prometheus.Histogram
	products     *prometheus.CounterVec
	listingPages *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keebsteals_sync_runs_total",
		Help: "Sync runs by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "keebsteals_sync_duration_seconds",
		Help:    "Duration of sync runs in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	products := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keebsteals_sync_products_total",
		Help: "Products processed by sync runs, by outcome.",
	}, []string{"outcome"})
	listingPages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keebsteals_listing_pages_total",
		Help: "Listing pages fetched, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(runs, duration, products, listingPages)
	return &SyncMetrics{
		runs:         runs,
		duration:     duration,
		products:     products,
		listingPages: listingPages,
	}
}

// ObserveRun records a finished sync run.
func (m *SyncMetrics) ObserveRun(elapsed time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	m.runs.WithLabelValues(outcome(err)).Inc()
}

// ProductSynced increments the synced product counter.
func (m *SyncMetrics) ProductSynced() {
	if m == nil || m.products == nil {
		return
	}
	m.products.WithLabelValues("synced").Inc()
}

// ProductFailed increments the failed product counter.
func (m *SyncMetrics) ProductFailed() {
	if m == nil || m.products == nil {
		return
	}
	m.products.WithLabelValues("failed").Inc()
}

// ListingPage records one listing page fetch.
func (m *SyncMetrics) ListingPage(err error) {
	if m == nil || m.listingPages == nil {
		return
	}
	m.listingPages.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
