package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation service.
type Metrics struct {
	// Ingestion metrics.
	IngestRunning     prometheus.Gauge
	IngestDuration    prometheus.Histogram
	SourceCandidates  *prometheus.CounterVec   // labels: source
	SourceSkipped     *prometheus.CounterVec   // labels: source
	SourceErrors      *prometheus.CounterVec   // labels: source
	SourceFetchTime   *prometheus.HistogramVec // labels: source
	DuplicatesRemoved prometheus.Counter
	SpotsUpserted     prometheus.Counter
	BatchWriteErrors  prometheus.Counter

	// Discovery metrics.
	ReportsReceived *prometheus.CounterVec // labels: result={matched,discovered}
	Confirmations   prometheus.Counter
	SpotsVerified   prometheus.Counter

	// Availability metrics.
	AvailabilityQueries  prometheus.Counter
	AvailabilityDuration prometheus.Histogram
	PlacesCache          *prometheus.CounterVec // labels: result={hit,miss}

	// Event sink metrics.
	EventsPublished *prometheus.CounterVec // labels: type
	EventErrors     prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parking",
			Name:      "ingest_running",
			Help:      "1 while an ingestion run is active, 0 otherwise.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parking",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete fetch-dedup-persist run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SourceCandidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "source_candidates_total",
			Help:      "Normalized candidate spots fetched, by source.",
		}, []string{"source"}),
		SourceSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "source_records_skipped_total",
			Help:      "Malformed source records skipped, by source.",
		}, []string{"source"}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "source_errors_total",
			Help:      "Source fetches that failed after retries, by source.",
		}, []string{"source"}),
		SourceFetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parking",
			Name:      "source_fetch_duration_seconds",
			Help:      "Full fetch duration per source, including pagination.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"source"}),
		DuplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "duplicates_removed_total",
			Help:      "Candidate spots merged away during deduplication.",
		}),
		SpotsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "spots_upserted_total",
			Help:      "Deduplicated spots written to the store.",
		}),
		BatchWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "batch_write_errors_total",
			Help:      "Persistence batches that failed.",
		}),
		ReportsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "reports_received_total",
			Help:      "User spot reports by result.",
		}, []string{"result"}),
		Confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "confirmations_total",
			Help:      "User confirmations of existing spots.",
		}),
		SpotsVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "spots_verified_total",
			Help:      "Spots promoted to verified by user confirmations.",
		}),
		AvailabilityQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "availability_queries_total",
			Help:      "Availability queries served.",
		}),
		AvailabilityDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parking",
			Name:      "availability_duration_seconds",
			Help:      "Duration of an availability query fan-out.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PlacesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "places_cache_total",
			Help:      "Places search cache lookups by result.",
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "events_published_total",
			Help:      "Spot lifecycle events published, by type.",
		}, []string{"type"}),
		EventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "event_errors_total",
			Help:      "Spot lifecycle events that failed to publish.",
		}),
	}

	prometheus.MustRegister(
		m.IngestRunning,
		m.IngestDuration,
		m.SourceCandidates,
		m.SourceSkipped,
		m.SourceErrors,
		m.SourceFetchTime,
		m.DuplicatesRemoved,
		m.SpotsUpserted,
		m.BatchWriteErrors,
		m.ReportsReceived,
		m.Confirmations,
		m.SpotsVerified,
		m.AvailabilityQueries,
		m.AvailabilityDuration,
		m.PlacesCache,
		m.EventsPublished,
		m.EventErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		IngestRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "parking", Name: "ingest_running"}),
		IngestDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "parking", Name: "ingest_duration_seconds"}),
		SourceCandidates:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "parking", Name: "source_candidates_total"}, []string{"source"}),
		SourceSkipped:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "parking", Name: "source_records_skipped_total"}, []string{"source"}),
		SourceErrors:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "parking", Name: "source_errors_total"}, []string{"source"}),
		SourceFetchTime:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "parking", Name: "source_fetch_duration_seconds"}, []string{"source"}),
		DuplicatesRemoved:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "duplicates_removed_total"}),
		SpotsUpserted:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "spots_upserted_total"}),
		BatchWriteErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "batch_write_errors_total"}),
		ReportsReceived:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "parking", Name: "reports_received_total"}, []string{"result"}),
		Confirmations:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "confirmations_total"}),
		SpotsVerified:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "spots_verified_total"}),
		AvailabilityQueries:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "availability_queries_total"}),
		AvailabilityDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "parking", Name: "availability_duration_seconds"}),
		PlacesCache:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "parking", Name: "places_cache_total"}, []string{"result"}),
		EventsPublished:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "parking", Name: "events_published_total"}, []string{"type"}),
		EventErrors:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "parking", Name: "event_errors_total"}),
	}
}
