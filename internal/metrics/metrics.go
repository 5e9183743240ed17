package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // JourneysCreated counts accepted journey allocations.
    JourneysCreated = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "journeys_created_total", Help: "Journeys created."},
    )
    // SequenceConflicts counts journey writes rejected for range overlap.
    SequenceConflicts = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "sequence_conflicts_total", Help: "Journey writes rejected for overlapping sequence ranges."},
    )
    // DeliveriesClassified counts classified delivery rows by final result
    DeliveriesClassified = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "deliveries_classified_total", Help: "Delivery rows classified, by final result."},
        []string{"result"},
    )
    // IngestRows counts scan-upload rows by kind (daily, weekly) and outcome
    IngestRows = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "ingest_rows_total", Help: "Scan upload rows by outcome."},
        []string{"kind", "outcome"},
    )
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(JourneysCreated)
        Registry.MustRegister(SequenceConflicts)
        Registry.MustRegister(DeliveriesClassified)
        Registry.MustRegister(IngestRows)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
