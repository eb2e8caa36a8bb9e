package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the signaling and
// recording pipeline.
type Metrics struct {
	registry          *prometheus.Registry
	connectionsActive prometheus.Gauge
	signalEventsTotal *prometheus.CounterVec
	relayDropsTotal   prometheus.Counter
	uploadsTotal      prometheus.Counter
	chunkMismatches   prometheus.Counter
	jobsTotal         *prometheus.CounterVec
	sweptFilesTotal   prometheus.Counter
	sweepErrorsTotal  prometheus.Counter
}

// New creates and registers the metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	connectionsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_connections_active",
		Help: "Number of open signaling connections",
	})
	signalEventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_events_total",
		Help: "Total signaling events handled, by event type",
	}, []string{"event"})
	relayDropsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signaling_relay_drops_total",
		Help: "Total relayed messages dropped because the destination was gone",
	})
	uploadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recording_uploads_total",
		Help: "Total recording uploads accepted (single-shot and finalized chunked)",
	})
	chunkMismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recording_chunk_index_mismatches_total",
		Help: "Total chunk uploads whose index did not match the expected ordinal",
	})
	jobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transcode_jobs_total",
		Help: "Total transcode jobs by outcome",
	}, []string{"outcome"})
	sweptFilesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recording_swept_files_total",
		Help: "Total recordings deleted by the retention sweeper",
	})
	sweepErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recording_sweep_errors_total",
		Help: "Total per-file errors encountered during retention sweeps",
	})

	registry.MustRegister(
		connectionsActive,
		signalEventsTotal,
		relayDropsTotal,
		uploadsTotal,
		chunkMismatches,
		jobsTotal,
		sweptFilesTotal,
		sweepErrorsTotal,
	)

	return &Metrics{
		registry:          registry,
		connectionsActive: connectionsActive,
		signalEventsTotal: signalEventsTotal,
		relayDropsTotal:   relayDropsTotal,
		uploadsTotal:      uploadsTotal,
		chunkMismatches:   chunkMismatches,
		jobsTotal:         jobsTotal,
		sweptFilesTotal:   sweptFilesTotal,
		sweepErrorsTotal:  sweepErrorsTotal,
	}
}

// ConnectionOpened increments the active connection gauge.
func (m *Metrics) ConnectionOpened() { m.connectionsActive.Inc() }

// ConnectionClosed decrements the active connection gauge.
func (m *Metrics) ConnectionClosed() { m.connectionsActive.Dec() }

// IncSignalEvent counts one handled signaling event.
func (m *Metrics) IncSignalEvent(event string) {
	m.signalEventsTotal.WithLabelValues(event).Inc()
}

// IncRelayDrop counts a relayed message dropped on a vanished destination.
func (m *Metrics) IncRelayDrop() { m.relayDropsTotal.Inc() }

// IncUpload counts an accepted recording upload.
func (m *Metrics) IncUpload() { m.uploadsTotal.Inc() }

// IncChunkMismatch counts a chunk arriving with an unexpected index.
func (m *Metrics) IncChunkMismatch() { m.chunkMismatches.Inc() }

// IncJob counts a finished transcode job by outcome ("done" or "failed").
func (m *Metrics) IncJob(outcome string) {
	m.jobsTotal.WithLabelValues(outcome).Inc()
}

// AddSweptFiles counts recordings removed by a sweep pass.
func (m *Metrics) AddSweptFiles(n int) { m.sweptFilesTotal.Add(float64(n)) }

// IncSweepError counts a per-file stat or delete failure during a sweep.
func (m *Metrics) IncSweepError() { m.sweepErrorsTotal.Inc() }

// Handler returns an http.Handler serving the registry, for mounting at
// /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
