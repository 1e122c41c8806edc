package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "video_ingest"

// Metrics holds every collector the processing pipeline and the stream server report to.
type Metrics struct {
	JobsTotal         *prometheus.CounterVec
	RenditionsTotal   *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	HeartbeatFailures prometheus.Counter
	StuckFixedTotal   *prometheus.CounterVec
	StreamRequests    *prometheus.CounterVec
	StreamBytes       prometheus.Counter
	WorkersBusy       prometheus.Gauge
	QueueLength       prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Processing runs by outcome.",
		}, []string{"outcome"}),
		RenditionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renditions_total",
			Help:      "Rendition encodes by quality and outcome.",
		}, []string{"quality", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each processing stage.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"stage"}),
		HeartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_failures_total",
			Help:      "Heartbeat writes that returned an error.",
		}),
		StuckFixedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stuck_fixed_total",
			Help:      "Videos the stuck detector marked failed.",
		}, []string{"kind"}),
		StreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_requests_total",
			Help:      "Stream responses by status code.",
		}, []string{"code"}),
		StreamBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_bytes_total",
			Help:      "Body bytes written by the stream server.",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Workers currently running a job.",
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Jobs waiting in the queue at the last sample.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.JobsTotal,
			m.RenditionsTotal,
			m.StageDuration,
			m.HeartbeatFailures,
			m.StuckFixedTotal,
			m.StreamRequests,
			m.StreamBytes,
			m.WorkersBusy,
			m.QueueLength,
		)
	}
	return m
}

// NewNop returns unregistered collectors, used by tests and one-shot commands.
func NewNop() *Metrics {
	return New(nil)
}

func (m *Metrics) ObserveStage(stage string, started time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}
