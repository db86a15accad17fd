package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/inferbench/bench-server/internal/scheduler"
	"github.com/inferbench/bench-server/internal/types"
)

var (
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bench_jobs_submitted_total",
			Help: "Total number of benchmark jobs submitted to the queue",
		},
		[]string{"platform"},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bench_jobs_finished_total",
			Help: "Total number of benchmark jobs that reached a terminal state",
		},
		[]string{"platform", "status"}, // status: completed or failed
	)

	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bench_queue_pending",
			Help: "Current number of jobs waiting in the queue",
		},
	)

	QueueRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bench_queue_running",
			Help: "Current number of jobs being executed",
		},
	)

	// Buckets: 100ms up to ~819s; model downloads dominate the long tail.
	JobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bench_job_duration_seconds",
			Help:    "Benchmark job execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"platform"},
	)
)

// QueueStats is the slice of the queue the observer polls after each event.
type QueueStats interface {
	Status() scheduler.Status
}

// Observer updates metrics from queue events. Registered as a subscriber
// alongside the relay and uploader.
type Observer struct {
	queue QueueStats
}

func NewObserver(queue QueueStats) *Observer {
	return &Observer{queue: queue}
}

func (o *Observer) HandleEvent(event types.JobEvent) {
	platform := string(event.Job.Config.Platform)

	switch event.Type {
	case types.JobAdded:
		JobsSubmittedTotal.WithLabelValues(platform).Inc()
	case types.JobCompleted, types.JobFailed:
		JobsFinishedTotal.WithLabelValues(platform, string(event.Job.Status)).Inc()

		if event.Job.StartedAt != nil && event.Job.CompletedAt != nil {
			duration := event.Job.CompletedAt.Sub(*event.Job.StartedAt).Seconds()
			JobDurationSeconds.WithLabelValues(platform).Observe(duration)
		}
	}

	if o.queue != nil {
		status := o.queue.Status()
		QueuePending.Set(float64(status.Pending))
		QueueRunning.Set(float64(status.Running))
	}
}
