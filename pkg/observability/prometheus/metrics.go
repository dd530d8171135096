// Package prometheus exports repository, file I/O and worker pool metrics.
package prometheus

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxorio/filerepo/pkg/concurrency"
	"github.com/fluxorio/filerepo/pkg/filerepo"
)

var (
	// DefaultRegistry is the registry served by Handler.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer labels every metric with the service name.
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "filerepo"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all filerepo collectors. It implements filerepo.Observer
// and fileio.Observer.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	IOOperationsTotal *prometheus.CounterVec
	IOBytesTotal      *prometheus.CounterVec
	IODuration        *prometheus.HistogramVec

	PoolWorkers   prometheus.Gauge
	PoolQueued    prometheus.Gauge
	PoolCapacity  prometheus.Gauge
	PoolCompleted prometheus.Gauge
	PoolFailed    prometheus.Gauge

	ReactorPending *prometheus.GaugeVec
}

// GetMetrics returns the process-wide instance registered on DefaultRegisterer.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics registers a fresh set of collectors. A nil registerer means
// DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerepo_operations_total",
				Help: "Total number of repository operations",
			},
			[]string{"repo", "op", "result"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filerepo_operation_duration_seconds",
				Help:    "Repository operation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"repo", "op"},
		),

		IOOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerepo_io_operations_total",
				Help: "Total number of file syscalls run on the worker pool",
			},
			[]string{"op", "result"},
		),
		IOBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerepo_io_bytes_total",
				Help: "Bytes transferred by file syscalls",
			},
			[]string{"op"},
		),
		IODuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filerepo_io_duration_seconds",
				Help:    "File syscall duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
			},
			[]string{"op"},
		),

		PoolWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "filerepo_pool_workers",
			Help: "Number of I/O worker goroutines",
		}),
		PoolQueued: factory.NewGauge(prometheus.GaugeOpts{
			Name: "filerepo_pool_queued_tasks",
			Help: "Tasks waiting for an I/O worker",
		}),
		PoolCapacity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "filerepo_pool_queue_capacity",
			Help: "Capacity of the I/O task queue",
		}),
		PoolCompleted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "filerepo_pool_completed_tasks",
			Help: "I/O tasks completed successfully since start",
		}),
		PoolFailed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "filerepo_pool_failed_tasks",
			Help: "I/O tasks that returned an error since start",
		}),

		ReactorPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "filerepo_reactor_pending_tasks",
				Help: "Tasks queued on an event loop",
			},
			[]string{"loop"},
		),
	}
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, filerepo.ErrSeek):
		return "seek_error"
	case errors.Is(err, filerepo.ErrNoExactMatch):
		return "no_exact_match"
	case errors.Is(err, filerepo.ErrFileCorruption):
		return "corruption"
	default:
		return "error"
	}
}

// ObserveOperation records one repository operation.
func (m *Metrics) ObserveOperation(repo, op string, latency time.Duration, err error) {
	m.OperationsTotal.WithLabelValues(repo, op, result(err)).Inc()
	m.OperationDuration.WithLabelValues(repo, op).Observe(latency.Seconds())
}

// ObserveIO records one file syscall.
func (m *Metrics) ObserveIO(op string, bytes int, latency time.Duration, err error) {
	m.IOOperationsTotal.WithLabelValues(op, result(err)).Inc()
	if bytes > 0 {
		m.IOBytesTotal.WithLabelValues(op).Add(float64(bytes))
	}
	m.IODuration.WithLabelValues(op).Observe(latency.Seconds())
}

// UpdatePool copies a worker pool snapshot into the pool gauges.
func (m *Metrics) UpdatePool(stats concurrency.PoolStats) {
	m.PoolWorkers.Set(float64(stats.Workers))
	m.PoolQueued.Set(float64(stats.QueuedTasks))
	m.PoolCapacity.Set(float64(stats.QueueCapacity))
	m.PoolCompleted.Set(float64(stats.CompletedTasks))
	m.PoolFailed.Set(float64(stats.FailedTasks))
}

// UpdateReactor records the mailbox depth of a loop.
func (m *Metrics) UpdateReactor(name string, pending int) {
	m.ReactorPending.WithLabelValues(name).Set(float64(pending))
}
