// Package metrics exposes Prometheus collectors for batcher job/shard
// progress: processed/failed counters promoted to real Prometheus
// collectors, since client_golang is already pulled in transitively by
// the etcd/grpc-middleware stack.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups every metric a Batcher instance registers. Callers
// construct one per process (or per job, with distinct label values) and
// pass it to prometheus.Register.
type Collectors struct {
	BatchesDelivered *prometheus.CounterVec
	ResultsDelivered *prometheus.CounterVec
	TasksFailed      *prometheus.CounterVec
	QueueDepth       *prometheus.GaugeVec
	ShardsDone       *prometheus.GaugeVec
}

// NewCollectors builds a fresh, unregistered Collectors set. namespace is
// typically "forestbatch".
func NewCollectors(namespace string) *Collectors {
	return &Collectors{
		BatchesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_delivered_total",
			Help:      "Batches delivered to success listeners, by shard.",
		}, []string{"job_ticket", "shard"}),
		ResultsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_delivered_total",
			Help:      "Identifiers delivered to success listeners, by shard.",
		}, []string{"job_ticket", "shard"}),
		TasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Page-fetch tasks that failed, including failures on the retry path.",
		}, []string{"job_ticket", "shard"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_queue_depth",
			Help:      "Approximate number of tasks queued in the worker pool.",
		}, []string{"job_ticket"}),
		ShardsDone: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shards_done",
			Help:      "1 if a shard has reached isDone, else 0.",
		}, []string{"job_ticket", "shard"}),
	}
}

// MustRegister registers every collector against reg, panicking on a
// duplicate-registration error, matching prometheus.Registerer's own
// startup-time registration convention.
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.BatchesDelivered,
		c.ResultsDelivered,
		c.TasksFailed,
		c.QueueDepth,
		c.ShardsDone,
	)
}
