package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dispatchTasksTotal, dispatchQueueDepth, auditAppendsTotal) }

var (
	dispatchTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_tasks_total",
			Help: "Side-effect tasks by result.",
		},
		[]string{"result"}, // ok, error, dropped, panic
	)

	dispatchQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_queue_depth",
		Help: "Side-effect tasks waiting for a worker.",
	})

	auditAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_appends_total",
			Help: "Audit entries appended per sink and result.",
		},
		[]string{"sink", "result"},
	)
)

func IncDispatchTask(result string) {
	dispatchTasksTotal.WithLabelValues(norm(result)).Inc()
}

func SetDispatchQueueDepth(n int) {
	dispatchQueueDepth.Set(float64(n))
}

func IncAuditAppend(sink, result string) {
	auditAppendsTotal.WithLabelValues(norm(sink), norm(result)).Inc()
}
