package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(sweepRunsTotal, sweepScannedTotal, sweepExpiredTotal, sweepDuration, sweepLastSuccess)
}

var (
	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Expiry sweep runs by trigger and result.",
		},
		[]string{"trigger", "result"}, // trigger: timer|admin|cli; result: ok|error|skipped
	)

	sweepScannedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_scanned_total",
		Help: "Pending records examined by expiry sweeps.",
	})

	sweepExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_expired_total",
		Help: "Records moved to expired by sweeps.",
	})

	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of a full expiry sweep.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	sweepLastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sweep_last_success_timestamp_seconds",
		Help: "Unix time of the last successful sweep.",
	})
)

func ObserveSweep(trigger string, scanned, expired int, d time.Duration, err error) {
	if err != nil {
		sweepRunsTotal.WithLabelValues(norm(trigger), "error").Inc()
		return
	}
	sweepRunsTotal.WithLabelValues(norm(trigger), "ok").Inc()
	sweepScannedTotal.Add(float64(scanned))
	sweepExpiredTotal.Add(float64(expired))
	sweepDuration.Observe(d.Seconds())
	sweepLastSuccess.SetToCurrentTime()
}

func IncSweepSkipped(trigger string) {
	sweepRunsTotal.WithLabelValues(norm(trigger), "skipped").Inc()
}
