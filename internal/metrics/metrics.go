package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels verifications that produced a fused result.
	OutcomeSuccess = "success"
	// OutcomeError labels verifications that failed outright.
	OutcomeError = "error"
)

var (
	verificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mitraverify",
			Name:      "verifications_total",
			Help:      "Total number of verifications handled, partitioned by outcome and fused verdict.",
		},
		[]string{"outcome", "verdict"},
	)

	verificationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mitraverify",
			Name:      "verification_seconds",
			Help:      "Verification latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 10},
		},
	)

	signalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mitraverify",
			Name:      "signal_errors_total",
			Help:      "Producer failures degraded to absent signals, partitioned by signal.",
		},
		[]string{"signal"},
	)
)

// Register attaches the collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		verificationsTotal,
		verificationDurationSeconds,
		signalErrorsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveVerification records a verification duration, outcome, and verdict.
func ObserveVerification(duration time.Duration, outcome, verdict string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	verificationsTotal.WithLabelValues(outcome, verdict).Inc()
	if duration < 0 {
		duration = 0
	}
	verificationDurationSeconds.Observe(duration.Seconds())
}

// ObserveSignalError counts a producer failure for the named signal.
func ObserveSignalError(signal string) {
	signalErrorsTotal.WithLabelValues(signal).Inc()
}
