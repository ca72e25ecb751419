package compiler

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
)

var (
	// PassesTotal counts compilation passes by result: ok, invalid or error
	PassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qos_policy_tc",
		Name:      "compile_passes_total",
		Help:      "Number of compilation passes, by result.",
	}, []string{"result"})

	// WarningsTotal counts match group resolution warnings
	WarningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "qos_policy_tc",
		Name:      "compile_warnings_total",
		Help:      "Number of traffic-match-group resolution warnings.",
	})

	// PassDuration observes the duration of compilation passes
	PassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "qos_policy_tc",
		Name:      "compile_duration_seconds",
		Help:      "Duration of compilation passes.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)

// RegisterMetrics registers the metrics of this package with reg
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{PassesTotal, WarningsTotal, PassDuration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func observePass(start time.Time, res *Result, err error) {
	PassDuration.Observe(time.Since(start).Seconds())
	var verr *policy.ValidationError
	switch {
	case errors.As(err, &verr):
		PassesTotal.WithLabelValues("invalid").Inc()
	case err != nil:
		PassesTotal.WithLabelValues("error").Inc()
	default:
		PassesTotal.WithLabelValues("ok").Inc()
		WarningsTotal.Add(float64(len(res.Warnings)))
	}
}
