package tc

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// OperationsTotal counts the tc operations issued by ActuatorTCImpl
	OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qos_policy_tc",
		Name:      "operations_total",
		Help:      "Number of tc operations issued, by operation and result.",
	}, []string{"op", "result"})

	// RollbacksTotal counts the attempts to restore previously applied objects
	RollbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "qos_policy_tc",
		Name:      "rollbacks_total",
		Help:      "Number of attempts to restore the previous objects of a binding after a failure.",
	})
)

// RegisterMetrics registers the metrics of this package with reg
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{OperationsTotal, RollbacksTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func observeOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(op, result).Inc()
}
