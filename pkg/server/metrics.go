package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/compiler"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc"
)

var (
	// SyncsTotal counts sync passes by result: ok, config_error or apply_error
	SyncsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qos_policy_tc",
		Name:      "syncs_total",
		Help:      "Number of sync passes, by result.",
	}, []string{"result"})

	// SyncDuration observes the duration of sync passes
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "qos_policy_tc",
		Name:      "sync_duration_seconds",
		Help:      "Duration of sync passes, compilation included.",
		Buckets:   prometheus.DefBuckets,
	})

	// Bindings is the number of interface bindings of the last successful compilation
	Bindings = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "qos_policy_tc",
		Name:      "bindings",
		Help:      "Number of interface bindings in the last compiled configuration.",
	})
)

// newRegistry returns a registry holding the metrics of the daemon
func newRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		SyncsTotal, SyncDuration, Bindings,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	if err := compiler.RegisterMetrics(reg); err != nil {
		return nil, err
	}
	if err := tc.RegisterMetrics(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
