package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type RegistryParams struct {
	// StoreDriver and Version label the store_info gauge.
	StoreDriver string
	Version     string
	// Collectors are backend specific, e.g. the pgx pool stats.
	Collectors []prometheus.Collector
}

// SetupPrometheus builds the registry served on /metrics. Besides the Go
// runtime and process collectors it carries a store_info gauge, so dashboards
// can tell which backend a replica keeps its entries in.
func SetupPrometheus(params RegistryParams) *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()

	promRegistry.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	storeInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "traininglog",
		Name:      "store_info",
		Help:      "Backend the training log entries are kept in",
	}, []string{"driver", "version"})
	storeInfo.WithLabelValues(params.StoreDriver, params.Version).Set(1)
	promRegistry.MustRegister(storeInfo)

	promRegistry.MustRegister(params.Collectors...)

	return promRegistry
}
