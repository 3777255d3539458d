/*
Package observability turns monitor lifecycle hooks into Prometheus metrics
and structured log records.

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Combine(metrics.Hooks(), observability.LogHooks(logger))
	mon := monitor.New(bus, monitor.WithHooks(hooks))
*/
package observability
