/*
Package observability turns engine lifecycle hooks into Prometheus metrics and structured logs.

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
*/
package observability
