/*
Package observability exposes dispatcher activity as Prometheus metrics.

Metrics are fed through domain.LifecycleHooks, so the dispatcher itself never
imports Prometheus:

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := metrics.Hooks(logger)
	engine, _ := venueflow.New(repo, venueflow.WithLifecycleHooks(hooks))
*/
package observability
