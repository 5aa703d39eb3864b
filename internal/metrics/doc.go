// Package metrics exposes Prometheus instrumentation for Player connections.
//
// A Collector is created per client. Collectors registered on the same
// Registerer with the same server label share their underlying series, so a
// process that reconnects does not fail registration.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg, "robot:6665")
//	m.FrameReceived(header)
//
// A nil Registerer yields working but unregistered collectors.
package metrics
