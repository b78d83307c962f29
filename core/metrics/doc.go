// Package metrics defines the observability contract of the solve session.
// Sinks such as the Prometheus and InfluxDB implementations in infra/metrics
// record solve starts, poll samples, analyses and backend requests. Sinks are
// created from configuration through a factory registry and several sinks are
// combined with NewMultiSink automatically.
package metrics
