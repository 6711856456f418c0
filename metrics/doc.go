// Package metrics exposes Prometheus instrumentation for searches and batch
// operations. Metrics are registered on a caller-supplied registry so one
// process can hold several independent sets, and can be dumped to a textfile
// at exit for short-lived CLI runs.
package metrics
