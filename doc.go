// Package ionmetric records a counter and a timer around instrumented calls.
//
// A call is instrumented by naming a metric for it, either explicitly
// (Invoke, Call, Wrap) or by declaration on the receiver (InvokeOn with
// MetricNamer / MethodMetricNamer). Every finished call emits
//
//   - a counter "<name>" incremented by one, and
//   - a timer "<name>.time" with the elapsed wall time truncated to milliseconds.
//
// Both carry the same tags: the classification of the call's error (status,
// title, detail, type) plus every argument field marked with a `metric`
// struct tag.
//
// # Guarantees
//
//   - Transparency: the wrapped call runs once; its result, error and panic
//     reach the caller unchanged.
//   - Failure Isolation: registry and tag extraction failures are logged,
//     never returned.
//   - Concurrency: Interceptor, registries and Logger are safe for concurrent use.
//   - Lifecycle: Telemetry.Shutdown(ctx) flushes metric export and logs on a
//     best-effort basis.
//
// # Backends
//
//   - OTelRegistry: OpenTelemetry Int64Counter and Int64Histogram (ms).
//   - StatsdRegistry: DogStatsD Incr and Timing.
//   - metrictest.Recorder: in-memory, for tests.
//
// HTTP and gRPC servers can be instrumented with the middleware/metrichttp
// and middleware/metricgrpc packages.
package ionmetric
