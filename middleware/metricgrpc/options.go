package metricgrpc

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc/stats"
)

type options struct {
	metricName func(fullMethod string) string
	filter     func(fullMethod string) bool
	tracing    bool
}

func defaultOptions() *options {
	return &options{metricName: MetricName}
}

func (o *options) otelOptions() []otelgrpc.Option {
	if o.filter == nil {
		return nil
	}
	filter := o.filter
	return []otelgrpc.Option{otelgrpc.WithFilter(func(info *stats.RPCTagInfo) bool {
		return filter(info.FullMethodName)
	})}
}

// Option configures gRPC instrumentation.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithMetricName records every method under name instead of a per-method
// metric. The grpc_method tag still tells methods apart.
func WithMetricName(name string) Option {
	return optionFunc(func(o *options) {
		o.metricName = func(string) string { return name }
	})
}

// WithFilter excludes methods from recording and tracing.
// Return false to skip the given method.
//
// Example:
//
//	metricgrpc.ServerOptions(ic, metricgrpc.WithFilter(func(method string) bool {
//	    return method != "/grpc.health.v1.Health/Check"
//	}))
func WithFilter(filter func(fullMethod string) bool) Option {
	return optionFunc(func(o *options) { o.filter = filter })
}

// WithTracing adds the otelgrpc stats handler, using the global
// TracerProvider, to ServerOptions and DialOptions.
func WithTracing() Option {
	return optionFunc(func(o *options) { o.tracing = true })
}
