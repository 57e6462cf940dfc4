// Package metricgrpc records ionmetric counters and timers for unary gRPC
// calls.
//
// Server instrumentation:
//
//	server := grpc.NewServer(metricgrpc.ServerOptions(ic, metricgrpc.WithTracing())...)
//
// Client instrumentation:
//
//	conn, err := grpc.NewClient(addr, metricgrpc.DialOptions(ic)...)
//
// By default each method is recorded under its own metric, named after the
// full method with slashes replaced by dots ("/pkg.Svc/Get" becomes
// "pkg.Svc.Get"). The request message is passed as the tag source, so its
// `metric` fields become tags. Status errors are classified through
// StatusProblem.
package metricgrpc

import (
	"context"
	"strings"

	"github.com/JupiterMetaLabs/ionmetric"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// MethodTags are added to the request of every call.
type MethodTags struct {
	Service string `metric:"grpc_service"`
	Method  string `metric:"grpc_method"`
}

// UnaryServerInterceptor records every unary call handled by the server.
func UnaryServerInterceptor(ic *ionmetric.Interceptor, opts ...Option) grpc.UnaryServerInterceptor {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}
	ic = ic.With(ionmetric.WithProblemResolver(StatusProblem))

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if o.filter != nil && !o.filter(info.FullMethod) {
			return handler(ctx, req)
		}
		m := ionmetric.Metric{Name: o.metricName(info.FullMethod)}
		return ionmetric.Call(ctx, ic, m, []any{req, splitMethod(info.FullMethod)}, func() (any, error) {
			return handler(ctx, req)
		})
	}
}

// UnaryClientInterceptor records every unary call made by the client.
func UnaryClientInterceptor(ic *ionmetric.Interceptor, opts ...Option) grpc.UnaryClientInterceptor {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}
	ic = ic.With(ionmetric.WithProblemResolver(StatusProblem))

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		if o.filter != nil && !o.filter(method) {
			return invoker(ctx, method, req, reply, cc, callOpts...)
		}
		m := ionmetric.Metric{Name: o.metricName(method)}
		return ic.Invoke(ctx, m, []any{req, splitMethod(method)}, func() error {
			return invoker(ctx, method, req, reply, cc, callOpts...)
		})
	}
}

// ServerOptions returns the server options installing UnaryServerInterceptor
// and, with WithTracing, the otelgrpc stats handler.
func ServerOptions(ic *ionmetric.Interceptor, opts ...Option) []grpc.ServerOption {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}

	serverOpts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryServerInterceptor(ic, opts...))}
	if o.tracing {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler(o.otelOptions()...)))
	}
	return serverOpts
}

// DialOptions returns the dial options installing UnaryClientInterceptor
// and, with WithTracing, the otelgrpc stats handler.
func DialOptions(ic *ionmetric.Interceptor, opts ...Option) []grpc.DialOption {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}

	dialOpts := []grpc.DialOption{grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(ic, opts...))}
	if o.tracing {
		dialOpts = append(dialOpts, grpc.WithStatsHandler(otelgrpc.NewClientHandler(o.otelOptions()...)))
	}
	return dialOpts
}

// MetricName derives the default metric name of a full method.
func MetricName(fullMethod string) string {
	return strings.ReplaceAll(strings.TrimPrefix(fullMethod, "/"), "/", ".")
}

func splitMethod(fullMethod string) MethodTags {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return MethodTags{Method: service}
	}
	return MethodTags{Service: service, Method: method}
}
