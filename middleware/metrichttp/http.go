// Package metrichttp records ionmetric counters and timers for HTTP servers
// and clients.
//
// Server middleware records one invocation per request:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("POST /orders", createOrder)
//	h := metrichttp.Handler(ic, mux, "http.server", metrichttp.WithTracing())
//	http.ListenAndServe(":8080", h)
//
// Client instrumentation records one invocation per round trip:
//
//	client := metrichttp.Client(ic, "http.client")
//	resp, err := client.Get("https://api.example.com")
//
// Responses with status 400 and above are classified as problems with that
// status, so 4xx responses are reported as business errors.
//
// On the server the route tag is the ServeMux pattern that matched, or
// UnmatchedRoute. On the client it is the request path.
package metrichttp

import (
	"net/http"

	"github.com/JupiterMetaLabs/ionmetric"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RequestTags are the default tags of a request.
type RequestTags struct {
	Method string `metric:"method"`
	Route  string `metric:"route"`
}

// Handler wraps next so every request is recorded under metricName.
func Handler(ic *ionmetric.Interceptor, next http.Handler, metricName string, opts ...Option) http.Handler {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}

	m := ionmetric.Metric{Name: metricName}
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o.filter != nil && !o.filter(r) {
			next.ServeHTTP(w, r)
			return
		}

		args, tags := o.args(r, routeOf(r))
		rec := &statusRecorder{}
		ww := rec.wrap(w)
		_ = ic.Invoke(r.Context(), m, args, func() error {
			next.ServeHTTP(ww, r)
			// ServeMux sets the pattern while serving.
			if tags != nil {
				tags.Route = routeOf(r)
			}
			return statusError(rec.Status())
		})
	})

	if o.tracing {
		var otelOpts []otelhttp.Option
		if o.filter != nil {
			otelOpts = append(otelOpts, otelhttp.WithFilter(otelhttp.Filter(o.filter)))
		}
		h = otelhttp.NewHandler(h, metricName, otelOpts...)
	}
	return h
}

// Client returns an HTTP client whose round trips are recorded under
// metricName.
func Client(ic *ionmetric.Interceptor, metricName string, opts ...Option) *http.Client {
	return &http.Client{Transport: Transport(ic, nil, metricName, opts...)}
}

// Transport wraps base so every round trip is recorded under metricName.
// A nil base uses http.DefaultTransport.
func Transport(ic *ionmetric.Interceptor, base http.RoundTripper, metricName string, opts ...Option) http.RoundTripper {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}
	if base == nil {
		base = http.DefaultTransport
	}
	if o.tracing {
		var otelOpts []otelhttp.Option
		if o.filter != nil {
			otelOpts = append(otelOpts, otelhttp.WithFilter(otelhttp.Filter(o.filter)))
		}
		base = otelhttp.NewTransport(base, otelOpts...)
	}
	return &transport{ic: ic, base: base, metric: ionmetric.Metric{Name: metricName}, opts: o}
}

type transport struct {
	ic     *ionmetric.Interceptor
	base   http.RoundTripper
	metric ionmetric.Metric
	opts   *options
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.opts.filter != nil && !t.opts.filter(r) {
		return t.base.RoundTrip(r)
	}

	var resp *http.Response
	var rtErr error
	args, _ := t.opts.args(r, r.URL.Path)
	_ = t.ic.Invoke(r.Context(), t.metric, args, func() error {
		resp, rtErr = t.base.RoundTrip(r)
		if rtErr != nil {
			return rtErr
		}
		return statusError(resp.StatusCode)
	})
	// A problem status is still a successful round trip for the caller.
	return resp, rtErr
}

// statusError returns a problem for statuses of 400 and above, nil otherwise.
func statusError(status int) error {
	if status < http.StatusBadRequest {
		return nil
	}
	return ionmetric.NewProblem(status, "")
}

// --- Options ---

type options struct {
	filter    func(*http.Request) bool
	tagSource func(*http.Request) []any
	tracing   bool
}

func defaultOptions() *options {
	return &options{}
}

// args returns the tag sources of r. Without WithTagSource it returns the
// RequestTags it built so the caller can complete them.
func (o *options) args(r *http.Request, route string) ([]any, *RequestTags) {
	if o.tagSource != nil {
		return o.tagSource(r), nil
	}
	tags := &RequestTags{Method: r.Method, Route: route}
	return []any{tags}, tags
}

// UnmatchedRoute is the route tag of requests no mux pattern matched.
const UnmatchedRoute = "unmatched"

// routeOf returns the matched pattern of r. The raw path is never used so
// the route tag stays bounded.
func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return UnmatchedRoute
	}
	return r.Pattern
}

// Option configures HTTP instrumentation.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithFilter excludes requests from recording and tracing.
// Return true to include the request, false to skip.
//
// Example:
//
//	metrichttp.Handler(ic, mux, "api", metrichttp.WithFilter(func(r *http.Request) bool {
//	    return r.URL.Path != "/health"
//	}))
func WithFilter(filter func(r *http.Request) bool) Option {
	return optionFunc(func(o *options) { o.filter = filter })
}

// WithTagSource replaces RequestTags with the values returned by fn. Their
// `metric` fields become the tags of the request.
func WithTagSource(fn func(r *http.Request) []any) Option {
	return optionFunc(func(o *options) {
		if fn != nil {
			o.tagSource = fn
		}
	})
}

// WithTracing also creates OpenTelemetry spans through otelhttp, using the
// global TracerProvider.
func WithTracing() Option {
	return optionFunc(func(o *options) { o.tracing = true })
}
