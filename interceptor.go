package ionmetric

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Interceptor records a counter and a timer around every call it wraps.
//
// Instrumentation is transparent: the wrapped call runs exactly once on the
// caller's goroutine, its result and error are returned unchanged, and a
// panic is re-raised with the original value. Failures while recording are
// logged and never reach the caller.
//
// An Interceptor is safe for concurrent use. A nil *Interceptor calls through
// without recording.
type Interceptor struct {
	registry  Registry
	opts      options
	extractor *Extractor
}

// New returns an Interceptor emitting to reg. A nil reg discards everything.
func New(reg Registry, opts ...Option) *Interceptor {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return newInterceptor(reg, o)
}

func newInterceptor(reg Registry, o options) *Interceptor {
	if reg == nil {
		reg = NopRegistry{}
	}
	classifier := NewClassifier(o.localizer, o.locale, o.resolvers...)
	return &Interceptor{
		registry:  reg,
		opts:      o,
		extractor: NewExtractor(classifier, o.keys, o.logger),
	}
}

// With returns an Interceptor sharing the registry, with opts applied on top
// of the current options.
func (ic *Interceptor) With(opts ...Option) *Interceptor {
	if ic == nil {
		return nil
	}
	o := ic.opts
	o.resolvers = slices.Clone(o.resolvers)
	for _, opt := range opts {
		opt.apply(&o)
	}
	return newInterceptor(ic.registry, o)
}

// Registry returns the registry measurements are emitted to.
func (ic *Interceptor) Registry() Registry {
	if ic == nil {
		return NopRegistry{}
	}
	return ic.registry
}

// Invoke runs call and records it under m. args are the call's arguments;
// their tagged fields become measurement tags. A blank metric name runs call
// without recording.
func (ic *Interceptor) Invoke(ctx context.Context, m Metric, args []any, call func() error) error {
	if ic == nil || strings.TrimSpace(m.Name) == "" {
		return call()
	}

	start := ic.opts.now()
	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		if r == nil {
			// runtime.Goexit: nothing to record or re-raise.
			return
		}
		ic.record(ctx, m.Name, args, panicError(r), start)
		panic(r)
	}()

	err := call()
	returned = true
	ic.record(ctx, m.Name, args, err, start)
	return err
}

// InvokeOn resolves the metric declared for method on target (see
// ResolveMetric) and invokes call under it. Undeclared methods run call
// without recording.
func (ic *Interceptor) InvokeOn(ctx context.Context, target any, method string, args []any, call func() error) error {
	m, ok := ResolveMetric(target, method)
	if !ok {
		return call()
	}
	return ic.Invoke(ctx, m, args, call)
}

// Call is Invoke for calls returning a value.
func Call[T any](ctx context.Context, ic *Interceptor, m Metric, args []any, call func() (T, error)) (T, error) {
	var out T
	err := ic.Invoke(ctx, m, args, func() error {
		var err error
		out, err = call()
		return err
	})
	return out, err
}

// Wrap decorates fn so every call is recorded under m with the request as
// the only tag source.
//
//	charge := ionmetric.Wrap(ic, ionmetric.Metric{Name: "charge"}, svc.Charge)
//	receipt, err := charge(ctx, order)
func Wrap[A, R any](ic *Interceptor, m Metric, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, a A) (R, error) {
		return Call(ctx, ic, m, []any{a}, func() (R, error) {
			return fn(ctx, a)
		})
	}
}

// record emits the counter and timer for one finished call. It never
// panics and never returns an error.
func (ic *Interceptor) record(ctx context.Context, name string, args []any, callErr error, start time.Time) {
	defer func() {
		if r := recover(); r != nil {
			ic.opts.logger.Error(ctx, "failed to record metric", panicError(r), String("metric", name))
		}
	}()

	tags := ic.extractor.Extract(ctx, args, callErr)
	elapsed := ic.opts.now().Sub(start).Truncate(time.Millisecond)

	if err := ic.emit(ctx, name, tags, elapsed); err != nil {
		ic.opts.logger.Error(ctx, "failed to record metric", err, String("metric", name))
		return
	}
	ic.opts.logger.Info(ctx, "metric recorded",
		String("metric", name),
		Int64("duration_ms", elapsed.Milliseconds()),
	)
}

// emit looks up both instruments before emitting either, so a lookup
// failure records nothing.
func (ic *Interceptor) emit(ctx context.Context, name string, tags TagSet, elapsed time.Duration) error {
	timerName := name + TimerSuffix
	counter, err := ic.registry.Counter(name, tags)
	if err != nil {
		return fmt.Errorf("counter %s: %w", name, err)
	}
	timer, err := ic.registry.Timer(timerName, tags)
	if err != nil {
		return fmt.Errorf("timer %s: %w", timerName, err)
	}

	if err := counter.Increment(ctx); err != nil {
		return fmt.Errorf("increment %s: %w", name, err)
	}
	if err := timer.Record(ctx, elapsed); err != nil {
		return fmt.Errorf("record %s: %w", timerName, err)
	}
	return nil
}

// --- Options ---

type options struct {
	logger    Logger
	now       func() time.Time
	localizer Localizer
	locale    language.Tag
	resolvers []ProblemResolver
	keys      ErrorTagKeys
}

func defaultOptions() options {
	return options{
		logger: NopLogger(),
		now:    time.Now,
		locale: DefaultLocale,
		keys:   DefaultErrorTagKeys(),
	}
}

// Option configures an Interceptor.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithLogger sets the logger for emission lines and recording failures.
func WithLogger(l Logger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithClock replaces time.Now. The clock must be monotonic.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *options) {
		if now != nil {
			o.now = now
		}
	})
}

// WithLocalizer sets the localizer used to build problem descriptions.
func WithLocalizer(l Localizer) Option {
	return optionFunc(func(o *options) { o.localizer = l })
}

// WithLocale sets the fixed locale problem descriptions are resolved in.
func WithLocale(tag language.Tag) Option {
	return optionFunc(func(o *options) { o.locale = tag })
}

// WithProblemResolver adds a resolver consulted for errors that do not
// implement ProblemConvertible. Resolvers run in the order added.
func WithProblemResolver(r ProblemResolver) Option {
	return optionFunc(func(o *options) {
		if r != nil {
			o.resolvers = append(o.resolvers, r)
		}
	})
}

// WithErrorTagKeys renames the classification tags.
func WithErrorTagKeys(keys ErrorTagKeys) Option {
	return optionFunc(func(o *options) { o.keys = keys })
}
