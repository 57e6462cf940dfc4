package ionmetric_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JupiterMetaLabs/ionmetric"
	"github.com/JupiterMetaLabs/ionmetric/metrictest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type Order struct {
	ID       string `metric:"orderId"`
	Currency string `metric:""`
	amount   int64
}

var errInsufficientFunds = ionmetric.NewProblem(402, "Insufficient funds")

// steppingClock returns start, then start+step on every later call.
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	first := true
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		if first {
			first = false
			return now
		}
		return now.Add(step)
	}
}

func assertPair(t *testing.T, rec *metrictest.Recorder, name string) ionmetric.TagSet {
	t.Helper()
	got := rec.Measurements()
	if len(got) != 2 {
		t.Fatalf("expected counter and timer, got %d measurements", len(got))
	}
	c, tm := got[0], got[1]
	if c.Kind != ionmetric.KindCounter || c.Name != name {
		t.Errorf("first measurement = %s %q, want counter %q", c.Kind, c.Name, name)
	}
	if tm.Kind != ionmetric.KindTimer || tm.Name != name+ionmetric.TimerSuffix {
		t.Errorf("second measurement = %s %q, want timer %q", tm.Kind, tm.Name, name+ionmetric.TimerSuffix)
	}
	if len(c.Tags) != len(tm.Tags) {
		t.Fatalf("counter and timer tags differ: %v vs %v", c.Tags, tm.Tags)
	}
	for k, v := range c.Tags {
		if tm.Tags[k] != v {
			t.Errorf("tag %s differs: counter %q, timer %q", k, v, tm.Tags[k])
		}
	}
	return c.Tags
}

func TestInvoke_ChargeScenario(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec)

	order := &Order{ID: "A1"}
	err := ic.Invoke(context.Background(), ionmetric.Metric{Name: "charge"}, []any{order}, func() error {
		// Both measurements must exist only after the call returns.
		if n := len(rec.Measurements()); n != 0 {
			t.Errorf("recorded %d measurements before the call finished", n)
		}
		return errInsufficientFunds
	})
	if err != error(errInsufficientFunds) {
		t.Fatalf("error was not returned unchanged: %v", err)
	}

	tags := assertPair(t, rec, "charge")
	want := ionmetric.TagSet{
		"orderId":  "A1",
		"Currency": "",
		"status":   "402",
		"title":    "Insufficient funds",
		"detail":   "Insufficient funds",
		"type":     "business_error",
	}
	if len(tags) != len(want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tags[k], v)
		}
	}
}

func TestInvoke_SuccessDefaults(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec)

	err := ic.Invoke(context.Background(), ionmetric.Metric{Name: "lookup"}, []any{Order{ID: "B2", Currency: "EUR"}}, func() error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tags := assertPair(t, rec, "lookup")
	want := map[string]string{
		"status": "500", "title": "", "detail": "", "type": "technical_error",
		"orderId": "B2", "Currency": "EUR",
	}
	for k, v := range want {
		if got, ok := tags[k]; !ok || got != v {
			t.Errorf("tag %s = %q (present=%v), want %q", k, got, ok, v)
		}
	}
}

func TestInvoke_PlainError(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec)
	boom := errors.New("connection refused")

	err := ic.Invoke(context.Background(), ionmetric.Metric{Name: "db"}, nil, func() error { return boom })
	if err != boom {
		t.Fatalf("error changed: %v", err)
	}
	tags := assertPair(t, rec, "db")
	if tags["status"] != "connection refused" || tags["title"] != "connection refused" {
		t.Errorf("status/title = %q/%q", tags["status"], tags["title"])
	}
	if tags["detail"] != "" || tags["type"] != ionmetric.ErrorTypeTechnical {
		t.Errorf("detail/type = %q/%q", tags["detail"], tags["type"])
	}
}

func TestInvoke_NilProblemPointer(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec)

	err := ic.Invoke(context.Background(), ionmetric.Metric{Name: "refund"}, nil, func() error {
		var pe *ionmetric.ProblemError
		return pe
	})
	if err == nil {
		t.Fatal("typed nil error must be returned unchanged")
	}
	tags := assertPair(t, rec, "refund")
	if tags["type"] != ionmetric.ErrorTypeTechnical || tags["status"] != "" {
		t.Errorf("type/status = %q/%q, want technical_error with empty status", tags["type"], tags["status"])
	}
}

func TestInvoke_DurationTruncated(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    time.Duration
	}{
		{0, 0},
		{999_999 * time.Nanosecond, 0},
		{time.Millisecond, time.Millisecond},
		{5*time.Millisecond + 999_999*time.Nanosecond, 5 * time.Millisecond},
		{1500 * time.Millisecond, 1500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			rec := metrictest.New()
			ic := ionmetric.New(rec, ionmetric.WithClock(steppingClock(tt.elapsed)))

			_ = ic.Invoke(context.Background(), ionmetric.Metric{Name: "op"}, nil, func() error { return nil })

			timers := rec.Find("op" + ionmetric.TimerSuffix)
			if len(timers) != 1 {
				t.Fatalf("expected 1 timer, got %d", len(timers))
			}
			if timers[0].Value != tt.want {
				t.Errorf("recorded %v, want %v", timers[0].Value, tt.want)
			}
		})
	}
}

func TestInvoke_PanicReRaised(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec)
	value := errors.New("nil map write")

	func() {
		defer func() {
			if r := recover(); r != value {
				t.Errorf("recovered %v, want the original panic value", r)
			}
		}()
		_ = ic.Invoke(context.Background(), ionmetric.Metric{Name: "risky"}, nil, func() error {
			panic(value)
		})
		t.Error("Invoke returned after a panic")
	}()

	tags := assertPair(t, rec, "risky")
	if tags["status"] != "nil map write" {
		t.Errorf("status = %q, want the panic message", tags["status"])
	}
}

func TestInvoke_RegistryFailureSuppressed(t *testing.T) {
	tests := []struct {
		name     string
		inject   func(*metrictest.Recorder, error)
		recorded int
	}{
		{"counter lookup", func(r *metrictest.Recorder, err error) { r.FailLookup(ionmetric.KindCounter, err) }, 0},
		{"timer lookup", func(r *metrictest.Recorder, err error) { r.FailLookup(ionmetric.KindTimer, err) }, 0},
		{"increment", func(r *metrictest.Recorder, err error) { r.FailEmit(ionmetric.KindCounter, err) }, 0},
		{"record", func(r *metrictest.Recorder, err error) { r.FailEmit(ionmetric.KindTimer, err) }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := metrictest.New()
			tt.inject(rec, errors.New("registry down"))

			core, logs := observer.New(zapcore.DebugLevel)
			ic := ionmetric.New(rec, ionmetric.WithLogger(ionmetric.NewLoggerFromZap(zap.New(core))))

			callErr := errors.New("call failed")
			err := ic.Invoke(context.Background(), ionmetric.Metric{Name: "op"}, nil, func() error { return callErr })
			if err != callErr {
				t.Fatalf("registry failure changed the result: %v", err)
			}

			failures := logs.FilterMessage("failed to record metric").All()
			if len(failures) != 1 {
				t.Fatalf("expected 1 failure log line, got %d", len(failures))
			}
			if failures[0].Level != zapcore.ErrorLevel {
				t.Errorf("failure logged at %s", failures[0].Level)
			}
			if n := len(rec.Measurements()); n != tt.recorded {
				t.Errorf("recorded %d measurements, want %d", n, tt.recorded)
			}
		})
	}
}

func TestInvoke_RegistryPanicSuppressed(t *testing.T) {
	ic := ionmetric.New(panickingRegistry{})

	got, err := ionmetric.Call(context.Background(), ic, ionmetric.Metric{Name: "op"}, nil, func() (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("result changed: %d, %v", got, err)
	}
}

type panickingRegistry struct{}

func (panickingRegistry) Counter(string, ionmetric.TagSet) (ionmetric.Counter, error) {
	panic("registry bug")
}

func (panickingRegistry) Timer(string, ionmetric.TagSet) (ionmetric.Timer, error) {
	panic("registry bug")
}

func TestInvoke_LogsEmission(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ic := ionmetric.New(metrictest.New(),
		ionmetric.WithLogger(ionmetric.NewLoggerFromZap(zap.New(core))),
		ionmetric.WithClock(steppingClock(12*time.Millisecond)),
	)

	_ = ic.Invoke(context.Background(), ionmetric.Metric{Name: "op"}, nil, func() error { return nil })

	entries := logs.FilterMessage("metric recorded").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 emission line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["metric"] != "op" {
		t.Errorf("metric field = %v", fields["metric"])
	}
	if fields["duration_ms"] != int64(12) {
		t.Errorf("duration_ms field = %v", fields["duration_ms"])
	}
}

func TestInvoke_BlankNameSkipsRecording(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec)

	calls := 0
	_ = ic.Invoke(context.Background(), ionmetric.Metric{Name: "  "}, nil, func() error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Errorf("call ran %d times", calls)
	}
	if n := len(rec.Measurements()); n != 0 {
		t.Errorf("blank metric recorded %d measurements", n)
	}
}

func TestInvoke_NilInterceptor(t *testing.T) {
	var ic *ionmetric.Interceptor
	calls := 0
	err := ic.Invoke(context.Background(), ionmetric.Metric{Name: "op"}, nil, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("nil interceptor: err=%v calls=%d", err, calls)
	}
}

type PaymentService struct {
	ionmetric.Metric
}

func (s *PaymentService) Refund(ctx context.Context, o *Order) error {
	return errors.New("refund window closed")
}

func TestInvokeOn_ResolvesDeclaredMetric(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec)
	svc := &PaymentService{Metric: ionmetric.Metric{Name: "payments"}}
	order := &Order{ID: "C3"}

	err := ic.InvokeOn(context.Background(), svc, "Refund", []any{order}, func() error {
		return svc.Refund(context.Background(), order)
	})
	if err == nil {
		t.Fatal("expected the refund error")
	}
	tags := assertPair(t, rec, "payments")
	if tags["orderId"] != "C3" {
		t.Errorf("orderId = %q", tags["orderId"])
	}

	rec.Reset()
	_ = ic.InvokeOn(context.Background(), struct{}{}, "Refund", nil, func() error { return nil })
	if n := len(rec.Measurements()); n != 0 {
		t.Errorf("undeclared target recorded %d measurements", n)
	}
}

func TestWrap(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec)

	charge := ionmetric.Wrap(ic, ionmetric.Metric{Name: "charge"}, func(ctx context.Context, o *Order) (string, error) {
		return "receipt-" + o.ID, nil
	})

	receipt, err := charge(context.Background(), &Order{ID: "D4"})
	if err != nil || receipt != "receipt-D4" {
		t.Fatalf("result changed: %q, %v", receipt, err)
	}
	if tags := assertPair(t, rec, "charge"); tags["orderId"] != "D4" {
		t.Errorf("orderId = %q", tags["orderId"])
	}
}

func TestWith_LegacyTagKeys(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec).With(ionmetric.WithErrorTagKeys(ionmetric.LegacyErrorTagKeys()))

	_ = ic.Invoke(context.Background(), ionmetric.Metric{Name: "op"}, nil, func() error { return errInsufficientFunds })

	tags := assertPair(t, rec, "op")
	for _, k := range []string{"errorStatus", "errorTitle", "errorDetail", "erroType"} {
		if _, ok := tags[k]; !ok {
			t.Errorf("missing legacy tag %s in %v", k, tags)
		}
	}
	if tags["erroType"] != ionmetric.ErrorTypeBusiness {
		t.Errorf("erroType = %q", tags["erroType"])
	}
}

func TestInvoke_Concurrent(t *testing.T) {
	rec := metrictest.New()
	ic := ionmetric.New(rec)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ic.Invoke(context.Background(), ionmetric.Metric{Name: "op"}, []any{&Order{ID: "X"}}, func() error { return nil })
		}()
	}
	wg.Wait()

	if n := len(rec.Find("op")); n != 50 {
		t.Errorf("counters = %d, want 50", n)
	}
	if n := len(rec.Find("op.time")); n != 50 {
		t.Errorf("timers = %d, want 50", n)
	}
}

func BenchmarkInvoke(b *testing.B) {
	ic := ionmetric.New(ionmetric.NopRegistry{})
	m := ionmetric.Metric{Name: "op"}
	args := []any{&Order{ID: "A1", Currency: "EUR", amount: 100}}
	ctx := context.Background()
	call := func() error { return nil }

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ic.Invoke(ctx, m, args, call)
	}
}
