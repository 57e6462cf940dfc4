package ionmetric_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/JupiterMetaLabs/ionmetric"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func quietConfig() ionmetric.Config {
	cfg := ionmetric.Default().WithService("checkout")
	cfg.Console.Enabled = false
	return cfg
}

func hasWarning(warnings []ionmetric.Warning, component string) bool {
	for _, w := range warnings {
		if w.Component == component {
			return true
		}
	}
	return false
}

func TestSetup_Backends(t *testing.T) {
	tests := []struct {
		name    string
		backend string
	}{
		{"none", ionmetric.BackendNone},
		{"otel global provider", ionmetric.BackendOTel},
		{"datadog", ionmetric.BackendDatadog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			tel, warnings, err := ionmetric.Setup(quietConfig().WithBackend(tt.backend))
			if err != nil {
				t.Fatalf("Setup() error: %v", err)
			}
			if len(warnings) != 0 {
				t.Errorf("unexpected warnings: %v", warnings)
			}

			got, err := ionmetric.Call(ctx, tel.Interceptor(), ionmetric.Metric{Name: "op"}, nil, func() (string, error) {
				return "ok", nil
			})
			if err != nil || got != "ok" {
				t.Errorf("call result changed: %q, %v", got, err)
			}
			tel.Logger().Info(ctx, "setup test")

			if err := tel.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown() error: %v", err)
			}
		})
	}
}

func TestSetup_InvalidConfig(t *testing.T) {
	cfg := quietConfig()
	cfg.Metrics.Backend = "graphite"
	if _, _, err := ionmetric.Setup(cfg); err == nil {
		t.Error("expected a validation error")
	}
}

func TestSetup_DegradesWithWarnings(t *testing.T) {
	cfg := quietConfig().WithOTEL("ftp://collector:4317")
	cfg.Metrics.Endpoint = "ftp://collector:4318"
	cfg.MessagesDir = t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg.MessagesDir, "en.yaml"), []byte("locale: [en"), 0o600); err != nil {
		t.Fatal(err)
	}

	tel, warnings, err := ionmetric.Setup(cfg)
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	for _, component := range []string{"otel", "metrics", "messages"} {
		if !hasWarning(warnings, component) {
			t.Errorf("expected a %q warning, got %v", component, warnings)
		}
	}
	if tel.Interceptor() == nil || tel.Logger() == nil {
		t.Fatal("degraded Setup must still return a working Telemetry")
	}
}

func TestSetup_LocalizedTitles(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	dir := t.TempDir()
	catalog := "locale: de\nmessages:\n  payment.insufficient_funds: Unzureichende Deckung\n"
	if err := os.WriteFile(filepath.Join(dir, "de.yaml"), []byte(catalog), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := quietConfig().WithLocale("de")
	cfg.MessagesDir = dir
	cfg.Tags = ionmetric.ErrorTagsConfig{Status: "errorStatus", Title: "errorTitle", Detail: "errorDetail", Type: "erroType"}

	tel, warnings, err := ionmetric.Setup(cfg)
	if err != nil || len(warnings) != 0 {
		t.Fatalf("Setup() = %v, %v", warnings, err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	_ = tel.Interceptor().Invoke(context.Background(), ionmetric.Metric{Name: "charge"}, nil, func() error {
		return ionmetric.NewProblem(402, "payment.insufficient_funds")
	})

	sum := collect(t, reader)["charge"].(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(sum.DataPoints))
	}
	title, ok := sum.DataPoints[0].Attributes.Value("errorTitle")
	if !ok || title.AsString() != "Unzureichende Deckung" {
		t.Errorf("errorTitle = %q", title.AsString())
	}
}

func TestWarning_Error(t *testing.T) {
	w := ionmetric.Warning{Component: "datadog", Err: os.ErrClosed}
	if got := w.Error(); got != "datadog: file already closed" {
		t.Errorf("Error() = %q", got)
	}
}

func TestGlobal(t *testing.T) {
	t.Cleanup(func() { ionmetric.SetGlobal(nil) })
	ctx := context.Background()

	// Without a global interceptor calls run unrecorded.
	if err := ionmetric.Invoke(ctx, ionmetric.Metric{Name: "op"}, nil, func() error { return nil }); err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}

	ic := ionmetric.New(nil)
	ionmetric.SetGlobal(ic)
	if ionmetric.Global() != ic {
		t.Error("Global() should return the interceptor passed to SetGlobal")
	}
	calls := 0
	_ = ionmetric.InvokeOn(ctx, &PaymentService{Metric: ionmetric.Metric{Name: "payments"}}, "Refund", nil, func() error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Errorf("call ran %d times", calls)
	}
}
