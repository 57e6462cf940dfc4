package ionmetric

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/JupiterMetaLabs/ionmetric/internal/core"
	"go.opentelemetry.io/otel"
	"golang.org/x/text/language"
)

// Telemetry owns the logger, metric backend and interceptor built by Setup.
//
// Example:
//
//	tel, warnings, err := ionmetric.Setup(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, w := range warnings {
//	    log.Printf("ionmetric warning: %v", w)
//	}
//	defer tel.Shutdown(context.Background())
//
//	charge := ionmetric.Wrap(tel.Interceptor(), ionmetric.Metric{Name: "charge"}, svc.Charge)
type Telemetry struct {
	logger        Logger
	interceptor   *Interceptor
	meterProvider *core.MeterProvider
	statsd        *statsd.Client
}

// Warning represents a non-fatal initialization issue. Setup returns
// warnings instead of failing when an optional component (OTEL log export,
// OTLP metric export, DogStatsD, message catalogs) cannot be initialized.
type Warning struct {
	Component string // "otel", "metrics", "datadog", "messages", "locale"
	Err       error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Component, w.Err)
}

// Setup builds a Telemetry from cfg. opts are applied to the interceptor
// after the options derived from cfg.
//
// The returned Telemetry always works; components that could not be
// initialized fall back to no-op implementations and are reported as
// warnings. The error is non-nil only when cfg fails validation.
func Setup(cfg Config, opts ...Option) (*Telemetry, []Warning, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}

	var warnings []Warning
	t := &Telemetry{}

	logger, err := NewLogger(cfg)
	if err != nil {
		warnings = append(warnings, Warning{
			Component: "otel",
			Err:       fmt.Errorf("failed to init OTEL logger: %w (using basic logger)", err),
		})
		basic := cfg
		basic.OTEL.Enabled = false
		if logger, err = NewLogger(basic); err != nil {
			return nil, warnings, err
		}
	}
	t.logger = logger

	reg, w := t.setupRegistry(cfg)
	warnings = append(warnings, w...)

	base := []Option{
		WithLogger(logger.Named("metric")),
		WithErrorTagKeys(ErrorTagKeysFrom(cfg.Tags)),
	}

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		warnings = append(warnings, Warning{
			Component: "locale",
			Err:       fmt.Errorf("invalid locale %q: %w (using %s)", cfg.Locale, err, DefaultLocale),
		})
		locale = DefaultLocale
	}
	base = append(base, WithLocale(locale))

	if cfg.MessagesDir != "" {
		cat, err := LoadCatalog(os.DirFS(cfg.MessagesDir), "*.yaml", locale)
		if err != nil {
			warnings = append(warnings, Warning{
				Component: "messages",
				Err:       fmt.Errorf("failed to load messages: %w (using message keys)", err),
			})
		} else {
			base = append(base, WithLocalizer(NewCatalogLocalizer(cat)))
		}
	}

	t.interceptor = New(reg, append(base, opts...)...)
	return t, warnings, nil
}

// setupRegistry creates the backend selected by cfg.Metrics.Backend.
func (t *Telemetry) setupRegistry(cfg Config) (Registry, []Warning) {
	switch cfg.Metrics.Backend {
	case BackendNone:
		return NopRegistry{}, nil

	case BackendDatadog:
		dd := cfg.Metrics.Datadog
		var opts []statsd.Option
		if dd.Namespace != "" {
			opts = append(opts, statsd.WithNamespace(dd.Namespace))
		}
		if len(dd.Tags) > 0 {
			opts = append(opts, statsd.WithTags(dd.Tags))
		}
		client, err := statsd.New(dd.Addr, opts...)
		if err != nil {
			return NopRegistry{}, []Warning{{
				Component: "datadog",
				Err:       fmt.Errorf("failed to init DogStatsD client: %w (metrics disabled)", err),
			}}
		}
		t.statsd = client
		return NewStatsdRegistry(client), nil

	default:
		mp, err := core.SetupMeterProvider(cfg.Metrics, cfg.ServiceName, cfg.Version)
		if err != nil {
			return NewOTelRegistry(otel.GetMeterProvider().Meter(cfg.Metrics.MeterName)), []Warning{{
				Component: "metrics",
				Err:       fmt.Errorf("failed to init OTLP metric export: %w (using global provider)", err),
			}}
		}
		if mp == nil {
			return NewOTelRegistry(otel.GetMeterProvider().Meter(cfg.Metrics.MeterName)), nil
		}
		t.meterProvider = mp
		return NewOTelRegistry(mp.Meter(cfg.Metrics.MeterName)), nil
	}
}

// Interceptor returns the configured interceptor.
func (t *Telemetry) Interceptor() *Interceptor {
	return t.interceptor
}

// Logger returns the configured logger.
func (t *Telemetry) Logger() Logger {
	return t.logger
}

// Shutdown flushes and stops metric export, the DogStatsD client and the
// logger, in that order.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}
	if t.statsd != nil {
		if err := t.statsd.Close(); err != nil {
			errs = append(errs, fmt.Errorf("datadog: %w", err))
		}
	}
	if t.logger != nil {
		if err := t.logger.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger: %w", err))
		}
	}
	return errors.Join(errs...)
}
