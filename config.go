package ionmetric

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/JupiterMetaLabs/ionmetric/internal/config"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the complete configuration. See the field documentation in
// the aliased types.
type Config = config.Config

type (
	ConsoleConfig   = config.ConsoleConfig
	FileConfig      = config.FileConfig
	OTELConfig      = config.OTELConfig
	MetricsConfig   = config.MetricsConfig
	DatadogConfig   = config.DatadogConfig
	ErrorTagsConfig = config.ErrorTagsConfig
)

// Metric backends selectable in MetricsConfig.Backend.
const (
	BackendOTel    = "otel"
	BackendDatadog = "datadog"
	BackendNone    = "none"
)

// Default returns a Config with production defaults: JSON console logs at
// info, OpenTelemetry metrics through the global provider.
func Default() Config {
	keys := DefaultErrorTagKeys()
	return Config{
		Level:       "info",
		ServiceName: "unknown",
		Locale:      DefaultLocale.String(),
		Console: ConsoleConfig{
			Enabled:        true,
			Format:         "json",
			Color:          true,
			ErrorsToStderr: true,
		},
		File: FileConfig{
			MaxSizeMB:  100,
			MaxAgeDays: 7,
			MaxBackups: 5,
			Compress:   true,
		},
		OTEL: OTELConfig{
			Protocol:       "grpc",
			Timeout:        10 * time.Second,
			BatchSize:      512,
			ExportInterval: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Backend:   BackendOTel,
			MeterName: "github.com/JupiterMetaLabs/ionmetric",
			Protocol:  "grpc",
			Timeout:   10 * time.Second,
			Interval:  15 * time.Second,
			Datadog:   DatadogConfig{Addr: "localhost:8125"},
		},
		Tags: ErrorTagsConfig{
			Status: keys.Status,
			Title:  keys.Title,
			Detail: keys.Detail,
			Type:   keys.Type,
		},
	}
}

// Development returns Default with debug level and pretty console output.
func Development() Config {
	cfg := Default()
	cfg.Level = "debug"
	cfg.Development = true
	cfg.Console.Format = "pretty"
	return cfg
}

// LoadConfig reads the YAML file at path over Default, applies environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig checks cfg for unknown levels, formats, backends and locales.
func ValidateConfig(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s: failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ErrorTagKeysFrom converts the configured tag names.
func ErrorTagKeysFrom(cfg ErrorTagsConfig) ErrorTagKeys {
	return ErrorTagKeys{Status: cfg.Status, Title: cfg.Title, Detail: cfg.Detail, Type: cfg.Type}
}
