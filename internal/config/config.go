// Package config holds the configuration types shared by ionmetric and its
// internal setup code.
package config

import "time"

// Config holds the complete ionmetric configuration.
type Config struct {
	// Level sets the minimum log level: debug, info, warn, error.
	Level string `yaml:"level" json:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn warning error fatal"`

	// Development enables pretty console output, caller info and stack traces.
	Development bool `yaml:"development" json:"development" env:"LOG_DEVELOPMENT"`

	// ServiceName identifies this service in logs, metric resources and OTEL.
	ServiceName string `yaml:"service_name" json:"service_name" env:"SERVICE_NAME" validate:"required"`

	// Version is the application version.
	Version string `yaml:"version" json:"version" env:"SERVICE_VERSION"`

	// Locale is the BCP 47 tag used when resolving problem descriptions.
	// Default: "en-US"
	Locale string `yaml:"locale" json:"locale" env:"METRIC_LOCALE" validate:"bcp47_language_tag"`

	// MessagesDir is a directory of YAML message catalogs (one file per locale).
	// Empty means message keys are used verbatim.
	MessagesDir string `yaml:"messages_dir" json:"messages_dir" env:"METRIC_MESSAGES_DIR"`

	Console ConsoleConfig   `yaml:"console" json:"console"`
	File    FileConfig      `yaml:"file" json:"file"`
	OTEL    OTELConfig      `yaml:"otel" json:"otel"`
	Metrics MetricsConfig   `yaml:"metrics" json:"metrics"`
	Tags    ErrorTagsConfig `yaml:"error_tags" json:"error_tags"`
}

// ConsoleConfig configures console (stdout/stderr) output.
type ConsoleConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" env:"LOG_CONSOLE_ENABLED"`

	// Format: "json" or "pretty".
	Format string `yaml:"format" json:"format" env:"LOG_CONSOLE_FORMAT" validate:"omitempty,oneof=json pretty"`

	Color bool `yaml:"color" json:"color"`

	// ErrorsToStderr sends warn and above to stderr, the rest to stdout.
	ErrorsToStderr bool `yaml:"errors_to_stderr" json:"errors_to_stderr"`

	// Level overrides the global level for this sink.
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error fatal"`
}

// FileConfig configures rotated file output.
type FileConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" env:"LOG_FILE_ENABLED"`
	Path       string `yaml:"path" json:"path" env:"LOG_FILE_PATH" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" validate:"gte=0"`
	Compress   bool   `yaml:"compress" json:"compress"`
	Level      string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error fatal"`
}

// OTELConfig configures OpenTelemetry log export.
type OTELConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" env:"OTEL_LOGS_ENABLED"`
	Protocol string `yaml:"protocol" json:"protocol" validate:"omitempty,oneof=grpc http"`
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_ENDPOINT"`
	Insecure bool   `yaml:"insecure" json:"insecure"`
	Username string `yaml:"username" json:"username" env:"OTEL_USERNAME"`
	Password string `yaml:"password" json:"password" env:"OTEL_PASSWORD"`

	Headers    map[string]string `yaml:"headers" json:"headers"`
	Attributes map[string]string `yaml:"attributes" json:"attributes"`

	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	BatchSize      int           `yaml:"batch_size" json:"batch_size" validate:"gte=0"`
	ExportInterval time.Duration `yaml:"export_interval" json:"export_interval"`

	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error fatal"`
}

// MetricsConfig selects and configures the metric backend.
type MetricsConfig struct {
	// Backend: "otel", "datadog" or "none".
	Backend string `yaml:"backend" json:"backend" env:"METRIC_BACKEND" validate:"oneof=otel datadog none"`

	// MeterName is the instrumentation scope used with the otel backend.
	MeterName string `yaml:"meter_name" json:"meter_name"`

	// OTLP exporter settings (otel backend). An empty endpoint uses the
	// process-global MeterProvider instead of exporting.
	Protocol string            `yaml:"protocol" json:"protocol" env:"METRIC_OTLP_PROTOCOL" validate:"omitempty,oneof=grpc http"`
	Endpoint string            `yaml:"endpoint" json:"endpoint" env:"METRIC_OTLP_ENDPOINT"`
	Insecure bool              `yaml:"insecure" json:"insecure"`
	Username string            `yaml:"username" json:"username"`
	Password string            `yaml:"password" json:"password"`
	Headers  map[string]string `yaml:"headers" json:"headers"`
	Timeout  time.Duration     `yaml:"timeout" json:"timeout"`
	Interval time.Duration     `yaml:"interval" json:"interval"`

	Datadog DatadogConfig `yaml:"datadog" json:"datadog"`
}

// DatadogConfig configures the DogStatsD client (datadog backend).
type DatadogConfig struct {
	Addr      string   `yaml:"addr" json:"addr" env:"DD_DOGSTATSD_ADDR"`
	Namespace string   `yaml:"namespace" json:"namespace"`
	Tags      []string `yaml:"tags" json:"tags"`
}

// ErrorTagsConfig names the tag keys carrying the error classification.
type ErrorTagsConfig struct {
	Status string `yaml:"status" json:"status" validate:"required"`
	Title  string `yaml:"title" json:"title" validate:"required"`
	Detail string `yaml:"detail" json:"detail" validate:"required"`
	Type   string `yaml:"type" json:"type" validate:"required"`
}

// WithLevel returns a copy of the config with the specified level.
func (c Config) WithLevel(level string) Config {
	c.Level = level
	return c
}

// WithService returns a copy of the config with the specified service name.
func (c Config) WithService(name string) Config {
	c.ServiceName = name
	return c
}

// WithOTEL returns a copy of the config with OTEL log export enabled.
func (c Config) WithOTEL(endpoint string) Config {
	c.OTEL.Enabled = true
	c.OTEL.Endpoint = endpoint
	return c
}

// WithFile returns a copy of the config with file logging enabled.
func (c Config) WithFile(path string) Config {
	c.File.Enabled = true
	c.File.Path = path
	return c
}

// WithBackend returns a copy of the config using the given metric backend.
func (c Config) WithBackend(backend string) Config {
	c.Metrics.Backend = backend
	return c
}

// WithLocale returns a copy of the config resolving problems in locale.
func (c Config) WithLocale(locale string) Config {
	c.Locale = locale
	return c
}
