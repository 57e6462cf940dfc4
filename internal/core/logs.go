package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JupiterMetaLabs/ionmetric/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// LogProvider owns the OpenTelemetry logger provider.
type LogProvider struct {
	loggerProvider *sdklog.LoggerProvider
}

// LoggerProvider returns the underlying provider.
func (p *LogProvider) LoggerProvider() *sdklog.LoggerProvider {
	if p == nil {
		return nil
	}
	return p.loggerProvider
}

// Shutdown flushes and stops the provider.
func (p *LogProvider) Shutdown(ctx context.Context) error {
	if p == nil || p.loggerProvider == nil {
		return nil
	}
	return p.loggerProvider.Shutdown(ctx)
}

// SetupLogProvider starts OTLP log export. It returns nil, nil when export is
// disabled.
func SetupLogProvider(cfg config.OTELConfig, serviceName, version string) (*LogProvider, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, nil
	}

	endpoint, insecureConn, err := processEndpoint(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("invalid log endpoint: %w", err)
	}
	cfg.Endpoint, cfg.Insecure = endpoint, insecureConn

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := newResource(ctx, serviceName, version, cfg.Attributes)
	if err != nil {
		return nil, err
	}

	var exporter sdklog.Exporter
	switch cfg.Protocol {
	case "http":
		exporter, err = newHTTPLogExporter(ctx, cfg)
	default:
		exporter, err = newGRPCLogExporter(ctx, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTEL log exporter: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 512
	}
	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(
			exporter,
			sdklog.WithMaxQueueSize(batchSize*2),
			sdklog.WithExportMaxBatchSize(batchSize),
			sdklog.WithExportInterval(interval),
		)),
	)
	global.SetLoggerProvider(provider)

	return &LogProvider{loggerProvider: provider}, nil
}

func newResource(ctx context.Context, serviceName, version string, extra map[string]string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	}
	for k, v := range extra {
		attrs = append(attrs, attribute.String(k, v))
	}

	// resource.New with explicit detectors avoids schema URL conflicts with
	// resource.Default().
	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithOS(),
		resource.WithProcess(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTEL resource: %w", err)
	}
	return res, nil
}

func newGRPCLogExporter(ctx context.Context, cfg config.OTELConfig) (sdklog.Exporter, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts,
			otlploggrpc.WithInsecure(),
			otlploggrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlploggrpc.WithTimeout(cfg.Timeout))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(cfg.Headers))
	}
	return otlploggrpc.New(ctx, opts...)
}

func newHTTPLogExporter(ctx context.Context, cfg config.OTELConfig) (sdklog.Exporter, error) {
	opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(cfg.Timeout))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(cfg.Headers))
	}
	return otlploghttp.New(ctx, opts...)
}
