package core

import (
	"fmt"
	"os"
	"strings"

	"github.com/JupiterMetaLabs/ionmetric/internal/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapFactoryResult holds the constructed zap logger and what it owns.
type ZapFactoryResult struct {
	Logger       *zap.Logger
	AtomicLevel  zap.AtomicLevel
	OTELProvider *LogProvider
}

// NewZapLogger builds the console, file and OTEL cores described by cfg.
// An OTEL setup failure is returned as an error so the caller can retry
// without it.
func NewZapLogger(cfg config.Config) (*ZapFactoryResult, error) {
	global := ParseLevel(cfg.Level)
	consoleLevel := sinkLevel(cfg.Console.Level, global)
	fileLevel := sinkLevel(cfg.File.Level, global)
	otelLevel := sinkLevel(cfg.OTEL.Level, global)

	// The atomic level is the first gate, so it must let through anything
	// an enabled sink wants.
	minLevel := global
	if cfg.Console.Enabled && consoleLevel < minLevel {
		minLevel = consoleLevel
	}
	if cfg.File.Enabled && fileLevel < minLevel {
		minLevel = fileLevel
	}
	if cfg.OTEL.Enabled && otelLevel < minLevel {
		minLevel = otelLevel
	}
	atomicLevel := zap.NewAtomicLevelAt(minLevel)

	var provider *LogProvider
	cores := make([]zapcore.Core, 0, 4)

	if cfg.Console.Enabled {
		for _, c := range buildConsoleCores(cfg, consoleLevel) {
			cores = append(cores, NewFilteringCore(c, SentinelKey))
		}
	}

	if cfg.File.Enabled && cfg.File.Path != "" {
		if c := buildFileCore(cfg, fileLevel); c != nil {
			cores = append(cores, NewFilteringCore(c, SentinelKey))
		}
	}

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		otelCfg := cfg.OTEL
		otelCfg.Headers = injectBasicAuth(otelCfg.Headers, otelCfg.Username, otelCfg.Password, otelCfg.Protocol)

		var err error
		provider, err = SetupLogProvider(otelCfg, cfg.ServiceName, cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("otel log setup failed: %w", err)
		}
		if provider != nil {
			var otelCore zapcore.Core = otelzap.NewCore(
				cfg.ServiceName,
				otelzap.WithLoggerProvider(provider.LoggerProvider()),
			)
			otelCore = &levelEnforcer{Core: otelCore, level: otelLevel}
			cores = append(cores, NewFilteringCore(otelCore, SentinelKey))
		}
	}

	var core zapcore.Core
	switch len(cores) {
	case 0:
		core = zapcore.NewNopCore()
	case 1:
		core = cores[0]
	default:
		core = zapcore.NewTee(cores...)
	}

	return &ZapFactoryResult{
		Logger:       zap.New(core, buildZapOptions(cfg)...),
		AtomicLevel:  atomicLevel,
		OTELProvider: provider,
	}, nil
}

func buildZapOptions(cfg config.Config) []zap.Option {
	opts := []zap.Option{zap.AddCallerSkip(1)}

	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if cfg.ServiceName != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.ServiceName)))
	}
	if cfg.Version != "" {
		opts = append(opts, zap.Fields(zap.String("version", cfg.Version)))
	}
	return opts
}

func buildConsoleCores(cfg config.Config, level zapcore.LevelEnabler) []zapcore.Core {
	encoder := buildConsoleEncoder(cfg)

	if !cfg.Console.ErrorsToStderr {
		return []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)}
	}

	stdout := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return level.Enabled(lvl) && lvl < zapcore.WarnLevel
	})
	stderr := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return level.Enabled(lvl) && lvl >= zapcore.WarnLevel
	})
	return []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), stdout),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), stderr),
	}
}

func buildConsoleEncoder(cfg config.Config) zapcore.Encoder {
	switch cfg.Console.Format {
	case "pretty":
		return buildPrettyEncoder(cfg)
	case "json":
		return buildJSONEncoder()
	}
	if cfg.Development {
		return buildPrettyEncoder(cfg)
	}
	return buildJSONEncoder()
}

func buildPrettyEncoder(cfg config.Config) zapcore.Encoder {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	if cfg.Console.Color {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(encoderCfg)
}

func buildJSONEncoder() zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.MessageKey = "msg"
	return zapcore.NewJSONEncoder(encoderCfg)
}

func buildFileCore(cfg config.Config, level zapcore.LevelEnabler) zapcore.Core {
	writer := config.NewFileWriter(cfg.File)
	if writer == nil {
		return nil
	}
	return zapcore.NewCore(buildJSONEncoder(), zapcore.AddSync(writer), level)
}

func sinkLevel(level string, fallback zapcore.Level) zapcore.Level {
	if level == "" {
		return fallback
	}
	return ParseLevel(level)
}

// ParseLevel maps a config level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
