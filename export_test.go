package ionmetric

import "go.uber.org/zap"

// NewLoggerFromZap exposes newLoggerFromZap to external tests.
func NewLoggerFromZap(z *zap.Logger) Logger {
	return newLoggerFromZap(z)
}
