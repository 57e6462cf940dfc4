// Package core builds the zap logger and the OpenTelemetry providers used by
// ionmetric.
package core

import (
	"slices"

	"go.uber.org/zap/zapcore"
)

// filteringCore drops fields whose key is in keys before writing.
type filteringCore struct {
	zapcore.Core
	keys []string
}

// NewFilteringCore wraps core so the given field keys are never written.
func NewFilteringCore(core zapcore.Core, keys ...string) zapcore.Core {
	return &filteringCore{Core: core, keys: keys}
}

func (c *filteringCore) With(fields []zapcore.Field) zapcore.Core {
	return &filteringCore{Core: c.Core.With(c.filter(fields)), keys: c.keys}
}

func (c *filteringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *filteringCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, c.filter(fields))
}

func (c *filteringCore) filter(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(c.keys, f.Key) {
			out = append(out, f)
		}
	}
	return out
}

// levelEnforcer makes a wrapped core (otelzap defaults to info) honour the
// sink level from config.
type levelEnforcer struct {
	zapcore.Core
	level zapcore.LevelEnabler
}

func (l *levelEnforcer) Enabled(lvl zapcore.Level) bool {
	return l.level.Enabled(lvl)
}

func (l *levelEnforcer) With(fields []zapcore.Field) zapcore.Core {
	return &levelEnforcer{Core: l.Core.With(fields), level: l.level}
}

func (l *levelEnforcer) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if l.Enabled(ent.Level) {
		return ce.AddCore(ent, l)
	}
	return ce
}
