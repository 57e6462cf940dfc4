package core

// SentinelKey carries the context.Context through zap.Reflect so the otelzap
// bridge can read span context. Console and file cores drop it.
const SentinelKey = "__ionmetric_ctx__"
