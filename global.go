package ionmetric

import (
	"context"
	"sync"
)

var (
	globalMu sync.RWMutex
	global   *Interceptor
)

// SetGlobal sets the interceptor used by the package-level functions.
func SetGlobal(ic *Interceptor) {
	globalMu.Lock()
	global = ic
	globalMu.Unlock()
}

// Global returns the global interceptor. Before SetGlobal it returns nil,
// which calls through without recording.
func Global() *Interceptor {
	globalMu.RLock()
	g := global
	globalMu.RUnlock()
	return g
}

// Invoke runs call under m using the global interceptor.
func Invoke(ctx context.Context, m Metric, args []any, call func() error) error {
	return Global().Invoke(ctx, m, args, call)
}

// InvokeOn resolves the metric for method on target and runs call under it
// using the global interceptor.
func InvokeOn(ctx context.Context, target any, method string, args []any, call func() error) error {
	return Global().InvokeOn(ctx, target, method, args, call)
}
