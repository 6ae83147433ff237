package conn

import (
	"fmt"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

// Diagnostic event categories
const (
	CategoryResolve    = "resolve"    // a chain resolved a connection
	CategoryFallback   = "fallback"   // an operation fell back to individual execution or was rejected
	CategoryInvalidate = "invalidate" // a stale cached connection was dropped
)

// DiagnosticHook receives diagnostic events. It is a side channel only, it can
// not influence the resolution or execution of operations.
type DiagnosticHook func(category, key, message string)

var diagHook atomic.Pointer[DiagnosticHook]

// SetDiagnosticHook installs the process wide diagnostic hook (nil removes it)
func SetDiagnosticHook(h DiagnosticHook) {
	if h == nil {
		diagHook.Store(nil)
		return
	}
	diagHook.Store(&h)
}

// MetricsHook returns a hook that counts events as
// rkv_conn_events_total{category="...",key="..."}.
func MetricsHook() DiagnosticHook {
	return func(category, key, _ string) {
		metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_conn_events_total{category=%q,key=%q}`, category, key)).Inc()
	}
}

// diagnose emits an event to the hook, if one is installed
func diagnose(category, key, format string, args ...any) {
	h := diagHook.Load()
	if h == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("diagnostic hook panicked on %s/%s: %v", category, key, r)
		}
	}()
	(*h)(category, key, fmt.Sprintf(format, args...))
}
