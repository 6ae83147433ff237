package conn

import (
	"context"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/rkv/lib/store"
)

// Middleware decorates fresh connections, e.g. with logging or metrics.
// Register middleware with Use.
type Middleware interface {
	Name() string
	Wrap(next store.IConn) store.IConn
}

// observer is notified about commands and scopes of an observed connection
type observer interface {
	command(target, name string, queued bool, err error, took time.Duration)
	scope(target string, kind Kind, commands int, err error, took time.Duration)
}

// observedConn notifies an observer about everything executed on next
type observedConn struct {
	next store.IConn
	obs  observer
}

func (c *observedConn) Do(ctx context.Context, name string, args ...any) (any, error) {
	start := time.Now()
	v, err := c.next.Do(ctx, name, args...)
	c.obs.command(c.next.Target(), name, false, err, time.Since(start))
	return v, err
}

func (c *observedConn) Atomic(ctx context.Context, fn func(c store.Commander) error) ([]store.Reply, error) {
	return c.observeScope(KindAtomic, func(fn func(c store.Commander) error) ([]store.Reply, error) {
		return c.next.Atomic(ctx, fn)
	}, fn)
}

func (c *observedConn) Batch(ctx context.Context, fn func(c store.Commander) error) ([]store.Reply, error) {
	return c.observeScope(KindBatch, func(fn func(c store.Commander) error) ([]store.Reply, error) {
		return c.next.Batch(ctx, fn)
	}, fn)
}

func (c *observedConn) observeScope(kind Kind, run func(func(c store.Commander) error) ([]store.Reply, error), fn func(c store.Commander) error) ([]store.Reply, error) {
	start := time.Now()
	replies, err := run(func(inner store.Commander) error {
		return fn(&observedCommander{next: inner, target: c.next.Target(), obs: c.obs})
	})
	c.obs.scope(c.next.Target(), kind, len(replies), err, time.Since(start))
	return replies, err
}

func (c *observedConn) Target() string { return c.next.Target() }
func (c *observedConn) Close() error   { return c.next.Close() }

// observedCommander observes commands queued inside a scope
type observedCommander struct {
	next   store.Commander
	target string
	obs    observer
}

func (c *observedCommander) Do(ctx context.Context, name string, args ...any) (any, error) {
	start := time.Now()
	v, err := c.next.Do(ctx, name, args...)
	c.obs.command(c.target, name, true, err, time.Since(start))
	return v, err
}

// --------------------------------------------------------------------------
// Logging Middleware
// --------------------------------------------------------------------------

type loggingMiddleware struct{}

// LoggingMiddleware logs every command and scope at debug level
// (logger "conn").
func LoggingMiddleware() Middleware {
	return loggingMiddleware{}
}

func (loggingMiddleware) Name() string { return "logging" }

func (m loggingMiddleware) Wrap(next store.IConn) store.IConn {
	return &observedConn{next: next, obs: m}
}

func (loggingMiddleware) command(target, name string, queued bool, err error, took time.Duration) {
	switch {
	case err != nil:
		Logger.Debugf("%s %s failed after %s: %v", store.Redact(target), name, took, err)
	case queued:
		Logger.Debugf("%s %s queued", store.Redact(target), name)
	default:
		Logger.Debugf("%s %s took %s", store.Redact(target), name, took)
	}
}

func (loggingMiddleware) scope(target string, kind Kind, commands int, err error, took time.Duration) {
	if err != nil {
		Logger.Debugf("%s %s scope failed after %s: %v", store.Redact(target), kind, took, err)
		return
	}
	Logger.Debugf("%s %s scope with %d command(s) took %s", store.Redact(target), kind, commands, took)
}

// --------------------------------------------------------------------------
// Metrics Middleware
// --------------------------------------------------------------------------

type metricsMiddleware struct{}

// MetricsMiddleware records VictoriaMetrics metrics for all commands and scopes:
//
//	rkv_commands_total{command="GET"}
//	rkv_command_errors_total{command="GET"}
//	rkv_command_duration_seconds{command="GET"}
//	rkv_scopes_total{kind="atomic"}
//	rkv_scope_errors_total{kind="atomic"}
//	rkv_scope_duration_seconds{kind="atomic"}
func MetricsMiddleware() Middleware {
	return metricsMiddleware{}
}

func (metricsMiddleware) Name() string { return "metrics" }

func (m metricsMiddleware) Wrap(next store.IConn) store.IConn {
	return &observedConn{next: next, obs: m}
}

func (metricsMiddleware) command(_, name string, queued bool, err error, took time.Duration) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_commands_total{command=%q}`, name)).Inc()
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_command_errors_total{command=%q}`, name)).Inc()
	}
	// queued commands are measured with their scope
	if !queued {
		metrics.GetOrCreateHistogram(fmt.Sprintf(`rkv_command_duration_seconds{command=%q}`, name)).Update(took.Seconds())
	}
}

func (metricsMiddleware) scope(_ string, kind Kind, _ int, err error, took time.Duration) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_scopes_total{kind=%q}`, kind)).Inc()
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_scope_errors_total{kind=%q}`, kind)).Inc()
	}
	metrics.GetOrCreateHistogram(fmt.Sprintf(`rkv_scope_duration_seconds{kind=%q}`, kind)).Update(took.Seconds())
}
