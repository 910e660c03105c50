package deferred

import (
	"sync/atomic"

	"github.com/ygrebnov/deferred/metrics"
	"github.com/ygrebnov/deferred/scheduler"
)

// Option configures a single Node at construction time. Options passed to
// New override the process-wide defaults set by Configure, the same
// layering the teacher's config.go uses for its own per-call options.
type Option func(*nodeConfig)

type nodeConfig struct {
	scheduler scheduler.Scheduler
	metrics   metrics.Provider
}

// WithScheduler overrides the Scheduler a Node (and every descendant
// created under it via Then/OrIfError/OnAbort) uses to run callbacks.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(c *nodeConfig) { c.scheduler = s }
}

// WithMetricsProvider overrides the metrics.Provider a Node records
// instrumentation to.
func WithMetricsProvider(p metrics.Provider) Option {
	return func(c *nodeConfig) { c.metrics = p }
}

// GlobalOption configures the process-wide defaults new Nodes fall back
// to when no per-node Option is given. Analogous to the teacher's
// defaults.go, which seeds package-level fallbacks the same way.
type GlobalOption func(*globalConfig)

type globalConfig struct {
	scheduler scheduler.Scheduler
	metrics   metrics.Provider
}

// WithDefaultScheduler sets the process-wide default Scheduler.
func WithDefaultScheduler(s scheduler.Scheduler) GlobalOption {
	return func(c *globalConfig) { c.scheduler = s }
}

// WithDefaultMetricsProvider sets the process-wide default metrics.Provider.
func WithDefaultMetricsProvider(p metrics.Provider) GlobalOption {
	return func(c *globalConfig) { c.metrics = p }
}

var (
	defaultScheduler atomic.Pointer[scheduler.Scheduler]
	defaultMetrics   atomic.Pointer[metrics.Provider]
)

// Configure installs process-wide defaults. It is typically called once,
// early in main, before any Node is created; calling it later only
// affects Nodes created afterward.
func Configure(opts ...GlobalOption) {
	var c globalConfig
	for _, opt := range opts {
		opt(&c)
	}
	if c.scheduler != nil {
		defaultScheduler.Store(&c.scheduler)
	}
	if c.metrics != nil {
		defaultMetrics.Store(&c.metrics)
	}
}

func getDefaultScheduler() scheduler.Scheduler {
	if p := defaultScheduler.Load(); p != nil {
		return *p
	}
	s := scheduler.NewTrampoline()
	var sched scheduler.Scheduler = s
	defaultScheduler.CompareAndSwap(nil, &sched)
	return getDefaultScheduler()
}

func getDefaultMetrics() metrics.Provider {
	if p := defaultMetrics.Load(); p != nil {
		return *p
	}
	var prov metrics.Provider = metrics.NoopProvider{}
	defaultMetrics.CompareAndSwap(nil, &prov)
	return getDefaultMetrics()
}

func resolveConfig(opts []Option) nodeConfig {
	c := nodeConfig{
		scheduler: getDefaultScheduler(),
		metrics:   getDefaultMetrics(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
