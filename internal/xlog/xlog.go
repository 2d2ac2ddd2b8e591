// Package xlog is the ambient structured-logging layer: one
// *zap.SugaredLogger per subsystem, tagged with a component name and
// whatever request/connection/cache-key fields the caller adds.
package xlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	baseOnce sync.Once
	base     *zap.Logger
)

func rootLogger() *zap.Logger {
	baseOnce.Do(func() {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// SetGlobal replaces the root *zap.Logger (used by tests to install an
// observed or development logger).
func SetGlobal(l *zap.Logger) {
	baseOnce.Do(func() {}) // ensure baseOnce is consumed so rootLogger won't overwrite
	base = l
}

// For returns a component-scoped sugared logger, e.g. xlog.For("httpcache").
func For(component string) *zap.SugaredLogger {
	return rootLogger().Sugar().With("component", component)
}
