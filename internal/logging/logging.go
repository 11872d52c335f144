// Package logging constructs the process-wide zap.Logger, grounded on
// caddyserver-caddy's app.go: a production JSON encoder for real
// deployments, swapped for zap's readable development encoder when
// explicitly requested, both built through zap's own config rather
// than hand-assembled cores.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger. verbose selects development-friendly
// console output at debug level; otherwise the logger emits JSON at
// info level, suitable for a supervised production process.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return cfg.Build()
}
