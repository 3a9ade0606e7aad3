package engine

import (
	"log/slog"
	"time"
)

const (
	DefaultDiagnosticsEvery = 10
	DefaultFrameInterval    = 16 * time.Millisecond
)

type Option func(*Engine)

// WithLogger sets the lifecycle logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithDiagnosticsEvery emits diagnostics on every nth step.
func WithDiagnosticsEvery(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.diagEvery = n
		}
	}
}

// WithFrameInterval sets the tick period of the Start loop.
func WithFrameInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.frameInterval = d
		}
	}
}
