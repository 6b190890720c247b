package leak

import (
	"time"

	"github.com/okian/drillcore/pkg/logger"
)

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithWindow sets how many classified mistakes are kept.
func WithWindow(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.size = n
		}
	}
}

// WithThreshold sets the count at which a category is flagged.
func WithThreshold(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.threshold = n
		}
	}
}

// WithLogger sets the analyzer logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		a.log = logger.OrNop(l)
	}
}

// WithClock overrides the timestamp source of window records.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}
