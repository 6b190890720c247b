package health

import (
	"time"

	"github.com/okian/drillcore/pkg/logger"
)

// Option applies a configuration option to the Monitor.
type Option func(*Monitor)

// WithInterval sets the probe period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets a custom logger for the monitor.
func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger.OrNop(l)
	}
}
