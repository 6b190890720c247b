// Package health drives the pipeline's reachability probe on a fixed
// interval and on connectivity signals from the client.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/drillcore/pkg/logger"
)

const (
	defaultInterval   = 30 * time.Second
	defaultSignalSize = 16
)

// Checker is the subset of the pipeline the monitor drives.
type Checker interface {
	HealthCheck(ctx context.Context) bool
	MarkOffline(ctx context.Context, reason string)
}

// Signal is a connectivity hint from the client.
type Signal int

const (
	// SignalFocus is sent when the app regains focus.
	SignalFocus Signal = iota
	// SignalOnline is sent when the network comes back.
	SignalOnline
	// SignalOffline is sent when the network is lost.
	SignalOffline
)

func (s Signal) String() string {
	switch s {
	case SignalFocus:
		return "focus"
	case SignalOnline:
		return "online"
	case SignalOffline:
		return "offline"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// ParseSignal converts the textual form used by the HTTP API.
func ParseSignal(s string) (Signal, error) {
	switch s {
	case "focus":
		return SignalFocus, nil
	case "online":
		return SignalOnline, nil
	case "offline":
		return SignalOffline, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSignal, s)
	}
}

// Monitor runs health checks until shut down.
type Monitor struct {
	checker  Checker
	interval time.Duration
	signals  chan Signal

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewMonitor creates a monitor for checker.
func NewMonitor(checker Checker, opts ...Option) *Monitor {
	m := &Monitor{
		checker:  checker,
		interval: defaultInterval,
		signals:  make(chan Signal, defaultSignalSize),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run blocks until ctx is canceled or Shutdown is called.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.check(ctx, "interval")
		case sig := <-m.signals:
			m.handle(ctx, sig)
		}
	}
}

func (m *Monitor) handle(ctx context.Context, sig Signal) {
	switch sig {
	case SignalOffline:
		m.checker.MarkOffline(ctx, "connectivity lost")
	default:
		m.check(ctx, sig.String())
	}
}

func (m *Monitor) check(ctx context.Context, trigger string) {
	online := m.checker.HealthCheck(ctx)
	m.logger.Debug(ctx, "health check",
		logger.String("trigger", trigger),
		logger.Bool("online", online),
	)
}

// Notify queues sig for the run loop. Returns false if the buffer is full
// or the monitor has stopped; a dropped focus/online hint is covered by the
// next interval tick.
func (m *Monitor) Notify(sig Signal) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.signals <- sig:
		return true
	default:
		return false
	}
}

// Shutdown stops the run loop and waits for it to exit.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() { close(m.shutdown) })
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		m.logger.Warn(ctx, "health monitor shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
