//go:build !linux

package hotplug

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on platforms without kernel uevents.
var ErrUnsupported = errors.New("hotplug: not supported on this platform")

// Monitor is unavailable outside Linux.
type Monitor struct{}

// NewMonitor always fails outside Linux.
func NewMonitor(...string) (*Monitor, error) {
	return nil, ErrUnsupported
}

// Close does nothing.
func (m *Monitor) Close() error { return nil }

// Run closes out and fails.
func (m *Monitor) Run(_ context.Context, out chan<- Event) error {
	close(out)
	return ErrUnsupported
}
