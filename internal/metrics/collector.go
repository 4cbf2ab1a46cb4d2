package metrics

import (
	"log/slog"
	"sync"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/logging"
)

// EventSubscriber is the part of the event bus the collector needs.
type EventSubscriber interface {
	Subscribe(handler any) func()
}

// Collector feeds capture events into the Prometheus metrics.
type Collector struct {
	logger   *slog.Logger
	bus      EventSubscriber
	unsubs   []func()
	stopOnce sync.Once
}

// NewCollector creates a collector for bus. Call Start to subscribe.
func NewCollector(bus EventSubscriber) *Collector {
	return &Collector{
		logger: logging.GetLogger("metrics"),
		bus:    bus,
	}
}

// Start subscribes to capture events.
func (c *Collector) Start() {
	c.unsubs = append(c.unsubs,
		c.bus.Subscribe(func(e events.FrameCapturedEvent) {
			RecordFrame(e.DevicePath, e.Bytes)
		}),
		c.bus.Subscribe(func(e events.FrameSkippedEvent) {
			RecordSkip(e.DevicePath, e.Reason)
		}),
		c.bus.Subscribe(func(e events.SessionStateEvent) {
			switch e.State {
			case events.StateStreaming:
				SetStreaming(e.DevicePath, true)
			case events.StateIdle, events.StateClosed:
				SetStreaming(e.DevicePath, false)
			}
		}),
	)
	c.logger.Debug("Metrics collector subscribed")
}

// Stop unsubscribes from the bus. Metric values are kept for scraping.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		for _, unsub := range c.unsubs {
			unsub()
		}
		c.unsubs = nil
	})
}
