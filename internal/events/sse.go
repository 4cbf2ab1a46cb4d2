package events

import (
	"sync"
	"sync/atomic"

	"github.com/kelindar/event"
)

// SSEMessageTypes names each session event for SSE clients, in the form
// huma's sse.Register takes.
func SSEMessageTypes() map[string]any {
	return map[string]any{
		"session-state":     SessionStateEvent{},
		"format-negotiated": FormatNegotiatedEvent{},
		"frame-captured":    FrameCapturedEvent{},
		"frame-skipped":     FrameSkippedEvent{},
	}
}

// SubscribeToChannel forwards events of type T to ch. A full channel drops
// the event so the publishing capture loop never waits on a reader.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return forward[T](bus, ch, nil)
}

func forward[T Event](bus *Bus, ch chan<- any, dropped *atomic.Uint64) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			if dropped != nil {
				dropped.Add(1)
			}
		}
	})
}

// Stream delivers every session event type on one channel.
type Stream struct {
	ch      chan any
	dropped atomic.Uint64
	unsubs  []func()
	once    sync.Once
}

// NewStream subscribes to all session events with a buffer of size.
func NewStream(bus *Bus, size int) *Stream {
	s := &Stream{ch: make(chan any, size)}
	s.unsubs = []func(){
		forward[SessionStateEvent](bus, s.ch, &s.dropped),
		forward[FormatNegotiatedEvent](bus, s.ch, &s.dropped),
		forward[FrameCapturedEvent](bus, s.ch, &s.dropped),
		forward[FrameSkippedEvent](bus, s.ch, &s.dropped),
	}
	return s
}

// Events returns the receive side of the stream.
func (s *Stream) Events() <-chan any {
	return s.ch
}

// Dropped counts events discarded because the reader fell behind.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes from the bus. The channel is left open since a
// publish may still be in flight.
func (s *Stream) Close() {
	s.once.Do(func() {
		for _, unsub := range s.unsubs {
			unsub()
		}
	})
}
