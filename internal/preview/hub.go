package preview

import (
	"sync"
	"time"

	"github.com/smazurov/camview/internal/capture"
	"github.com/smazurov/camview/internal/render"
)

// Hub is a capture.Renderer that encodes frames to JPEG and fans them out
// to HTTP viewers. It keeps the latest image for snapshot requests.
type Hub struct {
	quality int

	mu      sync.RWMutex
	latest  []byte
	updated time.Time
	subs    map[chan []byte]struct{}
	closed  bool
}

// NewHub creates a hub encoding at the given JPEG quality.
func NewHub(quality int) *Hub {
	return &Hub{
		quality: quality,
		subs:    make(map[chan []byte]struct{}),
	}
}

// Render implements capture.Renderer. The frame is encoded before Render
// returns, so the mapped buffer is never retained.
func (h *Hub) Render(f capture.Frame) error {
	data, err := render.EncodeJPEG(f, h.quality)
	if err != nil {
		return err
	}
	h.Publish(data)
	return nil
}

// Publish stores a JPEG as the latest image and hands it to every viewer.
// Slow viewers skip frames instead of blocking capture.
func (h *Hub) Publish(jpeg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.latest = jpeg
	h.updated = time.Now()
	for ch := range h.subs {
		select {
		case ch <- jpeg:
		default:
			// Replace the stale frame with the new one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- jpeg:
			default:
			}
		}
	}
}

// Latest returns the most recent JPEG and when it was produced. It returns
// nil before the first frame.
func (h *Hub) Latest() ([]byte, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.updated
}

// Subscribe registers a viewer. The channel is closed when the hub closes;
// call the returned function to unsubscribe.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	h.mu.Lock()
	if h.closed {
		close(ch)
		h.mu.Unlock()
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Viewers returns the number of subscribed viewers.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}
