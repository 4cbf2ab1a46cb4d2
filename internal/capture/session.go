package capture

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/logging"
)

// State is the streaming state of a Session.
type State int

// Session states.
const (
	StateIdle State = iota
	StateStreaming
)

func (s State) String() string {
	if s == StateStreaming {
		return "streaming"
	}
	return "idle"
}

var (
	openMu    sync.Mutex
	openPaths = make(map[string]struct{})
)

func claim(path string) error {
	openMu.Lock()
	defer openMu.Unlock()
	if _, ok := openPaths[path]; ok {
		return errAlreadyOpen
	}
	openPaths[path] = struct{}{}
	return nil
}

func unclaim(path string) {
	openMu.Lock()
	delete(openPaths, path)
	openMu.Unlock()
}

// Session owns an open capture device: its negotiated format, its mapped
// buffers and the streaming state. Methods must be called from a single
// goroutine; Stats may be read from any goroutine.
type Session struct {
	path   string
	drv    Driver
	logger *slog.Logger
	bus    *events.Bus

	format   FormatDescriptor
	granted  uint32
	buffers  []*Buffer
	released bool
	state    State
	closed   bool

	frames   atomic.Uint64
	skipped  atomic.Uint64
	timeouts atomic.Uint64
	bytes    atomic.Uint64
	live     atomic.Bool
}

func newSession(path string, drv Driver, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("capture")
	}
	s := &Session{
		path:   path,
		drv:    drv,
		logger: logger.With("device", path),
		bus:    opts.Events,
	}
	s.publishState(events.StateOpened)
	return s
}

// Path returns the device node path.
func (s *Session) Path() string {
	return s.path
}

// State returns the current streaming state.
func (s *Session) State() State {
	return s.state
}

// Close stops streaming, releases mapped buffers and closes the device.
func (s *Session) Close() error {
	if s.closed {
		return s.fail("close", ErrDeviceClose, errAlreadyClosed)
	}

	var errs []error
	if s.state == StateStreaming {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
			// Closing the descriptor stops the queue regardless
			s.setIdle()
		}
	}
	if !s.released && (len(s.buffers) > 0 || s.granted > 0) {
		if err := s.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.drv.Close(); err != nil {
		errs = append(errs, err)
	}

	s.closed = true
	unclaim(s.path)
	s.publishState(events.StateClosed)
	s.logger.Debug("Device closed")

	if len(errs) > 0 {
		return s.fail("close", ErrDeviceClose, errors.Join(errs...))
	}
	return nil
}

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	Frames    uint64 `json:"frames" doc:"Frames rendered"`
	Skipped   uint64 `json:"skipped" doc:"Dequeue attempts that produced no frame"`
	Timeouts  uint64 `json:"timeouts" doc:"Readiness waits that timed out"`
	Bytes     uint64 `json:"bytes" doc:"Payload bytes rendered"`
	Streaming bool   `json:"streaming" doc:"Whether the device is streaming"`
}

// Stats returns the session counters. Safe for concurrent use.
func (s *Session) Stats() Stats {
	return Stats{
		Frames:    s.frames.Load(),
		Skipped:   s.skipped.Load(),
		Timeouts:  s.timeouts.Load(),
		Bytes:     s.bytes.Load(),
		Streaming: s.live.Load(),
	}
}

func (s *Session) checkOpen(op string) error {
	if s.closed {
		return s.fail(op, ErrState, errAlreadyClosed)
	}
	return nil
}

func (s *Session) fail(op string, kind, err error) *Error {
	return &Error{Op: op, Device: s.path, Kind: kind, Err: err}
}

func (s *Session) publishState(state string) {
	s.bus.Publish(events.SessionStateEvent{
		DevicePath: s.path,
		State:      state,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}
