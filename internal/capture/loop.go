package capture

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/pkg/linuxav/v4l2"
)

// DefaultTimeout bounds a single readiness wait.
const DefaultTimeout = 2 * time.Second

// Result tells whether CaptureOne rendered a frame.
type Result int

// CaptureOne results.
const (
	Skipped Result = iota
	Produced
)

func (r Result) String() string {
	if r == Produced {
		return "produced"
	}
	return "skipped"
}

// Start hands every mapped buffer to the driver and turns streaming on.
func (s *Session) Start() error {
	if err := s.checkOpen("streamon"); err != nil {
		return err
	}
	if s.state != StateIdle {
		return s.fail("streamon", ErrStreamOn, fmt.Errorf("%w: already streaming", ErrState))
	}
	if len(s.buffers) == 0 {
		return s.fail("streamon", ErrStreamOn, fmt.Errorf("%w: no buffers mapped", ErrState))
	}

	for _, b := range s.buffers {
		if err := s.enqueue("qbuf", ErrStreamOn, b); err != nil {
			s.reclaim()
			return err
		}
	}
	if err := s.drv.StreamOn(); err != nil {
		s.reclaim()
		return s.fail("streamon", ErrStreamOn, err)
	}

	s.state = StateStreaming
	s.live.Store(true)
	s.publishState(events.StateStreaming)
	s.logger.Info("Streaming started",
		"format", s.format.FourCC(),
		"width", s.format.Width,
		"height", s.format.Height,
		"buffers", len(s.buffers))
	return nil
}

// reclaim takes back buffers queued by a failed Start.
func (s *Session) reclaim() {
	_ = s.drv.StreamOff()
	for _, b := range s.buffers {
		b.owner = OwnerApp
	}
}

// Stop turns streaming off. The driver drops its queue, so every buffer
// returns to the application.
func (s *Session) Stop() error {
	if s.state != StateStreaming {
		return s.fail("streamoff", ErrStreamOff, fmt.Errorf("%w: not streaming", ErrState))
	}
	if err := s.drv.StreamOff(); err != nil {
		return s.fail("streamoff", ErrStreamOff, err)
	}
	s.setIdle()
	s.logger.Info("Streaming stopped", "frames", s.frames.Load(), "skipped", s.skipped.Load())
	return nil
}

func (s *Session) setIdle() {
	for _, b := range s.buffers {
		b.owner = OwnerApp
	}
	s.state = StateIdle
	s.live.Store(false)
	s.publishState(events.StateIdle)
}

// WaitReady blocks until a filled buffer can be dequeued. Interrupted waits
// are retried; a wait that times out returns ErrCaptureTimeout.
func (s *Session) WaitReady(timeout time.Duration) error {
	if s.state != StateStreaming {
		return s.fail("select", ErrState, errors.New("not streaming"))
	}
	for _, b := range s.buffers {
		if b.owner != OwnerDriver {
			return s.fail("select", ErrOwnership, fmt.Errorf("buffer %d was not requeued", b.Index))
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	for {
		ready, err := s.drv.WaitReadable(timeout)
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if err != nil {
			return s.fail("select", ErrWait, err)
		}
		if !ready {
			s.timeouts.Add(1)
			return s.fail("select", ErrCaptureTimeout, fmt.Errorf("no frame within %s", timeout))
		}
		return nil
	}
}

// CaptureOne dequeues a filled buffer, renders it and queues it again.
// A dequeue answered with EAGAIN (no frame yet) or EIO (transient transfer
// error) yields Skipped, as does a buffer the driver flagged as corrupt or
// a compressed frame with no payload. The buffer is requeued even when
// rendering fails.
func (s *Session) CaptureOne(r Renderer) (Result, error) {
	if s.state != StateStreaming {
		return Skipped, s.fail("dqbuf", ErrState, errors.New("not streaming"))
	}

	info, err := s.drv.Dequeue()
	switch {
	case errors.Is(err, syscall.EAGAIN):
		s.skip(events.SkipNotReady)
		return Skipped, nil
	case errors.Is(err, syscall.EIO):
		s.logger.Warn("Dequeue reported I/O error, skipping frame", "error", err)
		s.skip(events.SkipIOError)
		return Skipped, nil
	case err != nil:
		return Skipped, s.fail("dqbuf", ErrDequeue, err)
	}

	if int(info.Index) >= len(s.buffers) {
		return Skipped, s.fail("dqbuf", ErrDequeue,
			fmt.Errorf("driver returned index %d of %d buffers", info.Index, len(s.buffers)))
	}
	buf := s.buffers[info.Index]
	if buf.owner != OwnerDriver {
		return Skipped, s.fail("dqbuf", ErrOwnership, fmt.Errorf("buffer %d dequeued twice", buf.Index))
	}
	buf.owner = OwnerApp

	if reason := badFrame(info, s.format); reason != "" {
		if err := s.enqueue("qbuf", ErrEnqueue, buf); err != nil {
			return Skipped, err
		}
		s.logger.Warn("Driver returned a bad frame, skipping", "index", buf.Index, "reason", reason)
		s.skip(events.SkipIOError)
		return Skipped, nil
	}

	data := buf.Data
	if info.BytesUsed > 0 && int(info.BytesUsed) <= len(data) {
		data = data[:info.BytesUsed]
	}

	var renderErr error
	if r != nil {
		renderErr = r.Render(Frame{
			Format:    s.format,
			Data:      data,
			Index:     buf.Index,
			Sequence:  info.Sequence,
			Timestamp: info.Timestamp,
		})
	}

	if err := s.enqueue("qbuf", ErrEnqueue, buf); err != nil {
		return Skipped, err
	}
	if renderErr != nil {
		return Skipped, s.fail("render", ErrRender, renderErr)
	}

	s.frames.Add(1)
	s.bytes.Add(uint64(len(data)))
	s.bus.Publish(events.FrameCapturedEvent{
		DevicePath: s.path,
		Sequence:   info.Sequence,
		Index:      buf.Index,
		Bytes:      len(data),
		Timestamp:  time.Now().Format(time.RFC3339),
	})
	return Produced, nil
}

// badFrame reports why a dequeued buffer must not be rendered, or "".
func badFrame(info v4l2.BufferInfo, format FormatDescriptor) string {
	switch {
	case info.Flags&v4l2.BufFlagError != 0:
		return "error flag set"
	case info.BytesUsed == 0 && format.Compressed():
		return "empty compressed frame"
	}
	return ""
}

func (s *Session) skip(reason string) {
	s.skipped.Add(1)
	s.bus.Publish(events.FrameSkippedEvent{
		DevicePath: s.path,
		Reason:     reason,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// RunOptions bound a capture run.
type RunOptions struct {
	// Frames stops the run after this many rendered frames. 0 runs until
	// the context is cancelled.
	Frames int
	// Timeout bounds each readiness wait. Defaults to DefaultTimeout.
	Timeout time.Duration
	// MaxTimeouts is how many consecutive timed-out waits are tolerated.
	// 0 makes the first timeout fatal.
	MaxTimeouts int
}

// Run captures frames into r. It starts streaming if needed and stops it
// again before returning when it did. Cancellation is checked once per
// produced frame, so a quit takes effect after the current wait finishes.
// Cancellation is a clean exit and returns nil.
func (s *Session) Run(ctx context.Context, r Renderer, opts RunOptions) (err error) {
	if s.state == StateIdle {
		if err := s.Start(); err != nil {
			return err
		}
		defer func() {
			if stopErr := s.Stop(); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
		}()
	}

	timeouts := 0
	for produced := 0; opts.Frames <= 0 || produced < opts.Frames; produced++ {
		if ctx.Err() != nil {
			s.logger.Debug("Capture cancelled", "frames", produced)
			return nil
		}

		for {
			if err := s.WaitReady(opts.Timeout); err != nil {
				if !errors.Is(err, ErrCaptureTimeout) {
					return err
				}
				timeouts++
				s.bus.Publish(events.FrameSkippedEvent{
					DevicePath: s.path,
					Reason:     events.SkipTimeout,
					Timestamp:  time.Now().Format(time.RFC3339),
				})
				if timeouts > opts.MaxTimeouts {
					return err
				}
				s.logger.Warn("Timed out waiting for frame", "consecutive", timeouts, "max", opts.MaxTimeouts)
				if ctx.Err() != nil {
					return nil
				}
				continue
			}

			result, err := s.CaptureOne(r)
			if err != nil {
				return err
			}
			if result == Produced {
				timeouts = 0
				break
			}
		}
	}
	return nil
}
