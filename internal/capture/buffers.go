package capture

import (
	"errors"
	"fmt"
	"syscall"
)

// Owner records which side may touch a buffer.
type Owner int

// Buffer owners.
const (
	OwnerApp Owner = iota
	OwnerDriver
)

func (o Owner) String() string {
	if o == OwnerDriver {
		return "driver"
	}
	return "app"
}

// Buffer is one memory-mapped driver buffer. Data stays valid until the
// session releases its buffers.
type Buffer struct {
	Index  uint32
	Data   []byte
	Length uint32
	Offset uint32
	owner  Owner
}

// Owner returns the side that currently holds the buffer.
func (b *Buffer) Owner() Owner {
	return b.owner
}

// RequestBuffers asks the driver for count memory-mapped buffers and returns
// how many it granted. Asking for several but receiving fewer than two is
// treated as out of memory.
func (s *Session) RequestBuffers(count uint32) (uint32, error) {
	if err := s.checkOpen("reqbufs"); err != nil {
		return 0, err
	}
	if s.state != StateIdle || s.LiveMappings() > 0 {
		return 0, s.fail("reqbufs", ErrState, errBuffersMapped)
	}
	if count == 0 {
		return 0, s.fail("reqbufs", ErrInsufficientBuffers, errors.New("requested zero buffers"))
	}

	granted, err := s.drv.RequestBuffers(count)
	if errors.Is(err, syscall.EINVAL) {
		return 0, s.fail("reqbufs", ErrUnsupportedIOMethod, err)
	}
	if err != nil {
		return 0, s.fail("reqbufs", ErrInsufficientBuffers, err)
	}

	threshold := uint32(1)
	if count > 1 {
		threshold = 2
	}
	if granted < threshold {
		if granted > 0 {
			_, _ = s.drv.RequestBuffers(0)
		}
		return granted, s.fail("reqbufs", ErrInsufficientBuffers,
			fmt.Errorf("requested %d, granted %d", count, granted))
	}

	if granted != count {
		s.logger.Debug("Driver adjusted buffer count", "requested", count, "granted", granted)
	}
	s.granted = granted
	s.released = false
	return granted, nil
}

// MapBuffers maps every granted buffer into the process. granted must be the
// value RequestBuffers returned. On failure buffers mapped so far are
// unmapped again.
func (s *Session) MapBuffers(granted uint32) ([]*Buffer, error) {
	if err := s.checkOpen("mmap"); err != nil {
		return nil, err
	}
	if granted == 0 || granted != s.granted {
		return nil, s.fail("mmap", ErrState, fmt.Errorf("%d buffers granted, asked to map %d", s.granted, granted))
	}
	if s.LiveMappings() > 0 {
		return nil, s.fail("mmap", ErrState, errBuffersMapped)
	}

	buffers := make([]*Buffer, 0, granted)
	unwind := func() {
		for _, b := range buffers {
			_ = s.drv.Unmap(b.Data)
		}
	}

	for i := range granted {
		info, err := s.drv.QueryBuffer(i)
		if err != nil {
			unwind()
			return nil, s.fail("querybuf", ErrMap, fmt.Errorf("buffer %d: %w", i, err))
		}
		data, err := s.drv.Map(info.Offset, info.Length)
		if err != nil {
			unwind()
			return nil, s.fail("mmap", ErrMap, fmt.Errorf("buffer %d: %w", i, err))
		}
		buffers = append(buffers, &Buffer{
			Index:  i,
			Data:   data,
			Length: info.Length,
			Offset: info.Offset,
			owner:  OwnerApp,
		})
	}

	s.buffers = buffers
	s.logger.Debug("Buffers mapped", "count", len(buffers), "length", buffers[0].Length)
	return buffers, nil
}

// LiveMappings returns the number of buffers currently mapped.
func (s *Session) LiveMappings() int {
	n := 0
	for _, b := range s.buffers {
		if b.Data != nil {
			n++
		}
	}
	return n
}

// Release unmaps every buffer exactly once and frees the driver's buffers.
// It fails while streaming and when called a second time.
func (s *Session) Release() error {
	if s.state == StateStreaming {
		return s.fail("munmap", ErrUnmap, fmt.Errorf("%w: still streaming", ErrState))
	}
	if s.released {
		return s.fail("munmap", ErrUnmap, errors.New("buffers already released"))
	}

	var errs []error
	for _, b := range s.buffers {
		if b.Data == nil {
			continue
		}
		if err := s.drv.Unmap(b.Data); err != nil {
			errs = append(errs, fmt.Errorf("buffer %d: %w", b.Index, err))
		}
		b.Data = nil
	}
	s.buffers = nil
	s.released = true

	if s.granted > 0 {
		if _, err := s.drv.RequestBuffers(0); err != nil {
			s.logger.Warn("Failed to free driver buffers", "error", err)
		}
		s.granted = 0
	}

	if len(errs) > 0 {
		return s.fail("munmap", ErrUnmap, errors.Join(errs...))
	}
	return nil
}

// enqueue hands an application-owned buffer to the driver.
func (s *Session) enqueue(op string, kind error, b *Buffer) error {
	if b.owner != OwnerApp {
		return s.fail(op, ErrOwnership, fmt.Errorf("buffer %d is owned by the %s", b.Index, b.owner))
	}
	if err := s.drv.Enqueue(b.Index); err != nil {
		return s.fail(op, kind, fmt.Errorf("buffer %d: %w", b.Index, err))
	}
	b.owner = OwnerDriver
	return nil
}
