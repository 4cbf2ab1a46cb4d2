package capture

import (
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/pkg/linuxav/v4l2"
)

type waitResult struct {
	ready bool
	err   error
}

// fakeDriver emulates a single-planar mmap capture queue.
type fakeDriver struct {
	caps      v4l2.Capability
	formats   []v4l2.FormatInfo
	enumErr   error // returned instead of the format at enumErrAt
	enumErrAt int
	enumCalls int

	substitute uint32 // pixel format forced by SetFormat when non-zero
	maxWidth   uint32
	maxHeight  uint32
	lastSet    v4l2.PixFormat

	grant    int // buffers granted; -1 grants what is asked
	reqErr   error
	reqCalls []uint32

	bufLen   uint32
	mapErrAt int // -1 never fails
	mapped   map[*byte]bool
	unmaps   int

	queue     []uint32
	qbufErr   error
	dqErrs    []error
	bytesUsed uint32
	flags     []uint32 // per-dequeue buffer flags, consumed in order
	badIndex  bool
	seq       uint32

	streaming   bool
	streamOnErr error
	waits       []waitResult
	waitCalls   int

	closed bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		caps: v4l2.Capability{
			Driver:       "uvcvideo",
			Card:         "Fake Camera",
			Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming | v4l2.CapDeviceCaps,
			DeviceCaps:   v4l2.CapVideoCapture | v4l2.CapStreaming,
		},
		formats: []v4l2.FormatInfo{
			{Index: 0, PixelFormat: v4l2.PixFmtYUYV, FormatName: "YUYV 4:2:2"},
			{Index: 1, PixelFormat: v4l2.PixFmtMJPEG, FormatName: "Motion-JPEG", Compressed: true},
		},
		enumErrAt: -1,
		maxWidth:  1280,
		maxHeight: 720,
		grant:     -1,
		bufLen:    4096,
		mapErrAt:  -1,
		mapped:    make(map[*byte]bool),
		bytesUsed: 1000,
	}
}

func (d *fakeDriver) Capability() (v4l2.Capability, error) {
	return d.caps, nil
}

func (d *fakeDriver) EnumFormat(index uint32) (v4l2.FormatInfo, error) {
	d.enumCalls++
	if d.enumErr != nil && int(index) == d.enumErrAt {
		return v4l2.FormatInfo{}, d.enumErr
	}
	if int(index) >= len(d.formats) {
		return v4l2.FormatInfo{}, syscall.EINVAL
	}
	return d.formats[index], nil
}

func (d *fakeDriver) SetFormat(pix v4l2.PixFormat) (v4l2.PixFormat, error) {
	d.lastSet = pix
	out := pix
	out.Width = min(pix.Width, d.maxWidth)
	out.Height = min(pix.Height, d.maxHeight)
	if d.substitute != 0 {
		out.PixelFormat = d.substitute
	}
	if out.PixelFormat == v4l2.PixFmtYUYV {
		out.BytesPerLine = out.Width * 2
		out.SizeImage = out.BytesPerLine * out.Height
	}
	return out, nil
}

func (d *fakeDriver) RequestBuffers(count uint32) (uint32, error) {
	d.reqCalls = append(d.reqCalls, count)
	if count == 0 {
		return 0, nil
	}
	if d.reqErr != nil {
		return 0, d.reqErr
	}
	if d.grant >= 0 {
		return uint32(d.grant), nil
	}
	return count, nil
}

func (d *fakeDriver) QueryBuffer(index uint32) (v4l2.BufferInfo, error) {
	return v4l2.BufferInfo{Index: index, Length: d.bufLen, Offset: index * d.bufLen}, nil
}

func (d *fakeDriver) Map(_, length uint32) ([]byte, error) {
	if d.mapErrAt >= 0 && len(d.mapped) == d.mapErrAt {
		return nil, syscall.ENOMEM
	}
	data := make([]byte, length)
	d.mapped[&data[0]] = true
	return data, nil
}

func (d *fakeDriver) Unmap(data []byte) error {
	if len(data) == 0 || !d.mapped[&data[0]] {
		return syscall.EINVAL
	}
	delete(d.mapped, &data[0])
	d.unmaps++
	return nil
}

func (d *fakeDriver) Enqueue(index uint32) error {
	if d.qbufErr != nil {
		return d.qbufErr
	}
	for _, q := range d.queue {
		if q == index {
			return syscall.EINVAL
		}
	}
	d.queue = append(d.queue, index)
	return nil
}

func (d *fakeDriver) Dequeue() (v4l2.BufferInfo, error) {
	if len(d.dqErrs) > 0 {
		err := d.dqErrs[0]
		d.dqErrs = d.dqErrs[1:]
		return v4l2.BufferInfo{}, err
	}
	if !d.streaming {
		return v4l2.BufferInfo{}, syscall.EINVAL
	}
	if len(d.queue) == 0 {
		return v4l2.BufferInfo{}, syscall.EAGAIN
	}
	index := d.queue[0]
	d.queue = d.queue[1:]
	if d.badIndex {
		index = 99
	}
	var flags uint32
	if len(d.flags) > 0 {
		flags = d.flags[0]
		d.flags = d.flags[1:]
	}
	d.seq++
	return v4l2.BufferInfo{
		Index:     index,
		BytesUsed: d.bytesUsed,
		Flags:     flags,
		Sequence:  d.seq,
		Timestamp: time.Duration(d.seq) * 33 * time.Millisecond,
	}, nil
}

func (d *fakeDriver) StreamOn() error {
	if d.streamOnErr != nil {
		return d.streamOnErr
	}
	d.streaming = true
	return nil
}

func (d *fakeDriver) StreamOff() error {
	d.streaming = false
	d.queue = nil
	return nil
}

func (d *fakeDriver) WaitReadable(time.Duration) (bool, error) {
	d.waitCalls++
	if len(d.waits) > 0 {
		w := d.waits[0]
		d.waits = d.waits[1:]
		return w.ready, w.err
	}
	return len(d.queue) > 0, nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func newTestSession(drv *fakeDriver) *Session {
	return newSession("/dev/video-test", drv, Options{Logger: slog.New(slog.DiscardHandler)})
}

func newTestSessionWithBus(drv *fakeDriver, bus *events.Bus) *Session {
	return newSession("/dev/video-test", drv, Options{Logger: slog.New(slog.DiscardHandler), Events: bus})
}

// mappedSession returns a session with count buffers requested and mapped.
func mappedSession(t *testing.T, drv *fakeDriver, count uint32) *Session {
	t.Helper()
	return mappedSessionFormat(t, drv, count, MJPEG)
}

func mappedSessionFormat(t *testing.T, drv *fakeDriver, count uint32, desc FormatDescriptor) *Session {
	t.Helper()
	s := newTestSession(drv)
	if _, err := s.ApplyFormat(desc, 640, 480); err != nil {
		t.Fatalf("ApplyFormat: %v", err)
	}
	granted, err := s.RequestBuffers(count)
	if err != nil {
		t.Fatalf("RequestBuffers: %v", err)
	}
	if _, err := s.MapBuffers(granted); err != nil {
		t.Fatalf("MapBuffers: %v", err)
	}
	return s
}
