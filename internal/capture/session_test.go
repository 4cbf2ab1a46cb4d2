package capture

import (
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/pkg/linuxav/v4l2"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	err := error(&Error{Op: "dqbuf", Device: "/dev/video0", Kind: ErrDequeue, Err: syscall.ENODEV})

	require.ErrorIs(t, err, ErrDequeue)
	require.ErrorIs(t, err, syscall.ENODEV)
	require.NotErrorIs(t, err, ErrEnqueue)
	require.Equal(t, "capture: dqbuf /dev/video0: dequeue failed: no such device", err.Error())

	var capErr *Error
	require.True(t, errors.As(err, &capErr))
	require.Equal(t, "dqbuf", capErr.Op)

	var errno syscall.Errno
	require.True(t, errors.As(err, &errno))
	require.Equal(t, syscall.ENODEV, errno)
}

func TestCloseReleasesEverything(t *testing.T) {
	drv := newFakeDriver()
	s := mappedSession(t, drv, 4)
	require.NoError(t, s.Start())

	require.NoError(t, s.Close())
	require.True(t, drv.closed)
	require.False(t, drv.streaming)
	require.Empty(t, drv.mapped)
	require.Equal(t, 4, drv.unmaps)
	require.Zero(t, s.LiveMappings())
	require.Equal(t, StateIdle, s.State())
}

func TestCloseTwice(t *testing.T) {
	drv := newFakeDriver()
	s := newTestSession(drv)

	require.NoError(t, s.Close())
	err := s.Close()
	require.ErrorIs(t, err, ErrDeviceClose)
	require.ErrorIs(t, err, errAlreadyClosed)
}

func TestCloseAfterRelease(t *testing.T) {
	drv := newFakeDriver()
	s := mappedSession(t, drv, 2)
	require.NoError(t, s.Release())

	require.NoError(t, s.Close())
	require.Equal(t, 2, drv.unmaps)
}

func TestOperationsAfterClose(t *testing.T) {
	s := newTestSession(newFakeDriver())
	require.NoError(t, s.Close())

	_, err := s.QueryCapabilities()
	require.ErrorIs(t, err, ErrState)
	_, err = s.ApplyFormat(YUYV, 640, 480)
	require.ErrorIs(t, err, ErrState)
	_, err = s.RequestBuffers(2)
	require.ErrorIs(t, err, ErrState)
	require.ErrorIs(t, s.Start(), ErrState)

	for _, err := range s.EnumerateFormats() {
		require.ErrorIs(t, err, ErrState)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	const path = "/dev/video-claim"
	require.NoError(t, claim(path))
	require.ErrorIs(t, claim(path), errAlreadyOpen)

	unclaim(path)
	require.NoError(t, claim(path))
	unclaim(path)
}

func TestSetup(t *testing.T) {
	drv := newFakeDriver()
	s := newTestSession(drv)

	got, err := s.Setup(SetupOptions{PreferCompressed: true, Width: 640, Height: 480, Buffers: 4})
	require.NoError(t, err)
	require.Equal(t, uint32(v4l2.PixFmtMJPEG), got.PixelFormat)
	require.Equal(t, uint32(640), got.Width)
	require.Equal(t, 4, s.LiveMappings())
	require.NoError(t, s.Start())
}

func TestSetupRejectsNonStreamingDevice(t *testing.T) {
	drv := newFakeDriver()
	drv.caps.DeviceCaps = v4l2.CapVideoCapture | v4l2.CapReadWrite
	s := newTestSession(drv)

	_, err := s.Setup(SetupOptions{PreferCompressed: true, Buffers: 4})
	require.ErrorIs(t, err, ErrUnsupportedDevice)
	require.Zero(t, drv.enumCalls)
	require.Empty(t, drv.reqCalls)
}

func TestSessionPublishesEvents(t *testing.T) {
	bus := events.New()
	states := make(chan any, 16)
	formats := make(chan any, 1)
	captured := make(chan any, 16)
	defer events.SubscribeToChannel[events.SessionStateEvent](bus, states)()
	defer events.SubscribeToChannel[events.FormatNegotiatedEvent](bus, formats)()
	defer events.SubscribeToChannel[events.FrameCapturedEvent](bus, captured)()

	drv := newFakeDriver()
	s := newTestSessionWithBus(drv, bus)
	_, err := s.Setup(SetupOptions{PreferCompressed: true, Width: 640, Height: 480, Buffers: 2})
	require.NoError(t, err)
	_, err = s.Setup(SetupOptions{}) // buffers already mapped
	require.Error(t, err)

	require.NoError(t, s.Start())
	_, err = s.CaptureOne(nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	receive := func(ch chan any) any {
		t.Helper()
		select {
		case ev := <-ch:
			return ev
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
			return nil
		}
	}

	negotiated := receive(formats).(events.FormatNegotiatedEvent)
	require.Equal(t, "MJPG", negotiated.PixelFormat)
	require.Equal(t, 2, negotiated.Buffers)
	require.Equal(t, "/dev/video-test", negotiated.DevicePath)

	frame := receive(captured).(events.FrameCapturedEvent)
	require.Equal(t, uint32(1), frame.Sequence)
	require.Equal(t, 1000, frame.Bytes)

	var seen []string
	for range 4 {
		seen = append(seen, receive(states).(events.SessionStateEvent).State)
	}
	require.Equal(t, []string{events.StateOpened, events.StateStreaming, events.StateIdle, events.StateClosed}, seen)
}

func TestStatsAreSafeToReadConcurrently(t *testing.T) {
	drv := newFakeDriver()
	s := mappedSession(t, drv, 2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 1000 {
			_ = s.Stats()
		}
	}()

	require.NoError(t, s.Run(t.Context(), nil, RunOptions{Frames: 50}))
	<-done
	require.Equal(t, uint64(50), s.Stats().Frames)
}
