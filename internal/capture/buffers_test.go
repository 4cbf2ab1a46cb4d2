package capture

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestBuffers(t *testing.T) {
	tests := []struct {
		name      string
		requested uint32
		grant     int
		reqErr    error
		want      uint32
		wantErr   error
	}{
		{"granted as asked", 4, -1, nil, 4, nil},
		{"driver grants fewer", 4, 3, nil, 3, nil},
		{"two of four is enough", 4, 2, nil, 2, nil},
		{"one of four is not", 4, 1, nil, 0, ErrInsufficientBuffers},
		{"single buffer", 1, 1, nil, 1, nil},
		{"none granted", 1, 0, nil, 0, ErrInsufficientBuffers},
		{"mmap unsupported", 4, -1, syscall.EINVAL, 0, ErrUnsupportedIOMethod},
		{"out of memory", 4, -1, syscall.ENOMEM, 0, ErrInsufficientBuffers},
		{"zero requested", 0, -1, nil, 0, ErrInsufficientBuffers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := newFakeDriver()
			drv.grant = tt.grant
			drv.reqErr = tt.reqErr
			s := newTestSession(drv)

			got, err := s.RequestBuffers(tt.requested)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMapBuffersMatchesGranted(t *testing.T) {
	drv := newFakeDriver()
	drv.grant = 3
	s := newTestSession(drv)

	granted, err := s.RequestBuffers(4)
	require.NoError(t, err)

	_, err = s.MapBuffers(4)
	require.ErrorIs(t, err, ErrState)

	buffers, err := s.MapBuffers(granted)
	require.NoError(t, err)
	require.Len(t, buffers, 3)
	require.Equal(t, 3, s.LiveMappings())
	require.Len(t, drv.mapped, 3)

	for i, b := range buffers {
		require.Equal(t, uint32(i), b.Index)
		require.Equal(t, drv.bufLen, b.Length)
		require.Len(t, b.Data, int(drv.bufLen))
		require.Equal(t, OwnerApp, b.Owner())
	}
}

func TestMapBuffersUnwindsOnFailure(t *testing.T) {
	drv := newFakeDriver()
	drv.mapErrAt = 2
	s := newTestSession(drv)

	granted, err := s.RequestBuffers(4)
	require.NoError(t, err)

	_, err = s.MapBuffers(granted)
	require.ErrorIs(t, err, ErrMap)
	require.ErrorIs(t, err, syscall.ENOMEM)
	require.Empty(t, drv.mapped)
	require.Zero(t, s.LiveMappings())
}

func TestReleaseUnmapsEveryBufferOnce(t *testing.T) {
	drv := newFakeDriver()
	s := mappedSession(t, drv, 4)

	require.NoError(t, s.Release())
	require.Zero(t, s.LiveMappings())
	require.Empty(t, drv.mapped)
	require.Equal(t, 4, drv.unmaps)
	require.Equal(t, uint32(0), drv.reqCalls[len(drv.reqCalls)-1], "driver buffers freed after unmapping")

	err := s.Release()
	require.ErrorIs(t, err, ErrUnmap)
	require.Equal(t, 4, drv.unmaps)
}

func TestReleaseWhileStreaming(t *testing.T) {
	drv := newFakeDriver()
	s := mappedSession(t, drv, 2)
	require.NoError(t, s.Start())

	err := s.Release()
	require.ErrorIs(t, err, ErrUnmap)
	require.ErrorIs(t, err, ErrState)
	require.Equal(t, 2, s.LiveMappings())
}

func TestRequestBuffersAfterRelease(t *testing.T) {
	drv := newFakeDriver()
	s := mappedSession(t, drv, 2)

	_, err := s.RequestBuffers(2)
	require.ErrorIs(t, err, ErrState, "buffers are still mapped")

	require.NoError(t, s.Release())

	granted, err := s.RequestBuffers(3)
	require.NoError(t, err)
	_, err = s.MapBuffers(granted)
	require.NoError(t, err)
	require.Equal(t, 3, s.LiveMappings())
}
