package capture

import (
	"errors"
	"iter"
	"syscall"
	"testing"

	"github.com/smazurov/camview/pkg/linuxav/v4l2"
	"github.com/stretchr/testify/require"
)

func seqOf(formats ...uint32) (iter.Seq2[FormatDescriptor, error], *int) {
	pulled := 0
	return func(yield func(FormatDescriptor, error) bool) {
		for _, f := range formats {
			pulled++
			if !yield(FormatDescriptor{PixelFormat: f}, nil) {
				return
			}
		}
	}, &pulled
}

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		name       string
		candidates []uint32
		want       uint32
		pulled     int
	}{
		{"mjpeg after yuyv", []uint32{v4l2.PixFmtYUYV, v4l2.PixFmtMJPEG}, v4l2.PixFmtMJPEG, 2},
		{"mjpeg first", []uint32{v4l2.PixFmtMJPEG, v4l2.PixFmtYUYV, v4l2.PixFmtH264}, v4l2.PixFmtMJPEG, 1},
		{"mjpeg last", []uint32{v4l2.PixFmtNV12, v4l2.PixFmtH264, v4l2.PixFmtMJPEG}, v4l2.PixFmtMJPEG, 3},
		{"only yuyv", []uint32{v4l2.PixFmtYUYV}, v4l2.PixFmtYUYV, 1},
		{"no mjpeg", []uint32{v4l2.PixFmtNV12, v4l2.PixFmtH264}, v4l2.PixFmtYUYV, 2},
		{"empty", nil, v4l2.PixFmtYUYV, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, pulled := seqOf(tt.candidates...)
			got := SelectFormat(seq)
			require.Equal(t, tt.want, got.PixelFormat)
			require.Equal(t, tt.pulled, *pulled)
		})
	}
}

func TestSelectFormatFallbackIsYUYV(t *testing.T) {
	seq, _ := seqOf(v4l2.PixFmtH264)
	got := SelectFormat(seq)
	require.Equal(t, YUYV, got)
	require.Equal(t, uint32(2), got.BytesPerPixel)
	require.False(t, got.Compressed())
}

func TestSelectFormatStopsOnError(t *testing.T) {
	seq := func(yield func(FormatDescriptor, error) bool) {
		if !yield(FormatDescriptor{}, errors.New("boom")) {
			return
		}
		yield(MJPEG, nil)
	}
	require.Equal(t, YUYV, SelectFormat(seq))
}

func TestEnumerateFormats(t *testing.T) {
	drv := newFakeDriver()
	drv.formats = append(drv.formats, v4l2.FormatInfo{Index: 2, PixelFormat: v4l2.PixFmtH264, FormatName: "H.264"})
	s := newTestSession(drv)

	var got []string
	for desc, err := range s.EnumerateFormats() {
		require.NoError(t, err)
		got = append(got, desc.FourCC())
	}

	require.Equal(t, []string{"YUYV", "MJPG", "H264"}, got)
	require.Equal(t, 4, drv.enumCalls, "enumeration ends on the EINVAL after the last format")
}

func TestEnumerateFormatsYieldsErrorOnce(t *testing.T) {
	drv := newFakeDriver()
	drv.enumErr = syscall.EIO
	drv.enumErrAt = 1
	s := newTestSession(drv)

	var descs int
	var errs []error
	for desc, err := range s.EnumerateFormats() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		require.Equal(t, uint32(v4l2.PixFmtYUYV), desc.PixelFormat)
		descs++
	}

	require.Equal(t, 1, descs)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrFormatNegotiation)
	require.ErrorIs(t, errs[0], syscall.EIO)
}

func TestNegotiateFormat(t *testing.T) {
	t.Run("prefers mjpeg", func(t *testing.T) {
		drv := newFakeDriver()
		s := newTestSession(drv)
		got := s.NegotiateFormat(true)
		require.Equal(t, uint32(v4l2.PixFmtMJPEG), got.PixelFormat)
		require.True(t, got.Compressed())
	})

	t.Run("stops at first mjpeg", func(t *testing.T) {
		drv := newFakeDriver()
		drv.formats = []v4l2.FormatInfo{
			{PixelFormat: v4l2.PixFmtMJPEG},
			{PixelFormat: v4l2.PixFmtYUYV},
			{PixelFormat: v4l2.PixFmtH264},
		}
		s := newTestSession(drv)
		s.NegotiateFormat(true)
		require.Equal(t, 1, drv.enumCalls)
	})

	t.Run("uncompressed skips enumeration", func(t *testing.T) {
		drv := newFakeDriver()
		s := newTestSession(drv)
		require.Equal(t, YUYV, s.NegotiateFormat(false))
		require.Zero(t, drv.enumCalls)
	})

	t.Run("yuyv only device", func(t *testing.T) {
		drv := newFakeDriver()
		drv.formats = drv.formats[:1]
		s := newTestSession(drv)
		require.Equal(t, uint32(v4l2.PixFmtYUYV), s.NegotiateFormat(true).PixelFormat)
	})
}

func TestQueryCapabilities(t *testing.T) {
	tests := []struct {
		name    string
		caps    uint32
		wantErr bool
	}{
		{"capture and streaming", v4l2.CapVideoCapture | v4l2.CapStreaming, false},
		{"read/write only", v4l2.CapVideoCapture | v4l2.CapReadWrite, true},
		{"metadata node", v4l2.CapStreaming | 0x00800000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := newFakeDriver()
			drv.caps.DeviceCaps = tt.caps
			s := newTestSession(drv)

			_, err := s.QueryCapabilities()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedDevice)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestApplyFormat(t *testing.T) {
	t.Run("driver adjusts size", func(t *testing.T) {
		drv := newFakeDriver()
		s := newTestSession(drv)

		got, err := s.ApplyFormat(YUYV, 1920, 1080)
		require.NoError(t, err)
		require.Equal(t, uint32(1280), got.Width)
		require.Equal(t, uint32(720), got.Height)
		require.Equal(t, uint32(2560), got.BytesPerLine)
		require.Equal(t, uint32(2560*720), got.SizeImage)
		require.Equal(t, got, s.Format())
	})

	t.Run("zero size requests the largest", func(t *testing.T) {
		drv := newFakeDriver()
		s := newTestSession(drv)

		_, err := s.ApplyFormat(MJPEG, 0, 0)
		require.NoError(t, err)
		require.Equal(t, uint32(largestSize), drv.lastSet.Width)
		require.Equal(t, uint32(largestSize), drv.lastSet.Height)
	})

	t.Run("substituted pixel format", func(t *testing.T) {
		drv := newFakeDriver()
		drv.substitute = v4l2.PixFmtYUYV
		s := newTestSession(drv)

		_, err := s.ApplyFormat(MJPEG, 640, 480)
		require.ErrorIs(t, err, ErrFormatNegotiation)
	})

	t.Run("immutable once mapped", func(t *testing.T) {
		drv := newFakeDriver()
		s := mappedSession(t, drv, 2)

		_, err := s.ApplyFormat(YUYV, 320, 240)
		require.ErrorIs(t, err, ErrFormatNegotiation)
		require.Equal(t, uint32(v4l2.PixFmtMJPEG), s.Format().PixelFormat)
	})
}
