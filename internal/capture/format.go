package capture

import (
	"errors"
	"fmt"
	"iter"
	"syscall"

	"github.com/smazurov/camview/pkg/linuxav/v4l2"
)

// largestSize is requested when the caller asks for width or height 0; the
// driver clamps it to the biggest size it supports.
const largestSize = 3000

// FormatDescriptor describes a pixel format and, once applied, the frame
// geometry the driver agreed to.
type FormatDescriptor struct {
	PixelFormat   uint32
	Width         uint32
	Height        uint32
	BytesPerPixel uint32 // 0 for compressed formats
	BytesPerLine  uint32
	SizeImage     uint32
	Description   string
}

// FourCC returns the pixel format as a four character string.
func (d FormatDescriptor) FourCC() string {
	return v4l2.FormatFourCC(d.PixelFormat)
}

// Compressed reports whether frames have a variable size.
func (d FormatDescriptor) Compressed() bool {
	return d.BytesPerPixel == 0
}

// MJPEG is the preferred compressed format.
var MJPEG = FormatDescriptor{
	PixelFormat: v4l2.PixFmtMJPEG,
	Description: "Motion-JPEG",
}

// YUYV is the uncompressed fallback every UVC camera offers.
var YUYV = FormatDescriptor{
	PixelFormat:   v4l2.PixFmtYUYV,
	BytesPerPixel: 2,
	Description:   "YUYV 4:2:2",
}

// bytesPerPixel knows the packed formats a renderer can consume.
func bytesPerPixel(pixelFormat uint32) uint32 {
	switch pixelFormat {
	case v4l2.PixFmtYUYV:
		return 2
	default:
		return 0
	}
}

func descriptorFromInfo(info v4l2.FormatInfo) FormatDescriptor {
	return FormatDescriptor{
		PixelFormat:   info.PixelFormat,
		BytesPerPixel: bytesPerPixel(info.PixelFormat),
		Description:   info.FormatName,
	}
}

// SelectFormat returns the first MJPEG candidate, stopping the sequence as
// soon as it is seen. Without one it returns YUYV. An enumeration error ends
// the search the same way the end of the list does.
func SelectFormat(candidates iter.Seq2[FormatDescriptor, error]) FormatDescriptor {
	for desc, err := range candidates {
		if err != nil {
			break
		}
		if desc.PixelFormat == v4l2.PixFmtMJPEG {
			return desc
		}
	}
	return YUYV
}

// QueryCapabilities verifies the node can capture video through streaming
// I/O.
func (s *Session) QueryCapabilities() (v4l2.Capability, error) {
	if err := s.checkOpen("querycap"); err != nil {
		return v4l2.Capability{}, err
	}

	caps, err := s.drv.Capability()
	if err != nil {
		return v4l2.Capability{}, s.fail("querycap", ErrUnsupportedDevice, err)
	}
	if !caps.Has(v4l2.CapVideoCapture) {
		return caps, s.fail("querycap", ErrUnsupportedDevice, fmt.Errorf("%s is no video capture device", caps.Card))
	}
	if !caps.Has(v4l2.CapStreaming) {
		return caps, s.fail("querycap", ErrUnsupportedDevice, fmt.Errorf("%s does not support streaming i/o", caps.Card))
	}

	s.logger.Debug("Device capabilities",
		"driver", caps.Driver,
		"card", caps.Card,
		"bus", caps.BusInfo,
		"caps", fmt.Sprintf("0x%08x", caps.Effective()))
	return caps, nil
}

// EnumerateFormats lazily lists the capture formats, index 0 upward, until
// the driver answers EINVAL. Any other error is yielded once and ends the
// sequence.
func (s *Session) EnumerateFormats() iter.Seq2[FormatDescriptor, error] {
	return func(yield func(FormatDescriptor, error) bool) {
		if err := s.checkOpen("enum_fmt"); err != nil {
			yield(FormatDescriptor{}, err)
			return
		}
		for i := uint32(0); ; i++ {
			info, err := s.drv.EnumFormat(i)
			if errors.Is(err, syscall.EINVAL) {
				return
			}
			if err != nil {
				yield(FormatDescriptor{}, s.fail("enum_fmt", ErrFormatNegotiation, err))
				return
			}
			if !yield(descriptorFromInfo(info), nil) {
				return
			}
		}
	}
}

// NegotiateFormat picks the format to request: MJPEG when preferCompressed
// and the device offers it, otherwise YUYV without enumerating.
func (s *Session) NegotiateFormat(preferCompressed bool) FormatDescriptor {
	if !preferCompressed {
		return YUYV
	}
	logged := func(yield func(FormatDescriptor, error) bool) {
		for desc, err := range s.EnumerateFormats() {
			if err != nil {
				s.logger.Warn("Format enumeration stopped early", "error", err)
			} else {
				s.logger.Debug("Format offered", "fourcc", desc.FourCC(), "description", desc.Description)
			}
			if !yield(desc, err) {
				return
			}
		}
	}
	return SelectFormat(logged)
}

// ApplyFormat requests desc at width x height. Zero width or height asks for
// the largest size the driver allows. The returned descriptor carries the
// values the driver actually applied and becomes the session format.
func (s *Session) ApplyFormat(desc FormatDescriptor, width, height uint32) (FormatDescriptor, error) {
	if err := s.checkOpen("s_fmt"); err != nil {
		return FormatDescriptor{}, err
	}
	if s.LiveMappings() > 0 {
		return FormatDescriptor{}, s.fail("s_fmt", ErrFormatNegotiation, errBuffersMapped)
	}
	if width == 0 || height == 0 {
		width, height = largestSize, largestSize
	}

	got, err := s.drv.SetFormat(v4l2.PixFormat{
		Width:       width,
		Height:      height,
		PixelFormat: desc.PixelFormat,
		Field:       v4l2.FieldAny,
	})
	if err != nil {
		return FormatDescriptor{}, s.fail("s_fmt", ErrFormatNegotiation, err)
	}
	if got.PixelFormat != desc.PixelFormat {
		return FormatDescriptor{}, s.fail("s_fmt", ErrFormatNegotiation,
			fmt.Errorf("requested %s, driver chose %s", desc.FourCC(), v4l2.FormatFourCC(got.PixelFormat)))
	}

	applied := FormatDescriptor{
		PixelFormat:   got.PixelFormat,
		Width:         got.Width,
		Height:        got.Height,
		BytesPerPixel: desc.BytesPerPixel,
		BytesPerLine:  got.BytesPerLine,
		SizeImage:     got.SizeImage,
		Description:   desc.Description,
	}
	// Buggy drivers leave these zero for packed formats
	if minLine := applied.Width * applied.BytesPerPixel; applied.BytesPerLine < minLine {
		applied.BytesPerLine = minLine
	}
	if minSize := applied.BytesPerLine * applied.Height; applied.SizeImage < minSize {
		applied.SizeImage = minSize
	}

	if got.Width != width || got.Height != height {
		s.logger.Debug("Driver adjusted frame size",
			"requested", fmt.Sprintf("%dx%d", width, height),
			"applied", fmt.Sprintf("%dx%d", got.Width, got.Height))
	}

	s.format = applied
	return applied, nil
}

// Format returns the format applied last.
func (s *Session) Format() FormatDescriptor {
	return s.format
}
