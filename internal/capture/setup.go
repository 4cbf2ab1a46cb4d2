package capture

import (
	"time"

	"github.com/smazurov/camview/internal/events"
)

// SetupOptions drive Setup.
type SetupOptions struct {
	PreferCompressed bool
	Width            uint32 // 0 requests the largest size
	Height           uint32
	Buffers          uint32
}

// Setup runs the whole negotiation: capability check, format selection,
// format application, buffer request and mapping. The session is ready for
// Start or Run afterwards.
func (s *Session) Setup(opts SetupOptions) (FormatDescriptor, error) {
	if _, err := s.QueryCapabilities(); err != nil {
		return FormatDescriptor{}, err
	}

	desc := s.NegotiateFormat(opts.PreferCompressed)
	applied, err := s.ApplyFormat(desc, opts.Width, opts.Height)
	if err != nil {
		return FormatDescriptor{}, err
	}

	granted, err := s.RequestBuffers(opts.Buffers)
	if err != nil {
		return applied, err
	}
	buffers, err := s.MapBuffers(granted)
	if err != nil {
		return applied, err
	}

	s.logger.Info("Capture configured",
		"format", applied.FourCC(),
		"width", applied.Width,
		"height", applied.Height,
		"depth", applied.BytesPerPixel*8,
		"buffers", len(buffers))

	s.bus.Publish(events.FormatNegotiatedEvent{
		DevicePath:  s.path,
		PixelFormat: applied.FourCC(),
		Width:       applied.Width,
		Height:      applied.Height,
		Buffers:     len(buffers),
		Timestamp:   time.Now().Format(time.RFC3339),
	})
	return applied, nil
}
