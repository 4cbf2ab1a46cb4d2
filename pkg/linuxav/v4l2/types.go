package v4l2

import "time"

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	Caps       uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	Index       uint32
	PixelFormat uint32
	FormatName  string
	Compressed  bool
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a supported framerate as a fraction.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Capability is the decoded result of VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capabilities of this device node. Drivers that
// report per-node caps set CapDeviceCaps and fill DeviceCaps.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// Has reports whether every bit of flags is set in the effective capabilities.
func (c Capability) Has(flags uint32) bool {
	return c.Effective()&flags == flags
}

// PixFormat mirrors the single-planar v4l2_pix_format fields used for capture.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
}

// BufferInfo is the decoded result of VIDIOC_QUERYBUF and VIDIOC_DQBUF.
type BufferInfo struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
	Sequence  uint32
	Offset    uint32
	Length    uint32
	Timestamp time.Duration // driver clock, usually CLOCK_MONOTONIC
}

// DeviceType represents the type of V4L2 device.
type DeviceType int

// Device types.
const (
	DeviceTypeWebcam  DeviceType = 0
	DeviceTypeHDMI    DeviceType = 1
	DeviceTypeUnknown DeviceType = -1
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeWebcam:
		return "webcam"
	case DeviceTypeHDMI:
		return "hdmi"
	default:
		return "unknown"
	}
}

// Capability flags.
const (
	CapVideoCapture = 0x00000001
	CapReadWrite    = 0x01000000
	CapStreaming    = 0x04000000
	CapDeviceCaps   = 0x80000000
)

// Format description flags.
const (
	FmtFlagCompressed = 0x0001
	FmtFlagEmulated   = 0x0002
)

// Common pixel formats.
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
	PixFmtJPEG  = 0x4745504A // 'JPEG'
	PixFmtH264  = 0x34363248 // 'H264'
	PixFmtHEVC  = 0x43564548 // 'HEVC'
	PixFmtNV12  = 0x3231564E // 'NV12'
)

// Frame size types.
const (
	FrmsizeTypeDiscrete   = 1
	FrmsizeTypeContinuous = 2
	FrmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	FrmivalTypeDiscrete   = 1
	FrmivalTypeContinuous = 2
	FrmivalTypeStepwise   = 3
)

// Buffer type, memory model and field order.
const (
	BufTypeVideoCapture = 1
	MemoryMMAP          = 1
	FieldAny            = 0
	FieldNone           = 1
)

// Buffer flags reported by the driver.
const (
	BufFlagMapped = 0x00000001
	BufFlagQueued = 0x00000002
	BufFlagDone   = 0x00000004
	BufFlagError  = 0x00000040
)
