package v4l2

import (
	"math"
	"testing"
)

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{
			name:     "YUYV format",
			format:   PixFmtYUYV,
			expected: "YUYV",
		},
		{
			name:     "MJPEG format",
			format:   PixFmtMJPEG,
			expected: "MJPG",
		},
		{
			name:     "H264 format",
			format:   PixFmtH264,
			expected: "H264",
		},
		{
			name:     "NV12 format",
			format:   PixFmtNV12,
			expected: "NV12",
		},
		{
			name:     "null bytes",
			format:   0x00000000,
			expected: "\x00\x00\x00\x00",
		},
		{
			name:     "mixed bytes",
			format:   0x01020304,
			expected: "\x04\x03\x02\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestFourCCRoundTrip(t *testing.T) {
	for _, code := range []string{"YUYV", "MJPG", "JPEG", "HEVC"} {
		if got := FormatFourCC(FourCC(code)); got != code {
			t.Errorf("FormatFourCC(FourCC(%q)) = %q", code, got)
		}
	}
	if FourCC("MJPG") != PixFmtMJPEG {
		t.Errorf("FourCC(MJPG) = 0x%08X, want 0x%08X", FourCC("MJPG"), PixFmtMJPEG)
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name        string
		framerate   Framerate
		expectedFPS float64
	}{
		{
			name:        "60 fps (1/60)",
			framerate:   Framerate{Numerator: 1, Denominator: 60},
			expectedFPS: 60.0,
		},
		{
			name:        "29.97 fps (1001/30000)",
			framerate:   Framerate{Numerator: 1001, Denominator: 30000},
			expectedFPS: 30000.0 / 1001.0,
		},
		{
			name:        "zero numerator returns 0",
			framerate:   Framerate{Numerator: 0, Denominator: 60},
			expectedFPS: 0.0,
		},
		{
			name:        "zero denominator",
			framerate:   Framerate{Numerator: 1, Denominator: 0},
			expectedFPS: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.framerate.FPS()
			if math.Abs(result-tt.expectedFPS) > 0.001 {
				t.Errorf("Framerate{%d, %d}.FPS() = %f, want %f",
					tt.framerate.Numerator, tt.framerate.Denominator,
					result, tt.expectedFPS)
			}
		})
	}
}

func TestCapabilityEffective(t *testing.T) {
	tests := []struct {
		name       string
		capability Capability
		wantCaps   uint32
		streaming  bool
	}{
		{
			name: "device caps reported",
			capability: Capability{
				Capabilities: CapVideoCapture | CapStreaming | CapDeviceCaps | 0x00800000,
				DeviceCaps:   CapVideoCapture | CapStreaming,
			},
			wantCaps:  CapVideoCapture | CapStreaming,
			streaming: true,
		},
		{
			name:       "legacy driver without device caps",
			capability: Capability{Capabilities: CapVideoCapture | CapReadWrite},
			wantCaps:   CapVideoCapture | CapReadWrite,
			streaming:  false,
		},
		{
			name: "metadata node",
			capability: Capability{
				Capabilities: CapVideoCapture | CapStreaming | CapDeviceCaps,
				DeviceCaps:   0x00800000 | CapStreaming,
			},
			wantCaps:  0x00800000 | CapStreaming,
			streaming: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.capability.Effective(); got != tt.wantCaps {
				t.Errorf("Effective() = 0x%08X, want 0x%08X", got, tt.wantCaps)
			}
			if got := tt.capability.Has(CapStreaming); got != tt.streaming {
				t.Errorf("Has(CapStreaming) = %v, want %v", got, tt.streaming)
			}
		})
	}
}

func TestDeviceTypeString(t *testing.T) {
	if DeviceTypeWebcam.String() != "webcam" || DeviceTypeHDMI.String() != "hdmi" || DeviceTypeUnknown.String() != "unknown" {
		t.Errorf("unexpected device type names")
	}
}
