//go:build linux

package v4l2

import "testing"

func TestStepwiseResolutions(t *testing.T) {
	tests := []struct {
		name     string
		stepwise v4l2FrmsizeStepwise
		expected []Resolution
	}{
		{
			name: "range up to 1080p",
			stepwise: v4l2FrmsizeStepwise{
				minWidth: 640, maxWidth: 1920, stepWidth: 1,
				minHeight: 480, maxHeight: 1080, stepHeight: 1,
			},
			expected: []Resolution{
				{640, 480}, {800, 600}, {1024, 768}, {1280, 720},
				{1280, 960}, {1280, 1024}, {1920, 1080},
			},
		},
		{
			name: "step of 16 drops sizes off the grid",
			stepwise: v4l2FrmsizeStepwise{
				minWidth: 320, maxWidth: 1280, stepWidth: 16,
				minHeight: 240, maxHeight: 720, stepHeight: 16,
			},
			expected: []Resolution{
				{320, 240}, {640, 480}, {1280, 720},
			},
		},
		{
			name: "range below every common size",
			stepwise: v4l2FrmsizeStepwise{
				minWidth: 16, maxWidth: 160, stepWidth: 1,
				minHeight: 16, maxHeight: 120, stepHeight: 1,
			},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := stepwiseResolutions(&tt.stepwise)
			if len(result) != len(tt.expected) {
				t.Fatalf("stepwiseResolutions() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("resolution[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestDeviceTypeForDriver(t *testing.T) {
	tests := []struct {
		driver   string
		expected DeviceType
	}{
		{"uvcvideo", DeviceTypeWebcam},
		{"rk_hdmirx", DeviceTypeHDMI},
		{"tc358743", DeviceTypeHDMI},
		{"vivid", DeviceTypeUnknown},
		{"", DeviceTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			if got := deviceTypeForDriver(tt.driver); got != tt.expected {
				t.Errorf("deviceTypeForDriver(%q) = %v, want %v", tt.driver, got, tt.expected)
			}
		})
	}
}

func TestCommonFrameratesDescending(t *testing.T) {
	rates := commonFramerates()
	for i := 1; i < len(rates); i++ {
		if rates[i].FPS() >= rates[i-1].FPS() {
			t.Errorf("framerate %d (%f fps) not below %f fps", i, rates[i].FPS(), rates[i-1].FPS())
		}
	}
}
