//go:build !linux

package v4l2

import "errors"

// ErrUnsupported is returned on platforms without V4L2.
var ErrUnsupported = errors.New("v4l2: not supported on this platform")

// FindDevices reports no devices outside Linux.
func FindDevices() ([]DeviceInfo, error) {
	return nil, ErrUnsupported
}

// GetDevicePathByID always fails outside Linux.
func GetDevicePathByID(string) (string, error) {
	return "", ErrUnsupported
}

// GetDeviceType always reports DeviceTypeUnknown outside Linux.
func GetDeviceType(string) DeviceType {
	return DeviceTypeUnknown
}

// GetFormats always fails outside Linux.
func GetFormats(string) ([]FormatInfo, error) {
	return nil, ErrUnsupported
}

// GetResolutions always fails outside Linux.
func GetResolutions(string, uint32) ([]Resolution, error) {
	return nil, ErrUnsupported
}

// GetFramerates always fails outside Linux.
func GetFramerates(string, uint32, uint32, uint32) ([]Framerate, error) {
	return nil, ErrUnsupported
}
