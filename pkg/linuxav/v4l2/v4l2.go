// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format queries and memory-mapped streaming capture.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm, 386).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
// Query supported formats, resolutions, and framerates:
//
//	formats, _ := v4l2.GetFormats("/dev/video0")
//	for _, f := range formats {
//	    resolutions, _ := v4l2.GetResolutions("/dev/video0", f.PixelFormat)
//	    for _, res := range resolutions {
//	        framerates, _ := v4l2.GetFramerates("/dev/video0", f.PixelFormat, res.Width, res.Height)
//	    }
//	}
//
// # Streaming
//
// Device wraps one open descriptor and exposes the streaming ioctls one to
// one. Buffer bookkeeping (which buffer the driver owns, how many were
// granted) is left to the caller:
//
//	dev, _ := v4l2.OpenDevice("/dev/video0", false)
//	defer dev.Close()
//	pix, _ := dev.SetFormat(v4l2.PixFormat{Width: 640, Height: 480, PixelFormat: v4l2.PixFmtYUYV})
//	n, _ := dev.RequestBuffers(4)
//	// QueryBuffer + Map each index, Enqueue, StreamOn, then
//	// WaitReadable / Dequeue / Enqueue until done.
package v4l2
