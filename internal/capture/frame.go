package capture

import "time"

// Frame is one captured image. Data aliases the mapped driver buffer and is
// only valid until Render returns.
type Frame struct {
	Format    FormatDescriptor
	Data      []byte
	Index     uint32
	Sequence  uint32
	Timestamp time.Duration
}

// Renderer displays frames. Render is called synchronously from the capture
// loop; implementations that keep a frame must copy or encode it first.
type Renderer interface {
	Render(f Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(f Frame) error

// Render calls fn(f).
func (fn RendererFunc) Render(f Frame) error {
	return fn(f)
}
