// Package render turns captured frames into something a person can look
// at: ASCII art on a terminal, a JPEG snapshot on disk, or nothing at all.
package render

import (
	"errors"
	"sync/atomic"

	"github.com/smazurov/camview/internal/capture"
)

// Discard counts frames and drops them. It is the headless renderer.
type Discard struct {
	frames atomic.Uint64
	bytes  atomic.Uint64
}

// Render implements capture.Renderer.
func (d *Discard) Render(f capture.Frame) error {
	d.frames.Add(1)
	d.bytes.Add(uint64(len(f.Data)))
	return nil
}

// Frames returns how many frames were rendered.
func (d *Discard) Frames() uint64 {
	return d.frames.Load()
}

// Bytes returns the total payload size rendered.
func (d *Discard) Bytes() uint64 {
	return d.bytes.Load()
}

// Multi fans every frame out to each renderer in order. All renderers see
// the frame even when an earlier one fails; the errors are joined.
type Multi []capture.Renderer

// Render implements capture.Renderer.
func (m Multi) Render(f capture.Frame) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
