package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/smazurov/camview/internal/capture"
)

// Snapshot keeps the most recent frame as a JPEG file. The file is
// replaced atomically so readers never see a partial image.
type Snapshot struct {
	path     string
	width    int
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	last    time.Time
	written uint64
}

// SnapshotOptions configure a Snapshot renderer.
type SnapshotOptions struct {
	Width    int           // resize to this width keeping aspect; 0 keeps the frame size
	Interval time.Duration // minimum time between writes; 0 writes every frame
}

// NewSnapshot creates a renderer that writes to path.
func NewSnapshot(path string, opts SnapshotOptions) *Snapshot {
	return &Snapshot{
		path:     path,
		width:    opts.Width,
		interval: opts.Interval,
		now:      time.Now,
	}
}

// Path returns the snapshot file path.
func (s *Snapshot) Path() string {
	return s.path
}

// Render implements capture.Renderer.
func (s *Snapshot) Render(f capture.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.interval > 0 && !s.last.IsZero() && now.Sub(s.last) < s.interval {
		return nil
	}

	var (
		data []byte
		err  error
	)
	if s.width > 0 && int(f.Format.Width) != s.width {
		img, ierr := Image(f)
		if ierr != nil {
			return ierr
		}
		data, err = encode(imaging.Resize(img, s.width, 0, imaging.Lanczos), DefaultQuality)
	} else {
		data, err = EncodeJPEG(f, DefaultQuality)
	}
	if err != nil {
		return err
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	s.last = now
	s.written++
	return nil
}

// Written returns how many snapshots were written.
func (s *Snapshot) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
