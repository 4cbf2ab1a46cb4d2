package render

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/AlexxIT/go2rtc/pkg/ascii"
	"github.com/disintegration/imaging"
	"github.com/smazurov/camview/internal/capture"
	"github.com/smazurov/camview/internal/logging"
	"golang.org/x/term"
)

const (
	defaultColumns = 80
	defaultRows    = 24
)

// TerminalOptions configure the ASCII renderer. Color, Back and Text take
// the same values as the go2rtc ascii writer (for example "256", "rgb",
// or empty for none).
type TerminalOptions struct {
	FPS   float64 // frames drawn per second; 0 draws every frame
	Color string
	Back  string
	Text  string
}

// Terminal draws frames as ASCII art. Frames arriving faster than the
// configured rate are dropped.
type Terminal struct {
	out      io.Writer
	ascii    io.Writer
	interval time.Duration
	size     func() (int, int)
	now      func() time.Time
	logger   logging.Logger

	mu    sync.Mutex
	last  time.Time
	drawn uint64
}

// NewTerminal creates a renderer writing to out. When out is a terminal
// its size is queried on every frame so resizes are followed.
func NewTerminal(out io.Writer, opts TerminalOptions) *Terminal {
	logger := logging.GetLogger("render")
	t := &Terminal{
		out:    out,
		ascii:  ascii.NewWriter(flushWriter{out}, opts.Color, opts.Back, opts.Text),
		size:   terminalSize(out, logger),
		now:    time.Now,
		logger: logger,
	}
	if opts.FPS > 0 {
		t.interval = time.Duration(float64(time.Second) / opts.FPS)
	}
	return t
}

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Render implements capture.Renderer.
func (t *Terminal) Render(f capture.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.interval > 0 && !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return nil
	}

	img, err := Image(f)
	if err != nil {
		return err
	}

	// Two pixels per character cell vertically keeps the aspect ratio
	cols, rows := t.size()
	img = imaging.Fit(img, cols, rows*2, imaging.Box)

	data, err := encode(img, DefaultQuality)
	if err != nil {
		return err
	}
	if _, err := t.ascii.Write(data); err != nil {
		t.logger.Warn("Terminal write failed", "drawn", t.drawn, "error", err)
		return err
	}

	t.last = now
	t.drawn++
	return nil
}

// Drawn returns how many frames were written to the terminal.
func (t *Terminal) Drawn() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drawn
}

func terminalSize(w io.Writer, logger logging.Logger) func() (int, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		logger.Debug("Output is not a terminal, using default size",
			"columns", defaultColumns, "rows", defaultRows)
		return func() (int, int) { return defaultColumns, defaultRows }
	}
	fd := int(f.Fd())
	return func() (int, int) {
		cols, rows, err := term.GetSize(fd)
		if err != nil || cols <= 0 || rows <= 0 {
			logger.Debug("Terminal size unavailable, using default", "error", err)
			return defaultColumns, defaultRows
		}
		return cols, rows - 1
	}
}

// flushWriter gives plain writers the http.Flusher the ascii writer
// expects after every frame.
type flushWriter struct {
	io.Writer
}

func (w flushWriter) Flush() {
	if s, ok := w.Writer.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
