package capture

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failing Session operation returns an *Error whose Kind
// is one of these, so callers can branch with errors.Is.
var (
	ErrDeviceOpen          = errors.New("cannot open device")
	ErrUnsupportedDevice   = errors.New("device cannot stream video capture")
	ErrFormatNegotiation   = errors.New("format negotiation failed")
	ErrInsufficientBuffers = errors.New("insufficient buffer memory")
	ErrUnsupportedIOMethod = errors.New("memory-mapped streaming not supported")
	ErrMap                 = errors.New("buffer mapping failed")
	ErrUnmap               = errors.New("buffer unmapping failed")
	ErrStreamOn            = errors.New("stream on failed")
	ErrStreamOff           = errors.New("stream off failed")
	ErrDequeue             = errors.New("dequeue failed")
	ErrEnqueue             = errors.New("enqueue failed")
	ErrCaptureTimeout      = errors.New("timed out waiting for frame")
	ErrWait                = errors.New("readiness wait failed")
	ErrDeviceClose         = errors.New("cannot close device")
	ErrOwnership           = errors.New("buffer ownership violated")
	ErrState               = errors.New("invalid session state")
	ErrRender              = errors.New("render failed")
)

var (
	errAlreadyOpen   = errors.New("device already open in this process")
	errAlreadyClosed = errors.New("session already closed")
	errBuffersMapped = errors.New("buffers are mapped")
)

// Error describes a failed capture operation.
type Error struct {
	Op     string // operation, e.g. "dequeue"
	Device string // device node path
	Kind   error  // one of the Err* sentinels
	Err    error  // underlying cause, often a syscall.Errno
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("capture: ")
	sb.WriteString(e.Op)
	if e.Device != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Device)
	}
	if e.Kind != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
