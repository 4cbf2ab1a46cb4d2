package capture

import (
	"log/slog"
	"time"

	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/pkg/linuxav/v4l2"
)

// Driver is the device protocol a Session drives. *v4l2.Device implements
// it on Linux; tests substitute a fake.
type Driver interface {
	Capability() (v4l2.Capability, error)
	EnumFormat(index uint32) (v4l2.FormatInfo, error)
	SetFormat(pix v4l2.PixFormat) (v4l2.PixFormat, error)
	RequestBuffers(count uint32) (uint32, error)
	QueryBuffer(index uint32) (v4l2.BufferInfo, error)
	Map(offset, length uint32) ([]byte, error)
	Unmap(data []byte) error
	Enqueue(index uint32) error
	Dequeue() (v4l2.BufferInfo, error)
	StreamOn() error
	StreamOff() error
	WaitReadable(timeout time.Duration) (bool, error)
	Close() error
}

// Options configure how a device is opened.
type Options struct {
	// NonBlocking opens the node with O_NONBLOCK so a dequeue with no
	// filled buffer reports EAGAIN instead of sleeping.
	NonBlocking bool
	Logger      *slog.Logger
	Events      *events.Bus
}
