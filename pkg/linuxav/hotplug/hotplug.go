//go:build linux

package hotplug

import (
	"context"
	"errors"
	"slices"

	"golang.org/x/sys/unix"
)

// kernelGroup is the multicast group the kernel broadcasts uevents on.
const kernelGroup = 1

// Monitor receives uevents for a fixed set of subsystems.
type Monitor struct {
	fd         int
	subsystems []string
}

// NewMonitor opens a uevent socket. Only events of the given subsystems are
// delivered; with none, every event is.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	// Bounded reads let Run notice cancellation.
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Monitor{fd: fd, subsystems: subsystems}, nil
}

// Close releases the socket.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

func (m *Monitor) wants(e *Event) bool {
	return len(m.subsystems) == 0 || slices.Contains(m.subsystems, e.Subsystem)
}

// Run delivers matching events to out until ctx is done or the socket
// fails. out is closed when Run returns. Cancellation is noticed within a
// second.
func (m *Monitor) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)

	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}

		e := ParseUEvent(buf[:n])
		if e == nil || !m.wants(e) {
			continue
		}

		select {
		case out <- *e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
