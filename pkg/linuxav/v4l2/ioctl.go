//go:build linux

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl issues a request and retries it while the call is interrupted by a signal.
func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

func open(path string, nonBlocking bool) (int, error) {
	flags := unix.O_RDWR | unix.O_CLOEXEC
	if nonBlocking {
		flags |= unix.O_NONBLOCK
	}
	return unix.Open(path, flags, 0)
}

func close(fd int) error {
	return unix.Close(fd)
}
