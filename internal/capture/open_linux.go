//go:build linux

package capture

import "github.com/smazurov/camview/pkg/linuxav/v4l2"

var _ Driver = (*v4l2.Device)(nil)

// Open opens a capture device node for reading and writing. Only one
// session per path may be open in the process.
func Open(path string, opts Options) (*Session, error) {
	if err := claim(path); err != nil {
		return nil, &Error{Op: "open", Device: path, Kind: ErrDeviceOpen, Err: err}
	}

	dev, err := v4l2.OpenDevice(path, opts.NonBlocking)
	if err != nil {
		unclaim(path)
		return nil, &Error{Op: "open", Device: path, Kind: ErrDeviceOpen, Err: err}
	}

	return newSession(path, dev, opts), nil
}
