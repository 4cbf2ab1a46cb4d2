//go:build !linux

package capture

import "errors"

// Open always fails: V4L2 exists only on Linux.
func Open(path string, _ Options) (*Session, error) {
	return nil, &Error{Op: "open", Device: path, Kind: ErrDeviceOpen, Err: errors.ErrUnsupported}
}
