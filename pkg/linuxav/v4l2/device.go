//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is an open V4L2 video capture node using memory-mapped streaming I/O.
// It is not safe for concurrent use.
type Device struct {
	path string
	fd   int
}

// OpenDevice opens a device node for reading and writing. With nonBlocking
// set, Dequeue returns EAGAIN instead of blocking when no buffer is ready.
func OpenDevice(path string, nonBlocking bool) (*Device, error) {
	fd, err := open(path, nonBlocking)
	if err != nil {
		return nil, err
	}
	return &Device{path: path, fd: fd}, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Close releases the file descriptor.
func (d *Device) Close() error {
	return close(d.fd)
}

// Capability queries the driver identity and capability flags.
func (d *Device) Capability() (Capability, error) {
	c := v4l2Capability{}
	if err := ioctl(d.fd, vidiocQuerycap, unsafe.Pointer(&c)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       cstr(c.driver[:]),
		Card:         cstr(c.card[:]),
		BusInfo:      cstr(c.busInfo[:]),
		Version:      c.version,
		Capabilities: c.capabilities,
		DeviceCaps:   c.deviceCaps,
	}, nil
}

// EnumFormat returns the index-th capture format. The driver answers EINVAL
// once index is past the last supported format.
func (d *Device) EnumFormat(index uint32) (FormatInfo, error) {
	desc := v4l2Fmtdesc{
		index: index,
		typ:   BufTypeVideoCapture,
	}
	if err := ioctl(d.fd, vidiocEnumFmt, unsafe.Pointer(&desc)); err != nil {
		return FormatInfo{}, err
	}
	return FormatInfo{
		Index:       index,
		PixelFormat: desc.pixelformat,
		FormatName:  cstr(desc.description[:]),
		Compressed:  desc.flags&FmtFlagCompressed != 0,
		Emulated:    desc.flags&FmtFlagEmulated != 0,
	}, nil
}

// Formats enumerates every capture format of the device.
func (d *Device) Formats() ([]FormatInfo, error) {
	var formats []FormatInfo
	for i := uint32(0); ; i++ {
		info, err := d.EnumFormat(i)
		if err != nil {
			if errors.Is(err, unix.EINVAL) {
				return formats, nil
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, err)
		}
		formats = append(formats, info)
	}
}

// SetFormat requests a capture format. The driver may adjust width, height
// and pixel format; the returned value is what it actually applied.
func (d *Device) SetFormat(pix PixFormat) (PixFormat, error) {
	f := v4l2Format{typ: BufTypeVideoCapture}
	f.pix = v4l2PixFormat{
		width:       pix.Width,
		height:      pix.Height,
		pixelformat: pix.PixelFormat,
		field:       pix.Field,
	}
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return pixFormat(&f.pix), nil
}

// GetFormat returns the current capture format.
func (d *Device) GetFormat() (PixFormat, error) {
	f := v4l2Format{typ: BufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return pixFormat(&f.pix), nil
}

// RequestBuffers asks the driver for count memory-mapped buffers and returns
// how many it allocated. A count of zero frees all buffers.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	req := v4l2RequestBuffers{
		count:  count,
		typ:    BufTypeVideoCapture,
		memory: MemoryMMAP,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, err
	}
	return req.count, nil
}

// QueryBuffer returns the length and mmap offset of buffer index.
func (d *Device) QueryBuffer(index uint32) (BufferInfo, error) {
	buf := v4l2Buffer{
		index:  index,
		typ:    BufTypeVideoCapture,
		memory: MemoryMMAP,
	}
	if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
		return BufferInfo{}, err
	}
	return bufferInfo(&buf), nil
}

// Map maps a driver buffer into the process, read/write and shared.
func (d *Device) Map(offset, length uint32) ([]byte, error) {
	return unix.Mmap(d.fd, int64(offset), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Unmap releases a mapping returned by Map.
func (d *Device) Unmap(data []byte) error {
	return unix.Munmap(data)
}

// Enqueue hands buffer index to the driver for filling.
func (d *Device) Enqueue(index uint32) error {
	buf := v4l2Buffer{
		index:  index,
		typ:    BufTypeVideoCapture,
		memory: MemoryMMAP,
	}
	return ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf))
}

// Dequeue takes the oldest filled buffer back from the driver.
func (d *Device) Dequeue() (BufferInfo, error) {
	buf := v4l2Buffer{
		typ:    BufTypeVideoCapture,
		memory: MemoryMMAP,
	}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return BufferInfo{}, err
	}
	return bufferInfo(&buf), nil
}

// StreamOn starts capture into the enqueued buffers.
func (d *Device) StreamOn() error {
	typ := uint32(BufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ))
}

// StreamOff stops capture. Every buffer returns to the application.
func (d *Device) StreamOff() error {
	typ := uint32(BufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ))
}

// WaitReadable blocks until a filled buffer can be dequeued or the timeout
// elapses. It reports false on timeout. EINTR is returned to the caller.
func (d *Device) WaitReadable(timeout time.Duration) (bool, error) {
	var rfds unix.FdSet
	rfds.Set(d.fd)

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(d.fd+1, &rfds, nil, nil, &tv)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func pixFormat(p *v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        p.width,
		Height:       p.height,
		PixelFormat:  p.pixelformat,
		Field:        p.field,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
		Colorspace:   p.colorspace,
	}
}

func bufferInfo(b *v4l2Buffer) BufferInfo {
	return BufferInfo{
		Index:     b.index,
		BytesUsed: b.bytesused,
		Flags:     b.flags,
		Sequence:  b.sequence,
		Offset:    b.offset,
		Length:    b.length,
		Timestamp: time.Duration(b.tvSec)*time.Second + time.Duration(b.tvUsec)*time.Microsecond,
	}
}
