package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/AlexxIT/go2rtc/pkg/mjpeg"
	"github.com/disintegration/imaging"
	"github.com/smazurov/camview/internal/capture"
	"github.com/smazurov/camview/pkg/linuxav/v4l2"
)

// DefaultQuality is the JPEG quality used for converted frames.
const DefaultQuality = 80

// ErrUnsupportedFormat is returned for pixel formats that cannot be
// converted to an image.
var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// EncodeJPEG returns f as a JPEG. MJPEG frames are passed through with
// their header fixed up so browsers and decoders accept them; YUYV frames
// are converted. The result never aliases f.Data.
func EncodeJPEG(f capture.Frame, quality int) ([]byte, error) {
	switch f.Format.PixelFormat {
	case v4l2.PixFmtMJPEG, v4l2.PixFmtJPEG:
		if len(f.Data) < 2 || f.Data[0] != 0xFF || f.Data[1] != 0xD8 {
			return nil, fmt.Errorf("frame %d is not a JPEG image", f.Sequence)
		}
		fixed := mjpeg.FixJPEG(f.Data)
		return bytes.Clone(fixed), nil
	}

	img, err := Image(f)
	if err != nil {
		return nil, err
	}
	return encode(img, quality)
}

// Image decodes f into an image. The returned image does not alias f.Data.
func Image(f capture.Frame) (image.Image, error) {
	switch f.Format.PixelFormat {
	case v4l2.PixFmtYUYV:
		return yuyvToYCbCr(f.Data, int(f.Format.Width), int(f.Format.Height), int(f.Format.BytesPerLine))
	case v4l2.PixFmtMJPEG, v4l2.PixFmtJPEG:
		img, err := imaging.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", f.Sequence, err)
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Format.FourCC())
	}
}

// yuyvToYCbCr unpacks Y0 Cb Y1 Cr macropixels into a 4:2:2 image.
func yuyvToYCbCr(data []byte, width, height, stride int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("invalid YUYV geometry %dx%d", width, height)
	}
	if stride < width*2 {
		stride = width * 2
	}
	if len(data) < stride*(height-1)+width*2 {
		return nil, fmt.Errorf("short YUYV frame: %d bytes for %dx%d", len(data), width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := range height {
		row := data[y*stride : y*stride+width*2]
		yOff := y * img.YStride
		cOff := y * img.CStride
		for x := 0; x < width; x += 2 {
			p := row[x*2 : x*2+4]
			img.Y[yOff+x] = p[0]
			img.Y[yOff+x+1] = p[2]
			img.Cb[cOff+x/2] = p[1]
			img.Cr[cOff+x/2] = p[3]
		}
	}
	return img, nil
}

func encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
