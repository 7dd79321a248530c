// Package imaging decodes, transforms and encodes raster images for the
// media library. Every entry point checks the MIME allow-list first.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	imgops "github.com/disintegration/imaging"
	"golang.org/x/image/webp"
)

var (
	// ErrUnsupportedFormat is returned for any MIME type outside the raster allow-list.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidParameters is returned when transform parameters cannot be applied.
	ErrInvalidParameters = errors.New("invalid transform parameters")
	// ErrCorruptImage is returned when a supported file cannot be decoded.
	ErrCorruptImage = errors.New("corrupt image data")
)

// Encoder settings. Re-encoding a lossy format is not byte-stable.
const (
	JPEGQuality    = 90
	PNGCompression = png.DefaultCompression // zlib level 6
	WEBPQuality    = 85                     // nominal; the WEBP encoder is lossless
)

// Size limits for images a transform may allocate.
const (
	MaxDimension = 16384
	MaxPixels    = 64 << 20
)

// checkSize rejects a width x height outside the allocation limits.
func checkSize(width, height int) error {
	if width < 1 || height < 1 || width > MaxDimension || height > MaxDimension || width*height > MaxPixels {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidParameters, width, height)
	}
	return nil
}

type format int

const (
	formatJPEG format = iota + 1
	formatPNG
	formatGIF
	formatWEBP
)

var formats = map[string]format{
	"image/jpeg": formatJPEG,
	"image/jpg":  formatJPEG,
	"image/png":  formatPNG,
	"image/gif":  formatGIF,
	"image/webp": formatWEBP,
}

func lookup(mime string) (format, error) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(mime))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mime)
	}
	return f, nil
}

// Supported reports whether mime is an editable raster type.
func Supported(mime string) bool {
	_, err := lookup(mime)
	return err == nil
}

// HasAlpha reports whether the format can store transparency.
func HasAlpha(mime string) bool {
	f, err := lookup(mime)
	return err == nil && f != formatJPEG
}

// Decode reads the image at path.
func Decode(path, mime string) (image.Image, error) {
	f, err := lookup(mime)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer file.Close()

	img, err := decode(file, f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w: %w", mime, ErrCorruptImage, err)
	}
	return img, nil
}

func decode(r io.Reader, f format) (image.Image, error) {
	switch f {
	case formatJPEG:
		return jpeg.Decode(r)
	case formatPNG:
		return png.Decode(r)
	case formatGIF:
		return gif.Decode(r)
	default:
		return webp.Decode(r)
	}
}

// Encode writes img to path in the given format, replacing any existing file.
// The data goes to a temporary file in the same directory first, so a failed
// encode never leaves a truncated image behind.
func Encode(img image.Image, path, mime string) error {
	f, err := lookup(mime)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating image directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".encode-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, img, f); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", mime, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting image permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing image: %w", err)
	}
	return nil
}

// EncodeTo writes img to w in the given format.
func EncodeTo(w io.Writer, img image.Image, mime string) error {
	f, err := lookup(mime)
	if err != nil {
		return err
	}
	return encode(w, img, f)
}

func encode(w io.Writer, img image.Image, f format) error {
	switch f {
	case formatJPEG:
		return imgops.Encode(w, img, imgops.JPEG, imgops.JPEGQuality(JPEGQuality))
	case formatPNG:
		return imgops.Encode(w, img, imgops.PNG, imgops.PNGCompressionLevel(PNGCompression))
	case formatGIF:
		return imgops.Encode(w, img, imgops.GIF, imgops.GIFNumColors(256))
	default:
		return nativewebp.Encode(w, img, nil)
	}
}

// NewCanvas allocates a width x height image. Formats with an alpha channel
// start fully transparent; JPEG starts opaque black.
func NewCanvas(width, height int, mime string) (*image.NRGBA, error) {
	if _, err := lookup(mime); err != nil {
		return nil, err
	}
	if err := checkSize(width, height); err != nil {
		return nil, fmt.Errorf("canvas: %w", err)
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	if !HasAlpha(mime) {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
	return canvas, nil
}

// Dimensions reads the width and height of the image at path without decoding pixels.
func Dimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening image: %w", err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("reading image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// background is the fill for pixels a transform uncovers.
func background(mime string) color.Color {
	if HasAlpha(mime) {
		return color.NRGBA{}
	}
	return color.Black
}
