package imaging

import (
	"fmt"
	"image"
	"strings"

	imgops "github.com/disintegration/imaging"
)

// Flip modes.
const (
	FlipHorizontal = "horizontal"
	FlipVertical   = "vertical"
)

// Transforms take ownership of their input: callers must not use the source
// image after a transform returns.

// Crop cuts the region at (x, y) with the given size. Out-of-range values
// are clamped to the source bounds rather than rejected.
func Crop(img image.Image, x, y, width, height int) *image.NRGBA {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	x = min(max(x, 0), srcW-1)
	y = min(max(y, 0), srcH-1)
	width = min(max(width, 1), srcW-x)
	height = min(max(height, 1), srcH-y)

	rect := image.Rect(x, y, x+width, y+height).Add(b.Min)
	return imgops.Crop(img, rect)
}

// Rotate turns the image clockwise by angle degrees. The canvas grows to fit
// the rotated content; uncovered corners are transparent where mime allows it.
func Rotate(img image.Image, angle float64, mime string) *image.NRGBA {
	return imgops.Rotate(img, -angle, background(mime))
}

// Flip mirrors the image. An empty mode means horizontal.
func Flip(img image.Image, mode string) (*image.NRGBA, error) {
	mode, err := flipMode(mode)
	if err != nil {
		return nil, err
	}

	// An NRGBA we own is mirrored in place; anything else goes through the
	// library primitive, which converts while it copies.
	if n, ok := img.(*image.NRGBA); ok {
		flipInPlace(n, mode)
		return n, nil
	}
	if mode == FlipVertical {
		return imgops.FlipV(img), nil
	}
	return imgops.FlipH(img), nil
}

func flipMode(mode string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "", FlipHorizontal:
		return FlipHorizontal, nil
	case FlipVertical:
		return FlipVertical, nil
	default:
		return "", fmt.Errorf("%w: flip mode %q", ErrInvalidParameters, mode)
	}
}

// flipInPlace swaps columns (horizontal) or rows (vertical) of img.
func flipInPlace(img *image.NRGBA, mode string) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if mode == FlipVertical {
		row := make([]uint8, w*4)
		for y := 0; y < h/2; y++ {
			top := img.Pix[y*img.Stride : y*img.Stride+w*4]
			bottom := img.Pix[(h-1-y)*img.Stride : (h-1-y)*img.Stride+w*4]
			copy(row, top)
			copy(top, bottom)
			copy(bottom, row)
		}
		return
	}

	for y := 0; y < h; y++ {
		line := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for l, r := 0, (w-1)*4; l < r; l, r = l+4, r-4 {
			for k := 0; k < 4; k++ {
				line[l+k], line[r+k] = line[r+k], line[l+k]
			}
		}
	}
}

// Scale resizes to width x height. When one side is zero or negative it is
// derived from the other, preserving the aspect ratio; at least one side is
// required. Both sides end up at least 1px, and the result must stay within
// MaxDimension and MaxPixels.
func Scale(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 && height <= 0 {
		return nil, fmt.Errorf("%w: scale requires width and/or height", ErrInvalidParameters)
	}
	if width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: scale to %dx%d", ErrInvalidParameters, width, height)
	}

	b := img.Bounds()
	srcW, srcH := max(b.Dx(), 1), max(b.Dy(), 1)

	switch {
	case height <= 0:
		height = roundDiv(srcH*width, srcW)
	case width <= 0:
		width = roundDiv(srcW*height, srcH)
	}

	width, height = max(width, 1), max(height, 1)
	if err := checkSize(width, height); err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	return Resize(img, width, height), nil
}
