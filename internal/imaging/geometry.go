package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// ContainSize fits srcW x srcH inside maxW x maxH preserving the aspect ratio.
// It never upscales; results are floored and at least 1px.
func ContainSize(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}
	var w, h int
	if maxW*srcH <= maxH*srcW {
		w, h = maxW, srcH*maxW/srcW
	} else {
		w, h = srcW*maxH/srcH, maxH
	}
	return max(w, 1), max(h, 1)
}

// FillRect returns the centered region of a srcW x srcH image whose aspect
// ratio matches targetW x targetH. A wider source keeps its full height; a
// taller or equally shaped one keeps its full width.
func FillRect(srcW, srcH, targetW, targetH int) image.Rectangle {
	if srcW*targetH > targetW*srcH {
		cropW := clamp(roundDiv(srcH*targetW, targetH), 1, srcW)
		x := roundDiv(srcW-cropW, 2)
		return image.Rect(x, 0, x+cropW, srcH)
	}
	cropH := clamp(roundDiv(srcW*targetH, targetW), 1, srcH)
	y := roundDiv(srcH-cropH, 2)
	return image.Rect(0, y, srcW, y+cropH)
}

// Resize resamples img to exactly width x height with Catmull-Rom.
func Resize(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Fill crops img to the target aspect ratio around its center, then resizes
// to exactly width x height. Small sources are upscaled.
func Fill(img image.Image, width, height int) *image.NRGBA {
	b := img.Bounds()
	r := FillRect(b.Dx(), b.Dy(), width, height).Add(b.Min)
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, r, draw.Src, nil)
	return dst
}

// Contain shrinks img to fit inside maxW x maxH. It returns the new dimensions.
func Contain(img image.Image, maxW, maxH int) (*image.NRGBA, int, int) {
	b := img.Bounds()
	w, h := ContainSize(b.Dx(), b.Dy(), maxW, maxH)
	return Resize(img, w, h), w, h
}

// roundDiv divides non-negative a by positive b, rounding half up.
func roundDiv(a, b int) int {
	return (2*a + b) / (2 * b)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
