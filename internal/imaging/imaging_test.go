package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	imgops "github.com/disintegration/imaging"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func noise(w, h int, seed int64) *image.NRGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r.Read(img.Pix)
	return img
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSupported(t *testing.T) {
	for _, m := range []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp", "IMAGE/PNG"} {
		if !Supported(m) {
			t.Errorf("expected %s to be supported", m)
		}
	}
	for _, m := range []string{"image/svg+xml", "image/bmp", "application/pdf", ""} {
		if Supported(m) {
			t.Errorf("expected %s to be rejected", m)
		}
	}
}

func TestUnsupportedFormatAtEveryBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.svg")
	os.WriteFile(path, []byte("<svg/>"), 0o644)

	if _, err := Decode(path, "image/svg+xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Decode: expected ErrUnsupportedFormat, got %v", err)
	}
	if err := Encode(solid(1, 1, color.Black), path, "image/svg+xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Encode: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := NewCanvas(1, 1, "image/svg+xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("NewCanvas: expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNewCanvasTransparency(t *testing.T) {
	for _, mime := range []string{"image/png", "image/gif", "image/webp"} {
		c, err := NewCanvas(4, 3, mime)
		if err != nil {
			t.Fatalf("NewCanvas(%s): %v", mime, err)
		}
		if a := c.NRGBAAt(2, 1).A; a != 0 {
			t.Errorf("%s: expected transparent canvas, got alpha %d", mime, a)
		}
	}

	c, _ := NewCanvas(4, 3, "image/jpeg")
	if got := c.NRGBAAt(2, 1); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("jpeg: expected opaque black canvas, got %v", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := noise(30, 20, 1)
	for i := range src.Pix {
		if i%4 == 3 {
			src.Pix[i] = 255
		}
	}

	for _, tc := range []struct{ name, mime string }{
		{"a.jpg", "image/jpeg"},
		{"a.png", "image/png"},
		{"a.gif", "image/gif"},
		{"a.webp", "image/webp"},
	} {
		path := filepath.Join(dir, "nested", tc.name)
		if err := Encode(src, path, tc.mime); err != nil {
			t.Fatalf("Encode %s: %v", tc.mime, err)
		}
		img, err := Decode(path, tc.mime)
		if err != nil {
			t.Fatalf("Decode %s: %v", tc.mime, err)
		}
		if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
			t.Errorf("%s: expected 30x20, got %v", tc.mime, img.Bounds())
		}
		w, h, err := Dimensions(path)
		if err != nil || w != 30 || h != 20 {
			t.Errorf("%s: Dimensions = %dx%d, %v", tc.mime, w, h, err)
		}
	}

	// Only the final files remain; temp files are cleaned up.
	entries, _ := os.ReadDir(filepath.Join(dir, "nested"))
	if len(entries) != 4 {
		t.Errorf("expected 4 files, got %d", len(entries))
	}
}

func TestPNGKeepsTransparency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.png")
	c, _ := NewCanvas(5, 5, "image/png")
	if err := Encode(c, path, "image/png"); err != nil {
		t.Fatal(err)
	}
	img, _ := Decode(path, "image/png")
	if _, _, _, a := img.At(2, 2).RGBA(); a != 0 {
		t.Errorf("expected transparent pixel after round trip, got alpha %d", a)
	}
}

func TestCropClamps(t *testing.T) {
	src := solid(800, 600, color.RGBA{0, 255, 0, 255})

	out := Crop(src, 0, 0, 5000, 5000)
	if out.Bounds().Dx() != 800 || out.Bounds().Dy() != 600 {
		t.Errorf("expected 800x600, got %v", out.Bounds())
	}

	out = Crop(solid(800, 600, color.White), 700, 550, 300, 300)
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 50 {
		t.Errorf("expected 100x50, got %v", out.Bounds())
	}

	out = Crop(solid(800, 600, color.White), -20, -5, 0, 0)
	if out.Bounds().Dx() != 1 || out.Bounds().Dy() != 1 {
		t.Errorf("expected 1x1, got %v", out.Bounds())
	}

	out = Crop(solid(800, 600, color.White), 9000, 9000, 10, 10)
	if out.Bounds().Dx() != 1 || out.Bounds().Dy() != 1 {
		t.Errorf("expected 1x1 at the far corner, got %v", out.Bounds())
	}
}

func TestCropWidthProperty(t *testing.T) {
	src := noise(50, 40, 2)
	for x := 0; x < 50; x += 7 {
		for _, w := range []int{1, 10, 49, 80} {
			out := Crop(src, x, 0, w, 40)
			if got, want := out.Bounds().Dx(), min(w, 50-x); got != want {
				t.Errorf("Crop(x=%d, w=%d): width %d, want %d", x, w, got, want)
			}
			if out.NRGBAAt(0, 0) != src.NRGBAAt(x, 0) {
				t.Errorf("Crop(x=%d): first pixel does not match source", x)
			}
		}
	}
}

func TestRotate(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	src.Set(0, 0, color.NRGBA{255, 0, 0, 255})

	out := Rotate(src, 90, "image/png")
	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 40 {
		t.Fatalf("expected 20x40, got %v", out.Bounds())
	}
	// Clockwise: the top-left pixel moves to the top-right corner.
	if got := out.NRGBAAt(19, 0); got.R != 255 || got.A != 255 {
		t.Errorf("expected red at top-right, got %v", got)
	}

	out = Rotate(solid(40, 40, color.White), 45, "image/png")
	if out.Bounds().Dx() <= 40 {
		t.Errorf("expected canvas to grow, got %v", out.Bounds())
	}
	if a := out.NRGBAAt(0, 0).A; a != 0 {
		t.Errorf("expected transparent corner for png, got alpha %d", a)
	}

	out = Rotate(solid(40, 40, color.White), 45, "image/jpeg")
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("expected black corner for jpeg, got %v", got)
	}
}

func TestFlipEquivalence(t *testing.T) {
	for _, mode := range []string{FlipHorizontal, FlipVertical} {
		for seed := int64(0); seed < 5; seed++ {
			src := noise(17+int(seed), 9+int(seed)*3, seed)

			var native *image.NRGBA
			if mode == FlipVertical {
				native = imgops.FlipV(src)
			} else {
				native = imgops.FlipH(src)
			}

			manual := imgops.Clone(src)
			flipInPlace(manual, mode)

			if !bytes.Equal(native.Pix, manual.Pix) {
				t.Fatalf("%s seed %d: native and manual flips differ", mode, seed)
			}

			viaFlip, err := Flip(imgops.Clone(src), mode)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(native.Pix, viaFlip.Pix) {
				t.Fatalf("%s seed %d: Flip differs from native primitive", mode, seed)
			}
		}
	}
}

func TestFlipNonNRGBASource(t *testing.T) {
	src := solid(3, 1, color.White)
	src.Set(0, 0, color.RGBA{255, 0, 0, 255})

	out, err := Flip(src, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := out.NRGBAAt(2, 0); got.R != 255 || got.G != 0 {
		t.Errorf("expected red pixel moved to the right edge, got %v", got)
	}

	if _, err := Flip(src, "diagonal"); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestScale(t *testing.T) {
	src := solid(2000, 1500, color.White)

	out, err := Scale(src, 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 75 {
		t.Errorf("expected 100x75, got %v", out.Bounds())
	}

	out, _ = Scale(solid(300, 200, color.White), 0, 50)
	if out.Bounds().Dx() != 75 || out.Bounds().Dy() != 50 {
		t.Errorf("expected 75x50, got %v", out.Bounds())
	}

	out, _ = Scale(solid(1000, 10, color.White), 10, 0)
	if out.Bounds().Dy() != 1 {
		t.Errorf("expected height floored to 1, got %v", out.Bounds())
	}

	out, _ = Scale(solid(10, 10, color.White), 40, 20)
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 20 {
		t.Errorf("expected explicit 40x20, got %v", out.Bounds())
	}

	if _, err := Scale(src, 0, 0); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestScaleRejectsOversizedOutput(t *testing.T) {
	src := solid(800, 600, color.White)
	cases := []struct {
		name string
		w, h int
	}{
		{"width beyond int32", 4_000_000_000, 0},
		{"height beyond limit", 0, MaxDimension + 1},
		{"pixel budget", MaxDimension, MaxDimension},
	}
	for _, tc := range cases {
		if _, err := Scale(src, tc.w, tc.h); !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("%s: expected ErrInvalidParameters, got %v", tc.name, err)
		}
	}

	// The derived side is checked too.
	if _, err := Scale(solid(10, 1000, color.White), MaxDimension, 0); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("derived height: expected ErrInvalidParameters, got %v", err)
	}

	if _, err := NewCanvas(60000, 60000, "image/png"); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("NewCanvas: expected ErrInvalidParameters, got %v", err)
	}
}

func TestScaleAspectProperty(t *testing.T) {
	for _, size := range [][2]int{{640, 480}, {333, 777}, {1001, 999}, {17, 3}} {
		for _, w := range []int{1, 50, 123, 900} {
			out, err := Scale(solid(size[0], size[1], color.White), w, 0)
			if err != nil {
				t.Fatal(err)
			}
			want := float64(size[1]) * float64(w) / float64(size[0])
			got := float64(out.Bounds().Dy())
			if want >= 1 && (got < want-1 || got > want+1) {
				t.Errorf("%v scaled to width %d: height %v, want ~%v", size, w, got, want)
			}
		}
	}
}

func TestContainSize(t *testing.T) {
	tests := []struct {
		srcW, srcH, maxW, maxH int
		wantW, wantH           int
	}{
		{2000, 1500, 300, 300, 300, 225},
		{2000, 1500, 1024, 1024, 1024, 768},
		{100, 500, 300, 300, 60, 300},
		{200, 100, 300, 300, 200, 100},
		{3000, 1, 300, 300, 300, 1},
		{1000, 999, 300, 300, 300, 299},
	}
	for _, tt := range tests {
		w, h := ContainSize(tt.srcW, tt.srcH, tt.maxW, tt.maxH)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("ContainSize(%d,%d,%d,%d) = %dx%d, want %dx%d",
				tt.srcW, tt.srcH, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestFillRect(t *testing.T) {
	tests := []struct {
		srcW, srcH, tW, tH int
		want               image.Rectangle
	}{
		{2000, 1500, 150, 150, image.Rect(250, 0, 1750, 1500)},
		{1500, 2000, 150, 150, image.Rect(0, 250, 1500, 1750)},
		{400, 400, 200, 200, image.Rect(0, 0, 400, 400)},
		{1000, 500, 100, 100, image.Rect(250, 0, 750, 500)},
	}
	for _, tt := range tests {
		if got := FillRect(tt.srcW, tt.srcH, tt.tW, tt.tH); got != tt.want {
			t.Errorf("FillRect(%d,%d,%d,%d) = %v, want %v", tt.srcW, tt.srcH, tt.tW, tt.tH, got, tt.want)
		}
	}
}

func TestFillProducesExactSize(t *testing.T) {
	out := Fill(solid(2000, 1500, color.White), 150, 150)
	if out.Bounds().Dx() != 150 || out.Bounds().Dy() != 150 {
		t.Errorf("expected 150x150, got %v", out.Bounds())
	}

	out = Fill(solid(40, 30, color.White), 150, 150)
	if out.Bounds().Dx() != 150 || out.Bounds().Dy() != 150 {
		t.Errorf("expected small source upscaled to 150x150, got %v", out.Bounds())
	}
}

func TestDecodeJPEGFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.jpg")
	writeJPEG(t, path, 64, 48)

	img, err := Decode(path, "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 < 200 || g>>8 > 50 || b>>8 > 50 {
		t.Errorf("expected red pixel, got %d,%d,%d", r>>8, g>>8, b>>8)
	}

	if _, err := Decode(filepath.Join(t.TempDir(), "missing.jpg"), "image/jpeg"); err == nil {
		t.Error("expected error for missing file")
	}
}
