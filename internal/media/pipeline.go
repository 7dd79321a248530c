package media

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/KareemA-Saad/Meem-Market/internal/imaging"
	"github.com/KareemA-Saad/Meem-Market/internal/model"
	"github.com/KareemA-Saad/Meem-Market/internal/options"
)

// SizeTarget is one configured derivative size.
type SizeTarget struct {
	Name   string
	Width  int
	Height int
	Crop   bool
}

// DerivativeRecorder observes generated derivatives.
type DerivativeRecorder interface {
	ObserveDerivative(size string)
}

// Pipeline generates resized copies of raster originals.
type Pipeline struct {
	Storage  FileStorage
	Options  *options.Service
	Recorder DerivativeRecorder
	Logger   *slog.Logger
}

// Targets reads the thumbnail, medium and large sizes from options. Only the
// thumbnail can crop.
func (p *Pipeline) Targets(ctx context.Context) ([]SizeTarget, error) {
	specs := []struct {
		name       string
		wKey, hKey string
		def        int
	}{
		{"thumbnail", options.ThumbnailSizeW, options.ThumbnailSizeH, 150},
		{"medium", options.MediumSizeW, options.MediumSizeH, 300},
		{"large", options.LargeSizeW, options.LargeSizeH, 1024},
	}

	targets := make([]SizeTarget, 0, len(specs))
	for _, s := range specs {
		w, err := p.Options.Int(ctx, s.wKey, s.def)
		if err != nil {
			return nil, err
		}
		h, err := p.Options.Int(ctx, s.hKey, s.def)
		if err != nil {
			return nil, err
		}
		targets = append(targets, SizeTarget{Name: s.name, Width: w, Height: h})
	}

	crop, err := p.Options.Bool(ctx, options.ThumbnailCrop, true)
	if err != nil {
		return nil, err
	}
	targets[0].Crop = crop
	return targets, nil
}

// GenerateSizes writes a derivative of the original at rel for every target
// that applies and returns one record per written file. Disabled targets and
// non-cropping targets the source already fits in produce no record. A target
// whose file name is taken by anything other than a file listed in owned is
// skipped. If any derivative fails, those already written are removed and
// nothing is returned.
func (p *Pipeline) GenerateSizes(ctx context.Context, rel, mime string, owned map[string]model.SizeRecord) (map[string]model.SizeRecord, error) {
	targets, err := p.Targets(ctx)
	if err != nil {
		return nil, err
	}

	src, err := imaging.Decode(p.Storage.AbsolutePath(rel), mime)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	base, ext := splitName(rel)

	type job struct {
		target SizeTarget
		name   string
		path   string
		width  int
		height int
		done   bool
	}
	var jobs []*job
	for _, t := range targets {
		if t.Width <= 0 || t.Height <= 0 {
			continue
		}
		if !t.Crop && srcW <= t.Width && srcH <= t.Height {
			continue
		}
		name := derivativeName(base, ext, t)
		dst := siblingPath(rel, name)
		if p.Storage.Exists(dst) && !ownsFile(owned, name) {
			p.logger().Warn("derivative name taken, skipping size", "original", rel, "size", t.Name, "path", dst)
			continue
		}
		jobs = append(jobs, &job{target: t, name: name, path: dst})
	}

	// Each job writes its own file; src is only read.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var out image.Image
			w, h := j.target.Width, j.target.Height
			if j.target.Crop {
				out = imaging.Fill(src, w, h)
			} else {
				out, w, h = imaging.Contain(src, w, h)
			}
			if err := imaging.Encode(out, p.Storage.AbsolutePath(j.path), mime); err != nil {
				return fmt.Errorf("generating %s size: %w", j.target.Name, err)
			}
			j.width, j.height, j.done = w, h, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var written []string
		for _, j := range jobs {
			if j.done {
				written = append(written, j.path)
			}
		}
		p.removeAll(written)
		return nil, err
	}

	sizes := make(map[string]model.SizeRecord, len(jobs))
	for _, j := range jobs {
		sizes[j.target.Name] = model.SizeRecord{File: j.name, Width: j.width, Height: j.height, MimeType: strings.ToLower(mime)}
		if p.Recorder != nil {
			p.Recorder.ObserveDerivative(j.target.Name)
		}
	}
	return sizes, nil
}

func ownsFile(sizes map[string]model.SizeRecord, name string) bool {
	for _, s := range sizes {
		if s.File == name {
			return true
		}
	}
	return false
}

// RemoveSizes deletes the derivative files listed in sizes. Failures are
// logged and skipped.
func (p *Pipeline) RemoveSizes(rel string, sizes map[string]model.SizeRecord) {
	paths := make([]string, 0, len(sizes))
	for _, s := range sizes {
		if s.File == "" {
			continue
		}
		paths = append(paths, siblingPath(rel, s.File))
	}
	p.removeAll(paths)
}

func (p *Pipeline) removeAll(paths []string) {
	for _, rel := range paths {
		if err := p.Storage.Delete(rel); err != nil {
			p.logger().Warn("removing derivative", "path", rel, "error", err)
		}
	}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
