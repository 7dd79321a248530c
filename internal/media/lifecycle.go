// Package media stores uploaded files, keeps their image derivatives in step
// with the attachment metadata, and applies edits to raster originals.
package media

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/KareemA-Saad/Meem-Market/internal/imaging"
	"github.com/KareemA-Saad/Meem-Market/internal/model"
	"github.com/KareemA-Saad/Meem-Market/internal/options"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

var (
	// ErrNotFound is returned when no attachment has the requested ID.
	ErrNotFound = errors.New("attachment not found")
	// ErrMissingSource is returned when an edit finds no original to work on.
	ErrMissingSource = errors.New("attachment source file is missing")
	// ErrUnsupportedAction is returned for an edit action other than crop, rotate, flip or scale.
	ErrUnsupportedAction = errors.New("unsupported edit action")
)

// Edit actions.
const (
	ActionCrop   = "crop"
	ActionRotate = "rotate"
	ActionFlip   = "flip"
	ActionScale  = "scale"
)

// Media is an attachment together with its file metadata.
type Media struct {
	model.Attachment
	File     string
	AltText  string
	Metadata model.AttachmentMetadata
}

// UploadInput describes one uploaded file.
type UploadInput struct {
	Filename   string
	Content    io.Reader
	MimeType   string // as reported by the client; used only when sniffing is inconclusive
	AuthorID   int64
	AttachedTo int64
}

// UpdateInput carries attachment text fields. Nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Caption     *string
	Description *string
	AltText     *string
}

// EditParams are the parameters of a single edit action.
type EditParams struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Angle  float64 `json:"angle"`
	Mode   string  `json:"mode"`
}

// Manager runs the attachment lifecycle: upload, edit and delete.
type Manager struct {
	DB       *sql.DB
	Storage  FileStorage
	Options  *options.Service
	Pipeline *Pipeline
	Logger   *slog.Logger
	Now      func() time.Time

	locks keyedMutex
}

// NewManager wires a Manager and its derivative pipeline.
func NewManager(db *sql.DB, fs FileStorage, opts *options.Service, recorder DerivativeRecorder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		DB:      db,
		Storage: fs,
		Options: opts,
		Pipeline: &Pipeline{
			Storage:  fs,
			Options:  opts,
			Recorder: recorder,
			Logger:   logger,
		},
		Logger: logger,
		Now:    time.Now,
	}
}

// Upload stores the original under a unique path, generates derivatives for
// raster images and records the attachment with its metadata.
func (m *Manager) Upload(ctx context.Context, in UploadInput) (*Media, error) {
	rawBase, ext := splitName(in.Filename)
	base := safeBase(rawBase)

	yearMonth, err := m.Options.Bool(ctx, options.UploadsUseYearMonthFolders, true)
	if err != nil {
		return nil, err
	}
	targets, err := m.Pipeline.Targets(ctx)
	if err != nil {
		return nil, err
	}
	dir := uploadDirectory(m.Now(), yearMonth)

	// Another upload may claim the same name between the check and the write.
	var fileName, rel string
	for n := 0; ; n++ {
		fileName, n = uniqueFileName(m.Storage, dir, base, ext, targets, n)
		rel = path.Join(dir, fileName)
		err = m.Storage.Put(rel, in.Content)
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	mime := m.detectMIME(rel, in.MimeType)
	meta, err := m.buildMetadata(ctx, rel, mime, nil, true)
	if errors.Is(err, imaging.ErrCorruptImage) {
		m.Logger.Warn("image is unreadable, storing it without sizes", "file", rel, "error", err)
		err = nil
	}
	if err != nil {
		m.discard(rel, nil)
		return nil, err
	}

	title := strings.TrimSpace(rawBase)
	if title == "" {
		title = fileName
	}
	slug, err := uniqueSlug(ctx, m.DB, base)
	if err != nil {
		m.discard(rel, meta.Sizes)
		return nil, err
	}

	att, err := store.CreateAttachment(ctx, m.DB, &model.Attachment{
		AuthorID: in.AuthorID,
		Title:    title,
		Slug:     slug,
		MimeType: mime,
		GUID:     m.Storage.PublicURL(rel),
		ParentID: in.AttachedTo,
	})
	if err != nil {
		m.discard(rel, meta.Sizes)
		return nil, err
	}

	doc, err := json.Marshal(meta)
	if err == nil {
		err = store.SetPostMetaValues(ctx, m.DB, att.ID, map[string]string{
			model.MetaAttachedFile:       rel,
			model.MetaAttachmentMetadata: string(doc),
			model.MetaImageAlt:           "",
		})
	}
	if err != nil {
		m.discard(rel, meta.Sizes)
		if delErr := store.DeleteAttachment(ctx, m.DB, att.ID); delErr != nil {
			m.Logger.Warn("rolling back attachment", "id", att.ID, "error", delErr)
		}
		return nil, fmt.Errorf("storing attachment metadata: %w", err)
	}

	m.Logger.Info("attachment uploaded", "id", att.ID, "file", rel, "mime", mime, "sizes", len(meta.Sizes))
	return &Media{Attachment: *att, File: rel, Metadata: meta}, nil
}

// Get returns an attachment with its metadata.
func (m *Manager) Get(ctx context.Context, id int64) (*Media, error) {
	att, err := store.GetAttachment(ctx, m.DB, id)
	if err != nil {
		return nil, err
	}
	if att == nil {
		return nil, ErrNotFound
	}
	meta, err := store.GetPostMeta(ctx, m.DB, id)
	if err != nil {
		return nil, err
	}
	return hydrate(att, meta), nil
}

// List returns one page of attachments and the total match count.
func (m *Manager) List(ctx context.Context, f store.AttachmentFilter) ([]Media, int, error) {
	atts, total, err := store.ListAttachments(ctx, m.DB, f)
	if err != nil {
		return nil, 0, err
	}
	list := make([]Media, 0, len(atts))
	for i := range atts {
		meta, err := store.GetPostMeta(ctx, m.DB, atts[i].ID)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *hydrate(&atts[i], meta))
	}
	return list, total, nil
}

// Update changes the text fields of an attachment.
func (m *Manager) Update(ctx context.Context, id int64, in UpdateInput) (*Media, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	cur, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	title, caption, description := cur.Title, cur.Caption, cur.Description
	if in.Title != nil {
		title = *in.Title
	}
	if in.Caption != nil {
		caption = *in.Caption
	}
	if in.Description != nil {
		description = *in.Description
	}
	if err := store.UpdateAttachment(ctx, m.DB, id, title, caption, description); err != nil {
		return nil, err
	}
	if in.AltText != nil {
		if err := store.SetPostMeta(ctx, m.DB, id, model.MetaImageAlt, *in.AltText); err != nil {
			return nil, err
		}
	}
	return m.Get(ctx, id)
}

// Edit applies one transform to the original in place and rebuilds its derivatives.
func (m *Manager) Edit(ctx context.Context, id int64, action string, params EditParams) (*Media, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	cur, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.File == "" || !m.Storage.Exists(cur.File) {
		return nil, ErrMissingSource
	}

	mime := cur.MimeType
	if mime == "" {
		mime = m.detectMIME(cur.File, "")
	}
	if !strings.HasPrefix(mime, "image/") || !imaging.Supported(mime) {
		return nil, fmt.Errorf("editing %s: %w", mime, imaging.ErrUnsupportedFormat)
	}

	transform, err := transformFor(action, params, mime)
	if err != nil {
		return nil, err
	}

	abs := m.Storage.AbsolutePath(cur.File)
	src, err := imaging.Decode(abs, mime)
	if err != nil {
		return nil, err
	}
	out, err := transform(src)
	if err != nil {
		return nil, err
	}
	if err := imaging.Encode(out, abs, mime); err != nil {
		return nil, err
	}

	// Stale derivatives go first: the new source resolution may not produce the same set.
	m.Pipeline.RemoveSizes(cur.File, cur.Metadata.Sizes)

	meta, genErr := m.buildMetadata(ctx, cur.File, mime, cur.Metadata.Sizes, true)
	if genErr != nil {
		// Keep the record truthful: no sizes listed, since none exist now.
		meta, err = m.buildMetadata(ctx, cur.File, mime, nil, false)
		if err != nil {
			return nil, err
		}
	}
	doc, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding attachment metadata: %w", err)
	}
	if err := store.SetPostMeta(ctx, m.DB, id, model.MetaAttachmentMetadata, string(doc)); err != nil {
		return nil, err
	}
	if err := store.TouchAttachment(ctx, m.DB, id); err != nil {
		return nil, err
	}
	if genErr != nil {
		return nil, genErr
	}

	m.Logger.Info("attachment edited", "id", id, "action", action, "width", meta.Width, "height", meta.Height)
	return m.Get(ctx, id)
}

// Delete removes the original, its derivatives, every meta row and the
// attachment itself. File removal is best effort.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	cur, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	if cur.File != "" {
		if err := m.Storage.Delete(cur.File); err != nil {
			m.Logger.Warn("removing original", "id", id, "path", cur.File, "error", err)
		}
		m.Pipeline.RemoveSizes(cur.File, cur.Metadata.Sizes)
	}

	if err := store.DeletePostMeta(ctx, m.DB, id); err != nil {
		return err
	}
	if err := store.DeleteAttachment(ctx, m.DB, id); err != nil {
		return err
	}

	m.Logger.Info("attachment deleted", "id", id)
	return nil
}

// BulkDelete deletes every listed attachment that exists and returns how many were removed.
func (m *Manager) BulkDelete(ctx context.Context, ids []int64) (int, error) {
	n := 0
	for _, id := range ids {
		err := m.Delete(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func transformFor(action string, p EditParams, mime string) (func(image.Image) (image.Image, error), error) {
	switch action {
	case ActionCrop:
		return func(img image.Image) (image.Image, error) {
			return imaging.Crop(img, p.X, p.Y, p.Width, p.Height), nil
		}, nil
	case ActionRotate:
		return func(img image.Image) (image.Image, error) {
			return imaging.Rotate(img, p.Angle, mime), nil
		}, nil
	case ActionFlip:
		return func(img image.Image) (image.Image, error) {
			return imaging.Flip(img, p.Mode)
		}, nil
	case ActionScale:
		return func(img image.Image) (image.Image, error) {
			return imaging.Scale(img, p.Width, p.Height)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
}

// buildMetadata describes the original at rel. Raster images get their
// dimensions and, when withSizes is set, freshly generated derivatives.
// owned lists the attachment's previous derivatives.
func (m *Manager) buildMetadata(ctx context.Context, rel, mime string, owned map[string]model.SizeRecord, withSizes bool) (model.AttachmentMetadata, error) {
	meta := model.AttachmentMetadata{File: rel, Sizes: map[string]model.SizeRecord{}}
	if info, err := os.Stat(m.Storage.AbsolutePath(rel)); err == nil {
		meta.Filesize = info.Size()
	}

	if !imaging.Supported(mime) {
		return meta, nil
	}
	w, h, err := imaging.Dimensions(m.Storage.AbsolutePath(rel))
	if err != nil {
		m.Logger.Warn("reading image dimensions", "path", rel, "error", err)
		return meta, nil
	}
	meta.Width, meta.Height = w, h
	if !withSizes {
		return meta, nil
	}

	sizes, err := m.Pipeline.GenerateSizes(ctx, rel, mime, owned)
	if err != nil {
		return meta, err
	}
	meta.Sizes = sizes
	return meta, nil
}

// detectMIME sniffs the stored file. The client's claim is used only when
// sniffing finds nothing more specific than a generic type.
func (m *Manager) detectMIME(rel, claimed string) string {
	detected := "application/octet-stream"
	if mt, err := mimetype.DetectFile(m.Storage.AbsolutePath(rel)); err == nil {
		detected, _, _ = strings.Cut(mt.String(), ";")
	}
	claimed, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(claimed)), ";")
	if (detected == "application/octet-stream" || detected == "text/plain") && claimed != "" {
		return claimed
	}
	return detected
}

// discard removes a half-finished upload.
func (m *Manager) discard(rel string, sizes map[string]model.SizeRecord) {
	if err := m.Storage.Delete(rel); err != nil {
		m.Logger.Warn("removing failed upload", "path", rel, "error", err)
	}
	m.Pipeline.RemoveSizes(rel, sizes)
}

func hydrate(att *model.Attachment, meta map[string]string) *Media {
	md := &Media{
		Attachment: *att,
		File:       meta[model.MetaAttachedFile],
		AltText:    meta[model.MetaImageAlt],
	}
	if raw := meta[model.MetaAttachmentMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &md.Metadata); err != nil {
			slog.Warn("decoding attachment metadata", "id", att.ID, "error", err)
		}
	}
	if md.Metadata.Sizes == nil {
		md.Metadata.Sizes = map[string]model.SizeRecord{}
	}
	return md
}
