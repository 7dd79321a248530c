package api

import (
	"errors"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/KareemA-Saad/Meem-Market/internal/media"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// allowedExtensions lists the upload file extensions accepted by the media library.
var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "svg": true,
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true, "ppt": true, "pptx": true,
	"mp4": true, "mp3": true, "wav": true, "ogg": true, "zip": true,
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// MediaHandler handles media library endpoints.
type MediaHandler struct {
	Media          *media.Manager
	MaxUploadBytes int64
}

type dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type sizeResponse struct {
	File     string `json:"file"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}

type fileInfo struct {
	RelativePath *string `json:"relative_path"`
	Filename     *string `json:"filename"`
	Extension    *string `json:"extension"`
	Filesize     *int64  `json:"filesize"`
}

type attachedTo struct {
	ID int64 `json:"id"`
}

type mediaResponse struct {
	ID           int64                   `json:"id"`
	Title        string                  `json:"title"`
	Slug         string                  `json:"slug"`
	MimeType     string                  `json:"mime_type"`
	Type         string                  `json:"type"`
	Status       string                  `json:"status"`
	URL          *string                 `json:"url"`
	Dimensions   *dimensions             `json:"dimensions"`
	Sizes        map[string]sizeResponse `json:"sizes"`
	FileInfo     fileInfo                `json:"file_info"`
	AttachedTo   *attachedTo             `json:"attached_to"`
	Caption      string                  `json:"caption"`
	AltText      string                  `json:"alt_text"`
	Description  string                  `json:"description"`
	PostDate     time.Time               `json:"post_date"`
	PostModified time.Time               `json:"post_modified"`
}

type pageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	LastPage int `json:"last_page"`
}

type mediaListResponse struct {
	Data []mediaResponse `json:"data"`
	Meta pageMeta        `json:"meta"`
}

type updateMediaRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Caption     *string `json:"caption"`
	Description *string `json:"description"`
	AltText     *string `json:"alt_text" validate:"omitempty,max=255"`
}

type editParams struct {
	X      *float64 `json:"x" validate:"omitempty,min=0,max=16384"`
	Y      *float64 `json:"y" validate:"omitempty,min=0,max=16384"`
	Width  *float64 `json:"width" validate:"omitempty,min=1,max=16384"`
	Height *float64 `json:"height" validate:"omitempty,min=1,max=16384"`
	Angle  *float64 `json:"angle"`
	Mode   *string  `json:"mode" validate:"omitempty,oneof=horizontal vertical"`
}

type editMediaRequest struct {
	Action string      `json:"action" validate:"required"`
	Params *editParams `json:"params" validate:"required"`
}

type bulkMediaRequest struct {
	Action   string  `json:"action" validate:"required,eq=delete"`
	MediaIDs []int64 `json:"media_ids" validate:"required,min=1,dive,gt=0"`
}

func (h *MediaHandler) resource(m *media.Media) mediaResponse {
	res := mediaResponse{
		ID:           m.ID,
		Title:        m.Title,
		Slug:         m.Slug,
		MimeType:     m.MimeType,
		Type:         m.MediaType(),
		Status:       m.Status,
		Sizes:        make(map[string]sizeResponse, len(m.Metadata.Sizes)),
		Caption:      m.Caption,
		AltText:      m.AltText,
		Description:  m.Description,
		PostDate:     m.CreatedAt,
		PostModified: m.ModifiedAt,
	}

	rel := m.File
	if rel == "" {
		rel = m.Metadata.File
	}
	if rel != "" {
		url := h.Media.Storage.PublicURL(rel)
		name := path.Base(rel)
		ext := strings.TrimPrefix(path.Ext(rel), ".")
		res.URL = &url
		res.FileInfo.RelativePath = &rel
		res.FileInfo.Filename = &name
		res.FileInfo.Extension = &ext
	}
	if m.Metadata.Filesize > 0 {
		size := m.Metadata.Filesize
		res.FileInfo.Filesize = &size
	}
	if m.Metadata.Width > 0 && m.Metadata.Height > 0 {
		res.Dimensions = &dimensions{Width: m.Metadata.Width, Height: m.Metadata.Height}
	}
	for name, s := range m.Metadata.Sizes {
		res.Sizes[name] = sizeResponse{
			File:     s.File,
			Width:    s.Width,
			Height:   s.Height,
			MimeType: s.MimeType,
			URL:      h.Media.Storage.PublicURL(path.Join(path.Dir(rel), s.File)),
		}
	}
	if m.ParentID > 0 {
		res.AttachedTo = &attachedTo{ID: m.ParentID}
	}
	return res
}

// List handles GET /api/v1/admin/media.
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AttachmentFilter{
		MediaType: q.Get("type"),
		Month:     q.Get("month"),
		Search:    strings.TrimSpace(q.Get("search")),
		Page:      1,
		PerPage:   defaultPerPage,
	}

	switch f.MediaType {
	case "", "image", "audio", "video", "document":
	default:
		jsonError(w, http.StatusUnprocessableEntity, "type must be one of: image audio video document")
		return
	}
	if f.Month != "" && !monthPattern.MatchString(f.Month) {
		jsonError(w, http.StatusUnprocessableEntity, "month must be formatted YYYY-MM")
		return
	}

	for _, p := range []struct {
		name string
		dst  *int
		max  int
	}{
		{"page", &f.Page, 0},
		{"per_page", &f.PerPage, maxPerPage},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || (p.max > 0 && n > p.max) {
			jsonError(w, http.StatusUnprocessableEntity, "invalid "+p.name)
			return
		}
		*p.dst = n
	}
	if raw := q.Get("attached_to"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			jsonError(w, http.StatusUnprocessableEntity, "invalid attached_to")
			return
		}
		f.AttachedTo = id
	}

	items, total, err := h.Media.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := mediaListResponse{
		Data: make([]mediaResponse, 0, len(items)),
		Meta: pageMeta{
			Total:    total,
			Page:     f.Page,
			PerPage:  f.PerPage,
			LastPage: max(1, int(math.Ceil(float64(total)/float64(f.PerPage)))),
		},
	}
	for i := range items {
		resp.Data = append(resp.Data, h.resource(&items[i]))
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Upload handles POST /api/v1/admin/media with one or more files[] parts.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := GetClaims(ctx)

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files[]"]
	if len(files) == 0 {
		files = r.MultipartForm.File["files"]
	}
	if len(files) == 0 {
		jsonError(w, http.StatusUnprocessableEntity, "files is required")
		return
	}
	for _, fh := range files {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(fh.Filename), "."))
		if !allowedExtensions[ext] {
			jsonError(w, http.StatusUnprocessableEntity, "file type not allowed: "+fh.Filename)
			return
		}
	}

	var parent int64
	if raw := r.FormValue("attached_to"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			jsonError(w, http.StatusUnprocessableEntity, "invalid attached_to")
			return
		}
		exists, err := store.PostExists(ctx, h.Media.DB, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !exists {
			jsonError(w, http.StatusUnprocessableEntity, "attached_to does not exist")
			return
		}
		parent = id
	}

	created := make([]mediaResponse, 0, len(files))
	for _, fh := range files {
		m, err := h.uploadOne(r, fh, claims.UserID, parent)
		if err != nil {
			writeError(w, r, err)
			return
		}
		created = append(created, h.resource(m))
	}

	slog.Info("media uploaded", "user", claims.Login, "count", len(created))
	jsonResponse(w, http.StatusCreated, map[string]any{"data": created})
}

func (h *MediaHandler) uploadOne(r *http.Request, fh *multipart.FileHeader, authorID, parent int64) (*media.Media, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return h.Media.Upload(r.Context(), media.UploadInput{
		Filename:   fh.Filename,
		Content:    f,
		MimeType:   fh.Header.Get("Content-Type"),
		AuthorID:   authorID,
		AttachedTo: parent,
	})
}

// Get handles GET /api/v1/admin/media/{id}.
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "media")
	if !ok {
		return
	}
	m, err := h.Media.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, h.resource(m))
}

// Update handles PUT /api/v1/admin/media/{id}.
func (h *MediaHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "media")
	if !ok {
		return
	}

	var req updateMediaRequest
	if !decodeValid(w, r, &req) {
		return
	}

	m, err := h.Media.Update(r.Context(), id, media.UpdateInput{
		Title:       req.Title,
		Caption:     req.Caption,
		Description: req.Description,
		AltText:     req.AltText,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, h.resource(m))
}

// Edit handles POST /api/v1/admin/media/{id}/edit.
func (h *MediaHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "media")
	if !ok {
		return
	}

	var req editMediaRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if msg := missingEditParams(req.Action, req.Params); msg != "" {
		jsonError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	m, err := h.Media.Edit(r.Context(), id, req.Action, req.Params.toEdit())
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("media edited", "user", claims.Login, "id", id, "action", req.Action)
	jsonResponse(w, http.StatusOK, h.resource(m))
}

// missingEditParams reports the parameters an action requires but did not get.
func missingEditParams(action string, p *editParams) string {
	var missing []string
	switch action {
	case media.ActionCrop:
		if p.X == nil {
			missing = append(missing, "x")
		}
		if p.Y == nil {
			missing = append(missing, "y")
		}
		if p.Width == nil {
			missing = append(missing, "width")
		}
		if p.Height == nil {
			missing = append(missing, "height")
		}
	case media.ActionRotate:
		if p.Angle == nil {
			missing = append(missing, "angle")
		}
	case media.ActionFlip:
		if p.Mode == nil {
			missing = append(missing, "mode")
		}
	case media.ActionScale:
		if p.Width == nil && p.Height == nil {
			return "scale requires params.width and/or params.height"
		}
	}
	if len(missing) == 0 {
		return ""
	}
	return "params." + strings.Join(missing, ", params.") + " required for " + action
}

func (p *editParams) toEdit() media.EditParams {
	var e media.EditParams
	if p.X != nil {
		e.X = int(*p.X)
	}
	if p.Y != nil {
		e.Y = int(*p.Y)
	}
	if p.Width != nil {
		e.Width = int(*p.Width)
	}
	if p.Height != nil {
		e.Height = int(*p.Height)
	}
	if p.Angle != nil {
		e.Angle = *p.Angle
	}
	if p.Mode != nil {
		e.Mode = *p.Mode
	}
	return e
}

// Delete handles DELETE /api/v1/admin/media/{id}.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "media")
	if !ok {
		return
	}
	if err := h.Media.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("media deleted", "user", claims.Login, "id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "media deleted"})
}

// Bulk handles POST /api/v1/admin/media/bulk.
func (h *MediaHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkMediaRequest
	if !decodeValid(w, r, &req) {
		return
	}

	n, err := h.Media.BulkDelete(r.Context(), req.MediaIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("media bulk deleted", "user", claims.Login, "requested", len(req.MediaIDs), "deleted", n)
	jsonResponse(w, http.StatusOK, map[string]int{"affected": n})
}
