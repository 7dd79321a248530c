package model

import (
	"strings"
	"time"
)

// Post types and statuses used by the media library.
const (
	PostTypeAttachment = "attachment"
	PostStatusInherit  = "inherit"
)

// Attachment meta keys.
const (
	MetaAttachedFile       = "attached_file"
	MetaAttachmentMetadata = "attachment_metadata"
	MetaImageAlt           = "image_alt"
)

// Attachment is a media library entry: one uploaded file plus its derivatives.
type Attachment struct {
	ID          int64     `json:"id"`
	AuthorID    int64     `json:"author_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Caption     string    `json:"caption"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	MimeType    string    `json:"mime_type"`
	GUID        string    `json:"guid"`
	ParentID    int64     `json:"parent_id"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// MediaType buckets the attachment's MIME type for listing filters.
func (a *Attachment) MediaType() string {
	return MediaTypeOf(a.MimeType)
}

// MediaTypeOf returns image, audio, video, or document for a MIME type.
func MediaTypeOf(mime string) string {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	default:
		return "document"
	}
}

// AttachmentMetadata is the JSON document stored under MetaAttachmentMetadata.
type AttachmentMetadata struct {
	File     string                `json:"file"`
	Filesize int64                 `json:"filesize"`
	Width    int                   `json:"width,omitempty"`
	Height   int                   `json:"height,omitempty"`
	Sizes    map[string]SizeRecord `json:"sizes"`
}

// SizeRecord describes one generated derivative. File is relative to the
// directory of the original.
type SizeRecord struct {
	File     string `json:"file"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime-type"`
}
