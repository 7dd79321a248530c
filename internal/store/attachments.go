package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/KareemA-Saad/Meem-Market/internal/model"
)

// Caption and description live in the generic posts excerpt/content columns.
const attachmentColumns = `id, COALESCE(author_id, 0), title, slug, excerpt, content, status, mime_type, guid, parent_id, created_at, modified_at`

func scanAttachment(row interface{ Scan(...any) error }) (*model.Attachment, error) {
	a := &model.Attachment{}
	err := row.Scan(&a.ID, &a.AuthorID, &a.Title, &a.Slug, &a.Caption, &a.Description,
		&a.Status, &a.MimeType, &a.GUID, &a.ParentID, &a.CreatedAt, &a.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAttachment inserts an attachment post and returns it.
func CreateAttachment(ctx context.Context, db *sql.DB, a *model.Attachment) (*model.Attachment, error) {
	var author any
	if a.AuthorID > 0 {
		author = a.AuthorID
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO posts (author_id, type, status, title, slug, excerpt, content, mime_type, guid, parent_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		author, model.PostTypeAttachment, model.PostStatusInherit,
		a.Title, a.Slug, a.Caption, a.Description, a.MimeType, a.GUID, a.ParentID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting attachment id: %w", err)
	}

	return GetAttachment(ctx, db, id)
}

// GetAttachment returns an attachment by ID.
func GetAttachment(ctx context.Context, db *sql.DB, id int64) (*model.Attachment, error) {
	a, err := scanAttachment(db.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM posts WHERE id = ? AND type = ?`,
		id, model.PostTypeAttachment,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting attachment: %w", err)
	}
	return a, nil
}

// AttachmentFilter narrows ListAttachments. Zero values disable a filter.
type AttachmentFilter struct {
	MediaType  string // image, audio, video or document
	Month      string // YYYY-MM
	Search     string
	AttachedTo int64
	Page       int
	PerPage    int
}

// ListAttachments returns one page of attachments, newest first, and the total match count.
func ListAttachments(ctx context.Context, db *sql.DB, f AttachmentFilter) ([]model.Attachment, int, error) {
	where := []string{"type = ?"}
	args := []any{model.PostTypeAttachment}

	switch f.MediaType {
	case "image", "audio", "video":
		where = append(where, "mime_type LIKE ?")
		args = append(args, f.MediaType+"/%")
	case "document":
		where = append(where, "mime_type NOT LIKE 'image/%' AND mime_type NOT LIKE 'audio/%' AND mime_type NOT LIKE 'video/%'")
	}
	if f.Month != "" {
		where = append(where, "strftime('%Y-%m', created_at) = ?")
		args = append(args, f.Month)
	}
	if f.Search != "" {
		where = append(where, "(title LIKE ? OR slug LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.AttachedTo > 0 {
		where = append(where, "parent_id = ?")
		args = append(args, f.AttachedTo)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE `+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting attachments: %w", err)
	}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := max(f.Page, 1)

	rows, err := db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM posts WHERE `+cond+`
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, perPage, (page-1)*perPage)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()

	var list []model.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning attachment: %w", err)
		}
		list = append(list, *a)
	}
	return list, total, rows.Err()
}

// UpdateAttachment updates the editable text fields of an attachment.
func UpdateAttachment(ctx context.Context, db *sql.DB, id int64, title, caption, description string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE posts SET title = ?, excerpt = ?, content = ?, modified_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND type = ?`,
		title, caption, description, id, model.PostTypeAttachment,
	)
	if err != nil {
		return fmt.Errorf("updating attachment: %w", err)
	}
	return nil
}

// TouchAttachment bumps the modification time.
func TouchAttachment(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE posts SET modified_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("touching attachment: %w", err)
	}
	return nil
}

// DeleteAttachment removes the attachment row. Meta rows cascade.
func DeleteAttachment(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = ? AND type = ?`, id, model.PostTypeAttachment,
	)
	if err != nil {
		return fmt.Errorf("deleting attachment: %w", err)
	}
	return nil
}

// AttachmentSlugExists reports whether an attachment already uses slug.
func AttachmentSlugExists(ctx context.Context, db *sql.DB, slug string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE type = ? AND slug = ?`,
		model.PostTypeAttachment, slug,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking attachment slug: %w", err)
	}
	return n > 0, nil
}

// PostExists reports whether any post, of any type, has the given ID.
func PostExists(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("checking post: %w", err)
	}
	return n > 0, nil
}
