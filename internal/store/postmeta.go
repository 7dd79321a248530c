package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetPostMeta returns all meta rows of a post as a map.
func GetPostMeta(ctx context.Context, db *sql.DB, postID int64) (map[string]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT meta_key, meta_value FROM post_meta WHERE post_id = ?`, postID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting post meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning post meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// GetPostMetaValue returns one meta value. The bool is false when the key is absent.
func GetPostMetaValue(ctx context.Context, db *sql.DB, postID int64, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT meta_value FROM post_meta WHERE post_id = ? AND meta_key = ?`, postID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting post meta %q: %w", key, err)
	}
	return value, true, nil
}

// SetPostMeta upserts one meta value.
func SetPostMeta(ctx context.Context, db *sql.DB, postID int64, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO post_meta (post_id, meta_key, meta_value) VALUES (?, ?, ?)
		 ON CONFLICT (post_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
		postID, key, value,
	)
	if err != nil {
		return fmt.Errorf("setting post meta %q: %w", key, err)
	}
	return nil
}

// SetPostMetaValues upserts several meta values in one transaction.
func SetPostMetaValues(ctx context.Context, db *sql.DB, postID int64, values map[string]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO post_meta (post_id, meta_key, meta_value) VALUES (?, ?, ?)
			 ON CONFLICT (post_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
			postID, k, v,
		)
		if err != nil {
			return fmt.Errorf("setting post meta %q: %w", k, err)
		}
	}
	return tx.Commit()
}

// DeletePostMeta removes every meta row of a post.
func DeletePostMeta(ctx context.Context, db *sql.DB, postID int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM post_meta WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("deleting post meta: %w", err)
	}
	return nil
}

// CountPostMeta returns how many meta rows a post has.
func CountPostMeta(ctx context.Context, db *sql.DB, postID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM post_meta WHERE post_id = ?`, postID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting post meta: %w", err)
	}
	return n, nil
}
