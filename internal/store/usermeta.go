package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetUserMeta returns a user meta value. The bool is false when the row is absent.
func GetUserMeta(ctx context.Context, db *sql.DB, userID int64, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT meta_value FROM user_meta WHERE user_id = ? AND meta_key = ?`,
		userID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting user meta %q: %w", key, err)
	}
	return value, true, nil
}

// SetUserMeta upserts a user meta value: one row per (user, key).
func SetUserMeta(ctx context.Context, db *sql.DB, userID int64, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO user_meta (user_id, meta_key, meta_value) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
		userID, key, value,
	)
	if err != nil {
		return fmt.Errorf("setting user meta %q: %w", key, err)
	}
	return nil
}

// DeleteUserMeta removes one user meta row.
func DeleteUserMeta(ctx context.Context, db *sql.DB, userID int64, key string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM user_meta WHERE user_id = ? AND meta_key = ?`, userID, key,
	)
	if err != nil {
		return fmt.Errorf("deleting user meta %q: %w", key, err)
	}
	return nil
}
