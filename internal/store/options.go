package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetOption returns an option value. The bool is false when the option does not exist.
func GetOption(ctx context.Context, db *sql.DB, name string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM options WHERE name = ?`, name,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting option %q: %w", name, err)
	}
	return value, true, nil
}

// SetOption creates or replaces an option.
func SetOption(ctx context.Context, db *sql.DB, name, value string, autoload bool) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO options (name, value, autoload) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value, autoload = excluded.autoload`,
		name, value, autoloadFlag(autoload),
	)
	if err != nil {
		return fmt.Errorf("setting option %q: %w", name, err)
	}
	return nil
}

// AddOption inserts an option only if it does not exist yet.
func AddOption(ctx context.Context, db *sql.DB, name, value string, autoload bool) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO options (name, value, autoload) VALUES (?, ?, ?)`,
		name, value, autoloadFlag(autoload),
	)
	if err != nil {
		return fmt.Errorf("adding option %q: %w", name, err)
	}
	return nil
}

// DeleteOption removes an option.
func DeleteOption(ctx context.Context, db *sql.DB, name string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM options WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting option %q: %w", name, err)
	}
	return nil
}

// LoadAutoloadOptions returns every option flagged for autoload.
func LoadAutoloadOptions(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, value FROM options WHERE autoload = 'yes'`)
	if err != nil {
		return nil, fmt.Errorf("loading autoload options: %w", err)
	}
	defer rows.Close()

	opts := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning option: %w", err)
		}
		opts[name] = value
	}
	return opts, rows.Err()
}

func autoloadFlag(autoload bool) string {
	if autoload {
		return "yes"
	}
	return "no"
}
