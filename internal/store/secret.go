package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// OptionJWTSecret is the options row holding the token signing key.
const OptionJWTSecret = "jwt_secret"

// GetJWTSecret returns the signing secret, generating and storing one on first use.
// The insert is INSERT OR IGNORE followed by a re-read so concurrent starts agree.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	if err := AddOption(ctx, db, OptionJWTSecret, hex.EncodeToString(buf), false); err != nil {
		return "", fmt.Errorf("storing jwt secret: %w", err)
	}

	secret, ok, err := GetOption(ctx, db, OptionJWTSecret)
	if err != nil {
		return "", fmt.Errorf("querying jwt secret: %w", err)
	}
	if !ok || secret == "" {
		return "", fmt.Errorf("querying jwt secret: %w", sql.ErrNoRows)
	}
	return secret, nil
}
