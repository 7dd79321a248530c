package model

import (
	"errors"
	"time"
)

// User represents an admin CMS account. Authorization comes from the role
// assignment stored in user meta, not from this record.
type User struct {
	ID           int64      `json:"id"`
	Login        string     `json:"login"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	RegisteredAt time.Time  `json:"registered_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// MinPasswordLength is the shortest password accepted for an account.
const MinPasswordLength = 8

// ValidatePassword checks a plaintext password against the account policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

// User meta keys.
const (
	// UserMetaCapabilities holds the role assignment as {"<slug>": true}.
	UserMetaCapabilities = "capabilities"
	UserMetaNickname     = "nickname"
	UserMetaFirstName    = "first_name"
	UserMetaLastName     = "last_name"
	UserMetaDescription  = "description"
)
