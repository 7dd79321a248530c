// Package options is the runtime configuration provider backed by the
// options table. Reads go through a request-scoped cache when one is
// installed in the context.
package options

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

// Option names read by the core.
const (
	BlogName                   = "blogname"
	UsersCanRegister           = "users_can_register"
	DefaultRole                = "default_role"
	ThumbnailSizeW             = "thumbnail_size_w"
	ThumbnailSizeH             = "thumbnail_size_h"
	ThumbnailCrop              = "thumbnail_crop"
	MediumSizeW                = "medium_size_w"
	MediumSizeH                = "medium_size_h"
	LargeSizeW                 = "large_size_w"
	LargeSizeH                 = "large_size_h"
	UploadsUseYearMonthFolders = "uploads_use_yearmonth_folders"
	UserRoles                  = "user_roles"
)

// Defaults are the options written by SeedDefaults.
var Defaults = map[string]string{
	BlogName:                   "MeemMark",
	"blogdescription":          "Just another site",
	"admin_email":              "admin@meemmark.com",
	"date_format":              "F j, Y",
	"time_format":              "g:i a",
	"posts_per_page":           "10",
	"timezone_string":          "Asia/Riyadh",
	"start_of_week":            "1",
	"blog_public":              "1",
	UsersCanRegister:           "0",
	DefaultRole:                "subscriber",
	ThumbnailSizeW:             "150",
	ThumbnailSizeH:             "150",
	ThumbnailCrop:              "1",
	MediumSizeW:                "300",
	MediumSizeH:                "300",
	LargeSizeW:                 "1024",
	LargeSizeH:                 "1024",
	UploadsUseYearMonthFolders: "1",
}

// Service reads and writes options.
type Service struct {
	DB *sql.DB
}

// New returns a Service for db.
func New(db *sql.DB) *Service {
	return &Service{DB: db}
}

// Get returns the option value, or def when the option does not exist.
func (s *Service) Get(ctx context.Context, name, def string) (string, error) {
	value, ok, err := s.Lookup(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// Lookup returns the stored value and whether the option exists.
func (s *Service) Lookup(ctx context.Context, name string) (string, bool, error) {
	if c := cacheFrom(ctx); c != nil {
		return c.get(ctx, s.DB, name)
	}
	return store.GetOption(ctx, s.DB, name)
}

// Set stores an option. Strings are stored as is, anything else is JSON encoded.
func (s *Service) Set(ctx context.Context, name string, value any, autoload bool) error {
	raw, err := encode(value)
	if err != nil {
		return fmt.Errorf("encoding option %q: %w", name, err)
	}
	if err := store.SetOption(ctx, s.DB, name, raw, autoload); err != nil {
		return err
	}
	if c := cacheFrom(ctx); c != nil {
		c.put(name, raw)
	}
	return nil
}

// Delete removes an option.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := store.DeleteOption(ctx, s.DB, name); err != nil {
		return err
	}
	if c := cacheFrom(ctx); c != nil {
		c.forget(name)
	}
	return nil
}

// Bool reads an option with the truthy rule.
func (s *Service) Bool(ctx context.Context, name string, def bool) (bool, error) {
	value, err := s.Get(ctx, name, "")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(value) == "" {
		return def, nil
	}
	return IsTruthy(value), nil
}

// Int reads an integer option. Zero, empty and unparsable values yield def.
func (s *Service) Int(ctx context.Context, name string, def int) (int, error) {
	value, err := s.Get(ctx, name, "")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n == 0 {
		return def, nil
	}
	return n, nil
}

// SeedDefaults adds every default option that is not set yet.
func (s *Service) SeedDefaults(ctx context.Context) error {
	for name, value := range Defaults {
		if err := store.AddOption(ctx, s.DB, name, value, true); err != nil {
			return err
		}
	}
	return nil
}

// IsTruthy reports whether s is one of 1, true, yes, on (trimmed, any case).
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func encode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
