package authz

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KareemA-Saad/Meem-Market/internal/model"
	"github.com/KareemA-Saad/Meem-Market/internal/options"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

// Store persists the role registry and per-user role assignments.
type Store interface {
	GetRoleRegistry(ctx context.Context) (model.RoleRegistry, error)
	PutRoleRegistry(ctx context.Context, registry model.RoleRegistry) error
	GetUserRole(ctx context.Context, userID int64) (string, bool, error)
	SetUserRole(ctx context.Context, userID int64, slug string) error
}

// SQLStore keeps the registry in the user_roles option and each assignment in
// the user's capabilities meta row as {"<slug>": true}.
type SQLStore struct {
	DB      *sql.DB
	Options *options.Service
}

// NewSQLStore returns a Store over db. Registry reads go through opts, so they
// share the request-scoped option cache.
func NewSQLStore(db *sql.DB, opts *options.Service) *SQLStore {
	return &SQLStore{DB: db, Options: opts}
}

// GetRoleRegistry decodes the user_roles option. A missing or unreadable
// option is an empty registry, and a role that cannot be decoded is left out.
// Only storage failures are errors.
func (s *SQLStore) GetRoleRegistry(ctx context.Context) (model.RoleRegistry, error) {
	raw, err := s.Options.Get(ctx, options.UserRoles, "{}")
	if err != nil {
		return nil, fmt.Errorf("reading role registry: %w", err)
	}
	return decodeRegistry(raw), nil
}

func decodeRegistry(raw string) model.RoleRegistry {
	registry := model.RoleRegistry{}
	if t := strings.TrimSpace(raw); t == "" || t == "[]" || t == "null" {
		return registry
	}

	var docs map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		slog.Warn("role registry is unreadable, treating it as empty", "error", err)
		return registry
	}
	for slug, doc := range docs {
		var role model.Role
		if err := json.Unmarshal(doc, &role); err != nil {
			slog.Warn("skipping unreadable role", "role", slug, "error", err)
			continue
		}
		registry[slug] = role
	}
	return registry
}

// PutRoleRegistry stores the registry and refreshes the request cache.
func (s *SQLStore) PutRoleRegistry(ctx context.Context, registry model.RoleRegistry) error {
	if err := s.Options.Set(ctx, options.UserRoles, registry, true); err != nil {
		return fmt.Errorf("writing role registry: %w", err)
	}
	return nil
}

// GetUserRole returns the assigned slug. Malformed or empty documents count
// as no assignment; with several keys the first in document order wins.
func (s *SQLStore) GetUserRole(ctx context.Context, userID int64) (string, bool, error) {
	raw, ok, err := store.GetUserMeta(ctx, s.DB, userID, model.UserMetaCapabilities)
	if err != nil {
		return "", false, fmt.Errorf("reading user role: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	slug := firstKey(raw)
	return slug, slug != "", nil
}

// SetUserRole overwrites the user's assignment.
func (s *SQLStore) SetUserRole(ctx context.Context, userID int64, slug string) error {
	doc, err := json.Marshal(map[string]bool{slug: true})
	if err != nil {
		return err
	}
	if err := store.SetUserMeta(ctx, s.DB, userID, model.UserMetaCapabilities, string(doc)); err != nil {
		return fmt.Errorf("writing user role: %w", err)
	}
	return nil
}

func firstKey(raw string) string {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	tok, err := dec.Token()
	if err != nil {
		return ""
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ""
	}
	tok, err = dec.Token()
	if err != nil {
		return ""
	}
	key, _ := tok.(string)
	return key
}
