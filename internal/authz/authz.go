// Package authz answers "may user U do C" from data: a role registry stored
// as one options document and one role slug per user.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/KareemA-Saad/Meem-Market/internal/model"
)

// ErrUnknownRole is returned by AssignRole for a slug missing from the registry.
var ErrUnknownRole = errors.New("unknown role")

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	ObserveDecision(capability string, granted bool)
}

// Engine resolves capabilities through a Store.
type Engine struct {
	store    Store
	recorder DecisionRecorder
}

// NewEngine returns an Engine reading from s. recorder may be nil.
func NewEngine(s Store, recorder DecisionRecorder) *Engine {
	return &Engine{store: s, recorder: recorder}
}

// Authorize reports whether the user's role grants capability. A missing
// assignment or a slug absent from the registry yields false, not an error;
// errors are reserved for storage failures.
func (e *Engine) Authorize(ctx context.Context, userID int64, capability string) (bool, error) {
	role, ok, err := e.userRole(ctx, userID)
	if err != nil {
		return false, err
	}
	granted := ok && role.Has(capability)
	if e.recorder != nil {
		e.recorder.ObserveDecision(capability, granted)
	}
	return granted, nil
}

// ResolveCapabilities returns every capability granted to the user. The map is
// empty, never nil, when the user has no usable role.
func (e *Engine) ResolveCapabilities(ctx context.Context, userID int64) (map[string]bool, error) {
	role, ok, err := e.userRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]bool{}, nil
	}
	return role.CapabilityMap(), nil
}

// UserRole returns the user's role slug, or "" when none is assigned.
func (e *Engine) UserRole(ctx context.Context, userID int64) (string, error) {
	slug, _, err := e.store.GetUserRole(ctx, userID)
	return slug, err
}

// AssignRole replaces the user's role. The slug must exist in the registry.
func (e *Engine) AssignRole(ctx context.Context, userID int64, slug string) error {
	registry, err := e.store.GetRoleRegistry(ctx)
	if err != nil {
		return err
	}
	if _, ok := registry[slug]; !ok {
		return fmt.Errorf("assigning role %q: %w", slug, ErrUnknownRole)
	}
	return e.store.SetUserRole(ctx, userID, slug)
}

// Roles returns the role registry.
func (e *Engine) Roles(ctx context.Context) (model.RoleRegistry, error) {
	return e.store.GetRoleRegistry(ctx)
}

// SeedRoles replaces the registry.
func (e *Engine) SeedRoles(ctx context.Context, registry model.RoleRegistry) error {
	return e.store.PutRoleRegistry(ctx, registry)
}

func (e *Engine) userRole(ctx context.Context, userID int64) (model.Role, bool, error) {
	slug, ok, err := e.store.GetUserRole(ctx, userID)
	if err != nil || !ok {
		return model.Role{}, false, err
	}
	registry, err := e.store.GetRoleRegistry(ctx)
	if err != nil {
		return model.Role{}, false, err
	}
	role, ok := registry[slug]
	return role, ok, nil
}
