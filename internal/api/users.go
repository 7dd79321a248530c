package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/KareemA-Saad/Meem-Market/internal/authz"
	"github.com/KareemA-Saad/Meem-Market/internal/model"
	"github.com/KareemA-Saad/Meem-Market/internal/options"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

// UsersHandler handles user management endpoints.
type UsersHandler struct {
	DB      *sql.DB
	Authz   *authz.Engine
	Options *options.Service
}

type createUserRequest struct {
	Login       string `json:"login" validate:"required,min=3,max=60"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"max=250"`
	Password    string `json:"password" validate:"required"`
	Role        string `json:"role"`
}

type updateUserRequest struct {
	Role string `json:"role" validate:"required"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// ensureRole fails with ErrUnknownRole when slug is not in the registry.
func ensureRole(ctx context.Context, engine *authz.Engine, slug string) error {
	roles, err := engine.Roles(ctx)
	if err != nil {
		return err
	}
	if _, ok := roles[slug]; !ok {
		return fmt.Errorf("role %q: %w", slug, authz.ErrUnknownRole)
	}
	return nil
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		jsonError(w, http.StatusBadRequest, "invalid "+what+" id")
		return 0, false
	}
	return id, true
}

// List handles GET /api/v1/admin/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	list := make([]userResponse, 0, len(users))
	for i := range users {
		view, err := describeUser(r.Context(), h.Authz, &users[i])
		if err != nil {
			writeError(w, r, err)
			return
		}
		list = append(list, view)
	}
	jsonResponse(w, http.StatusOK, list)
}

// Create handles POST /api/v1/admin/users. An empty role falls back to the
// default_role option.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createUserRequest
	if !decodeValid(w, r, &req) {
		return
	}

	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	role := req.Role
	if role == "" {
		var err error
		if role, err = h.Options.Get(ctx, options.DefaultRole, model.RoleSubscriber); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := ensureRole(ctx, h.Authz, role); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := store.CreateUser(ctx, h.DB, req.Login, req.Email, req.DisplayName, string(hash))
	if err != nil {
		jsonError(w, http.StatusConflict, "login or email already exists")
		return
	}
	if err := h.Authz.AssignRole(ctx, user.ID, role); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := describeUser(ctx, h.Authz, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(ctx)
	slog.Info("user created", "user", claims.Login, "new_user", req.Login, "role", role)
	jsonResponse(w, http.StatusCreated, view)
}

// Get handles GET /api/v1/admin/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	view, err := describeUser(r.Context(), h.Authz, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, view)
}

// Update handles PUT /api/v1/admin/users/{id}: it replaces the user's role.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	var req updateUserRequest
	if !decodeValid(w, r, &req) {
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.Authz.AssignRole(r.Context(), id, req.Role); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := describeUser(r.Context(), h.Authz, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("user role updated", "user", claims.Login, "target_user", user.Login, "new_role", req.Role)
	jsonResponse(w, http.StatusOK, view)
}

// ResetPassword handles PUT /api/v1/admin/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	var req resetPasswordRequest
	if !decodeValid(w, r, &req) {
		return
	}

	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, id, string(hash)); err != nil {
		slog.Error("failed to reset password", "error", err)
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	claims := GetClaims(r.Context())
	target, _ := store.GetUser(r.Context(), h.DB, id)
	targetName := fmt.Sprintf("id:%d", id)
	if target != nil {
		targetName = target.Login
	}
	slog.Info("user password reset", "user", claims.Login, "target_user", targetName)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/v1/admin/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	// Prevent self-deletion.
	claims := GetClaims(r.Context())
	if claims != nil && claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	target, _ := store.GetUser(r.Context(), h.DB, id)
	targetName := fmt.Sprintf("id:%d", id)
	if target != nil {
		targetName = target.Login
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		slog.Error("failed to delete user", "error", err)
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	slog.Info("user deleted", "user", claims.Login, "deleted_user", targetName)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
