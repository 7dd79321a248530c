package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sort"

	"golang.org/x/crypto/bcrypt"

	"github.com/KareemA-Saad/Meem-Market/internal/auth"
	"github.com/KareemA-Saad/Meem-Market/internal/authz"
	"github.com/KareemA-Saad/Meem-Market/internal/model"
	"github.com/KareemA-Saad/Meem-Market/internal/options"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
	Authz     *authz.Engine
	Options   *options.Service
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type registerRequest struct {
	Login    string `json:"login" validate:"required,min=3,max=60"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// userResponse is a user with its role and granted capabilities.
type userResponse struct {
	model.User
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
}

func describeUser(ctx context.Context, engine *authz.Engine, user *model.User) (userResponse, error) {
	role, err := engine.UserRole(ctx, user.ID)
	if err != nil {
		return userResponse{}, err
	}
	caps, err := engine.ResolveCapabilities(ctx, user.ID)
	if err != nil {
		return userResponse{}, err
	}
	return userResponse{User: *user, Role: role, Capabilities: capabilityList(caps)}, nil
}

func capabilityList(caps map[string]bool) []string {
	list := make([]string, 0, len(caps))
	for c, granted := range caps {
		if granted {
			list = append(list, c)
		}
	}
	sort.Strings(list)
	return list
}

// Login handles POST /api/v1/admin/auth/login. The login field accepts
// either the user's login or email.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeValid(w, r, &req) {
		return
	}

	user, err := store.GetUserByLogin(r.Context(), h.DB, req.Login)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "login", req.Login, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	view, err := describeUser(r.Context(), h.Authz, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.Login, view.Capabilities)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user logged in", "user", user.Login, "role", view.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, User: view})
}

// Register handles POST /api/v1/admin/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	open, err := h.Options.Bool(ctx, options.UsersCanRegister, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !open {
		jsonError(w, http.StatusForbidden, "registration is closed")
		return
	}

	var req registerRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	role, err := h.Options.Get(ctx, options.DefaultRole, model.RoleSubscriber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := ensureRole(ctx, h.Authz, role); err != nil {
		slog.Error("default role is not registered", "role", role)
		writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := store.CreateUser(ctx, h.DB, req.Login, req.Email, "", string(hash))
	if err != nil {
		jsonError(w, http.StatusConflict, "login or email already exists")
		return
	}

	if err := h.Authz.AssignRole(ctx, user.ID, role); err != nil {
		if delErr := store.DeleteUser(ctx, h.DB, user.ID); delErr != nil {
			slog.Error("rolling back registration", "user", user.Login, "error", delErr)
		}
		writeError(w, r, err)
		return
	}

	view, err := describeUser(ctx, h.Authz, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("user registered", "user", user.Login, "role", role)
	jsonResponse(w, http.StatusCreated, view)
}

// Me handles GET /api/v1/admin/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil {
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

// Logout handles POST /api/v1/admin/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("user logged out", "user", claims.Login)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/v1/admin/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UserID, string(hash)); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	slog.Info("user changed own password", "user", claims.Login)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
