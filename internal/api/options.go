package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/KareemA-Saad/Meem-Market/internal/options"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

// OptionsHandler reads and writes single site options.
type OptionsHandler struct {
	Options *options.Service
}

type optionResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type putOptionRequest struct {
	Value    json.RawMessage `json:"value" validate:"required"`
	Autoload *bool           `json:"autoload"`
}

// hidden options are never served or written over HTTP.
var hiddenOptions = map[string]bool{
	store.OptionJWTSecret: true,
	options.UserRoles:     true,
}

// Get handles GET /api/v1/admin/options/{name}. A missing option with a
// built-in default reports the default.
func (h *OptionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if hiddenOptions[name] {
		jsonError(w, http.StatusNotFound, "option not found")
		return
	}

	value, ok, err := h.Options.Lookup(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		def, known := options.Defaults[name]
		if !known {
			jsonError(w, http.StatusNotFound, "option not found")
			return
		}
		value = def
	}
	jsonResponse(w, http.StatusOK, optionResponse{Name: name, Value: value})
}

// Put handles PUT /api/v1/admin/options/{name}. JSON strings are stored
// unquoted; other JSON values are stored in their encoded form.
func (h *OptionsHandler) Put(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if hiddenOptions[name] {
		jsonError(w, http.StatusForbidden, "option is read-only")
		return
	}

	var req putOptionRequest
	if !decodeValid(w, r, &req) {
		return
	}

	var value any = req.Value
	var s string
	if err := json.Unmarshal(req.Value, &s); err == nil {
		value = s
	}
	autoload := true
	if req.Autoload != nil {
		autoload = *req.Autoload
	}

	if err := h.Options.Set(r.Context(), name, value, autoload); err != nil {
		writeError(w, r, err)
		return
	}
	stored, err := h.Options.Get(r.Context(), name, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("option updated", "user", claims.Login, "option", name)
	jsonResponse(w, http.StatusOK, optionResponse{Name: name, Value: stored})
}
