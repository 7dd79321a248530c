package api

import (
	"net/http"

	"github.com/KareemA-Saad/Meem-Market/internal/authz"
)

// RolesHandler exposes the role registry.
type RolesHandler struct {
	Authz *authz.Engine
}

type roleResponse struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// List handles GET /api/v1/admin/roles.
func (h *RolesHandler) List(w http.ResponseWriter, r *http.Request) {
	registry, err := h.Authz.Roles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	list := make([]roleResponse, 0, len(registry))
	for _, slug := range registry.Slugs() {
		role := registry[slug]
		list = append(list, roleResponse{Slug: slug, Name: role.Name, Capabilities: role.CapabilityList()})
	}
	jsonResponse(w, http.StatusOK, list)
}
