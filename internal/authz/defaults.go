package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/KareemA-Saad/Meem-Market/internal/model"
)

func levels(top int) []string {
	out := make([]string, 0, top+1)
	for i := top; i >= 0; i-- {
		out = append(out, fmt.Sprintf("level_%d", i))
	}
	return out
}

func caps(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var (
	subscriberCaps  = []string{"read"}
	contributorCaps = caps(subscriberCaps, []string{"edit_posts", "delete_posts"})
	authorCaps      = caps(contributorCaps, []string{
		"upload_files", "edit_published_posts", "publish_posts", "delete_published_posts",
	})
	editorCaps = caps(authorCaps, []string{
		"moderate_comments", "manage_categories", "manage_links", "unfiltered_html",
		"edit_others_posts", "edit_pages", "edit_others_pages", "edit_published_pages",
		"publish_pages", "delete_pages", "delete_others_pages", "delete_published_pages",
		"delete_others_posts", "delete_private_posts", "edit_private_posts",
		"read_private_posts", "delete_private_pages", "edit_private_pages", "read_private_pages",
	})
	administratorCaps = caps(editorCaps, []string{
		"switch_themes", "edit_themes", "activate_plugins", "edit_plugins", "edit_users",
		"edit_files", "manage_options", "import", "export", "unfiltered_upload",
		"edit_dashboard", "update_plugins", "delete_plugins", "install_plugins",
		"update_themes", "install_themes", "update_core", "list_users", "create_users",
		"delete_users", "remove_users", "promote_users", "edit_theme_options", "delete_themes",
	})
)

// DefaultRegistry returns the five built-in roles.
func DefaultRegistry() model.RoleRegistry {
	return model.RoleRegistry{
		model.RoleAdministrator: model.NewRole("Administrator", caps(administratorCaps, levels(10))...),
		model.RoleEditor:        model.NewRole("Editor", caps(editorCaps, levels(7))...),
		model.RoleAuthor:        model.NewRole("Author", caps(authorCaps, levels(2))...),
		model.RoleContributor:   model.NewRole("Contributor", caps(contributorCaps, levels(1))...),
		model.RoleSubscriber:    model.NewRole("Subscriber", caps(subscriberCaps, levels(0))...),
	}
}

// LoadRegistryFile reads a role registry from a YAML file shaped like the
// stored JSON document:
//
//	editor:
//	  name: Editor
//	  capabilities:
//	    edit_posts: true
func LoadRegistryFile(path string) (model.RoleRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading role file: %w", err)
	}
	registry := model.RoleRegistry{}
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("parsing role file: %w", err)
	}
	if len(registry) == 0 {
		return nil, fmt.Errorf("parsing role file: no roles defined in %s", path)
	}
	return registry, nil
}
