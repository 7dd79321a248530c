package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleUnmarshalDropsDeniedCapabilities(t *testing.T) {
	var reg RoleRegistry
	err := json.Unmarshal([]byte(`{
		"editor": {"name": "Editor", "capabilities": {"edit_posts": true, "delete_users": false}}
	}`), &reg)
	require.NoError(t, err)

	editor, ok := reg["editor"]
	require.True(t, ok)
	assert.Equal(t, "Editor", editor.Name)
	assert.True(t, editor.Has("edit_posts"))
	assert.False(t, editor.Has("delete_users"))
	assert.Len(t, editor.Capabilities, 1)
}

func TestRoleUnmarshalLooseCapabilities(t *testing.T) {
	var reg RoleRegistry
	err := json.Unmarshal([]byte(`{
		"banned": {"name": "Banned", "capabilities": []},
		"ghost": {"name": "Ghost", "capabilities": null},
		"legacy": {"name": "Legacy", "capabilities": {"edit_posts": 1, "read": "1", "upload_files": 0, "moderate": "0", "publish": ""}}
	}`), &reg)
	require.NoError(t, err)

	assert.Empty(t, reg["banned"].Capabilities)
	assert.Empty(t, reg["ghost"].Capabilities)
	assert.Equal(t, []string{"edit_posts", "read"}, reg["legacy"].CapabilityList())
}

func TestRoleUnmarshalRejectsCapabilityList(t *testing.T) {
	var r Role
	assert.Error(t, json.Unmarshal([]byte(`{"name":"X","capabilities":["edit_posts"]}`), &r))
}

func TestRoleMarshalWritesBooleanMap(t *testing.T) {
	data, err := json.Marshal(NewRole("Author", "upload_files", "edit_posts"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Author","capabilities":{"edit_posts":true,"upload_files":true}}`, string(data))
}

func TestRoleRegistrySlugsSorted(t *testing.T) {
	reg := RoleRegistry{
		RoleSubscriber:    NewRole("Subscriber", "read"),
		RoleAdministrator: NewRole("Administrator", "read"),
		RoleEditor:        NewRole("Editor", "read"),
	}
	assert.Equal(t, []string{"administrator", "editor", "subscriber"}, reg.Slugs())
}
