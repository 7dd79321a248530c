package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/KareemA-Saad/Meem-Market/internal/model"
	"github.com/KareemA-Saad/Meem-Market/internal/options"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

func TestInitDatabaseCreatesAdministrator(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "meemmark.sqlite3")

	password, err := initDatabase(ctx, path, "root", "root@example.com")
	require.NoError(t, err)
	assert.Len(t, password, 16)

	svc, err := openServices(path)
	require.NoError(t, err)
	defer svc.db.Close()

	user, err := store.GetUserByLogin(ctx, svc.db, "root")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)))

	ok, err := svc.authz.Authorize(ctx, user.ID, "manage_options")
	require.NoError(t, err)
	assert.True(t, ok)

	role, err := svc.options.Get(ctx, options.DefaultRole, "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSubscriber, role)
}

func TestInitDatabaseRemovesFileOnFailure(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "meemmark.sqlite3")

	// The second run fails on the duplicate login.
	_, err := initDatabase(ctx, path, "root", "root@example.com")
	require.NoError(t, err)

	_, err = initDatabase(ctx, path, "root", "root@example.com")
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSeedRolesIfEmptyKeepsExisting(t *testing.T) {
	ctx := context.Background()
	svc, err := openServices(filepath.Join(t.TempDir(), "roles.sqlite3"))
	require.NoError(t, err)
	defer svc.db.Close()

	custom := model.RoleRegistry{"member": model.NewRole("Member", "read")}
	require.NoError(t, svc.authz.SeedRoles(ctx, custom))
	require.NoError(t, seedRolesIfEmpty(ctx, svc.authz))

	roles, err := svc.authz.Roles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, roles.Slugs())
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(24)
	require.NoError(t, err)
	b, err := generatePassword(24)
	require.NoError(t, err)
	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
}
