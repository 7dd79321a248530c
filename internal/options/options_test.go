package options

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KareemA-Saad/Meem-Market/internal/db"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "On"} {
		assert.True(t, IsTruthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "no", "off", "y"} {
		assert.False(t, IsTruthy(v), v)
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	svc := New(db.NewTestDB(t))
	ctx := context.Background()

	v, err := svc.Get(ctx, "nope", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	require.NoError(t, svc.Set(ctx, "nope", "set", true))
	v, err = svc.Get(ctx, "nope", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "set", v)
}

func TestIntAndBool(t *testing.T) {
	svc := New(db.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, ThumbnailSizeW, "0", true))
	require.NoError(t, svc.Set(ctx, MediumSizeW, "abc", true))
	require.NoError(t, svc.Set(ctx, LargeSizeW, "800", true))
	require.NoError(t, svc.Set(ctx, ThumbnailCrop, "off", true))

	n, err := svc.Int(ctx, ThumbnailSizeW, 150)
	require.NoError(t, err)
	assert.Equal(t, 150, n, "zero falls back to default")

	n, _ = svc.Int(ctx, MediumSizeW, 300)
	assert.Equal(t, 300, n, "unparsable falls back to default")

	n, _ = svc.Int(ctx, LargeSizeW, 1024)
	assert.Equal(t, 800, n)

	b, err := svc.Bool(ctx, ThumbnailCrop, true)
	require.NoError(t, err)
	assert.False(t, b)

	b, _ = svc.Bool(ctx, "unset_flag", true)
	assert.True(t, b)
}

func TestSetEncodesNonStrings(t *testing.T) {
	svc := New(db.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "numbers", []int{1, 2}, false))
	v, _ := svc.Get(ctx, "numbers", "")
	assert.Equal(t, "[1,2]", v)
}

func TestCacheLoadsOnceAndWritesThrough(t *testing.T) {
	database := db.NewTestDB(t)
	svc := New(database)
	require.NoError(t, svc.SeedDefaults(context.Background()))

	ctx := WithCache(context.Background())

	v, err := svc.Get(ctx, DefaultRole, "")
	require.NoError(t, err)
	assert.Equal(t, "subscriber", v)

	// A write behind the cache's back is not observed within the request.
	require.NoError(t, store.SetOption(ctx, database, DefaultRole, "editor", true))
	v, _ = svc.Get(ctx, DefaultRole, "")
	assert.Equal(t, "subscriber", v)

	// Writes through the service are.
	require.NoError(t, svc.Set(ctx, DefaultRole, "author", true))
	v, _ = svc.Get(ctx, DefaultRole, "")
	assert.Equal(t, "author", v)

	require.NoError(t, svc.Delete(ctx, DefaultRole))
	v, _ = svc.Get(ctx, DefaultRole, "none")
	assert.Equal(t, "none", v)

	// A new request starts cold.
	v, _ = svc.Get(WithCache(context.Background()), BlogName, "")
	assert.Equal(t, "MeemMark", v)
}

func TestCacheRemembersNonAutoloadOptions(t *testing.T) {
	database := db.NewTestDB(t)
	svc := New(database)
	require.NoError(t, store.SetOption(context.Background(), database, "private", "x", false))

	ctx := WithCache(context.Background())
	v, err := svc.Get(ctx, "private", "")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	require.NoError(t, store.DeleteOption(ctx, database, "private"))
	v, _ = svc.Get(ctx, "private", "")
	assert.Equal(t, "x", v, "individually fetched options stay cached for the request")
}

func TestMiddlewareInstallsCache(t *testing.T) {
	var installed bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		installed = cacheFrom(r.Context()) != nil
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, installed)
}

func TestLookupReportsPresence(t *testing.T) {
	svc := New(db.NewTestDB(t))
	ctx := WithCache(context.Background())

	_, ok, err := svc.Lookup(ctx, BlogName)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Set(ctx, BlogName, "", true))
	v, ok, err := svc.Lookup(ctx, BlogName)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)
}
