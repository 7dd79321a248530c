package media

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello World":      "hello-world",
		"  --Summer__2024": "summer-2024",
		"Crème Brûlée":     "creme-brulee",
		"IMG_0001 (copy)":  "img-0001-copy",
		"!!!":              "",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestSafeBaseFallback(t *testing.T) {
	assert.Equal(t, "photo", safeBase("Photo"))
	b := safeBase("???")
	assert.True(t, strings.HasPrefix(b, "file-"), b)
	assert.Len(t, b, len("file-")+36)
}

func TestSplitName(t *testing.T) {
	base, ext := splitName(`C:\Users\me\Photo.Final.JPG`)
	assert.Equal(t, "Photo.Final", base)
	assert.Equal(t, "jpg", ext)

	base, ext = splitName("README")
	assert.Equal(t, "README", base)
	assert.Equal(t, "", ext)
}

func TestUploadDirectory(t *testing.T) {
	now := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "uploads/2025/11", uploadDirectory(now, true))
	assert.Equal(t, "uploads", uploadDirectory(now, false))
}

func TestUniqueFileName(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://x")
	require.NoError(t, err)

	name, n := uniqueFileName(s, "uploads", "a", "png", nil, 0)
	assert.Equal(t, "a.png", name)
	assert.Equal(t, 0, n)
	require.NoError(t, s.Put("uploads/a.png", strings.NewReader("1")))
	require.NoError(t, s.Put("uploads/a-1.png", strings.NewReader("2")))
	name, n = uniqueFileName(s, "uploads", "a", "png", nil, 0)
	assert.Equal(t, "a-2.png", name)
	assert.Equal(t, 2, n)

	name, _ = uniqueFileName(s, "uploads", "a", "png", nil, 5)
	assert.Equal(t, "a-5.png", name)
}

func TestUniqueFileNameAvoidsDerivativeNames(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://x")
	require.NoError(t, err)
	targets := []SizeTarget{{Name: "thumbnail", Width: 150, Height: 150}, {Name: "off", Width: 0, Height: 0}}

	// Another upload's original sits where photo.jpg's thumbnail would go.
	require.NoError(t, s.Put("uploads/photo-150x150.jpg", strings.NewReader("1")))
	name, _ := uniqueFileName(s, "uploads", "photo", "jpg", targets, 0)
	assert.Equal(t, "photo-1.jpg", name)

	// Without targets the plain name is free.
	name, _ = uniqueFileName(s, "uploads", "photo", "jpg", nil, 0)
	assert.Equal(t, "photo.jpg", name)
}

func TestLocalStoragePutKeepsExistingFile(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://x")
	require.NoError(t, err)

	require.NoError(t, s.Put("uploads/a.png", strings.NewReader("first")))
	err = s.Put("uploads/a.png", strings.NewReader("second"))
	assert.ErrorIs(t, err, fs.ErrExist)

	data, err := os.ReadFile(s.AbsolutePath("uploads/a.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestUniqueSlug(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	slug, err := uniqueSlug(ctx, e.mgr.DB, "cat")
	require.NoError(t, err)
	assert.Equal(t, "cat", slug)

	e.upload(t, "cat.png", pngBytes(t, 4, 4))
	e.upload(t, "cat.png", pngBytes(t, 4, 4))
	slug, _ = uniqueSlug(ctx, e.mgr.DB, "cat")
	assert.Equal(t, "cat-3", slug)
}

func TestLocalStorageConfinesPaths(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root, "http://localhost/storage/")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s.AbsolutePath("../../etc/passwd"), root))
	assert.Equal(t, "http://localhost/storage/uploads/a.png", s.PublicURL("/uploads/a.png"))
	assert.NoError(t, s.Delete("uploads/never-existed.png"))
	assert.False(t, s.Exists("uploads"))
}
