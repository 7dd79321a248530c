package media

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, folds accents and joins runs of letters and digits
// with single hyphens.
func Slugify(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// splitName returns the base name and the lowercased extension of filename.
func splitName(filename string) (string, string) {
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := path.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	return base, strings.ToLower(strings.TrimPrefix(ext, "."))
}

// safeBase slugifies base, falling back to a random name.
func safeBase(base string) string {
	if s := Slugify(base); s != "" {
		return s
	}
	return "file-" + strings.ToLower(uuid.NewString())
}

// uploadDirectory is uploads/YYYY/MM, or plain uploads when year/month folders are off.
func uploadDirectory(now time.Time, yearMonth bool) string {
	if !yearMonth {
		return "uploads"
	}
	return now.Format("uploads/2006/01")
}

// derivativeName is the file name a target's derivative of base.ext gets.
func derivativeName(base, ext string, t SizeTarget) string {
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s-%dx%d.%s", base, t.Width, t.Height, ext)
}

// uniqueFileName returns the first of base.ext, base-1.ext, base-2.ext, ...
// from suffix n on that is free in dir, together with its suffix. A candidate
// is also passed over when a derivative it would produce for one of targets
// already exists.
func uniqueFileName(files FileStorage, dir, base, ext string, targets []SizeTarget, n int) (string, int) {
next:
	for ; ; n++ {
		stem := base
		if n > 0 {
			stem = fmt.Sprintf("%s-%d", base, n)
		}
		name := stem
		if ext != "" {
			name += "." + ext
		}
		if files.Exists(path.Join(dir, name)) {
			continue
		}
		for _, t := range targets {
			if t.Width <= 0 || t.Height <= 0 {
				continue
			}
			if files.Exists(path.Join(dir, derivativeName(stem, ext, t))) {
				continue next
			}
		}
		return name, n
	}
}

// uniqueSlug returns base, base-2, base-3, ... whichever no attachment uses yet.
func uniqueSlug(ctx context.Context, db *sql.DB, base string) (string, error) {
	slug := base
	for n := 2; ; n++ {
		taken, err := store.AttachmentSlugExists(ctx, db, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

// siblingPath joins name onto the directory of rel.
func siblingPath(rel, name string) string {
	dir := path.Dir(rel)
	if dir == "." || dir == "/" {
		return name
	}
	return path.Join(dir, name)
}
