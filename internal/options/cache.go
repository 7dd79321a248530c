package options

import (
	"context"
	"database/sql"
	"net/http"
	"sync"

	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

type contextKey struct{}

// cache holds options for the lifetime of one request. The autoloaded set is
// read in bulk on first access; other names are fetched one at a time and
// remembered, including misses.
type cache struct {
	mu      sync.Mutex
	loaded  bool
	values  map[string]string
	missing map[string]bool
}

// WithCache returns a context carrying a fresh, empty option cache.
func WithCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, &cache{
		values:  make(map[string]string),
		missing: make(map[string]bool),
	})
}

func cacheFrom(ctx context.Context) *cache {
	c, _ := ctx.Value(contextKey{}).(*cache)
	return c
}

// Middleware installs a request-scoped option cache.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithCache(r.Context())))
	})
}

func (c *cache) get(ctx context.Context, db *sql.DB, name string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		all, err := store.LoadAutoloadOptions(ctx, db)
		if err != nil {
			return "", false, err
		}
		for k, v := range all {
			if _, written := c.values[k]; !written {
				c.values[k] = v
			}
		}
		c.loaded = true
	}

	if v, ok := c.values[name]; ok {
		return v, true, nil
	}
	if c.missing[name] {
		return "", false, nil
	}

	v, ok, err := store.GetOption(ctx, db, name)
	if err != nil {
		return "", false, err
	}
	if !ok {
		c.missing[name] = true
		return "", false, nil
	}
	c.values[name] = v
	return v, true, nil
}

func (c *cache) put(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
	delete(c.missing, name)
}

func (c *cache) forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, name)
	c.missing[name] = true
}
