package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/KareemA-Saad/Meem-Market/internal/authz"
	"github.com/KareemA-Saad/Meem-Market/internal/media"
	"github.com/KareemA-Saad/Meem-Market/internal/observability"
	"github.com/KareemA-Saad/Meem-Market/internal/options"
)

// Deps are the services the router dispatches to.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Authz     *authz.Engine
	Options   *options.Service
	Media     *media.Manager
	Metrics   *observability.Metrics

	// UploadsDir is served read-only under /storage/ when set.
	UploadsDir     string
	MaxUploadBytes int64
	LoginRate      int
	RequestTimeout time.Duration
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, Authz: d.Authz, Options: d.Options}
	usersHandler := &UsersHandler{DB: d.DB, Authz: d.Authz, Options: d.Options}
	rolesHandler := &RolesHandler{Authz: d.Authz}
	mediaHandler := &MediaHandler{Media: d.Media, MaxUploadBytes: d.MaxUploadBytes}
	optionsHandler := &OptionsHandler{Options: d.Options}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	can := func(capability string, h http.HandlerFunc) http.Handler {
		return authMW(RequireCapability(d.Authz, capability)(h))
	}

	loginRate := d.LoginRate
	if loginRate < 1 {
		loginRate = 5
	}
	throttle := httprate.Limit(loginRate, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			jsonError(w, http.StatusTooManyRequests, "too many login attempts")
		}),
	)

	// Public: login and self-registration.
	mux.Handle("POST /api/v1/admin/auth/login", throttle(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/v1/admin/auth/register", throttle(http.HandlerFunc(authHandler.Register)))

	// Authenticated routes.
	mux.Handle("GET /api/v1/admin/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /api/v1/admin/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/v1/admin/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Users.
	mux.Handle("GET /api/v1/admin/users", can("list_users", usersHandler.List))
	mux.Handle("POST /api/v1/admin/users", can("create_users", usersHandler.Create))
	mux.Handle("GET /api/v1/admin/users/{id}", can("list_users", usersHandler.Get))
	mux.Handle("PUT /api/v1/admin/users/{id}", can("promote_users", usersHandler.Update))
	mux.Handle("PUT /api/v1/admin/users/{id}/password", can("edit_users", usersHandler.ResetPassword))
	mux.Handle("DELETE /api/v1/admin/users/{id}", can("delete_users", usersHandler.Delete))

	mux.Handle("GET /api/v1/admin/roles", can("list_users", rolesHandler.List))

	// Media library.
	mux.Handle("GET /api/v1/admin/media", can("upload_files", mediaHandler.List))
	mux.Handle("POST /api/v1/admin/media", can("upload_files", mediaHandler.Upload))
	mux.Handle("POST /api/v1/admin/media/bulk", can("delete_posts", mediaHandler.Bulk))
	mux.Handle("GET /api/v1/admin/media/{id}", can("upload_files", mediaHandler.Get))
	mux.Handle("PUT /api/v1/admin/media/{id}", can("upload_files", mediaHandler.Update))
	mux.Handle("POST /api/v1/admin/media/{id}/edit", can("upload_files", mediaHandler.Edit))
	mux.Handle("DELETE /api/v1/admin/media/{id}", can("delete_posts", mediaHandler.Delete))

	// Options.
	mux.Handle("GET /api/v1/admin/options/{name}", can("manage_options", optionsHandler.Get))
	mux.Handle("PUT /api/v1/admin/options/{name}", can("manage_options", optionsHandler.Put))

	mux.Handle("GET /metrics", can("manage_options", d.Metrics.Handler().ServeHTTP))
	if d.UploadsDir != "" {
		mux.Handle("GET /storage/", http.StripPrefix("/storage/", http.FileServer(http.Dir(d.UploadsDir))))
	}

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	headers := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	// The metrics middleware sits directly on the mux so it sees r.Pattern.
	var h http.Handler = d.Metrics.Middleware(mux)
	h = options.Middleware(h)
	h = middleware.Timeout(timeout)(h)
	h = headers.Handler(h)
	h = middleware.Recoverer(h)
	h = LoggingMiddleware(h)
	h = middleware.RealIP(h)
	h = middleware.RequestID(h)
	return h
}
