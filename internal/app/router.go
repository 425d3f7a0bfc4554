package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miftah-app/miftah/internal/auth"
	"github.com/miftah-app/miftah/internal/authz"
	"github.com/miftah-app/miftah/internal/feedback"
	"github.com/miftah-app/miftah/internal/observability"
	"github.com/miftah-app/miftah/internal/platform/httpx"
	"github.com/miftah-app/miftah/internal/rbac"
	"github.com/miftah-app/miftah/internal/roles"
	"github.com/miftah-app/miftah/internal/shared"
	"github.com/miftah-app/miftah/internal/users"
	"github.com/miftah-app/miftah/internal/view"
	"github.com/miftah-app/miftah/jobs"
	"github.com/miftah-app/miftah/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Templates          *view.Engine
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	Gate               *authz.Gate
	Audit              *shared.AuditLogger
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *rbac.PermissionsHandler
	FeedbackHandler    *feedback.Handler
	JobHandler         *jobs.Handler
	Pool               *pgxpool.Pool
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Miftah defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	// Every request passes the policy gate after its session is loaded.
	r.Use(GateMiddleware(GateConfig{
		Logger:    params.Logger,
		Gate:      params.Gate,
		Templates: params.Templates,
		Audit:     params.Audit,
		Metrics:   params.Metrics,
	}))

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Landing page. Authenticated visitors go straight to the dashboard.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if shared.UserIDFromContext(r.Context()) != authz.AnonymousID {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		renderPage(params, w, r, "pages/landing.html", "Miftah", nil)
	})

	r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		renderPage(params, w, r, "pages/dashboard.html", "Beranda", map[string]any{
			"AppEnv": params.Config.AppEnv,
		})
	})

	r.Get("/error", func(w http.ResponseWriter, r *http.Request) {
		renderPage(params, w, r, "pages/error.html", "Terjadi Kesalahan", nil)
	})

	params.AuthHandler.MountRoutes(r)

	if params.UsersHandler != nil {
		r.Route("/register", params.UsersHandler.MountRegisterRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.FeedbackHandler != nil {
		r.Route("/feedback", params.FeedbackHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/system/roles", params.RolesHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/system/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/system/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static assets skip the session stack entirely: no cookies, no CSRF.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func renderPage(params RouterParams, w http.ResponseWriter, r *http.Request, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := params.Templates.Render(w, name, viewData); err != nil {
		params.Logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
