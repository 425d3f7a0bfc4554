package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/miftah-app/miftah/internal/authz"
	"github.com/miftah-app/miftah/internal/observability"
	"github.com/miftah-app/miftah/internal/shared"
	"github.com/miftah-app/miftah/internal/view"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
}

type responseWriterWithCommit struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	ctx           context.Context
	req           *http.Request
	headerWritten bool
}

func (w *responseWriterWithCommit) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		_ = w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWithCommit) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// MiddlewareStack installs the Miftah middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	sessionMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := cfg.SessionManager.Load(ctx, r)
			switch {
			case err == nil:
			case errors.Is(err, shared.ErrSessionSuperseded):
				// The cookie belonged to a login that a newer login on the
				// same account replaced. Continue anonymously and tell the
				// user why they were signed out.
				cfg.Logger.Info("session superseded", slog.String("path", r.URL.Path))
				sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "Sesi Anda berakhir karena akun digunakan di perangkat lain"})
			default:
				cfg.Logger.Error("failed to load session", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			ctx = shared.ContextWithSession(ctx, sess)

			// Wrap to intercept WriteHeader
			wrapped := &responseWriterWithCommit{
				ResponseWriter: w,
				sess:           sess,
				manager:        cfg.SessionManager,
				ctx:            ctx,
				req:            r.WithContext(ctx),
			}

			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}

	csrfMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			token := r.PostFormValue(shared.CSRFFormField)
			if token == "" {
				token = r.Header.Get("X-CSRF-Token")
			}
			if err := cfg.CSRFManager.VerifyToken(r.Context(), sess, token); err != nil {
				cfg.Logger.Warn("csrf validation failed", slog.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		sessionMiddleware,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		csrfMiddleware,
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}

// GateConfig groups dependencies for the policy gate middleware.
type GateConfig struct {
	Logger    *slog.Logger
	Gate      *authz.Gate
	Templates *view.Engine
	Audit     *shared.AuditLogger
	Metrics   *observability.Metrics
}

// GateMiddleware checks every request against the authorization policy
// table. It runs after the session middleware so the user identity is
// already on the context.
func GateMiddleware(cfg GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := shared.UserIDFromContext(r.Context())
			verdict := cfg.Gate.Authorize(r.Context(), userID, r.URL.Path)
			if cfg.Metrics != nil {
				cfg.Metrics.ObserveAuthzDecision(verdict.String())
			}
			switch verdict {
			case authz.Allow:
				next.ServeHTTP(w, r)
			case authz.DenyUnauthenticated:
				http.Redirect(w, r, "/login", http.StatusSeeOther)
			default:
				if cfg.Audit != nil {
					event := shared.AuthEvent{Action: shared.AuditDenied, ActorID: userID, Path: r.URL.Path, IP: r.RemoteAddr}
					if err := cfg.Audit.Record(r.Context(), event); err != nil {
						cfg.Logger.Warn("record denied event", slog.Any("error", err))
					}
				}
				renderForbidden(cfg, w, r)
			}
		})
	}
}

func renderForbidden(cfg GateConfig, w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusForbidden)
	data := view.TemplateData{
		Title:       "Akses Ditolak",
		CurrentPath: r.URL.Path,
	}
	if err := cfg.Templates.Render(w, "pages/forbidden.html", data); err != nil {
		cfg.Logger.Error("render forbidden", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	}
}
