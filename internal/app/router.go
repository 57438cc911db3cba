package app

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/gudangku/gudangku/internal/access"
	"github.com/gudangku/gudangku/internal/guard"
	"github.com/gudangku/gudangku/internal/identity"
	"github.com/gudangku/gudangku/internal/navigation"
	"github.com/gudangku/gudangku/internal/observability"
	"github.com/gudangku/gudangku/internal/platform/httpx"
	"github.com/gudangku/gudangku/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	AuthHandler       *identity.Handler
	NavigationHandler *navigation.Handler
	Guard             guard.Middleware
	Table             *access.Table
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with gateway defaults.
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

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.With(metricsAuth(params.Config)).Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/csrf", func(w http.ResponseWriter, req *http.Request) {
			sess := shared.SessionFromContext(req.Context())
			token, err := params.CSRFManager.EnsureToken(req.Context(), sess)
			if err != nil {
				params.Logger.Error("issue csrf token", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
		})
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/api", func(r chi.Router) {
		params.NavigationHandler.MountRoutes(r)
	})

	// The login page sits outside the guard so the unauthenticated
	// redirect has somewhere to land.
	r.Get(access.PathLogin, pageShell(access.PathLogin))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, access.PathDashboard, http.StatusSeeOther)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Guard)
		for _, path := range params.Table.Paths() {
			if path == access.PathLogin {
				continue
			}
			r.Get(path, pageShell(path))
		}
	})

	return r
}

// pageShell answers with the page descriptor the front end hydrates from.
func pageShell(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"path": path})
	}
}

// metricsAuth protects /metrics with basic auth when a password hash is
// configured. Without one the endpoint stays open for local development.
func metricsAuth(cfg *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || cfg.MetricsPasswordHash == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(cfg.MetricsUser)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(cfg.MetricsPasswordHash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
