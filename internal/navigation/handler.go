package navigation

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gudangku/gudangku/internal/access"
	"github.com/gudangku/gudangku/internal/identity"
	"github.com/gudangku/gudangku/internal/platform/backend"
	"github.com/gudangku/gudangku/internal/platform/httpx"
	"github.com/gudangku/gudangku/internal/shared"
)

// Handler serves the resolved menu and access checks to the front end.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	identities *identity.Store
	evaluator  *access.Evaluator
	table      *access.Table
	sessions   *shared.SessionManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, identities *identity.Store, evaluator *access.Evaluator, table *access.Table, sessions *shared.SessionManager) *Handler {
	return &Handler{logger: logger, service: service, identities: identities, evaluator: evaluator, table: table, sessions: sessions}
}

// MountRoutes registers navigation routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/menu", h.getMenu)
	r.Get("/access", h.checkAccess)
}

type menuResponse struct {
	Data []MenuItem `json:"data"`
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	user := identity.Current(sess, h.identities)
	if user == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	items, err := h.service.Menu(r.Context(), sess.Token(), user)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			// Revoked token: the whole session goes, same as on the
			// identity endpoints.
			h.identities.Drop(user.ID)
			sess.ClearIdentity()
			h.sessions.Destroy(sess)
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if h.logger != nil {
			h.logger.Error("resolve menu", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if items == nil {
		items = []MenuItem{}
	}
	httpx.JSON(w, http.StatusOK, menuResponse{Data: items})
}

type accessResponse struct {
	Path    string       `json:"path"`
	Level   access.Level `json:"level"`
	Allowed bool         `json:"allowed"`
}

func (h *Handler) checkAccess(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	user := identity.Current(sess, h.identities)
	if user == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "path query parameter required")
		return
	}
	level := access.Level(r.URL.Query().Get("level"))
	if level == "" {
		route, _ := h.table.Lookup(path)
		level = route.Level
	}
	if level != access.LevelRead && level != access.LevelWrite {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "level must be read or write")
		return
	}
	httpx.JSON(w, http.StatusOK, accessResponse{
		Path:    access.NormalizePath(path),
		Level:   level,
		Allowed: h.evaluator.CanAccess(user, path, level),
	})
}
