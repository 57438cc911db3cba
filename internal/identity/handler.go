package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gudangku/gudangku/internal/platform/backend"
	"github.com/gudangku/gudangku/internal/platform/httpx"
	"github.com/gudangku/gudangku/internal/shared"
)

// Purger drops per-user cached navigation state when a session ends.
type Purger interface {
	PurgeUser(ctx context.Context, userID int64)
}

// Handler wires HTTP endpoints for authentication and project selection.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	navigation     Purger
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, navigation Purger, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		navigation:     navigation,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/projects", h.listProjects)
	r.Post("/select-project", h.handleSelectProject)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	User *User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginRequest
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if fields := h.validate(form); len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return
	}

	token, user, err := h.service.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Email atau password tidak valid")
			return
		}
		if backend.IsNetworkFailure(err) {
			httpx.RespondError(w, httpx.ErrUnavailable)
			return
		}
		h.logger.Error("login", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// A successful login elevates the session, so it must not keep the id
	// the client carried while anonymous.
	sess.Renew()
	sess.SetToken(token)
	sess.SetIdentity(strconv.FormatInt(user.ID, 10), user.Encode())
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Selamat datang kembali"})

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, loginResponse{User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && sess.Authenticated() {
		if userID, err := strconv.ParseInt(sess.User(), 10, 64); err == nil {
			if h.navigation != nil {
				h.navigation.PurgeUser(r.Context(), userID)
			}
			if err := h.service.RemoveSession(r.Context(), sess.ID, userID); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

type projectsResponse struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || !sess.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	projects, err := h.service.Projects(r.Context(), sess.Token())
	if err != nil {
		h.respondFetchError(w, sess, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projectsResponse{Projects: projects, Total: len(projects)})
}

type selectProjectRequest struct {
	ProjectID int64 `json:"project_id" validate:"required"`
}

type selectProjectResponse struct {
	Project *Project `json:"project"`
}

func (h *Handler) handleSelectProject(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || !sess.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var form selectProjectRequest
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if fields := h.validate(form); len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return
	}

	projects, err := h.service.Projects(r.Context(), sess.Token())
	if err != nil {
		h.respondFetchError(w, sess, err)
		return
	}
	for _, project := range projects {
		if project.ID == form.ProjectID {
			selected := project
			sess.SetProject(selected.Encode())
			httpx.JSON(w, http.StatusOK, selectProjectResponse{Project: &selected})
			return
		}
	}
	httpx.ValidationProblem(w, map[string]string{"project_id": "proyek tidak ditemukan"})
}

// LoginForTest exposes the login handler for tests.
func (h *Handler) LoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// LogoutForTest exposes the logout handler for tests.
func (h *Handler) LogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}

// ListProjectsForTest exposes the project listing handler for tests.
func (h *Handler) ListProjectsForTest(w http.ResponseWriter, r *http.Request) {
	h.listProjects(w, r)
}

// SelectProjectForTest exposes the project selection handler for tests.
func (h *Handler) SelectProjectForTest(w http.ResponseWriter, r *http.Request) {
	h.handleSelectProject(w, r)
}

// respondFetchError maps upstream failures: a 401 invalidates the whole
// session, anything network-class surfaces as a connectivity notice.
func (h *Handler) respondFetchError(w http.ResponseWriter, sess *shared.Session, err error) {
	if errors.Is(err, backend.ErrUnauthorized) {
		sess.ClearIdentity()
		h.sessionManager.Destroy(sess)
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if backend.IsNetworkFailure(err) {
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	h.logger.Error("backend fetch", slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func (h *Handler) validate(form any) map[string]string {
	err := h.validator.Struct(form)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = fieldErr.Error()
		}
		return fields
	}
	fields["general"] = err.Error()
	return fields
}
