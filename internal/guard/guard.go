// Package guard gates every page navigation on authentication, project
// selection, and page permissions.
package guard

import (
	"log/slog"
	"net/http"

	"github.com/gudangku/gudangku/internal/access"
	"github.com/gudangku/gudangku/internal/identity"
	"github.com/gudangku/gudangku/internal/observability"
	"github.com/gudangku/gudangku/internal/shared"
)

// Guard decision labels, exported to metrics.
const (
	decisionRedirectLogin     = "redirect_login"
	decisionRedirectProject   = "redirect_project"
	decisionRedirectDashboard = "redirect_dashboard"
	decisionAllow             = "allow"
	decisionAllowSuperuser    = "allow_superuser"
	decisionAllowPublic       = "allow_public"
	decisionAllowOptimistic   = "allow_optimistic"
)

// Middleware evaluates the navigation rules for every guarded request.
type Middleware struct {
	Logger     *slog.Logger
	Evaluator  *access.Evaluator
	Table      *access.Table
	Identities *identity.Store
	Service    *identity.Service
	Metrics    *observability.Metrics
}

// Guard wraps next with the navigation state machine. Decisions are made
// in strict order; the first matching rule wins.
//
// While a permission refresh is in flight the guard allows rendering with
// whatever snapshot is already cached instead of blocking the page. The
// next navigation re-evaluates once the refresh settles, so transient
// over-permissiveness lasts one round trip at most.
func (m Middleware) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		target := access.NormalizePath(r.URL.Path)

		if sess == nil || !sess.Authenticated() {
			m.redirect(w, r, access.PathLogin, decisionRedirectLogin)
			return
		}

		user := identity.Current(sess, m.Identities)
		if user == nil {
			// Session carries a token but no decodable identity: treat as
			// unauthenticated and reset.
			sess.ClearIdentity()
			m.redirect(w, r, access.PathLogin, decisionRedirectLogin)
			return
		}

		if m.Identities.Revoked(user.ID) {
			// The backend rejected this token since login. Invalidate the
			// whole session, same as a 401 on a direct fetch.
			m.Identities.Drop(user.ID)
			sess.ClearIdentity()
			m.redirect(w, r, access.PathLogin, decisionRedirectLogin)
			return
		}

		if sess.Project() == "" && target != access.PathSelectProject {
			m.redirect(w, r, access.PathSelectProject, decisionRedirectProject)
			return
		}
		if sess.Project() != "" && target == access.PathSelectProject {
			m.redirect(w, r, access.PathDashboard, decisionRedirectDashboard)
			return
		}

		if user.IsSuperuser {
			m.allow(w, r, next, decisionAllowSuperuser)
			return
		}
		if m.Evaluator.IsPublic(target) {
			m.allow(w, r, next, decisionAllowPublic)
			return
		}

		coord := m.Identities.Coordinator(user.ID)
		if !coord.Settled() && m.Service != nil {
			m.Service.StartRefresh(sess.Token(), user.ID)
		}

		route, _ := m.Table.Lookup(target)
		if m.Evaluator.CanAccess(user, target, route.Level) {
			m.allow(w, r, next, decisionAllow)
			return
		}

		if coord.Loading() || !coord.Settled() {
			m.allow(w, r, next, decisionAllowOptimistic)
			return
		}

		// Denied with settled permissions: send the user somewhere that is
		// always reachable instead of a dead end.
		if m.Service != nil {
			m.Service.RecordDenial(r.Context(), user.ID, target)
		}
		if m.Logger != nil {
			m.Logger.Warn("navigation denied",
				slog.Int64("user_id", user.ID),
				slog.String("path", target),
				slog.String("level", string(route.Level)))
		}
		m.redirect(w, r, access.PathDashboard, decisionRedirectDashboard)
	})
}

func (m Middleware) allow(w http.ResponseWriter, r *http.Request, next http.Handler, decision string) {
	m.Metrics.GuardDecision(decision)
	next.ServeHTTP(w, r)
}

func (m Middleware) redirect(w http.ResponseWriter, r *http.Request, to, decision string) {
	m.Metrics.GuardDecision(decision)
	http.Redirect(w, r, to, http.StatusSeeOther)
}
