// Package access decides whether an identity may reach a navigation path.
package access

import (
	"strings"

	"github.com/gudangku/gudangku/internal/identity"
)

// Level is the permission level a route demands.
type Level string

const (
	// LevelRead requires a read grant on the page.
	LevelRead Level = "read"
	// LevelWrite is satisfied by any CRUD flag on the page.
	LevelWrite Level = "write"
)

// NormalizePath trims whitespace and strips one trailing slash. Case is
// preserved, paths are case-sensitive.
func NormalizePath(path string) string {
	p := strings.TrimSpace(path)
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// Evaluator is a total predicate over identity, path, and level. It never
// errors; unknown input evaluates to denied.
type Evaluator struct {
	public map[string]struct{}
}

// NewEvaluator builds an evaluator with the given public-page allowlist.
func NewEvaluator(publicPaths []string) *Evaluator {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[NormalizePath(p)] = struct{}{}
	}
	return &Evaluator{public: public}
}

// IsPublic reports whether the path is on the public allowlist.
func (e *Evaluator) IsPublic(path string) bool {
	_, ok := e.public[NormalizePath(path)]
	return ok
}

// CanAccess evaluates the rules in order: superuser bypass, public
// allowlist, then an exact-path permission match. A grant on /inventory
// does not extend to /inventory/materials.
func (e *Evaluator) CanAccess(user *identity.User, path string, level Level) bool {
	if user != nil && user.IsSuperuser {
		return true
	}
	target := NormalizePath(path)
	if _, ok := e.public[target]; ok {
		return true
	}
	if user == nil || len(user.Permissions) == 0 {
		return false
	}
	for _, perm := range user.Permissions {
		if perm.PagePath == "" || NormalizePath(perm.PagePath) != target {
			continue
		}
		if level == LevelWrite {
			if perm.CanRead || perm.CanCreate || perm.CanUpdate || perm.CanDelete {
				return true
			}
			continue
		}
		if perm.CanRead {
			return true
		}
	}
	return false
}
