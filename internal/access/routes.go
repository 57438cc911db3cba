package access

// Well-known gateway paths consulted by the route guard.
const (
	PathRoot          = "/"
	PathLogin         = "/login"
	PathSelectProject = "/select-project"
	PathDashboard     = "/dashboard"
)

// Route declares the access requirements of one navigable page. This table
// is configuration: the guard reads it, nothing computes it.
type Route struct {
	Path   string
	Level  Level
	Public bool
}

// Table resolves a navigation path to its declared route.
type Table struct {
	routes map[string]Route
	order  []string
}

// NewTable indexes routes by normalized path.
func NewTable(routes []Route) *Table {
	t := &Table{routes: make(map[string]Route, len(routes))}
	for _, route := range routes {
		p := NormalizePath(route.Path)
		if _, ok := t.routes[p]; ok {
			continue
		}
		route.Path = p
		t.routes[p] = route
		t.order = append(t.order, p)
	}
	return t
}

// Lookup returns the route declared for path. Unknown paths get the
// default read requirement.
func (t *Table) Lookup(path string) (Route, bool) {
	route, ok := t.routes[NormalizePath(path)]
	if !ok {
		return Route{Path: NormalizePath(path), Level: LevelRead}, false
	}
	return route, true
}

// Paths lists the declared paths in registration order.
func (t *Table) Paths() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// PublicPaths lists the paths marked public, for seeding the evaluator.
func (t *Table) PublicPaths() []string {
	var out []string
	for _, p := range t.order {
		if t.routes[p].Public {
			out = append(out, p)
		}
	}
	return out
}

// DefaultRoutes is the gateway's page map: the inventory pages served to
// the admin front end plus the authentication surface.
func DefaultRoutes() []Route {
	return []Route{
		{Path: PathLogin, Public: true},
		{Path: PathSelectProject, Public: true},
		{Path: PathDashboard, Public: true},
		{Path: "/inventory/materials", Level: LevelRead},
		{Path: "/inventory/stock-in", Level: LevelRead},
		{Path: "/inventory/stock-out", Level: LevelRead},
		{Path: "/inventory/returns", Level: LevelRead},
		{Path: "/mandors", Level: LevelRead},
		{Path: "/installations", Level: LevelRead},
		{Path: "/installations/list", Level: LevelRead},
		{Path: "/documents/surat-permintaan", Level: LevelRead},
		{Path: "/documents/surat-jalan", Level: LevelRead},
		{Path: "/reports", Level: LevelRead},
		{Path: "/admin/users", Level: LevelWrite},
		{Path: "/admin/permissions", Level: LevelWrite},
	}
}
