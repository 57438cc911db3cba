package navigation

// Page is one catalog entry describing a navigable page. The catalog is
// fetched only for superuser identities; everyone else derives navigation
// from their permission grants.
type Page struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon,omitempty"`
	Order       int    `json:"order"`
}

// Preferences maps page id to the user's explicit show-in-menu override.
// A page absent from the map is visible.
type Preferences map[int64]bool

// Hidden reports whether the user explicitly hid the page.
func (p Preferences) Hidden(pageID int64) bool {
	show, ok := p[pageID]
	return ok && !show
}

// MenuItem is one resolved navigation entry. Items are produced fresh on
// every resolution and never mutated in place.
type MenuItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon,omitempty"`
	Order int    `json:"order"`
}
