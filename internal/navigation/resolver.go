package navigation

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gudangku/gudangku/internal/access"
	"github.com/gudangku/gudangku/internal/identity"
)

const (
	// fallbackLabel stands in when neither a name nor a path segment is usable.
	fallbackLabel = "Halaman"

	// installedItemsBasePath is the installations section root. When it is
	// present in a menu, the redundant "/list" entry under it is dropped.
	installedItemsBasePath = "/installations"

	// syntheticOrderBase places permission-derived entries after any real
	// catalog entry when no catalog orders are known.
	syntheticOrderBase = 1000
)

// Resolve combines the identity's permission grants, the page catalog, and
// the user's menu preferences into an ordered, path-unique menu. It is a
// pure function: the menu is recomputed whole from its three inputs and no
// partial result is ever exposed.
//
// Superusers get the full catalog, filtered only by explicit preference
// overrides. When the catalog is empty or not yet fetched, superusers fall
// back to permission-derived entries like everyone else.
func Resolve(user *identity.User, pages []Page, prefs Preferences) []MenuItem {
	if user == nil {
		return nil
	}

	var items []MenuItem
	switch {
	case user.IsSuperuser && len(pages) > 0:
		items = fromCatalog(pages, prefs)
	case user.IsSuperuser:
		items = fromPermissions(user.Permissions, nil, prefs)
	default:
		if len(user.Permissions) == 0 {
			return nil
		}
		items = fromPermissions(user.Permissions, pages, prefs)
	}

	items = dropRedundantList(items)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].Path < items[j].Path
	})
	return items
}

func fromCatalog(pages []Page, prefs Preferences) []MenuItem {
	items := make([]MenuItem, 0, len(pages))
	seen := make(map[string]struct{}, len(pages))
	for _, page := range pages {
		path := access.NormalizePath(page.Path)
		if path == "" || path == access.PathRoot {
			continue
		}
		if prefs.Hidden(page.ID) {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		label := page.DisplayName
		if label == "" {
			label = FormatPageName(lastSegment(path))
		}
		items = append(items, MenuItem{Label: label, Path: path, Icon: page.Icon, Order: page.Order})
	}
	return items
}

// fromPermissions builds one entry per distinct readable page path, first
// qualifying occurrence winning on duplicates. Entries found in the catalog
// take its label, icon, and order and honor the preference filter; the rest
// get synthetic orders above every catalog order, assigned in path order.
func fromPermissions(perms []identity.Permission, pages []Page, prefs Preferences) []MenuItem {
	byPath := make(map[string]Page, len(pages))
	for _, page := range pages {
		p := access.NormalizePath(page.Path)
		if _, ok := byPath[p]; !ok {
			byPath[p] = page
		}
	}

	chosen := make(map[string]identity.Permission)
	var order []string
	for _, perm := range perms {
		path := access.NormalizePath(perm.PagePath)
		if path == "" || path == access.PathRoot {
			continue
		}
		if !perm.CanRead {
			continue
		}
		if _, ok := chosen[path]; ok {
			continue
		}
		chosen[path] = perm
		order = append(order, path)
	}

	items := make([]MenuItem, 0, len(order))
	var synthetic []string
	for _, path := range order {
		perm := chosen[path]
		page, inCatalog := byPath[path]
		if !inCatalog {
			synthetic = append(synthetic, path)
			continue
		}
		if prefs.Hidden(page.ID) {
			continue
		}
		label := page.DisplayName
		if label == "" {
			label = labelFor(perm, path)
		}
		items = append(items, MenuItem{Label: label, Path: path, Icon: page.Icon, Order: page.Order})
	}

	sort.Strings(synthetic)
	base := syntheticBase(pages)
	for i, path := range synthetic {
		items = append(items, MenuItem{Label: labelFor(chosen[path], path), Path: path, Order: base + i})
	}
	return items
}

func syntheticBase(pages []Page) int {
	base := syntheticOrderBase
	for _, page := range pages {
		if page.Order >= base {
			base = page.Order + 1
		}
	}
	return base
}

func labelFor(perm identity.Permission, path string) string {
	if perm.DisplayName != "" {
		return perm.DisplayName
	}
	if perm.PageName != "" {
		return FormatPageName(perm.PageName)
	}
	return FormatPageName(lastSegment(path))
}

func lastSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}

// FormatPageName turns a raw page name or path segment into a menu label:
// underscores and hyphens become spaces and each word is title-cased. An
// empty input yields the generic placeholder.
func FormatPageName(raw string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(raw))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return fallbackLabel
	}
	return cases.Title(language.Indonesian).String(cleaned)
}

// dropRedundantList removes the "/list" entry under the installations base
// when the base itself is in the menu, so one section does not show both a
// create view and a duplicate list view.
func dropRedundantList(items []MenuItem) []MenuItem {
	baseFound := false
	for _, item := range items {
		if item.Path == installedItemsBasePath {
			baseFound = true
			break
		}
	}
	if !baseFound {
		return items
	}
	redundant := installedItemsBasePath + "/list"
	out := items[:0]
	for _, item := range items {
		if item.Path == redundant {
			continue
		}
		out = append(out, item)
	}
	return out
}
