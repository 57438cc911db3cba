package navigation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gudangku/gudangku/internal/identity"
	"github.com/gudangku/gudangku/internal/platform/backend"
	"github.com/gudangku/gudangku/internal/platform/fetch"
)

// Client is the slice of the backend API the navigation service consumes.
type Client interface {
	AllPages(ctx context.Context, token string, limit int) ([]backend.Page, error)
	MenuPreferences(ctx context.Context, token string, userID int64) ([]backend.MenuPreference, error)
}

// Service orchestrates catalog and preference fetches and resolves menus.
// Fetch failures never propagate to the caller with one exception: a 401
// from the backend surfaces as backend.ErrUnauthorized so the caller can
// invalidate the whole session. Everything else degrades, the catalog to
// the permission-derived fallback and preferences to show-everything.
type Service struct {
	client    Client
	snapshots *SnapshotStore
	breaker   *fetch.Breaker
	group     singleflight.Group
	pageLimit int
	logger    *slog.Logger

	mu     sync.Mutex
	coords map[int64]*fetch.Coordinator
}

// ServiceConfig collects the service dependencies.
type ServiceConfig struct {
	Client    Client
	Snapshots *SnapshotStore
	Breaker   *fetch.Breaker
	PageLimit int
	Logger    *slog.Logger
}

// NewService constructs a navigation service.
func NewService(cfg ServiceConfig) *Service {
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = fetch.NewBreaker(fetch.DefaultCoolDown)
	}
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = 100
	}
	return &Service{
		client:    cfg.Client,
		snapshots: cfg.Snapshots,
		breaker:   breaker,
		pageLimit: limit,
		logger:    cfg.Logger,
		coords:    make(map[int64]*fetch.Coordinator),
	}
}

// coordinator returns the preference-fetch coordinator for the user,
// creating it on first use. Each user settles independently; one user's
// in-flight fetch never re-admits or starves another's.
func (s *Service) coordinator(userID int64) *fetch.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	coord, ok := s.coords[userID]
	if !ok {
		coord = fetch.NewCoordinator()
		s.coords[userID] = coord
	}
	return coord
}

// Menu resolves the navigation menu for the user. The catalog is consulted
// only for superusers; preferences are fetched at most once per user until
// the identity changes. The only error returned is backend.ErrUnauthorized,
// which means the token was revoked and the session must be invalidated.
func (s *Service) Menu(ctx context.Context, token string, user *identity.User) ([]MenuItem, error) {
	if user == nil {
		return nil, nil
	}
	var pages []Page
	if user.IsSuperuser {
		var err error
		pages, err = s.catalog(ctx, token)
		if err != nil {
			return nil, err
		}
	}
	prefs, err := s.preferences(ctx, token, user.ID)
	if err != nil {
		return nil, err
	}
	return Resolve(user, pages, prefs), nil
}

// WarmCatalog force-refreshes the catalog snapshot. Used by the background
// warm-up job.
func (s *Service) WarmCatalog(ctx context.Context, token string) error {
	rows, err := s.client.AllPages(ctx, token, s.pageLimit)
	if err != nil {
		return err
	}
	return s.snapshots.SaveCatalog(ctx, toPages(rows))
}

// PurgeUser drops cached preference state for the user so the next request
// refetches, and re-admits the user's coordinator.
func (s *Service) PurgeUser(ctx context.Context, userID int64) {
	s.mu.Lock()
	if coord, ok := s.coords[userID]; ok {
		coord.Invalidate()
	}
	s.mu.Unlock()
	if err := s.snapshots.PurgeUser(ctx, userID); err != nil && s.logger != nil {
		s.logger.Warn("purge preferences", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// catalog returns the cached page catalog, fetching it when the cache is
// empty. Concurrent requests share one fetch; errors degrade to an empty
// catalog, which makes Resolve use the permission fallback. A 401 is the
// exception and propagates.
func (s *Service) catalog(ctx context.Context, token string) ([]Page, error) {
	if cached, err := s.snapshots.LoadCatalog(ctx); err == nil && len(cached) > 0 {
		return cached, nil
	}
	result, err, _ := s.singleflightCatalog(ctx, token)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return nil, err
		}
		if !backend.IsCanceled(err) && s.logger != nil {
			s.logger.Warn("catalog fetch failed", slog.Any("error", err))
		}
		return nil, nil
	}
	return result, nil
}

func (s *Service) singleflightCatalog(ctx context.Context, token string) ([]Page, error, bool) {
	resultChan := s.group.DoChan(catalogKey, func() (interface{}, error) {
		rows, err := s.client.AllPages(context.WithoutCancel(ctx), token, s.pageLimit)
		if err != nil {
			return nil, err
		}
		pages := toPages(rows)
		if err := s.snapshots.SaveCatalog(context.WithoutCancel(ctx), pages); err != nil && s.logger != nil {
			s.logger.Warn("cache catalog", slog.Any("error", err))
		}
		return pages, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		pages, _ := res.Val.([]Page)
		return pages, res.Err, res.Shared
	}
}

// preferences returns the user's preference map, fetching it once per
// identity. Failures degrade to nil, which shows every page, except a 401,
// which propagates for session invalidation. A network-class failure trips
// the shared cool-down so an unreachable backend is not hammered.
func (s *Service) preferences(ctx context.Context, token string, userID int64) (Preferences, error) {
	coord := s.coordinator(userID)
	key := identity.RefreshKey(userID)
	if !coord.TryStart(key) {
		return s.cachedPreferences(ctx, userID), nil
	}
	if !s.breaker.Allow() {
		coord.Finish(key, fetch.OutcomeCanceled)
		return s.cachedPreferences(ctx, userID), nil
	}

	rows, err := s.client.MenuPreferences(ctx, token, userID)
	if err != nil {
		if backend.IsCanceled(err) {
			coord.Finish(key, fetch.OutcomeCanceled)
			return s.cachedPreferences(ctx, userID), nil
		}
		if errors.Is(err, backend.ErrUnauthorized) {
			coord.Finish(key, fetch.OutcomeFailed)
			return nil, err
		}
		if backend.IsNetworkFailure(err) {
			s.breaker.Trip()
		}
		coord.Finish(key, fetch.OutcomeFailed)
		if s.logger != nil {
			s.logger.Warn("preference fetch failed", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return s.cachedPreferences(ctx, userID), nil
	}

	prefs := make(Preferences, len(rows))
	for _, row := range rows {
		prefs[row.PageID] = row.ShowInMenu
	}
	if err := s.snapshots.SavePreferences(context.WithoutCancel(ctx), userID, prefs); err != nil && s.logger != nil {
		s.logger.Warn("cache preferences", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	coord.Finish(key, fetch.OutcomeFulfilled)
	return prefs, nil
}

func (s *Service) cachedPreferences(ctx context.Context, userID int64) Preferences {
	prefs, err := s.snapshots.LoadPreferences(ctx, userID)
	if err != nil {
		return nil
	}
	return prefs
}

func toPages(rows []backend.Page) []Page {
	pages := make([]Page, 0, len(rows))
	for _, row := range rows {
		pages = append(pages, Page{
			ID:          row.ID,
			Path:        row.Path,
			DisplayName: row.DisplayName,
			Icon:        row.Icon,
			Order:       row.Order,
		})
	}
	return pages
}
