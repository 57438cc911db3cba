package navigation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gudangku/gudangku/internal/identity"
	"github.com/gudangku/gudangku/internal/platform/backend"
	"github.com/gudangku/gudangku/internal/platform/fetch"
	_ "github.com/gudangku/gudangku/testing"
)

type stubBackendClient struct {
	mu        sync.Mutex
	pages     []backend.Page
	pagesErr  error
	pageCalls int
	prefs     []backend.MenuPreference
	prefErrs  []error
	prefCalls int
}

func (s *stubBackendClient) AllPages(ctx context.Context, token string, limit int) ([]backend.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCalls++
	if s.pagesErr != nil {
		return nil, s.pagesErr
	}
	return s.pages, nil
}

// MenuPreferences consumes prefErrs front to back; a nil entry (or an empty
// queue) means the call succeeds with the configured preference rows.
func (s *stubBackendClient) MenuPreferences(ctx context.Context, token string, userID int64) ([]backend.MenuPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefCalls++
	if len(s.prefErrs) > 0 {
		err := s.prefErrs[0]
		s.prefErrs = s.prefErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.prefs, nil
}

func (s *stubBackendClient) calls() (pages, prefs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCalls, s.prefCalls
}

func newTestService(t *testing.T, client Client, breaker *fetch.Breaker) (*Service, *SnapshotStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	snapshots := NewSnapshotStore(redisClient, time.Hour)
	service := NewService(ServiceConfig{Client: client, Snapshots: snapshots, Breaker: breaker})
	return service, snapshots
}

func superuser() *identity.User {
	return &identity.User{ID: 1, IsSuperuser: true}
}

func menu(t *testing.T, service *Service, token string, user *identity.User) []MenuItem {
	t.Helper()
	items, err := service.Menu(context.Background(), token, user)
	require.NoError(t, err)
	return items
}

func TestMenuSuperuserFetchesCatalogOnce(t *testing.T) {
	client := &stubBackendClient{
		pages: []backend.Page{
			{ID: 1, Path: "/inventory/materials", DisplayName: "Material", Order: 1},
			{ID: 2, Path: "/mandors", DisplayName: "Mandor", Order: 2},
		},
	}
	service, _ := newTestService(t, client, nil)

	first := menu(t, service, "tok", superuser())
	require.Len(t, first, 2)

	second := menu(t, service, "tok", superuser())
	require.Equal(t, first, second)

	pageCalls, prefCalls := client.calls()
	require.Equal(t, 1, pageCalls, "catalog must be served from the snapshot after the first fetch")
	require.Equal(t, 1, prefCalls, "preferences are fetched once per identity")
}

func TestMenuNonSuperuserNeverFetchesCatalog(t *testing.T) {
	client := &stubBackendClient{pages: []backend.Page{{ID: 1, Path: "/reports"}}}
	service, _ := newTestService(t, client, nil)

	user := &identity.User{ID: 7, Permissions: []identity.Permission{
		{PagePath: "/reports", CanRead: true},
	}}
	items := menu(t, service, "tok", user)
	require.Len(t, items, 1)

	pageCalls, _ := client.calls()
	require.Equal(t, 0, pageCalls)
}

func TestMenuCatalogFailureDegradesToPermissions(t *testing.T) {
	client := &stubBackendClient{
		pagesErr: fmt.Errorf("%w: connection refused", backend.ErrUnavailable),
	}
	service, _ := newTestService(t, client, nil)

	user := superuser()
	user.Permissions = []identity.Permission{{PagePath: "/reports", CanRead: true}}

	items := menu(t, service, "tok", user)
	require.Len(t, items, 1)
	require.Equal(t, "/reports", items[0].Path)
}

func TestMenuAppliesPreferenceOverrides(t *testing.T) {
	client := &stubBackendClient{
		pages: []backend.Page{
			{ID: 1, Path: "/inventory/materials", DisplayName: "Material", Order: 1},
			{ID: 2, Path: "/mandors", DisplayName: "Mandor", Order: 2},
		},
		prefs: []backend.MenuPreference{{PageID: 2, ShowInMenu: false}},
	}
	service, _ := newTestService(t, client, nil)

	items := menu(t, service, "tok", superuser())
	require.Len(t, items, 1)
	require.Equal(t, "/inventory/materials", items[0].Path)

	// The cached preference map keeps filtering on later requests.
	items = menu(t, service, "tok", superuser())
	require.Len(t, items, 1)
}

func TestPreferenceNetworkFailureTripsCoolDown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	breaker := fetch.NewBreakerWithClock(10*time.Second, func() time.Time { return now })
	client := &stubBackendClient{
		pages:    []backend.Page{{ID: 1, Path: "/mandors", DisplayName: "Mandor", Order: 1}},
		prefErrs: []error{fmt.Errorf("%w: connection refused", backend.ErrUnavailable)},
	}
	service, _ := newTestService(t, client, breaker)

	items := menu(t, service, "tok", superuser())
	require.Len(t, items, 1, "menu still renders without preferences")

	// Inside the cool-down window the failed fetch is not retried.
	menu(t, service, "tok", superuser())
	_, prefCalls := client.calls()
	require.Equal(t, 1, prefCalls)

	now = now.Add(11 * time.Second)
	menu(t, service, "tok", superuser())
	_, prefCalls = client.calls()
	require.Equal(t, 2, prefCalls)
}

func TestPreferenceCancellationNeverApplies(t *testing.T) {
	client := &stubBackendClient{
		pages:    []backend.Page{{ID: 2, Path: "/mandors", DisplayName: "Mandor", Order: 1}},
		prefs:    []backend.MenuPreference{{PageID: 2, ShowInMenu: false}},
		prefErrs: []error{context.Canceled},
	}
	service, _ := newTestService(t, client, nil)

	// The canceled fetch contributes nothing: the page stays visible.
	items := menu(t, service, "tok", superuser())
	require.Len(t, items, 1)

	// Cancellation did not settle the coordinator, so the next request
	// retries and the fulfilled result is the one applied.
	items = menu(t, service, "tok", superuser())
	require.Empty(t, items)

	_, prefCalls := client.calls()
	require.Equal(t, 2, prefCalls)
}

func TestPurgeUserForcesRefetch(t *testing.T) {
	client := &stubBackendClient{
		pages: []backend.Page{{ID: 1, Path: "/mandors", DisplayName: "Mandor", Order: 1}},
		prefs: []backend.MenuPreference{{PageID: 1, ShowInMenu: false}},
	}
	service, snapshots := newTestService(t, client, nil)

	menu(t, service, "tok", superuser())
	prefs, err := snapshots.LoadPreferences(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, prefs)

	service.PurgeUser(context.Background(), 1)
	prefs, err = snapshots.LoadPreferences(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, prefs)

	menu(t, service, "tok", superuser())
	_, prefCalls := client.calls()
	require.Equal(t, 2, prefCalls)
}

func TestWarmCatalogPrimesSnapshot(t *testing.T) {
	client := &stubBackendClient{
		pages: []backend.Page{{ID: 1, Path: "/reports", DisplayName: "Laporan", Order: 1}},
	}
	service, snapshots := newTestService(t, client, nil)

	require.NoError(t, service.WarmCatalog(context.Background(), "svc-tok"))

	cached, err := snapshots.LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 1)

	// A later menu request is served from the warmed snapshot.
	menu(t, service, "tok", superuser())
	pageCalls, _ := client.calls()
	require.Equal(t, 1, pageCalls)
}

func TestMenuSurfacesRevokedTokenFromPreferences(t *testing.T) {
	client := &stubBackendClient{
		pages:    []backend.Page{{ID: 1, Path: "/mandors", DisplayName: "Mandor", Order: 1}},
		prefErrs: []error{backend.ErrUnauthorized},
	}
	service, _ := newTestService(t, client, nil)

	_, err := service.Menu(context.Background(), "tok", superuser())
	require.ErrorIs(t, err, backend.ErrUnauthorized)

	// The failure settled the coordinator, so a later request with a
	// valid token fetches again instead of staying empty.
	items := menu(t, service, "tok", superuser())
	require.Len(t, items, 1)
	_, prefCalls := client.calls()
	require.Equal(t, 2, prefCalls)
}

func TestMenuSurfacesRevokedTokenFromCatalog(t *testing.T) {
	client := &stubBackendClient{pagesErr: backend.ErrUnauthorized}
	service, _ := newTestService(t, client, nil)

	_, err := service.Menu(context.Background(), "tok", superuser())
	require.ErrorIs(t, err, backend.ErrUnauthorized)
}

func TestPreferenceFetchesAreScopedPerUser(t *testing.T) {
	client := &stubBackendClient{
		pages: []backend.Page{{ID: 1, Path: "/mandors", DisplayName: "Mandor", Order: 1}},
	}
	service, _ := newTestService(t, client, nil)

	alpha := superuser()
	bravo := &identity.User{ID: 2, IsSuperuser: true}

	// Interleaved requests from two identities must not evict each
	// other's settled fetch state.
	for i := 0; i < 3; i++ {
		menu(t, service, "tok-a", alpha)
		menu(t, service, "tok-b", bravo)
	}

	_, prefCalls := client.calls()
	require.Equal(t, 2, prefCalls, "one preference fetch per identity")
}
