package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gudangku/gudangku/internal/identity"
	"github.com/gudangku/gudangku/internal/platform/backend"
	"github.com/gudangku/gudangku/internal/shared"
	_ "github.com/gudangku/gudangku/testing"
)

type stubClient struct {
	mu           sync.Mutex
	token        string
	loginErr     error
	profile      *backend.User
	profileErr   error
	profileCalls int
	projects     []backend.Project
	projectsErr  error
}

func (s *stubClient) Login(ctx context.Context, email, password string) (string, error) {
	if s.loginErr != nil {
		return "", s.loginErr
	}
	return s.token, nil
}

func (s *stubClient) Profile(ctx context.Context, token string) (*backend.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileCalls++
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	return s.profile, nil
}

func (s *stubClient) Projects(ctx context.Context, token string) ([]backend.Project, error) {
	if s.projectsErr != nil {
		return nil, s.projectsErr
	}
	return s.projects, nil
}

func (s *stubClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileCalls
}

func activeProfile() *backend.User {
	return &backend.User{
		ID:       7,
		Email:    "staff@gudangku.id",
		Name:     "Staf Gudang",
		IsActive: true,
		Permissions: []backend.Permission{
			{ID: 1, PageID: 3, PagePath: "/reports", CanRead: true},
		},
	}
}

func activeProfileUser() *identity.User {
	return &identity.User{ID: 7, Permissions: []identity.Permission{
		{PagePath: "/reports", CanRead: true},
	}}
}

func TestLoginStoresSnapshot(t *testing.T) {
	client := &stubClient{token: "tok-123", profile: activeProfile()}
	store := identity.NewStore()
	service := identity.NewService(client, store, identity.NoopRepository{}, nil)

	token, user, err := service.Login(context.Background(), "staff@gudangku.id", "rahasia-123")
	require.NoError(t, err)
	require.Equal(t, "tok-123", token)
	require.Equal(t, int64(7), user.ID)
	require.Len(t, user.Permissions, 1)

	require.NotNil(t, store.Snapshot(7))
	require.True(t, store.Coordinator(7).Settled(), "login settles the permission snapshot")
}

func TestLoginMapsBackendRejections(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"unauthorized", backend.ErrUnauthorized},
		{"validation", &backend.ValidationError{Fields: map[string]string{"email": "wajib diisi"}}},
	}
	for _, tc := range cases {
		client := &stubClient{loginErr: tc.err}
		service := identity.NewService(client, identity.NewStore(), identity.NoopRepository{}, nil)

		_, _, err := service.Login(context.Background(), "staff@gudangku.id", "salah-total")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials, tc.name)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	profile := activeProfile()
	profile.IsActive = false
	client := &stubClient{token: "tok-123", profile: profile}
	store := identity.NewStore()
	service := identity.NewService(client, store, identity.NoopRepository{}, nil)

	_, _, err := service.Login(context.Background(), "staff@gudangku.id", "rahasia-123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.Nil(t, store.Snapshot(7))
}

func TestStartRefreshReplacesSnapshot(t *testing.T) {
	client := &stubClient{profile: activeProfile()}
	store := identity.NewStore()
	service := identity.NewService(client, store, identity.NoopRepository{}, nil)

	service.StartRefresh("tok-123", 7)

	require.Eventually(t, func() bool {
		return store.Snapshot(7) != nil
	}, time.Second, 5*time.Millisecond)
	require.True(t, store.Coordinator(7).Settled())

	// A fresh snapshot for the same identity is not refetched.
	service.StartRefresh("tok-123", 7)
	require.Equal(t, 1, client.calls())
}

func TestStartRefreshFailureSettlesWithoutSnapshot(t *testing.T) {
	client := &stubClient{profileErr: errors.New("boom")}
	store := identity.NewStore()
	service := identity.NewService(client, store, identity.NoopRepository{}, nil)

	service.StartRefresh("tok-123", 7)

	require.Eventually(t, func() bool {
		return store.Coordinator(7).Settled()
	}, time.Second, 5*time.Millisecond)
	require.Nil(t, store.Snapshot(7))
}

func TestStartRefreshRevokedTokenFlagsIdentity(t *testing.T) {
	client := &stubClient{profileErr: backend.ErrUnauthorized}
	store := identity.NewStore()
	service := identity.NewService(client, store, identity.NoopRepository{}, nil)

	store.Put(activeProfileUser())
	service.StartRefresh("tok-dead", 7)

	require.Eventually(t, func() bool {
		return store.Revoked(7)
	}, time.Second, 5*time.Millisecond)
	require.Nil(t, store.Snapshot(7), "a revoked identity keeps no snapshot")

	// A fresh login clears the flag.
	store.Put(activeProfileUser())
	require.False(t, store.Revoked(7))
}

func TestStartRefreshCancellationLeavesStateOpen(t *testing.T) {
	client := &stubClient{profileErr: context.Canceled}
	store := identity.NewStore()
	service := identity.NewService(client, store, identity.NoopRepository{}, nil)

	service.StartRefresh("tok-123", 7)

	coord := store.Coordinator(7)
	require.Eventually(t, func() bool {
		return !coord.Loading()
	}, time.Second, 5*time.Millisecond)
	require.False(t, coord.Settled(), "cancellation must not settle the refresh")

	// The next refresh is admitted and its result applies.
	client.mu.Lock()
	client.profileErr = nil
	client.profile = activeProfile()
	client.mu.Unlock()

	service.StartRefresh("tok-123", 7)
	require.Eventually(t, func() bool {
		return store.Snapshot(7) != nil
	}, time.Second, 5*time.Millisecond)
}

func TestRemoveSessionDropsSnapshot(t *testing.T) {
	client := &stubClient{token: "tok-123", profile: activeProfile()}
	store := identity.NewStore()
	service := identity.NewService(client, store, identity.NoopRepository{}, nil)

	_, _, err := service.Login(context.Background(), "staff@gudangku.id", "rahasia-123")
	require.NoError(t, err)

	require.NoError(t, service.RemoveSession(context.Background(), "sess-1", 7))
	require.Nil(t, store.Snapshot(7))
	require.False(t, store.Coordinator(7).Settled())
}
