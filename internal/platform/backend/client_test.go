package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gudangku/gudangku/internal/platform/backend"
	_ "github.com/gudangku/gudangku/testing"
)

func newClient(t *testing.T, handler http.Handler) (*backend.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL, 5*time.Second), srv
}

func TestLoginReturnsToken(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode login body: %v", err)
		}
		if body["email"] != "admin@gudangku.id" {
			t.Errorf("unexpected email %q", body["email"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	}))

	token, err := client.Login(context.Background(), "admin@gudangku.id", "rahasia-123")
	require.NoError(t, err)
	require.Equal(t, "tok-123", token)
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Profile(context.Background(), "stale-token")
	require.ErrorIs(t, err, backend.ErrUnauthorized)
	require.False(t, backend.IsNetworkFailure(err))
	require.False(t, backend.IsCanceled(err))
}

func TestValidationCarriesFieldMessages(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"detail": map[string]string{"email": "format email tidak valid"},
		})
	}))

	_, err := client.Login(context.Background(), "bukan-email", "rahasia-123")
	require.ErrorIs(t, err, backend.ErrValidation)

	var ve *backend.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "format email tidak valid", ve.Fields["email"])
}

func TestUnreachableBackendIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := backend.NewClient(srv.URL, time.Second)
	srv.Close()

	_, err := client.Profile(context.Background(), "tok")
	require.True(t, backend.IsNetworkFailure(err), "got %v", err)
	require.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestCanceledContextIsNotAFailure(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.Profile(ctx, "tok")
		errCh <- err
	}()
	cancel()

	err := <-errCh
	require.True(t, backend.IsCanceled(err), "got %v", err)
	require.False(t, backend.IsNetworkFailure(err))
}

func TestAllPagesWalksPagination(t *testing.T) {
	catalog := []backend.Page{
		{ID: 1, Path: "/inventory/materials", DisplayName: "Material", Order: 1},
		{ID: 2, Path: "/mandors", DisplayName: "Mandor", Order: 2},
		{ID: 3, Path: "/reports", DisplayName: "Laporan", Order: 3},
	}
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start := (page - 1) * limit
		end := start + limit
		if start > len(catalog) {
			start = len(catalog)
		}
		if end > len(catalog) {
			end = len(catalog)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":  catalog[start:end],
			"total": len(catalog),
		})
	}))

	pages, err := client.AllPages(context.Background(), "tok", 2)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	require.Equal(t, "/reports", pages[2].Path)
}

func TestMenuPreferencesDecoded(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/permissions/user/7/menu-preferences" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"page_id": 5, "show_in_menu": false},
			{"page_id": 6, "show_in_menu": true},
		})
	}))

	prefs, err := client.MenuPreferences(context.Background(), "tok", 7)
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	require.Equal(t, int64(5), prefs[0].PageID)
	require.False(t, prefs[0].ShowInMenu)
}

func TestUnexpectedStatusSurfacesAsError(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Projects(context.Background(), "tok")
	require.Error(t, err)
	require.False(t, errors.Is(err, backend.ErrUnauthorized))
	require.False(t, backend.IsNetworkFailure(err))
}
