// Package backend wraps the inventory backend's REST API in a typed client.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error classes mirror how the gateway reacts to upstream failures: 401
// invalidates the session, 422 stays local to the form, network failures
// trip the preference cool-down, cancellations are swallowed.
var (
	// ErrUnauthorized indicates the backend rejected the bearer token.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrValidation indicates the backend rejected the request payload.
	ErrValidation = errors.New("backend: validation failed")
	// ErrUnavailable indicates a network-class failure reaching the backend.
	ErrUnavailable = errors.New("backend: unreachable")
)

// ValidationError carries per-field messages from a 422 response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "backend: validation failed" }

// Unwrap lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsCanceled reports whether err stems from a superseded or abandoned
// request rather than a genuine failure.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsNetworkFailure reports whether err is a connectivity problem as opposed
// to an auth or validation rejection.
func IsNetworkFailure(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// User is the profile payload returned by the backend.
type User struct {
	ID          int64        `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	IsActive    bool         `json:"is_active"`
	IsSuperuser bool         `json:"is_superuser"`
	Role        string       `json:"role,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// Permission is a per-page CRUD grant. PageName, PagePath, and DisplayName
// are optional on the wire; absent values decode to the empty string.
type Permission struct {
	ID          int64  `json:"id"`
	PageID      int64  `json:"page_id"`
	PageName    string `json:"page_name,omitempty"`
	PagePath    string `json:"page_path,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	CanCreate   bool   `json:"can_create"`
	CanRead     bool   `json:"can_read"`
	CanUpdate   bool   `json:"can_update"`
	CanDelete   bool   `json:"can_delete"`
}

// Project is a project the user may work in.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Page is a catalog entry describing one navigable page.
type Page struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon,omitempty"`
	Order       int    `json:"order"`
}

// MenuPreference is a per-user visibility override for one page.
type MenuPreference struct {
	PageID     int64 `json:"page_id"`
	ShowInMenu bool  `json:"show_in_menu"`
}

type projectsResponse struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
}

type pagesResponse struct {
	Data  []Page `json:"data"`
	Total int    `json:"total"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type validationResponse struct {
	Detail map[string]string `json:"detail"`
}

// Client talks to the inventory backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	if err := c.post(ctx, "/auth/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("backend: login response missing access token")
	}
	return out.AccessToken, nil
}

// Profile fetches the authenticated user and their permission grants.
func (c *Client) Profile(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.get(ctx, "/auth/profile", token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Projects fetches the projects available to the authenticated user.
func (c *Client) Projects(ctx context.Context, token string) ([]Project, error) {
	var out projectsResponse
	if err := c.get(ctx, "/auth/projects", token, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// Pages fetches one page of the system page catalog.
func (c *Client) Pages(ctx context.Context, token string, page, limit int) ([]Page, int, error) {
	var out pagesResponse
	path := fmt.Sprintf("/permissions/pages?page=%d&limit=%d", page, limit)
	if err := c.get(ctx, path, token, &out); err != nil {
		return nil, 0, err
	}
	return out.Data, out.Total, nil
}

// AllPages walks the paginated catalog endpoint until every entry is read.
func (c *Client) AllPages(ctx context.Context, token string, limit int) ([]Page, error) {
	if limit <= 0 {
		limit = 100
	}
	var all []Page
	for page := 1; ; page++ {
		batch, total, err := c.Pages(ctx, token, page, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

// MenuPreferences fetches the user's menu visibility overrides.
func (c *Client) MenuPreferences(ctx context.Context, token string, userID int64) ([]MenuPreference, error) {
	var out []MenuPreference
	path := fmt.Sprintf("/permissions/user/%d/menu-preferences", userID)
	if err := c.get(ctx, path, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path, token string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, token, target)
}

func (c *Client) post(ctx context.Context, path, token string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, token, target)
}

func (c *Client) do(req *http.Request, token string, target any) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err == context.Canceled {
			return context.Canceled
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var ve validationResponse
		if err := json.NewDecoder(resp.Body).Decode(&ve); err != nil || len(ve.Detail) == 0 {
			return &ValidationError{}
		}
		return &ValidationError{Fields: ve.Detail}
	case resp.StatusCode >= 400:
		return fmt.Errorf("backend: %s returned status %d", req.URL.Path, resp.StatusCode)
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("backend: decode %s: %w", req.URL.Path, err)
	}
	return nil
}
