package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gudangku/gudangku/internal/platform/backend"
	"github.com/gudangku/gudangku/internal/platform/fetch"
	"github.com/gudangku/gudangku/internal/shared"
)

// Client is the slice of the backend API the identity service consumes.
type Client interface {
	Login(ctx context.Context, email, password string) (string, error)
	Profile(ctx context.Context, token string) (*backend.User, error)
	Projects(ctx context.Context, token string) ([]backend.Project, error)
}

// Service wraps authentication and permission-snapshot rules.
type Service struct {
	client         Client
	store          *Store
	repo           Repository
	logger         *slog.Logger
	refreshTimeout time.Duration
}

// NewService constructs a new Service.
func NewService(client Client, store *Store, repo Repository, logger *slog.Logger) *Service {
	return &Service{
		client:         client,
		store:          store,
		repo:           repo,
		logger:         logger,
		refreshTimeout: 15 * time.Second,
	}
}

// Store exposes the permission snapshot store.
func (s *Service) Store() *Store {
	return s.store
}

// Login exchanges credentials for a token and the user profile. Inactive
// accounts are rejected the same way as bad credentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) || errors.Is(err, backend.ErrValidation) {
			return "", nil, shared.ErrInvalidCredentials
		}
		return "", nil, err
	}
	profile, err := s.client.Profile(ctx, token)
	if err != nil {
		return "", nil, err
	}
	user := fromBackendUser(profile)
	if !user.IsActive {
		return "", nil, shared.ErrInvalidCredentials
	}
	s.store.Put(user)
	s.store.Coordinator(user.ID).Finish(RefreshKey(user.ID), fetch.OutcomeFulfilled)
	return token, user, nil
}

// Projects lists the projects available to the token's user.
func (s *Service) Projects(ctx context.Context, token string) ([]Project, error) {
	rows, err := s.client.Projects(ctx, token)
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, Project{ID: row.ID, Name: row.Name, Code: row.Code})
	}
	return projects, nil
}

// StartRefresh kicks off a background permission refresh for the user when
// none is running and the snapshot is not already fresh for this identity.
// Callers keep serving the cached snapshot while the refresh is in flight.
func (s *Service) StartRefresh(token string, userID int64) {
	coord := s.store.Coordinator(userID)
	key := RefreshKey(userID)
	if !coord.TryStart(key) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()
		profile, err := s.client.Profile(ctx, token)
		if err != nil {
			if backend.IsCanceled(err) {
				coord.Finish(key, fetch.OutcomeCanceled)
				return
			}
			if errors.Is(err, backend.ErrUnauthorized) {
				// Token revoked while the session lived. Flag the
				// identity so the guard logs the user out instead of
				// serving the stale snapshot.
				s.store.MarkRevoked(userID)
				coord.Finish(key, fetch.OutcomeFailed)
				if s.logger != nil {
					s.logger.Warn("token revoked upstream", slog.Int64("user_id", userID))
				}
				return
			}
			coord.Finish(key, fetch.OutcomeFailed)
			if s.logger != nil {
				s.logger.Warn("permission refresh failed", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			return
		}
		s.store.Put(fromBackendUser(profile))
		coord.Finish(key, fetch.OutcomeFulfilled)
	}()
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record and drops the user's snapshot.
func (s *Service) RemoveSession(ctx context.Context, id string, userID int64) error {
	s.store.Drop(userID)
	return s.repo.DeleteSession(ctx, id)
}

// RecordDenial audits a blocked navigation attempt.
func (s *Service) RecordDenial(ctx context.Context, userID int64, path string) {
	if err := s.repo.RecordDenial(ctx, userID, path, time.Now().UTC()); err != nil && s.logger != nil {
		s.logger.Warn("record denial", slog.Int64("user_id", userID), slog.String("path", path), slog.Any("error", err))
	}
}

func fromBackendUser(in *backend.User) *User {
	if in == nil {
		return nil
	}
	perms := make([]Permission, 0, len(in.Permissions))
	for _, p := range in.Permissions {
		perms = append(perms, Permission{
			ID:          p.ID,
			PageID:      p.PageID,
			PageName:    p.PageName,
			PagePath:    p.PagePath,
			DisplayName: p.DisplayName,
			CanCreate:   p.CanCreate,
			CanRead:     p.CanRead,
			CanUpdate:   p.CanUpdate,
			CanDelete:   p.CanDelete,
		})
	}
	return &User{
		ID:          in.ID,
		Email:       in.Email,
		Name:        in.Name,
		IsActive:    in.IsActive,
		IsSuperuser: in.IsSuperuser,
		Role:        in.Role,
		Permissions: perms,
	}
}
