package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	catalogKey    = "nav:catalog"
	prefKeyPrefix = "nav:prefs:"
)

// SnapshotStore caches the page catalog and per-user preference maps in
// Redis so menus survive backend hiccups and gateway restarts.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotStore constructs a store with the given snapshot lifetime.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SnapshotStore{client: client, ttl: ttl}
}

// SaveCatalog replaces the cached page catalog.
func (s *SnapshotStore) SaveCatalog(ctx context.Context, pages []Page) error {
	data, err := json.Marshal(pages)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, catalogKey, data, s.ttl).Err()
}

// LoadCatalog returns the cached catalog, nil when none is cached.
func (s *SnapshotStore) LoadCatalog(ctx context.Context) ([]Page, error) {
	data, err := s.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var pages []Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// SavePreferences replaces the cached preference map for the user.
func (s *SnapshotStore) SavePreferences(ctx context.Context, userID int64, prefs Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, prefKey(userID), data, s.ttl).Err()
}

// LoadPreferences returns the cached preference map, nil when none exists.
func (s *SnapshotStore) LoadPreferences(ctx context.Context, userID int64) (Preferences, error) {
	data, err := s.client.Get(ctx, prefKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// PurgeUser drops the user's preference snapshot. Called on logout and on
// backend 401 alongside the session reset.
func (s *SnapshotStore) PurgeUser(ctx context.Context, userID int64) error {
	err := s.client.Del(ctx, prefKey(userID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func prefKey(userID int64) string {
	return fmt.Sprintf("%s%d", prefKeyPrefix, userID)
}
