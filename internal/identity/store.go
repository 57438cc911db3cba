package identity

import (
	"strconv"
	"sync"

	"github.com/gudangku/gudangku/internal/platform/fetch"
)

// Store holds the latest permission snapshot per user together with the
// coordinator guarding its refresh. The snapshot is only replaced by the
// completion handler of a profile fetch or dropped on session reset; there
// are no concurrent writers for one user.
type Store struct {
	mu        sync.RWMutex
	snapshots map[int64]*User
	coords    map[int64]*fetch.Coordinator
	revoked   map[int64]bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		snapshots: make(map[int64]*User),
		coords:    make(map[int64]*fetch.Coordinator),
		revoked:   make(map[int64]bool),
	}
}

// Snapshot returns the cached user for id, nil when none is held.
func (s *Store) Snapshot(id int64) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[id]
}

// Put replaces the snapshot for the user. A fresh snapshot clears any
// earlier revocation, the new token is known to be good.
func (s *Store) Put(user *User) {
	if user == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[user.ID] = user
	delete(s.revoked, user.ID)
}

// Drop removes the snapshot and resets the refresh coordinator, so the
// next request for this user starts from a clean slate.
func (s *Store) Drop(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	delete(s.revoked, id)
	if coord, ok := s.coords[id]; ok {
		coord.Invalidate()
	}
}

// MarkRevoked flags an identity whose backend token came back 401. The
// snapshot is dropped with it; the guard sends the user back to login on
// the next navigation.
func (s *Store) MarkRevoked(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	s.revoked[id] = true
}

// Revoked reports whether the identity's token was rejected upstream.
func (s *Store) Revoked(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revoked[id]
}

// Coordinator returns the refresh coordinator for the user, creating it on
// first use.
func (s *Store) Coordinator(id int64) *fetch.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	coord, ok := s.coords[id]
	if !ok {
		coord = fetch.NewCoordinator()
		s.coords[id] = coord
	}
	return coord
}

// RefreshKey builds the coordinator key for a user id.
func RefreshKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
