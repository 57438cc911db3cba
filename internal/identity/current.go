package identity

import (
	"strconv"

	"github.com/gudangku/gudangku/internal/shared"
)

// Current resolves the request's user: the freshest store snapshot when one
// exists, otherwise the identity serialized into the session at login. Nil
// when the session is not authenticated.
func Current(sess *shared.Session, store *Store) *User {
	if sess == nil || !sess.Authenticated() {
		return nil
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return nil
	}
	if store != nil {
		if snap := store.Snapshot(id); snap != nil {
			return snap
		}
	}
	return DecodeUser(sess.Identity())
}
