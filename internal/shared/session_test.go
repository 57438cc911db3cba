package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	_ "github.com/gudangku/gudangku/testing"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "test_session", "secret", time.Hour, false), mr
}

func commit(t *testing.T, sm *SessionManager, sess *Session) *httptest.ResponseRecorder {
	t.Helper()
	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := sm.Commit(context.Background(), res, req, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return res
}

func TestSessionRenewDropsPreviousRecord(t *testing.T) {
	sm, mr := newTestManager(t)

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.Set("k", "v")
	commit(t, sm, sess)
	oldID := sess.ID
	if !mr.Exists("session:" + oldID) {
		t.Fatalf("initial session record missing")
	}

	sess.Renew()
	if sess.ID == oldID {
		t.Fatalf("renew must assign a fresh id")
	}
	commit(t, sm, sess)

	if mr.Exists("session:" + oldID) {
		t.Fatalf("previous record must be deleted after renew")
	}
	if !mr.Exists("session:" + sess.ID) {
		t.Fatalf("renewed record missing")
	}
	if got := sess.Get("k"); got != "v" {
		t.Fatalf("values must survive the renew, got %q", got)
	}
}

func TestSessionRenewKeepsEarliestPriorID(t *testing.T) {
	sm, _ := newTestManager(t)

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	first := sess.ID

	sess.Renew()
	sess.Renew()
	if sess.priorID != first {
		t.Fatalf("priorID must stay at the original id, got %q", sess.priorID)
	}
}
