package identity

import (
	"context"
	"time"
)

// Repository defines persistence operations for the identity module.
type Repository interface {
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
	RecordDenial(ctx context.Context, userID int64, path string, at time.Time) error
}

// NoopRepository satisfies Repository without a database. Used by tests and
// deployments that run the gateway without the audit store.
type NoopRepository struct{}

// CreateSession is a no-op.
func (NoopRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

// DeleteSession is a no-op.
func (NoopRepository) DeleteSession(ctx context.Context, id string) error { return nil }

// RecordDenial is a no-op.
func (NoopRepository) RecordDenial(ctx context.Context, userID int64, path string, at time.Time) error {
	return nil
}

var _ Repository = NoopRepository{}
