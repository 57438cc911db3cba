package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// dbExecer is the slice of pgxpool.Pool the repository needs.
type dbExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db dbExecer
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool}
}

// CreateSession persists a new login session for auditing. Re-registering
// the same session id refreshes its expiry instead of failing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO gateway_sessions (id, user_id, created_at, expires_at, ip, ua) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, userID, now, expiresAt.UTC(), ip, ua)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			_, err = r.db.Exec(ctx,
				`UPDATE gateway_sessions SET expires_at = $2 WHERE id = $1`,
				id, expiresAt.UTC())
			return err
		}
		return err
	}
	return nil
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM gateway_sessions WHERE id = $1`, id)
	return err
}

// RecordDenial stores a blocked navigation attempt.
func (r *PGRepository) RecordDenial(ctx context.Context, userID int64, path string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO access_denials (user_id, path, denied_at) VALUES ($1, $2, $3)`,
		userID, path, at.UTC())
	return err
}

var _ Repository = (*PGRepository)(nil)
