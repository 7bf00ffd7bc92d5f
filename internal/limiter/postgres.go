package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of a pgx pool the limiter uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG keeps failure counters in the auth_failures table. Counters older than
// Policy.Window restart at one.
type PG struct {
	q      Querier
	policy Policy
	now    func() time.Time
}

var _ Limiter = (*PG)(nil)

// NewPG constructs a PostgreSQL-backed limiter. A nil clock means time.Now.
func NewPG(q Querier, p Policy, now func() time.Time) *PG {
	if now == nil {
		now = time.Now
	}
	return &PG{q: q, policy: p, now: now}
}

const (
	selectBlocked = `SELECT COALESCE(blocked_until, 'epoch'::timestamptz) FROM auth_failures WHERE peer_hash=$1`

	upsertFailure = `
INSERT INTO auth_failures (peer_hash, fail_count, blocked_until, updated_at)
VALUES ($1, 1, NULL, $3)
ON CONFLICT (peer_hash) DO UPDATE
SET fail_count = CASE WHEN auth_failures.updated_at < $2 THEN 1 ELSE auth_failures.fail_count + 1 END,
    updated_at = $3
RETURNING fail_count`

	updateBlocked = `UPDATE auth_failures SET blocked_until=$2 WHERE peer_hash=$1`
)

// Allow reports whether peer is currently unblocked.
func (l *PG) Allow(ctx context.Context, peer []byte) (bool, time.Duration, error) {
	var until time.Time
	err := l.q.QueryRow(ctx, selectBlocked, peer).Scan(&until)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	}
	if left := until.Sub(l.now()); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

// Failure counts a failed attempt and blocks the peer once MaxFails is reached within Window.
func (l *PG) Failure(ctx context.Context, peer []byte) (bool, time.Duration, error) {
	now := l.now()
	var fails int
	if err := l.q.QueryRow(ctx, upsertFailure, peer, now.Add(-l.policy.Window), now).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.policy.MaxFails {
		return false, 0, nil
	}
	if _, err := l.q.Exec(ctx, updateBlocked, peer, now.Add(l.policy.BlockFor)); err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
