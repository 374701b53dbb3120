package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// IngestGuard serializes dataset ingestion through a Postgres advisory lock,
// so two operator runs against the same database cannot interleave.
type IngestGuard struct {
	db  *sqlx.DB
	key int64
}

// NewIngestGuard constructs a guard bound to an application-chosen lock key.
func NewIngestGuard(db *sqlx.DB, key int64) *IngestGuard {
	return &IngestGuard{db: db, key: key}
}

// TryAcquire attempts to take the lock without blocking. It returns false
// when another ingestion currently holds it.
func (g *IngestGuard) TryAcquire(ctx context.Context) (bool, error) {
	const query = `SELECT pg_try_advisory_lock($1)`
	var acquired bool
	if err := g.db.GetContext(ctx, &acquired, query, g.key); err != nil {
		return false, fmt.Errorf("acquire ingest lock: %w", err)
	}
	return acquired, nil
}

// Release gives the lock back. Safe to call after a failed run; Postgres
// reports but tolerates releasing a lock that is not held.
func (g *IngestGuard) Release(ctx context.Context) error {
	const query = `SELECT pg_advisory_unlock($1)`
	var released bool
	if err := g.db.GetContext(ctx, &released, query, g.key); err != nil {
		return fmt.Errorf("release ingest lock: %w", err)
	}
	return nil
}
