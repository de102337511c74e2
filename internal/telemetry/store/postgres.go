package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/admission-gate/internal/telemetry"
)

const createRejectionsTable = `
	CREATE TABLE IF NOT EXISTS rate_limit_rejections (
		id             UUID PRIMARY KEY,
		identity       TEXT        NOT NULL,
		strategy       TEXT        NOT NULL,
		path           TEXT        NOT NULL,
		method         TEXT        NOT NULL,
		client_ip      TEXT        NOT NULL,
		user_agent     TEXT,
		request_id     TEXT,
		max_requests   BIGINT      NOT NULL,
		reset_after_ms BIGINT      NOT NULL,
		rejected_at    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS rate_limit_rejections_identity_idx
		ON rate_limit_rejections (identity, rejected_at);
`

// execer is the part of *pgxpool.Pool the store needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a PostgreSQL implementation of telemetry.Store.
type Postgres struct {
	db execer
}

// NewPostgres creates a rejection store over pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

// Migrate creates the rejections table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createRejectionsTable); err != nil {
		return fmt.Errorf("migrate rate_limit_rejections: %w", err)
	}

	return nil
}

// SaveRejection inserts event. Redelivered events are ignored by id.
func (p *Postgres) SaveRejection(ctx context.Context, event *telemetry.RejectionEvent) error {
	query := `
		INSERT INTO rate_limit_rejections (
			id, identity, strategy, path, method, client_ip,
			user_agent, request_id, max_requests, reset_after_ms, rejected_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := p.db.Exec(ctx, query,
		event.ID,
		event.Identity,
		event.Strategy,
		event.Path,
		event.Method,
		event.ClientIP,
		nullableString(event.UserAgent),
		nullableString(event.RequestID),
		event.Limit,
		event.ResetAfterMs,
		event.RejectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rejection %s: %w", event.ID, err)
	}

	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
