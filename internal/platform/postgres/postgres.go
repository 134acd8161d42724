// Package postgres opens the shared database handle and owns the schema for
// every table this module touches.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Schema creates the source registry, the append-only card version log, the
// publish-time read indexes, the citation index, and the event outbox.
//
// card_versions is the system of record for cards: one row per version,
// standing alone so history survives every later transition. feed_entries and
// entity_entries carry frozen copies of the payload written at publish time;
// they are indexes, not views over the version log. citations rows are never
// deleted and first_published_at never changes once written.
const Schema = `
CREATE TABLE IF NOT EXISTS sources (
	id             UUID PRIMARY KEY,
	title          TEXT NOT NULL,
	publisher      TEXT NOT NULL,
	origin_url     TEXT NOT NULL,
	kind           TEXT NOT NULL,
	status         TEXT NOT NULL,
	content_hash   TEXT NOT NULL DEFAULT '',
	byte_size      BIGINT NOT NULL DEFAULT 0,
	mime_type      TEXT NOT NULL DEFAULT '',
	storage_key    TEXT NOT NULL DEFAULT '',
	manifest_key   TEXT NOT NULL DEFAULT '',
	signature      TEXT NOT NULL DEFAULT '',
	key_id         TEXT NOT NULL DEFAULT '',
	algorithm      TEXT NOT NULL DEFAULT '',
	retrieved_at   TIMESTAMPTZ,
	verified_at    TIMESTAMPTZ,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	created_by     TEXT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	updated_by     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS sources_status_idx ON sources (status);

CREATE TABLE IF NOT EXISTS card_versions (
	card_id    UUID NOT NULL,
	version    INTEGER NOT NULL,
	status     TEXT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (card_id, version)
);

CREATE TABLE IF NOT EXISTS feed_entries (
	bucket       TEXT NOT NULL,
	published_at TIMESTAMPTZ NOT NULL,
	card_id      UUID NOT NULL,
	version      INTEGER NOT NULL,
	payload      JSONB NOT NULL,
	PRIMARY KEY (bucket, published_at, card_id)
);

CREATE TABLE IF NOT EXISTS entity_entries (
	entity_id    UUID NOT NULL,
	published_at TIMESTAMPTZ NOT NULL,
	card_id      UUID NOT NULL,
	version      INTEGER NOT NULL,
	payload      JSONB NOT NULL,
	PRIMARY KEY (entity_id, published_at, card_id)
);

CREATE TABLE IF NOT EXISTS citations (
	source_id          UUID NOT NULL,
	card_id            UUID NOT NULL,
	first_published_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (source_id, card_id)
);

CREATE TABLE IF NOT EXISTS outbox (
	id           UUID PRIMARY KEY,
	kind         TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	actor        TEXT NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL,
	payload      JSONB NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (occurred_at, id) WHERE published_at IS NULL;
`

// Open connects through the pgx stdlib driver and verifies the connection
// before handing the pool to callers.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Apply installs the schema. Every statement is idempotent, so applying
// against an initialized database is a no-op.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
