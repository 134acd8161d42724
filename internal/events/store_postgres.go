package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "docket/pkg/domain"
	txcontext "docket/pkg/platform/tx"
)

// PostgresOutbox persists envelopes in the outbox table. Append joins the
// caller's transaction when one is present in the context, so an envelope
// commits or aborts together with the state change that produced it.
type PostgresOutbox struct {
	db *sql.DB
}

func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresOutbox) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes envelopes to the outbox. Duplicate envelope IDs are ignored
// so a retried write stays idempotent.
func (s *PostgresOutbox) Append(ctx context.Context, envelopes ...Envelope) error {
	query := `
		INSERT INTO outbox (id, kind, aggregate_id, actor, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	for _, env := range envelopes {
		_, err := s.execer(ctx).ExecContext(ctx, query,
			env.ID,
			string(env.Kind),
			env.AggregateID,
			env.Actor.String(),
			env.OccurredAt,
			[]byte(env.Payload),
		)
		if err != nil {
			return fmt.Errorf("insert outbox envelope: %w", err)
		}
	}
	return nil
}

// Pending returns up to limit unpublished envelopes, oldest first.
func (s *PostgresOutbox) Pending(ctx context.Context, limit int) ([]Envelope, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
		SELECT id, kind, aggregate_id, actor, occurred_at, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY occurred_at, id
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending envelopes: %w", err)
	}
	defer rows.Close()

	var out []Envelope
	for rows.Next() {
		var (
			env   Envelope
			kind  string
			actor string
		)
		if err := rows.Scan(&env.ID, &kind, &env.AggregateID, &actor, &env.OccurredAt, &env.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox envelope: %w", err)
		}
		env.Kind = Kind(kind)
		env.Actor = id.ActorID(actor)
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox envelopes: %w", err)
	}
	return out, nil
}

// MarkPublished stamps envelopes as relayed so they drop out of Pending.
func (s *PostgresOutbox) MarkPublished(ctx context.Context, ids ...uuid.UUID) error {
	query := `
		UPDATE outbox
		SET published_at = $1
		WHERE id = $2 AND published_at IS NULL
	`
	now := time.Now()
	for _, envID := range ids {
		if _, err := s.db.ExecContext(ctx, query, now, envID); err != nil {
			return fmt.Errorf("mark envelope published: %w", err)
		}
	}
	return nil
}
