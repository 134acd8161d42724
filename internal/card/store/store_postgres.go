package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"docket/internal/card/models"
	"docket/internal/events"
	id "docket/pkg/domain"
	"docket/pkg/platform/sentinel"
	txcontext "docket/pkg/platform/tx"
)

// PostgresStore persists cards as immutable version rows plus the publish
// fan-out tables. The version payload is the whole card serialized, so any
// version renders without joins; the columns beside it exist only for
// conditions and ordering.
//
// The (card_id, version) primary key is the concurrency arbiter: appending
// a version is an insert conditional on that pair being absent, and a
// writer that lost a race gets ErrConflict instead of overwriting.
type PostgresStore struct {
	db     *sql.DB
	outbox events.Outbox
}

func NewPostgres(db *sql.DB, outbox events.Outbox) *PostgresStore {
	return &PostgresStore{db: db, outbox: outbox}
}

// AppendVersion inserts one version row, plus any envelopes in the same
// transaction. RowsAffected zero means the version pair already exists.
func (s *PostgresStore) AppendVersion(ctx context.Context, card *models.EvidenceCard, envelopes ...events.Envelope) error {
	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	if len(envelopes) == 0 {
		res, err := s.db.ExecContext(ctx, insertVersionQuery, versionArgs(card, payload)...)
		if err != nil {
			return fmt.Errorf("insert card version: %w", err)
		}
		return settleVersionInsert(res)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertVersionQuery, versionArgs(card, payload)...)
	if err != nil {
		return fmt.Errorf("insert card version: %w", err)
	}
	if err := settleVersionInsert(res); err != nil {
		return err
	}
	if err := s.outbox.Append(txcontext.WithTx(ctx, tx), envelopes...); err != nil {
		return fmt.Errorf("append version envelopes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version: %w", err)
	}
	return nil
}

// Publish applies the whole fan-out in one transaction: version row, feed
// row, entity rows, citation rows, and the outbox envelope. The version
// insert goes first; losing that race rolls everything back before any
// index row lands.
func (s *PostgresStore) Publish(ctx context.Context, w PublishWrite) error {
	card := w.Card
	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertVersionQuery, versionArgs(card, payload)...)
	if err != nil {
		return fmt.Errorf("insert card version: %w", err)
	}
	if err := settleVersionInsert(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feed_entries (bucket, published_at, card_id, version, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, FeedBucket(w.PublishedAt), w.PublishedAt, uuid.UUID(card.ID), card.Version, string(payload))
	if err != nil {
		return fmt.Errorf("insert feed entry: %w", err)
	}

	for _, entityID := range card.EntityIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entity_entries (entity_id, published_at, card_id, version, payload)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.UUID(entityID), w.PublishedAt, uuid.UUID(card.ID), card.Version, string(payload))
		if err != nil {
			return fmt.Errorf("insert entity entry: %w", err)
		}
	}

	for _, sourceID := range card.SourceIDs {
		// Citations survive every later transition and keep the timestamp
		// of the first publish.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO citations (source_id, card_id, first_published_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (source_id, card_id) DO NOTHING
		`, uuid.UUID(sourceID), uuid.UUID(card.ID), w.PublishedAt)
		if err != nil {
			return fmt.Errorf("insert citation: %w", err)
		}
	}

	if err := s.outbox.Append(txcontext.WithTx(ctx, tx), w.Envelope); err != nil {
		return fmt.Errorf("append publish envelope: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCurrent(ctx context.Context, cardID id.CardID) (*models.EvidenceCard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM card_versions
		WHERE card_id = $1
		ORDER BY version DESC
		LIMIT 1
	`, uuid.UUID(cardID))
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get current version: %w", err)
	}
	return card, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, cardID id.CardID, version int) (*models.EvidenceCard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM card_versions
		WHERE card_id = $1 AND version = $2
	`, uuid.UUID(cardID), version)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return card, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, cardID id.CardID) ([]*models.EvidenceCard, error) {
	out, err := s.queryCards(ctx, `
		SELECT payload FROM card_versions
		WHERE card_id = $1
		ORDER BY version
	`, uuid.UUID(cardID))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out, nil
}

// ScanVersions returns every version row of every card, ordered by card
// then version.
func (s *PostgresStore) ScanVersions(ctx context.Context) ([]*models.EvidenceCard, error) {
	return s.queryCards(ctx, `
		SELECT payload FROM card_versions
		ORDER BY card_id, version
	`)
}

// ListFeed returns the publish snapshots in one month bucket, newest
// first. A limit of zero or less means no limit.
func (s *PostgresStore) ListFeed(ctx context.Context, bucket string, limit int) ([]*models.EvidenceCard, error) {
	query := `
		SELECT payload FROM feed_entries
		WHERE bucket = $1
		ORDER BY published_at DESC, card_id DESC
	`
	if limit > 0 {
		return s.queryCards(ctx, query+` LIMIT $2`, bucket, limit)
	}
	return s.queryCards(ctx, query, bucket)
}

// ListByEntity returns the publish snapshots referencing one entity,
// newest first. A limit of zero or less means no limit.
func (s *PostgresStore) ListByEntity(ctx context.Context, entityID id.EntityID, limit int) ([]*models.EvidenceCard, error) {
	query := `
		SELECT payload FROM entity_entries
		WHERE entity_id = $1
		ORDER BY published_at DESC, card_id DESC
	`
	if limit > 0 {
		return s.queryCards(ctx, query+` LIMIT $2`, uuid.UUID(entityID), limit)
	}
	return s.queryCards(ctx, query, uuid.UUID(entityID))
}

func (s *PostgresStore) HasPublishedCitation(ctx context.Context, sourceID id.SourceID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM citations WHERE source_id = $1)
	`, uuid.UUID(sourceID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe citations: %w", err)
	}
	return exists, nil
}

// ListCitations returns the ids of all cards that ever published a citation
// of the source, ordered by first publish.
func (s *PostgresStore) ListCitations(ctx context.Context, sourceID id.SourceID) ([]id.CardID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT card_id FROM citations
		WHERE source_id = $1
		ORDER BY first_published_at, card_id
	`, uuid.UUID(sourceID))
	if err != nil {
		return nil, fmt.Errorf("query citations: %w", err)
	}
	defer rows.Close()

	var out []id.CardID
	for rows.Next() {
		var cardID uuid.UUID
		if err := rows.Scan(&cardID); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		out = append(out, id.CardID(cardID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citations: %w", err)
	}
	return out, nil
}

const insertVersionQuery = `
	INSERT INTO card_versions (card_id, version, status, payload, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (card_id, version) DO NOTHING
`

func versionArgs(card *models.EvidenceCard, payload []byte) []any {
	return []any{
		uuid.UUID(card.ID),
		card.Version,
		string(card.Status),
		string(payload),
		card.UpdatedAt,
	}
}

func settleVersionInsert(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert card version: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) queryCards(ctx context.Context, query string, args ...any) ([]*models.EvidenceCard, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	var out []*models.EvidenceCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.EvidenceCard, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, err
	}
	var card models.EvidenceCard
	if err := json.Unmarshal(payload, &card); err != nil {
		return nil, fmt.Errorf("unmarshal card payload: %w", err)
	}
	return &card, nil
}
