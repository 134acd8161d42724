package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"docket/internal/events"
	"docket/internal/source/models"
	id "docket/pkg/domain"
	"docket/pkg/platform/sentinel"
	txcontext "docket/pkg/platform/tx"
)

// PostgresStore persists sources in the sources table. SaveVerification
// opens a transaction so the verified row and its outbox envelope commit
// together; the outbox store joins via the transaction context.
type PostgresStore struct {
	db     *sql.DB
	outbox events.Outbox
}

func NewPostgres(db *sql.DB, outbox events.Outbox) *PostgresStore {
	return &PostgresStore{db: db, outbox: outbox}
}

const sourceColumns = `
	id, title, publisher, origin_url, kind, status,
	content_hash, byte_size, mime_type, storage_key, manifest_key,
	signature, key_id, algorithm, retrieved_at, verified_at,
	failure_reason, created_at, created_by, updated_at, updated_by
`

func (s *PostgresStore) Create(ctx context.Context, src *models.Source) error {
	query := `
		INSERT INTO sources (` + sourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(src.ID),
		src.Title,
		src.Publisher,
		src.OriginURL,
		string(src.Kind),
		string(src.Status),
		src.ContentHash,
		src.ByteSize,
		src.MimeType,
		src.StorageKey,
		src.ManifestKey,
		src.Signature,
		src.KeyID,
		src.Algorithm,
		src.RetrievedAt,
		src.VerifiedAt,
		src.FailureReason,
		src.CreatedAt,
		src.CreatedBy.String(),
		src.UpdatedAt,
		src.UpdatedBy.String(),
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sourceID id.SourceID) (*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(sourceID))
	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// SaveVerification updates the row to VERIFIED and appends the outbox
// envelope in one transaction. The update is conditional on the stored
// status still being verifiable.
func (s *PostgresStore) SaveVerification(ctx context.Context, src *models.Source, env events.Envelope) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin verification tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE sources
		SET status = $2, content_hash = $3, byte_size = $4, mime_type = $5,
		    storage_key = $6, manifest_key = $7, signature = $8, key_id = $9,
		    algorithm = $10, retrieved_at = $11, verified_at = $12,
		    failure_reason = '', updated_at = $13, updated_by = $14
		WHERE id = $1 AND status IN ('PENDING', 'FAILED')
	`
	res, err := tx.ExecContext(ctx, query,
		uuid.UUID(src.ID),
		string(src.Status),
		src.ContentHash,
		src.ByteSize,
		src.MimeType,
		src.StorageKey,
		src.ManifestKey,
		src.Signature,
		src.KeyID,
		src.Algorithm,
		src.RetrievedAt,
		src.VerifiedAt,
		src.UpdatedAt,
		src.UpdatedBy.String(),
	)
	if err != nil {
		return fmt.Errorf("update source verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update source verification: %w", err)
	}
	if n == 0 {
		return s.settleZeroRows(ctx, tx, src.ID)
	}

	if err := s.outbox.Append(txcontext.WithTx(ctx, tx), env); err != nil {
		return fmt.Errorf("append verification envelope: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit verification: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt; only status, reason, and update
// stamps change. Conditional on the row not being VERIFIED.
func (s *PostgresStore) MarkFailed(ctx context.Context, src *models.Source) error {
	query := `
		UPDATE sources
		SET status = $2, failure_reason = $3, updated_at = $4, updated_by = $5
		WHERE id = $1 AND status IN ('PENDING', 'FAILED')
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(src.ID),
		string(src.Status),
		src.FailureReason,
		src.UpdatedAt,
		src.UpdatedBy.String(),
	)
	if err != nil {
		return fmt.Errorf("mark source failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark source failed: %w", err)
	}
	if n == 0 {
		return s.settleZeroRows(ctx, nil, src.ID)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []*models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// settleZeroRows distinguishes a missing row from a settled one after a
// conditional update matched nothing.
func (s *PostgresStore) settleZeroRows(ctx context.Context, tx *sql.Tx, sourceID id.SourceID) error {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM sources WHERE id = $1)`
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, uuid.UUID(sourceID)).Scan(&exists)
	} else {
		err = s.db.QueryRowContext(ctx, query, uuid.UUID(sourceID)).Scan(&exists)
	}
	if err != nil {
		return fmt.Errorf("probe source: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var (
		src         models.Source
		sourceID    uuid.UUID
		kind        string
		status      string
		retrievedAt sql.NullTime
		verifiedAt  sql.NullTime
		createdBy   string
		updatedBy   string
	)
	err := row.Scan(
		&sourceID,
		&src.Title,
		&src.Publisher,
		&src.OriginURL,
		&kind,
		&status,
		&src.ContentHash,
		&src.ByteSize,
		&src.MimeType,
		&src.StorageKey,
		&src.ManifestKey,
		&src.Signature,
		&src.KeyID,
		&src.Algorithm,
		&retrievedAt,
		&verifiedAt,
		&src.FailureReason,
		&src.CreatedAt,
		&createdBy,
		&src.UpdatedAt,
		&updatedBy,
	)
	if err != nil {
		return nil, err
	}
	src.ID = id.SourceID(sourceID)
	src.Kind = models.SourceKind(kind)
	src.Status = models.SourceStatus(status)
	if retrievedAt.Valid {
		t := retrievedAt.Time
		src.RetrievedAt = &t
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		src.VerifiedAt = &t
	}
	src.CreatedBy = id.ActorID(createdBy)
	src.UpdatedBy = id.ActorID(updatedBy)
	return &src, nil
}
