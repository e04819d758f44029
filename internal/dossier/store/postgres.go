package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"dossierflow/internal/dossier/models"
	"dossierflow/pkg/domain"
	"dossierflow/pkg/platform/sentinel"
)

// Postgres stores each dossier as one row with the aggregate document in a
// JSONB column. The whole aggregate is the unit of locking; the updated_at
// column doubles as the optimistic-concurrency fence.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema is applied by deploy tooling and by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS dossiers (
    id         UUID PRIMARY KEY,
    client_id  UUID NOT NULL,
    status     TEXT NOT NULL,
    doc        JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS dossiers_client_idx ON dossiers (client_id);
CREATE INDEX IF NOT EXISTS dossiers_status_idx ON dossiers (status);

CREATE TABLE IF NOT EXISTS dossier_outbox (
    id            BIGSERIAL PRIMARY KEY,
    dossier_id    UUID NOT NULL,
    event         JSONB NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    dispatched_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS dossier_outbox_pending_idx ON dossier_outbox (id) WHERE dispatched_at IS NULL;
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

func (s *Postgres) Create(ctx context.Context, d *models.Dossier, events []models.DomainEvent) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dossier: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dossiers (id, client_id, status, doc, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			d.ID.String(), d.ClientID.String(), string(d.Status), doc, d.CreatedAt, d.UpdatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert dossier: %w", err)
		}
		return stageTx(ctx, tx, events)
	})
}

func (s *Postgres) FindByID(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM dossiers WHERE id = $1`, id.String(),
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find dossier: %w", err)
	}
	var d models.Dossier
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("unmarshal dossier: %w", err)
	}
	return &d, nil
}

// Update commits the aggregate and its events in one transaction, guarded
// by the updated_at fence. Zero rows affected means the caller read stale
// state.
func (s *Postgres) Update(ctx context.Context, d *models.Dossier, expectedUpdatedAt time.Time, events []models.DomainEvent) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dossier: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE dossiers SET status = $1, doc = $2, updated_at = $3
			 WHERE id = $4 AND updated_at = $5`,
			string(d.Status), doc, d.UpdatedAt, d.ID.String(), expectedUpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update dossier: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			exists, err := rowExists(ctx, tx, d.ID)
			if err != nil {
				return err
			}
			if !exists {
				return sentinel.ErrNotFound
			}
			return sentinel.ErrConcurrentModification
		}
		return stageTx(ctx, tx, events)
	})
}

func (s *Postgres) PendingBatch(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event, created_at FROM dossier_outbox
		 WHERE dispatched_at IS NULL ORDER BY id LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending outbox: %w", err)
	}
	defer rows.Close()

	var batch []models.OutboxEntry
	for rows.Next() {
		var entry models.OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Event); err != nil {
			return nil, fmt.Errorf("unmarshal outbox event: %w", err)
		}
		batch = append(batch, entry)
	}
	return batch, rows.Err()
}

func (s *Postgres) MarkDispatched(ctx context.Context, ids []int64, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE dossier_outbox SET dispatched_at = $1
		 WHERE id = ANY($2) AND dispatched_at IS NULL`,
		now, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}
	return nil
}

func (s *Postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func stageTx(ctx context.Context, tx *sql.Tx, events []models.DomainEvent) error {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO dossier_outbox (dossier_id, event, created_at) VALUES ($1, $2, $3)`,
			e.DossierID.String(), payload, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}
	return nil
}

func rowExists(ctx context.Context, tx *sql.Tx, id domain.DossierID) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM dossiers WHERE id = $1)`, id.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check dossier exists: %w", err)
	}
	return exists, nil
}
