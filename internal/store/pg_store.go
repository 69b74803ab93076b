package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PGStore persists committed allocation batches to Postgres. Each batch is
// applied in a single transaction so the remote state never reflects a
// half-applied commit.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) ApplyBatch(ctx context.Context, batch ChangeBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer tx.Rollback()

	const insertBatch = `
		INSERT INTO allocation_batches (id, opportunity_id, change_count, submitted_at)
		VALUES ($1,$2,$3,$4)
	`
	if _, err := tx.ExecContext(ctx, insertBatch, batch.ID, batch.OpportunityID, len(batch.Changes), batch.SubmittedAt); err != nil {
		return fmt.Errorf("insert batch %s: %w", batch.ID, err)
	}

	const upsert = `
		INSERT INTO site_allocations (opportunity_id, site_id, passes, time_distribution, override_reason, batch_id, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT (opportunity_id, site_id)
		DO UPDATE SET passes = EXCLUDED.passes,
			time_distribution = EXCLUDED.time_distribution,
			override_reason = EXCLUDED.override_reason,
			batch_id = EXCLUDED.batch_id,
			updated_at = NOW()
	`
	const remove = `
		DELETE FROM site_allocations WHERE opportunity_id=$1 AND site_id=$2
	`
	for _, ch := range batch.Changes {
		if ch.Passes == 0 {
			if _, err := tx.ExecContext(ctx, remove, ch.OpportunityID, ch.SiteID); err != nil {
				return fmt.Errorf("remove allocation %s/%s: %w", ch.OpportunityID, ch.SiteID, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, upsert, ch.OpportunityID, ch.SiteID, ch.Passes, ch.TimeDistribution, ch.OverrideReason, batch.ID); err != nil {
			return fmt.Errorf("upsert allocation %s/%s: %w", ch.OpportunityID, ch.SiteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch tx: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
