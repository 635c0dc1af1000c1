// backend/database/observation_store.go
package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/gostats/blsync/models"
)

// UpsertObservations writes one batch of observations in a single
// transaction. The (series_id, year, period) composite key makes this
// idempotent: re-running an unchanged batch rewrites the same values. The
// per-batch transaction is also the recovery unit: killing the process
// between batches loses at most one uncommitted batch.
func (s *Store) UpsertObservations(obs []models.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for observations: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO observations (series_id, year, period, value, footnote_codes, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
			value = VALUES(value),
			footnote_codes = VALUES(footnote_codes),
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare observation insert statement: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		var value sql.NullFloat64
		if o.Value != nil {
			value = sql.NullFloat64{Float64: *o.Value, Valid: true}
		}
		if _, err := stmt.Exec(o.SeriesID, o.Year, o.Period, value, o.FootnoteCodes); err != nil {
			return fmt.Errorf("failed to execute observation insert for %s %d/%s: %w", o.SeriesID, o.Year, o.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction for observations: %w", err)
	}

	log.Printf("Database: upserted %d observations.\n", len(obs))
	return nil
}
