// backend/database/status_store.go
package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/gostats/blsync/models"
)

// UpsertStatuses persists one batch of per-series checkpoints. Only the
// update orchestrator calls this, after the batch's observations committed.
func (s *Store) UpsertStatuses(statuses []models.SeriesUpdateStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for series statuses: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO series_update_status (series_id, survey_code, last_checked_at, last_updated_at, is_current)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			survey_code = VALUES(survey_code),
			last_checked_at = VALUES(last_checked_at),
			last_updated_at = VALUES(last_updated_at),
			is_current = VALUES(is_current)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare status insert statement: %w", err)
	}
	defer stmt.Close()

	for _, st := range statuses {
		var checked, updated sql.NullTime
		if st.LastCheckedAt != nil {
			checked = sql.NullTime{Time: *st.LastCheckedAt, Valid: true}
		}
		if st.LastUpdatedAt != nil {
			updated = sql.NullTime{Time: *st.LastUpdatedAt, Valid: true}
		}
		if _, err := stmt.Exec(st.SeriesID, st.SurveyCode, checked, updated, st.IsCurrent); err != nil {
			return fmt.Errorf("failed to execute status insert for '%s': %w", st.SeriesID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction for series statuses: %w", err)
	}
	return nil
}

// MarkSurveyNotCurrent clears every is_current flag for a survey. A forced
// cycle calls this first so the whole survey becomes its target set.
func (s *Store) MarkSurveyNotCurrent(surveyCode string) error {
	res, err := s.db.Exec(`
		UPDATE series_update_status SET is_current = 0 WHERE survey_code = ?
	`, surveyCode)
	if err != nil {
		return fmt.Errorf("failed to mark survey %s not current: %w", surveyCode, err)
	}
	n, _ := res.RowsAffected()
	log.Printf("Database: marked %d series not current for survey %s.\n", n, surveyCode)
	return nil
}
