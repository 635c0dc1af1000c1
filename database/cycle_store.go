// backend/database/cycle_store.go
package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/gostats/blsync/models"
)

// Cycle returns a survey's cycle record, or nil when the survey has never had
// an update cycle (the NOT_STARTED state).
func (s *Store) Cycle(surveyCode string) (*models.SurveyCycle, error) {
	var c models.SurveyCycle
	var started, completed sql.NullTime
	err := s.db.QueryRow(`
		SELECT survey_code, in_progress, started_at, completed_at,
		       total_series, updated_series, needs_update, updated_at
		FROM survey_update_cycles
		WHERE survey_code = ?
	`, surveyCode).Scan(
		&c.SurveyCode, &c.InProgress, &started, &completed,
		&c.TotalSeries, &c.UpdatedSeries, &c.NeedsUpdate, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query cycle for %s: %w", surveyCode, err)
	}
	if started.Valid {
		c.StartedAt = &started.Time
	}
	if completed.Valid {
		c.CompletedAt = &completed.Time
	}
	return &c, nil
}

// StartCycle marks a survey's cycle IN_PROGRESS with the target size and a
// zeroed progress counter, replacing whatever the previous cycle left behind.
func (s *Store) StartCycle(surveyCode string, totalSeries int) error {
	_, err := s.db.Exec(`
		INSERT INTO survey_update_cycles
			(survey_code, in_progress, started_at, completed_at, total_series, updated_series)
		VALUES (?, 1, NOW(), NULL, ?, 0)
		ON DUPLICATE KEY UPDATE
			in_progress = 1,
			started_at = NOW(),
			completed_at = NULL,
			total_series = VALUES(total_series),
			updated_series = 0
	`, surveyCode, totalSeries)
	if err != nil {
		return fmt.Errorf("failed to start cycle for %s: %w", surveyCode, err)
	}
	log.Printf("Database: cycle started for %s with %d target series.\n", surveyCode, totalSeries)
	return nil
}

// SetCycleProgress advances the cycle's updated-series counter.
func (s *Store) SetCycleProgress(surveyCode string, updatedSeries int) error {
	_, err := s.db.Exec(`
		UPDATE survey_update_cycles SET updated_series = ? WHERE survey_code = ?
	`, updatedSeries, surveyCode)
	if err != nil {
		return fmt.Errorf("failed to set cycle progress for %s: %w", surveyCode, err)
	}
	return nil
}

// FinishCycle clears in_progress. A completed cycle also gets a completion
// timestamp and its needs_update flag cleared; an interrupted one keeps both
// so the next invocation picks the survey back up.
func (s *Store) FinishCycle(surveyCode string, completed bool) error {
	var err error
	if completed {
		_, err = s.db.Exec(`
			UPDATE survey_update_cycles
			SET in_progress = 0, completed_at = NOW(), needs_update = 0
			WHERE survey_code = ?
		`, surveyCode)
	} else {
		_, err = s.db.Exec(`
			UPDATE survey_update_cycles SET in_progress = 0 WHERE survey_code = ?
		`, surveyCode)
	}
	if err != nil {
		return fmt.Errorf("failed to finish cycle for %s: %w", surveyCode, err)
	}
	return nil
}

// SetNeedsUpdate flags (or clears) a survey as having fresh upstream data.
// The freshness detector sets it; a completed cycle clears it.
func (s *Store) SetNeedsUpdate(surveyCode string, needs bool) error {
	_, err := s.db.Exec(`
		INSERT INTO survey_update_cycles (survey_code, needs_update)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE needs_update = VALUES(needs_update)
	`, surveyCode, needs)
	if err != nil {
		return fmt.Errorf("failed to set needs_update for %s: %w", surveyCode, err)
	}
	return nil
}
