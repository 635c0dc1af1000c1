// backend/database/usage_store.go
package database

import (
	"fmt"
	"log"
	"time"

	"github.com/gostats/blsync/models"
)

const usageDateLayout = "2006-01-02"

// InsertUsage appends one record to the API usage ledger. Rows are never
// mutated after insert; the ledger aggregates by date.
func (s *Store) InsertUsage(rec models.UsageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO api_usage (usage_date, requests_used, series_count, survey_code, script_name)
		VALUES (?, ?, ?, ?, ?)
	`, rec.UsageDate.Format(usageDateLayout), rec.RequestsUsed, rec.SeriesCount, rec.SurveyCode, rec.ScriptName)
	if err != nil {
		return fmt.Errorf("failed to insert usage record for %s: %w", rec.SurveyCode, err)
	}
	return nil
}

// SumUsageForDate totals requests_used over one date. Usage on other dates is
// excluded by the WHERE clause, not by filtering in Go.
func (s *Store) SumUsageForDate(date time.Time) (int, error) {
	var total int
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(requests_used), 0) FROM api_usage WHERE usage_date = ?
	`, date.Format(usageDateLayout)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage for %s: %w", date.Format(usageDateLayout), err)
	}
	return total, nil
}

// UsageForDate returns one date's ledger entries, oldest first.
func (s *Store) UsageForDate(date time.Time) ([]models.UsageRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, usage_date, requests_used, series_count, survey_code, script_name, created_at
		FROM api_usage
		WHERE usage_date = ?
		ORDER BY id
	`, date.Format(usageDateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage for %s: %w", date.Format(usageDateLayout), err)
	}
	defer rows.Close()

	var recs []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		if err := rows.Scan(&r.ID, &r.UsageDate, &r.RequestsUsed, &r.SeriesCount, &r.SurveyCode, &r.ScriptName, &r.CreatedAt); err != nil {
			log.Printf("ERROR Database: failed to scan usage row: %v", err)
			continue
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage rows: %w", err)
	}
	return recs, nil
}
