// backend/database/series_store.go
package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gostats/blsync/models"
)

// UpsertSeries saves survey series metadata in one transaction, inserting new
// series and refreshing metadata for known ones. Called only on metadata
// reloads.
func (s *Store) UpsertSeries(series []models.Series) error {
	if len(series) == 0 {
		log.Println("Database: no series provided to save.")
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for series: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO series (
			series_id, survey_code, title, dimension_codes,
			begin_year, begin_period, end_year, end_period, is_active, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
			survey_code = VALUES(survey_code),
			title = VALUES(title),
			dimension_codes = VALUES(dimension_codes),
			begin_year = VALUES(begin_year),
			begin_period = VALUES(begin_period),
			end_year = VALUES(end_year),
			end_period = VALUES(end_period),
			is_active = VALUES(is_active),
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare series insert statement: %w", err)
	}
	defer stmt.Close()

	for _, sr := range series {
		_, err := stmt.Exec(
			sr.SeriesID, sr.SurveyCode, sr.Title, sr.DimensionCodes,
			sr.BeginYear, sr.BeginPeriod, sr.EndYear, sr.EndPeriod, sr.IsActive,
		)
		if err != nil {
			return fmt.Errorf("failed to execute series insert for '%s': %w", sr.SeriesID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction for series: %w", err)
	}

	log.Printf("Database: saved %d series.\n", len(series))
	return nil
}

// ActiveSeriesIDs returns a survey's active series ids in stable id order.
// Deterministic ordering keeps repeated cycles over the same pending set
// identical, which is what makes interrupted runs resumable and debuggable.
func (s *Store) ActiveSeriesIDs(surveyCode string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT series_id FROM series
		WHERE survey_code = ? AND is_active = 1
		ORDER BY series_id
	`, surveyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query active series for %s: %w", surveyCode, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// StaleSeriesIDs returns a survey's active series that are not marked current,
// including series that have no status row yet, in stable id order.
func (s *Store) StaleSeriesIDs(surveyCode string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT sr.series_id
		FROM series sr
		LEFT JOIN series_update_status st ON st.series_id = sr.series_id
		WHERE sr.survey_code = ? AND sr.is_active = 1
		  AND (st.series_id IS NULL OR st.is_current = 0)
		ORDER BY sr.series_id
	`, surveyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale series for %s: %w", surveyCode, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan series id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating series id rows: %w", err)
	}
	return ids, nil
}

// LatestObservation returns the latest stored (year, period) for one series:
// max year, then max period within that year. The second return is false when
// nothing is stored.
func (s *Store) LatestObservation(seriesID string) (models.YearPeriod, bool, error) {
	var yp models.YearPeriod
	err := s.db.QueryRow(`
		SELECT year, period FROM observations
		WHERE series_id = ?
		ORDER BY year DESC, period DESC
		LIMIT 1
	`, seriesID).Scan(&yp.Year, &yp.Period)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.YearPeriod{}, false, nil
		}
		return models.YearPeriod{}, false, fmt.Errorf("failed to query latest observation for %s: %w", seriesID, err)
	}
	return yp, true, nil
}

// MaxStoredYears returns each series' latest stored year. Series with no
// observations are absent from the map.
func (s *Store) MaxStoredYears(seriesIDs []string) (map[string]int, error) {
	if len(seriesIDs) == 0 {
		return map[string]int{}, nil
	}

	placeholders := strings.Repeat("?,", len(seriesIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(seriesIDs))
	for i, id := range seriesIDs {
		args[i] = id
	}

	rows, err := s.db.Query(`
		SELECT series_id, MAX(year) FROM observations
		WHERE series_id IN (`+placeholders+`)
		GROUP BY series_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query max stored years: %w", err)
	}
	defer rows.Close()

	years := make(map[string]int, len(seriesIDs))
	for rows.Next() {
		var id string
		var year int
		if err := rows.Scan(&id, &year); err != nil {
			return nil, fmt.Errorf("failed to scan max stored year: %w", err)
		}
		years[id] = year
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating max stored year rows: %w", err)
	}
	return years, nil
}

// DeactivateExpiredSeries clears the active flag on a survey's series whose
// recorded end year predates the cutoff. Returns how many rows changed.
func (s *Store) DeactivateExpiredSeries(surveyCode string, cutoffYear int) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE series SET is_active = 0, updated_at = NOW()
		WHERE survey_code = ? AND is_active = 1 AND end_year > 0 AND end_year < ?
	`, surveyCode, cutoffYear)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired series for %s: %w", surveyCode, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("Database: deactivated %d expired series for %s.\n", n, surveyCode)
	}
	return n, nil
}
