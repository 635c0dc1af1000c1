// backend/models/sync.go
package models

import "time"

// SeriesUpdateStatus is the per-series resumability checkpoint. A cycle that is
// interrupted mid-way leaves some series current (skipped on retry) and the
// rest not-current (retried on the next invocation). Only the update
// orchestrator writes these rows, after each committed batch.
type SeriesUpdateStatus struct {
	SeriesID      string     `db:"series_id"`
	SurveyCode    string     `db:"survey_code"`
	LastCheckedAt *time.Time `db:"last_checked_at"`
	LastUpdatedAt *time.Time `db:"last_updated_at"`
	IsCurrent     bool       `db:"is_current"`
}

// UsageRecord is one append-only entry in the daily API usage ledger. Records
// are written after every request attempt, success or failure, so the ledger
// reflects real quota spend even on partial failure. Never mutated after insert.
type UsageRecord struct {
	ID           int64     `db:"id"`
	UsageDate    time.Time `db:"usage_date"` // date only, UTC
	RequestsUsed int       `db:"requests_used"`
	SeriesCount  int       `db:"series_count"`
	SurveyCode   string    `db:"survey_code"`
	ScriptName   string    `db:"script_name"`
	CreatedAt    time.Time `db:"created_at"`
}

// SurveyCycle tracks one survey's update cycle: NOT_STARTED (no row),
// IN_PROGRESS, COMPLETED. There is no persisted "failed" state; batch failures
// are reported in the cycle result and the affected series simply stay
// not-current.
type SurveyCycle struct {
	SurveyCode    string     `db:"survey_code"`
	InProgress    bool       `db:"in_progress"`
	StartedAt     *time.Time `db:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"`
	TotalSeries   int        `db:"total_series"`
	UpdatedSeries int        `db:"updated_series"`
	NeedsUpdate   bool       `db:"needs_update"`
	UpdatedAt     time.Time  `db:"updated_at"`
}
