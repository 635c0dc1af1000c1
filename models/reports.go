// backend/models/reports.go
package models

import "time"

// SeriesFreshness is one sentinel series' local-vs-upstream comparison.
type SeriesFreshness struct {
	SeriesID   string      `json:"series_id"`
	Local      *YearPeriod `json:"local,omitempty"`    // nil when nothing is stored locally
	Upstream   *YearPeriod `json:"upstream,omitempty"` // nil when upstream returned no data
	HasNewData bool        `json:"has_new_data"`
}

// FreshnessReport summarizes one survey's sentinel check. A failed check is
// still a report (HasNewData=false, Err set) so that one survey's failure
// never aborts a multi-survey sweep.
type FreshnessReport struct {
	SurveyCode        string           `json:"survey_code"`
	CheckedSeries     int              `json:"checked_series"`
	SeriesWithNewData int              `json:"series_with_new_data"`
	HasNewData        bool             `json:"has_new_data"`
	Example           *SeriesFreshness `json:"example,omitempty"` // one (old, new) pair when new data was found
	Err               string           `json:"error,omitempty"`
	CheckedAt         time.Time        `json:"checked_at"`
}

// CycleResult is what an update cycle hands back to its caller. Errors is a
// capped list of per-batch messages; the cycle never raises past the top-level
// call for batch failures.
type CycleResult struct {
	SurveyCode       string   `json:"survey_code"`
	TotalSeries      int      `json:"total_series"`
	UpdatedSeries    int      `json:"updated_series"`
	AttemptedBatches int      `json:"attempted_batches"`
	SucceededBatches int      `json:"succeeded_batches"`
	FailedBatches    int      `json:"failed_batches"`
	Completed        bool     `json:"completed"`
	QuotaStopped     bool     `json:"quota_stopped"`
	Errors           []string `json:"errors,omitempty"`
}

// SurveyStatus is the read-side view of a survey's cycle record.
type SurveyStatus struct {
	SurveyCode    string `json:"survey_code"`
	HasCycle      bool   `json:"has_cycle"`
	IsComplete    bool   `json:"is_complete"`
	InProgress    bool   `json:"in_progress"`
	TotalSeries   int    `json:"total_series"`
	UpdatedSeries int    `json:"updated_series"`
	NeedsUpdate   bool   `json:"needs_update"`
}
