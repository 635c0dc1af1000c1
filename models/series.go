// backend/models/series.go
package models

import "time"

// Series is one upstream time series as mirrored locally. Metadata comes from
// the survey flat files, not from the data API, and only changes when a survey's
// series file is reloaded.
type Series struct {
	SeriesID       string `db:"series_id"`   // unique within the survey namespace, e.g. "CUUR0000SA0"
	SurveyCode     string `db:"survey_code"` // two-letter survey prefix, e.g. "CU"
	Title          string `db:"title"`
	DimensionCodes string `db:"dimension_codes"` // survey-specific codes, stored as they appear in the series file
	BeginYear      int    `db:"begin_year"`
	BeginPeriod    string `db:"begin_period"`
	EndYear        int    `db:"end_year"`
	EndPeriod      string `db:"end_period"`

	// IsActive is true unless the recorded end of the series predates
	// "now minus one year". Recomputed on every metadata reload.
	IsActive bool `db:"is_active"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Observation is a single (series, year, period) data point. The composite key
// is the upsert target, so re-ingesting the same payload is idempotent.
type Observation struct {
	SeriesID      string     `db:"series_id"`
	Year          int        `db:"year"`
	Period        string     `db:"period"` // "M01".."M13", "Q01".."Q05", "S01".."S03", "A01"
	Value         *float64   `db:"value"`  // nil when upstream publishes a missing/unparseable value
	FootnoteCodes string     `db:"footnote_codes"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// YearPeriod identifies one point in a series' timeline. Periods within a year
// compare lexicographically, which matches the upstream period-code scheme
// (M01 < M12, Q01 < Q04).
type YearPeriod struct {
	Year   int
	Period string
}

// Compare returns -1, 0 or 1 ordering by year first, then period code.
func (p YearPeriod) Compare(other YearPeriod) int {
	if p.Year != other.Year {
		if p.Year < other.Year {
			return -1
		}
		return 1
	}
	if p.Period != other.Period {
		if p.Period < other.Period {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether p is strictly earlier than other.
func (p YearPeriod) Before(other YearPeriod) bool {
	return p.Compare(other) < 0
}
