// backend/services/interfaces.go
package services

import (
	"time"

	"github.com/gostats/blsync/blsapi"
	"github.com/gostats/blsync/models"
)

// SeriesStore is the slice of the mirror the sync services read and write.
// database.Store satisfies it; tests use in-memory fakes.
type SeriesStore interface {
	ActiveSeriesIDs(surveyCode string) ([]string, error)
	StaleSeriesIDs(surveyCode string) ([]string, error)
	LatestObservation(seriesID string) (models.YearPeriod, bool, error)
	MaxStoredYears(seriesIDs []string) (map[string]int, error)
	UpsertObservations(obs []models.Observation) error
	UpsertStatuses(statuses []models.SeriesUpdateStatus) error
	MarkSurveyNotCurrent(surveyCode string) error
	UpsertSeries(series []models.Series) error
	DeactivateExpiredSeries(surveyCode string, cutoffYear int) (int64, error)
}

// CycleStore persists per-survey cycle records.
type CycleStore interface {
	Cycle(surveyCode string) (*models.SurveyCycle, error)
	StartCycle(surveyCode string, totalSeries int) error
	SetCycleProgress(surveyCode string, updatedSeries int) error
	FinishCycle(surveyCode string, completed bool) error
	SetNeedsUpdate(surveyCode string, needs bool) error
}

// UsageStore persists the append-only API usage ledger.
type UsageStore interface {
	InsertUsage(rec models.UsageRecord) error
	SumUsageForDate(date time.Time) (int, error)
}

// SeriesFetcher is what the sync services need from the batch API client.
type SeriesFetcher interface {
	Fetch(seriesIDs []string, startYear, endYear int, opts blsapi.FetchOptions) ([]blsapi.Row, error)
	Backfill(seriesIDs []string, startYear, endYear int, opts blsapi.FetchOptions) ([]blsapi.Row, error)
}
