// backend/services/freshness_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gostats/blsync/blsapi"
	"github.com/gostats/blsync/models"
)

// ErrNoActiveSeries is returned when a survey has nothing to sample. It is an
// explicit error rather than a "no new data" result: an empty survey is a
// configuration problem, not a fresh one.
var ErrNoActiveSeries = errors.New("survey has no active series")

const defaultSampleSize = 5

// FreshnessService decides cheaply whether a survey likely changed upstream.
// It samples a small fixed set of sentinel series (the first N active by id;
// surveys publish whole reference periods at once, so any sentinel moving is
// a reliable survey-level signal) and compares each one's upstream latest
// (year, period) against the locally stored latest.
type FreshnessService struct {
	Series SeriesStore
	Cycles CycleStore
	Client SeriesFetcher
	Ledger *QuotaLedger

	SampleSize int
	ScriptName string

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *FreshnessService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *FreshnessService) sampleSize() int {
	if s.SampleSize > 0 {
		return s.SampleSize
	}
	return defaultSampleSize
}

// CheckSurveys runs one freshness check per survey. A survey whose check
// fails becomes a report entry with HasNewData=false and the error message;
// it never aborts the rest of the sweep.
func (s *FreshnessService) CheckSurveys(surveyCodes []string) []models.FreshnessReport {
	reports := make([]models.FreshnessReport, 0, len(surveyCodes))
	for _, code := range surveyCodes {
		report, err := s.CheckSurvey(code)
		if err != nil {
			log.Printf("Service: freshness check failed for %s: %v\n", code, err)
			report = models.FreshnessReport{SurveyCode: code, Err: err.Error(), CheckedAt: s.now()}
		}
		reports = append(reports, report)
	}
	return reports
}

// CheckSurvey samples the survey's sentinels, issues one batch fetch covering
// the current and prior year, and reports whether any sentinel has data newer
// than the mirror. Fetch failures are folded into the report (never raised);
// only empty surveys and local store failures return an error.
func (s *FreshnessService) CheckSurvey(surveyCode string) (models.FreshnessReport, error) {
	now := s.now()
	report := models.FreshnessReport{SurveyCode: surveyCode, CheckedAt: now}

	ids, err := s.Series.ActiveSeriesIDs(surveyCode)
	if err != nil {
		return report, fmt.Errorf("failed to load active series for %s: %w", surveyCode, err)
	}
	if len(ids) == 0 {
		return report, fmt.Errorf("%w: %s", ErrNoActiveSeries, surveyCode)
	}

	sentinels := ids
	if len(sentinels) > s.sampleSize() {
		sentinels = sentinels[:s.sampleSize()]
	}
	report.CheckedSeries = len(sentinels)

	local := make(map[string]*models.YearPeriod, len(sentinels))
	for _, id := range sentinels {
		yp, ok, err := s.Series.LatestObservation(id)
		if err != nil {
			return report, fmt.Errorf("failed to load latest observation for %s: %w", id, err)
		}
		if ok {
			stored := yp
			local[id] = &stored
		}
	}

	// One request covers all sentinels across the current and prior year.
	rows, fetchErr := s.Client.Fetch(sentinels, now.Year()-1, now.Year(), blsapi.FetchOptions{})

	// The check spent a request whether or not it succeeded.
	if err := s.Ledger.Record(1, len(sentinels), surveyCode, s.ScriptName); err != nil {
		log.Printf("ERROR Service: failed to record freshness check usage for %s: %v\n", surveyCode, err)
	}

	if fetchErr != nil {
		report.Err = fetchErr.Error()
		log.Printf("WARN Service: sentinel fetch failed for %s: %v\n", surveyCode, fetchErr)
		return report, nil
	}

	upstream := latestBySeries(rows)
	for _, id := range sentinels {
		entry := models.SeriesFreshness{SeriesID: id, Local: local[id], Upstream: upstream[id]}
		if entry.Upstream != nil && (entry.Local == nil || entry.Local.Before(*entry.Upstream)) {
			entry.HasNewData = true
			report.SeriesWithNewData++
			if report.Example == nil {
				example := entry
				report.Example = &example
			}
		}
	}
	report.HasNewData = report.SeriesWithNewData > 0

	if report.HasNewData {
		if err := s.Cycles.SetNeedsUpdate(surveyCode, true); err != nil {
			log.Printf("ERROR Service: failed to flag %s for update: %v\n", surveyCode, err)
		}
		log.Printf("Service: survey %s has new data (%d of %d sentinels moved).\n",
			surveyCode, report.SeriesWithNewData, report.CheckedSeries)
	} else {
		log.Printf("Service: survey %s appears unchanged (%d sentinels checked).\n",
			surveyCode, report.CheckedSeries)
	}
	return report, nil
}

// latestBySeries reduces fetched rows to each series' latest (year, period).
func latestBySeries(rows []blsapi.Row) map[string]*models.YearPeriod {
	latest := make(map[string]*models.YearPeriod)
	for _, r := range rows {
		yp := models.YearPeriod{Year: r.Year, Period: r.Period}
		if cur, ok := latest[r.SeriesID]; !ok || cur.Before(yp) {
			stored := yp
			latest[r.SeriesID] = &stored
		}
	}
	return latest
}
