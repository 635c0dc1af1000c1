// backend/services/update_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/gostats/blsync/blsapi"
	"github.com/gostats/blsync/models"
)

// ErrCycleInProgress guards against two cycles racing over one survey.
var ErrCycleInProgress = errors.New("update cycle already in progress")

const (
	// BatchSize matches the upstream per-request series limit so one batch
	// spends one request per year window.
	BatchSize = blsapi.MaxSeriesPerRequest

	// maxReportedErrors caps the per-batch error list in a cycle result.
	maxReportedErrors = 10

	defaultLagYears  = 1
	defaultYearsBack = 1
)

// UpdateParams describes one update cycle request.
type UpdateParams struct {
	SurveyCode string

	// Force marks every series not-current first, so the target set becomes
	// all active series instead of just the stale ones.
	Force bool

	// StartYear/EndYear bound the refresh range. Zero values default to
	// [currentYear-DefaultYearsBack, currentYear]. Ranges wider than the
	// per-request span limit go through the client's backfill path.
	StartYear int
	EndYear   int

	// MaxRequests is a caller-supplied request ceiling for this cycle; 0
	// means bounded only by the daily quota. When the ceiling is hit the
	// cycle stops early and unattempted series stay not-current.
	MaxRequests int

	// Progress, when set, is invoked after each committed batch.
	Progress func(updated, total int)
}

// UpdateService drives resumable refresh cycles: batches in stable series-id
// order, one transaction per batch, a checkpoint row per series. Killing the
// process between batches is safe; un-committed series stay not-current and
// the next invocation picks them up.
type UpdateService struct {
	Series SeriesStore
	Cycles CycleStore
	Client SeriesFetcher
	Ledger *QuotaLedger

	DailyLimit int
	ScriptName string

	// LagYears is the publication-lag tolerance: a series counts as current
	// when its latest stored year is within this many years of the target
	// end year. Applied uniformly across surveys even though real
	// publication lags differ; see DESIGN.md.
	LagYears int

	// DefaultYearsBack sets the refresh range when the caller gives none.
	DefaultYearsBack int

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *UpdateService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *UpdateService) lagYears() int {
	if s.LagYears > 0 {
		return s.LagYears
	}
	return defaultLagYears
}

// UpdateSurvey runs one cycle for a survey. Batch failures are recorded in
// the result and the cycle continues; a quota-kind failure or an exhausted
// request budget stops it early with Completed=false.
func (s *UpdateService) UpdateSurvey(p UpdateParams) (models.CycleResult, error) {
	result := models.CycleResult{SurveyCode: p.SurveyCode}

	cycle, err := s.Cycles.Cycle(p.SurveyCode)
	if err != nil {
		return result, fmt.Errorf("failed to load cycle for %s: %w", p.SurveyCode, err)
	}
	if cycle != nil && cycle.InProgress {
		return result, fmt.Errorf("%w: %s", ErrCycleInProgress, p.SurveyCode)
	}

	startYear, endYear, err := s.resolveYears(p)
	if err != nil {
		return result, err
	}

	target, err := s.resolveTarget(p)
	if err != nil {
		return result, err
	}
	sort.Strings(target)
	result.TotalSeries = len(target)

	if len(target) == 0 {
		// Nothing stale: a zero-work complete cycle.
		if err := s.Cycles.StartCycle(p.SurveyCode, 0); err != nil {
			return result, err
		}
		if err := s.Cycles.FinishCycle(p.SurveyCode, true); err != nil {
			return result, err
		}
		result.Completed = true
		log.Printf("Service: survey %s already current, zero-work cycle.\n", p.SurveyCode)
		return result, nil
	}

	if err := s.Cycles.StartCycle(p.SurveyCode, len(target)); err != nil {
		return result, err
	}
	log.Printf("Service: starting update cycle for %s: %d series over %d-%d.\n",
		p.SurveyCode, len(target), startYear, endYear)

	updated := 0
	requestsSpent := 0
	quotaStopped := false
	stoppedEarly := false

	for begin := 0; begin < len(target); begin += BatchSize {
		stop := begin + BatchSize
		if stop > len(target) {
			stop = len(target)
		}
		batch := target[begin:stop]
		batchRequests := blsapi.NumRequests(len(batch), startYear, endYear)

		if p.MaxRequests > 0 && requestsSpent+batchRequests > p.MaxRequests {
			log.Printf("Service: request ceiling (%d) reached for %s, stopping early.\n", p.MaxRequests, p.SurveyCode)
			quotaStopped = true
			break
		}
		remaining, err := s.Ledger.Remaining(s.DailyLimit)
		if err != nil {
			result.Errors = appendCapped(result.Errors, fmt.Sprintf("quota check: %v", err))
			stoppedEarly = true
			break
		}
		if remaining < batchRequests {
			log.Printf("Service: daily quota exhausted (%d remaining) for %s, stopping early.\n", remaining, p.SurveyCode)
			quotaStopped = true
			break
		}

		result.AttemptedBatches++
		rows, fetchErr := s.fetchBatch(batch, startYear, endYear)

		// The ledger reflects real spend, success or failure.
		if err := s.Ledger.Record(batchRequests, len(batch), p.SurveyCode, s.ScriptName); err != nil {
			log.Printf("ERROR Service: failed to record usage for %s: %v\n", p.SurveyCode, err)
		}
		requestsSpent += batchRequests

		if fetchErr != nil {
			result.FailedBatches++
			result.Errors = appendCapped(result.Errors, fetchErr.Error())
			var apiErr *blsapi.APIError
			if errors.As(fetchErr, &apiErr) && apiErr.Kind == blsapi.KindQuota {
				log.Printf("Service: upstream quota hit for %s, stopping cycle.\n", p.SurveyCode)
				quotaStopped = true
				break
			}
			log.Printf("ERROR Service: batch failed for %s (%d series), continuing: %v\n",
				p.SurveyCode, len(batch), fetchErr)
			continue
		}

		if err := s.commitBatch(p.SurveyCode, batch, rows, endYear); err != nil {
			result.FailedBatches++
			result.Errors = appendCapped(result.Errors, err.Error())
			log.Printf("ERROR Service: failed to commit batch for %s, continuing: %v\n", p.SurveyCode, err)
			continue
		}

		result.SucceededBatches++
		updated += len(batch)
		if err := s.Cycles.SetCycleProgress(p.SurveyCode, updated); err != nil {
			log.Printf("ERROR Service: failed to persist cycle progress for %s: %v\n", p.SurveyCode, err)
		}
		if p.Progress != nil {
			p.Progress(updated, len(target))
		}
	}

	result.UpdatedSeries = updated
	result.QuotaStopped = quotaStopped
	// Completed means every batch was at least attempted; batch failures do
	// not un-complete a cycle, only stopping before the end does.
	result.Completed = !quotaStopped && !stoppedEarly

	if err := s.Cycles.FinishCycle(p.SurveyCode, result.Completed); err != nil {
		log.Printf("ERROR Service: failed to finish cycle for %s: %v\n", p.SurveyCode, err)
	}
	log.Printf("Service: cycle for %s done: %d/%d series updated, %d/%d batches ok, completed=%v.\n",
		p.SurveyCode, updated, len(target), result.SucceededBatches, result.AttemptedBatches, result.Completed)
	return result, nil
}

// SurveyStatus reports a survey's cycle state for the read side.
func (s *UpdateService) SurveyStatus(surveyCode string) (models.SurveyStatus, error) {
	status := models.SurveyStatus{SurveyCode: surveyCode}
	cycle, err := s.Cycles.Cycle(surveyCode)
	if err != nil {
		return status, err
	}
	if cycle == nil {
		return status, nil
	}
	status.HasCycle = true
	status.InProgress = cycle.InProgress
	status.IsComplete = !cycle.InProgress && cycle.CompletedAt != nil
	status.TotalSeries = cycle.TotalSeries
	status.UpdatedSeries = cycle.UpdatedSeries
	status.NeedsUpdate = cycle.NeedsUpdate
	return status, nil
}

func (s *UpdateService) resolveYears(p UpdateParams) (int, int, error) {
	endYear := p.EndYear
	if endYear == 0 {
		endYear = s.now().Year()
	}
	startYear := p.StartYear
	if startYear == 0 {
		back := s.DefaultYearsBack
		if back <= 0 {
			back = defaultYearsBack
		}
		startYear = endYear - back
	}
	if startYear > endYear {
		return 0, 0, fmt.Errorf("invalid year range %d-%d for %s", startYear, endYear, p.SurveyCode)
	}
	return startYear, endYear, nil
}

func (s *UpdateService) resolveTarget(p UpdateParams) ([]string, error) {
	if p.Force {
		if err := s.Series.MarkSurveyNotCurrent(p.SurveyCode); err != nil {
			return nil, err
		}
		return s.Series.ActiveSeriesIDs(p.SurveyCode)
	}
	return s.Series.StaleSeriesIDs(p.SurveyCode)
}

func (s *UpdateService) fetchBatch(batch []string, startYear, endYear int) ([]blsapi.Row, error) {
	if endYear-startYear+1 > blsapi.MaxYearSpan {
		return s.Client.Backfill(batch, startYear, endYear, blsapi.FetchOptions{})
	}
	return s.Client.Fetch(batch, startYear, endYear, blsapi.FetchOptions{})
}

// commitBatch upserts the batch's observations in one transaction, then
// recomputes and persists each series' checkpoint. A series is current when
// its latest stored year is within the publication-lag tolerance of the
// target end year.
func (s *UpdateService) commitBatch(surveyCode string, batch []string, rows []blsapi.Row, endYear int) error {
	now := s.now()

	obs := make([]models.Observation, 0, len(rows))
	for _, r := range rows {
		obs = append(obs, models.Observation{
			SeriesID:      r.SeriesID,
			Year:          r.Year,
			Period:        r.Period,
			Value:         r.Value,
			FootnoteCodes: r.FootnoteCodes,
		})
	}
	if err := s.Series.UpsertObservations(obs); err != nil {
		return fmt.Errorf("failed to upsert observations: %w", err)
	}

	maxYears, err := s.Series.MaxStoredYears(batch)
	if err != nil {
		return fmt.Errorf("failed to read stored years: %w", err)
	}

	statuses := make([]models.SeriesUpdateStatus, 0, len(batch))
	for _, id := range batch {
		maxYear, ok := maxYears[id]
		checked := now
		updatedAt := now
		statuses = append(statuses, models.SeriesUpdateStatus{
			SeriesID:      id,
			SurveyCode:    surveyCode,
			LastCheckedAt: &checked,
			LastUpdatedAt: &updatedAt,
			IsCurrent:     ok && maxYear >= endYear-s.lagYears(),
		})
	}
	if err := s.Series.UpsertStatuses(statuses); err != nil {
		return fmt.Errorf("failed to persist series statuses: %w", err)
	}
	return nil
}

func appendCapped(errs []string, msg string) []string {
	if len(errs) >= maxReportedErrors {
		return errs
	}
	return append(errs, msg)
}
