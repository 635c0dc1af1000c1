// backend/services/fakes_test.go
package services

import (
	"sort"
	"time"

	"github.com/gostats/blsync/blsapi"
	"github.com/gostats/blsync/models"
)

// fakeStore is an in-memory SeriesStore. Stale/current bookkeeping mirrors the
// SQL queries: stale means active with no status row or is_current=0.
type fakeStore struct {
	active   map[string][]string                  // survey code -> active series ids
	statuses map[string]models.SeriesUpdateStatus // series id -> checkpoint row
	latest   map[string]models.YearPeriod         // series id -> latest stored observation
	maxYear  map[string]int                       // series id -> max stored year

	observations []models.Observation
	savedSeries  []models.Series

	deactivateCutoff int
	errLatest        error
	errActive        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		active:   make(map[string][]string),
		statuses: make(map[string]models.SeriesUpdateStatus),
		latest:   make(map[string]models.YearPeriod),
		maxYear:  make(map[string]int),
	}
}

func (s *fakeStore) ActiveSeriesIDs(surveyCode string) ([]string, error) {
	if s.errActive != nil {
		return nil, s.errActive
	}
	ids := append([]string(nil), s.active[surveyCode]...)
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeStore) StaleSeriesIDs(surveyCode string) ([]string, error) {
	var stale []string
	for _, id := range s.active[surveyCode] {
		if st, ok := s.statuses[id]; !ok || !st.IsCurrent {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	return stale, nil
}

func (s *fakeStore) LatestObservation(seriesID string) (models.YearPeriod, bool, error) {
	if s.errLatest != nil {
		return models.YearPeriod{}, false, s.errLatest
	}
	yp, ok := s.latest[seriesID]
	return yp, ok, nil
}

func (s *fakeStore) MaxStoredYears(seriesIDs []string) (map[string]int, error) {
	out := make(map[string]int)
	for _, id := range seriesIDs {
		if y, ok := s.maxYear[id]; ok {
			out[id] = y
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertObservations(obs []models.Observation) error {
	s.observations = append(s.observations, obs...)
	for _, o := range obs {
		if y, ok := s.maxYear[o.SeriesID]; !ok || o.Year > y {
			s.maxYear[o.SeriesID] = o.Year
		}
		yp := models.YearPeriod{Year: o.Year, Period: o.Period}
		if cur, ok := s.latest[o.SeriesID]; !ok || cur.Before(yp) {
			s.latest[o.SeriesID] = yp
		}
	}
	return nil
}

func (s *fakeStore) UpsertStatuses(statuses []models.SeriesUpdateStatus) error {
	for _, st := range statuses {
		s.statuses[st.SeriesID] = st
	}
	return nil
}

func (s *fakeStore) MarkSurveyNotCurrent(surveyCode string) error {
	for _, id := range s.active[surveyCode] {
		if st, ok := s.statuses[id]; ok {
			st.IsCurrent = false
			s.statuses[id] = st
		}
	}
	return nil
}

func (s *fakeStore) UpsertSeries(series []models.Series) error {
	s.savedSeries = append(s.savedSeries, series...)
	return nil
}

func (s *fakeStore) DeactivateExpiredSeries(surveyCode string, cutoffYear int) (int64, error) {
	s.deactivateCutoff = cutoffYear
	return 0, nil
}

// markCurrent seeds checkpoint rows so StaleSeriesIDs skips the given ids.
func (s *fakeStore) markCurrent(surveyCode string, ids ...string) {
	for _, id := range ids {
		s.statuses[id] = models.SeriesUpdateStatus{SeriesID: id, SurveyCode: surveyCode, IsCurrent: true}
	}
}

func (s *fakeStore) currentCount() int {
	n := 0
	for _, st := range s.statuses {
		if st.IsCurrent {
			n++
		}
	}
	return n
}

// fakeCycles is an in-memory CycleStore over one row per survey.
type fakeCycles struct {
	cycles   map[string]*models.SurveyCycle
	starts   int
	finishes int
	errStart error
}

func newFakeCycles() *fakeCycles {
	return &fakeCycles{cycles: make(map[string]*models.SurveyCycle)}
}

func (c *fakeCycles) Cycle(surveyCode string) (*models.SurveyCycle, error) {
	cy, ok := c.cycles[surveyCode]
	if !ok {
		return nil, nil
	}
	copied := *cy
	return &copied, nil
}

func (c *fakeCycles) StartCycle(surveyCode string, totalSeries int) error {
	if c.errStart != nil {
		return c.errStart
	}
	c.starts++
	now := time.Now()
	c.cycles[surveyCode] = &models.SurveyCycle{
		SurveyCode:  surveyCode,
		InProgress:  true,
		StartedAt:   &now,
		TotalSeries: totalSeries,
	}
	return nil
}

func (c *fakeCycles) SetCycleProgress(surveyCode string, updatedSeries int) error {
	if cy, ok := c.cycles[surveyCode]; ok {
		cy.UpdatedSeries = updatedSeries
	}
	return nil
}

func (c *fakeCycles) FinishCycle(surveyCode string, completed bool) error {
	c.finishes++
	if cy, ok := c.cycles[surveyCode]; ok {
		cy.InProgress = false
		if completed {
			now := time.Now()
			cy.CompletedAt = &now
			cy.NeedsUpdate = false
		}
	}
	return nil
}

func (c *fakeCycles) SetNeedsUpdate(surveyCode string, needs bool) error {
	cy, ok := c.cycles[surveyCode]
	if !ok {
		cy = &models.SurveyCycle{SurveyCode: surveyCode}
		c.cycles[surveyCode] = cy
	}
	cy.NeedsUpdate = needs
	return nil
}

// fakeUsage is an in-memory append-only UsageStore.
type fakeUsage struct {
	records []models.UsageRecord
	errSum  error
}

func (u *fakeUsage) InsertUsage(rec models.UsageRecord) error {
	u.records = append(u.records, rec)
	return nil
}

func (u *fakeUsage) SumUsageForDate(date time.Time) (int, error) {
	if u.errSum != nil {
		return 0, u.errSum
	}
	sum := 0
	for _, rec := range u.records {
		if rec.UsageDate.Equal(date) {
			sum += rec.RequestsUsed
		}
	}
	return sum, nil
}

// fakeFetcher returns one row per requested series from a configured upstream
// map. errs is consumed per call: errs[i] fails the i-th call (nil passes).
type fakeFetcher struct {
	upstream map[string]models.YearPeriod
	errs     []error

	calls     int
	backfills int
	fetched   [][]string
}

func (f *fakeFetcher) Fetch(seriesIDs []string, startYear, endYear int, opts blsapi.FetchOptions) ([]blsapi.Row, error) {
	call := f.calls
	f.calls++
	f.fetched = append(f.fetched, append([]string(nil), seriesIDs...))
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}

	var rows []blsapi.Row
	for _, id := range seriesIDs {
		yp, ok := f.upstream[id]
		if !ok {
			continue
		}
		v := 100.0
		rows = append(rows, blsapi.Row{SeriesID: id, Year: yp.Year, Period: yp.Period, Value: &v})
	}
	return rows, nil
}

func (f *fakeFetcher) Backfill(seriesIDs []string, startYear, endYear int, opts blsapi.FetchOptions) ([]blsapi.Row, error) {
	f.backfills++
	return f.Fetch(seriesIDs, startYear, endYear, opts)
}

// fixedTime pins service clocks mid-2024 so year arithmetic is stable.
func fixedTime() time.Time {
	return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
}

func newTestLedger(usage *fakeUsage) *QuotaLedger {
	return &QuotaLedger{Usage: usage, Now: fixedTime}
}
