// backend/services/freshness_service_test.go
package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostats/blsync/models"
)

func newFreshnessFixture(store *fakeStore, fetcher *fakeFetcher) (*FreshnessService, *fakeCycles, *fakeUsage) {
	cycles := newFakeCycles()
	usage := &fakeUsage{}
	svc := &FreshnessService{
		Series:     store,
		Cycles:     cycles,
		Client:     fetcher,
		Ledger:     newTestLedger(usage),
		SampleSize: 5,
		ScriptName: "freshness_check",
		Now:        fixedTime,
	}
	return svc, cycles, usage
}

func TestCheckSurveyDetectsNewData(t *testing.T) {
	store := newFakeStore()
	store.active["CU"] = []string{"CUUR0000SA0", "CUUR0000SA0L1E", "CUUR0000SETB01"}
	store.latest["CUUR0000SA0"] = models.YearPeriod{Year: 2023, Period: "M12"}
	store.latest["CUUR0000SA0L1E"] = models.YearPeriod{Year: 2024, Period: "M04"}
	store.latest["CUUR0000SETB01"] = models.YearPeriod{Year: 2024, Period: "M04"}

	fetcher := &fakeFetcher{upstream: map[string]models.YearPeriod{
		"CUUR0000SA0":    {Year: 2024, Period: "M01"}, // newer than the mirror
		"CUUR0000SA0L1E": {Year: 2024, Period: "M04"}, // unchanged
		"CUUR0000SETB01": {Year: 2024, Period: "M04"}, // unchanged
	}}
	svc, cycles, usage := newFreshnessFixture(store, fetcher)

	report, err := svc.CheckSurvey("CU")
	require.NoError(t, err)

	assert.True(t, report.HasNewData)
	assert.Equal(t, 3, report.CheckedSeries)
	assert.Equal(t, 1, report.SeriesWithNewData)
	require.NotNil(t, report.Example)
	assert.Equal(t, "CUUR0000SA0", report.Example.SeriesID)
	require.NotNil(t, report.Example.Local)
	assert.Equal(t, models.YearPeriod{Year: 2023, Period: "M12"}, *report.Example.Local)
	require.NotNil(t, report.Example.Upstream)
	assert.Equal(t, models.YearPeriod{Year: 2024, Period: "M01"}, *report.Example.Upstream)

	// A positive check flags the survey and spends exactly one request.
	assert.True(t, cycles.cycles["CU"].NeedsUpdate)
	require.Len(t, usage.records, 1)
	assert.Equal(t, 1, usage.records[0].RequestsUsed)
	assert.Equal(t, 3, usage.records[0].SeriesCount)
}

func TestCheckSurveyUnchanged(t *testing.T) {
	store := newFakeStore()
	store.active["CU"] = []string{"CUUR0000SA0"}
	store.latest["CUUR0000SA0"] = models.YearPeriod{Year: 2024, Period: "M04"}

	fetcher := &fakeFetcher{upstream: map[string]models.YearPeriod{
		"CUUR0000SA0": {Year: 2024, Period: "M04"},
	}}
	svc, cycles, _ := newFreshnessFixture(store, fetcher)

	report, err := svc.CheckSurvey("CU")
	require.NoError(t, err)

	assert.False(t, report.HasNewData)
	assert.Zero(t, report.SeriesWithNewData)
	assert.Nil(t, report.Example)
	_, flagged := cycles.cycles["CU"]
	assert.False(t, flagged, "an unchanged survey must not be flagged")
}

func TestCheckSurveyLocalGapCountsAsNew(t *testing.T) {
	// A sentinel with upstream data but nothing stored locally is new data.
	store := newFakeStore()
	store.active["CE"] = []string{"CES0000000001"}

	fetcher := &fakeFetcher{upstream: map[string]models.YearPeriod{
		"CES0000000001": {Year: 2024, Period: "M05"},
	}}
	svc, _, _ := newFreshnessFixture(store, fetcher)

	report, err := svc.CheckSurvey("CE")
	require.NoError(t, err)
	assert.True(t, report.HasNewData)
	require.NotNil(t, report.Example)
	assert.Nil(t, report.Example.Local)
}

func TestCheckSurveyTruncatesToSampleSize(t *testing.T) {
	store := newFakeStore()
	ids := []string{"LNS01", "LNS02", "LNS03", "LNS04", "LNS05", "LNS06", "LNS07"}
	store.active["LN"] = ids

	fetcher := &fakeFetcher{upstream: map[string]models.YearPeriod{}}
	svc, _, _ := newFreshnessFixture(store, fetcher)
	svc.SampleSize = 3

	report, err := svc.CheckSurvey("LN")
	require.NoError(t, err)
	assert.Equal(t, 3, report.CheckedSeries)
	require.Len(t, fetcher.fetched, 1)
	assert.Equal(t, []string{"LNS01", "LNS02", "LNS03"}, fetcher.fetched[0])
}

func TestCheckSurveyNoActiveSeries(t *testing.T) {
	svc, _, usage := newFreshnessFixture(newFakeStore(), &fakeFetcher{})

	_, err := svc.CheckSurvey("CU")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoActiveSeries))
	assert.Empty(t, usage.records, "an empty survey must not spend a request")
}

func TestCheckSurveyFetchFailureFoldedIntoReport(t *testing.T) {
	store := newFakeStore()
	store.active["CU"] = []string{"CUUR0000SA0"}

	fetcher := &fakeFetcher{errs: []error{errors.New("upstream down")}}
	svc, cycles, usage := newFreshnessFixture(store, fetcher)

	report, err := svc.CheckSurvey("CU")
	require.NoError(t, err, "a fetch failure is a report, not an error")
	assert.False(t, report.HasNewData)
	assert.Contains(t, report.Err, "upstream down")

	// The request was spent even though it failed.
	require.Len(t, usage.records, 1)
	_, flagged := cycles.cycles["CU"]
	assert.False(t, flagged)
}

func TestCheckSurveysSweepSurvivesFailure(t *testing.T) {
	store := newFakeStore()
	store.active["CU"] = []string{"CUUR0000SA0"}
	store.latest["CUUR0000SA0"] = models.YearPeriod{Year: 2024, Period: "M04"}
	// "CE" has no active series and will fail.

	fetcher := &fakeFetcher{upstream: map[string]models.YearPeriod{
		"CUUR0000SA0": {Year: 2024, Period: "M05"},
	}}
	svc, _, _ := newFreshnessFixture(store, fetcher)

	reports := svc.CheckSurveys([]string{"CU", "CE"})
	require.Len(t, reports, 2)

	assert.Equal(t, "CU", reports[0].SurveyCode)
	assert.True(t, reports[0].HasNewData)

	assert.Equal(t, "CE", reports[1].SurveyCode)
	assert.False(t, reports[1].HasNewData)
	assert.Contains(t, reports[1].Err, "no active series")
}
