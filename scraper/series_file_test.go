// backend/scraper/series_file_test.go
package scraper

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Real series files are tab-delimited with space-padded values and
// survey-specific dimension columns between the common ones.
const sampleSeriesFile = "series_id\tarea_code\titem_code\tseries_title\tbegin_year\tbegin_period\tend_year\tend_period\n" +
	"CUUR0000SA0  \t0000\tSA0\tAll items in U.S. city average\t1913\tM01\t2024\tM05\n" +
	"CUUR0000SA0L1E\t0000\tSA0L1E\tAll items less food and energy\t1957\tM01\t \t \n" +
	"CUURX000OLD \t X000\tOLD\tDiscontinued index\t1950\tM01\t2010\tM12\n"

func TestParseSeriesFile(t *testing.T) {
	records, err := ParseSeriesFile(strings.NewReader(sampleSeriesFile))
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "CUUR0000SA0", first.SeriesID, "padding is trimmed")
	assert.Equal(t, "All items in U.S. city average", first.Title)
	assert.Equal(t, 1913, first.BeginYear)
	assert.Equal(t, "M01", first.BeginPeriod)
	assert.Equal(t, 2024, first.EndYear)
	assert.Equal(t, "M05", first.EndPeriod)
	assert.Equal(t, "area_code=0000,item_code=SA0", first.DimensionCodes)

	// Blank year fields parse as zero, the open-ended marker.
	assert.Equal(t, 0, records[1].EndYear)
	assert.Equal(t, "", records[1].EndPeriod)

	assert.Equal(t, "area_code=X000,item_code=OLD", records[2].DimensionCodes)
}

func TestParseSeriesFileSkipsBlankIDs(t *testing.T) {
	input := "series_id\tseries_title\tbegin_year\tbegin_period\tend_year\tend_period\n" +
		" \tghost row\t2000\tM01\t2001\tM12\n" +
		"LNS14000000\tUnemployment Rate\t1948\tM01\t2024\tM05\n"

	records, err := ParseSeriesFile(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "LNS14000000", records[0].SeriesID)
}

func TestFetchSeriesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleSeriesFile))
	}))
	defer srv.Close()

	records, err := NewSeriesFileClient().FetchSeriesFile(srv.URL)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestFetchSeriesFileNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewSeriesFileClient().FetchSeriesFile(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 404")
}
