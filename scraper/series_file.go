// backend/scraper/series_file.go
package scraper

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
)

// SeriesRecord is one series from an agency series flat file. The files are
// tab-delimited with a fixed prefix of common columns; everything in between
// is survey-specific dimension codes, which get folded into DimensionCodes.
type SeriesRecord struct {
	SeriesID       string
	Title          string
	BeginYear      int
	BeginPeriod    string
	EndYear        int
	EndPeriod      string
	DimensionCodes string // "name=value" pairs, comma-joined
}

// seriesFileRow keeps every column as a string: the files pad values with
// spaces, so numeric conversion happens after trimming, not in the decoder.
type seriesFileRow struct {
	SeriesID    string `csv:"series_id"`
	Title       string `csv:"series_title"`
	BeginYear   string `csv:"begin_year"`
	BeginPeriod string `csv:"begin_period"`
	EndYear     string `csv:"end_year"`
	EndPeriod   string `csv:"end_period"`
}

// SeriesFileClient downloads series flat files over HTTP.
type SeriesFileClient struct {
	HTTPClient *http.Client
}

func NewSeriesFileClient() *SeriesFileClient {
	return &SeriesFileClient{HTTPClient: &http.Client{Timeout: 60 * time.Second}}
}

// FetchSeriesFile downloads and parses one survey's series file.
func (c *SeriesFileClient) FetchSeriesFile(url string) ([]SeriesRecord, error) {
	log.Printf("Scraper: downloading series file from %s\n", url)

	resp, err := c.HTTPClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get series file %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get series file %s: status code %d", url, resp.StatusCode)
	}
	return ParseSeriesFile(resp.Body)
}

// ParseSeriesFile reads a tab-delimited series file. Columns the decoder does
// not recognize are the survey's dimension codes and are preserved as
// name=value pairs.
func ParseSeriesFile(r io.Reader) ([]SeriesRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		return nil, fmt.Errorf("failed to create series file decoder: %w", err)
	}
	header := dec.Header()

	var records []SeriesRecord
	for {
		var row seriesFileRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode series file row %d: %w", len(records)+1, err)
		}

		rec := SeriesRecord{
			SeriesID:    strings.TrimSpace(row.SeriesID),
			Title:       strings.TrimSpace(row.Title),
			BeginPeriod: strings.TrimSpace(row.BeginPeriod),
			EndPeriod:   strings.TrimSpace(row.EndPeriod),
			BeginYear:   atoiLoose(row.BeginYear),
			EndYear:     atoiLoose(row.EndYear),
		}
		if rec.SeriesID == "" {
			continue
		}

		var dims []string
		for _, i := range dec.Unused() {
			name := strings.TrimSpace(header[i])
			value := strings.TrimSpace(dec.Record()[i])
			if name != "" && value != "" {
				dims = append(dims, name+"="+value)
			}
		}
		rec.DimensionCodes = strings.Join(dims, ",")

		records = append(records, rec)
	}

	log.Printf("Scraper: parsed %d series from series file.\n", len(records))
	return records, nil
}

// atoiLoose parses a possibly space-padded integer; anything unparseable is 0.
func atoiLoose(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
