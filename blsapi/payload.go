// backend/blsapi/payload.go
package blsapi

import (
	"log"
	"strconv"
	"strings"
)

// Upstream envelope statuses. An HTTP 200 may still carry a failure status in
// the body, so the envelope is checked in addition to the status code.
const (
	statusSucceeded = "REQUEST_SUCCEEDED"
)

// fetchRequest is the JSON body for POST /timeseries/data/.
type fetchRequest struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear,omitempty"`
	EndYear         string   `json:"endyear,omitempty"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
	Catalog         bool     `json:"catalog,omitempty"`
	Calculations    bool     `json:"calculations,omitempty"`
	AnnualAverage   bool     `json:"annualaverage,omitempty"`
}

type apiEnvelope struct {
	Status       string     `json:"status"`
	ResponseTime int        `json:"responseTime"`
	Message      []string   `json:"message"`
	Results      apiResults `json:"Results"`
}

type apiResults struct {
	Series []apiSeries `json:"series"`
}

type apiSeries struct {
	SeriesID string         `json:"seriesID"`
	Data     []apiDataPoint `json:"data"`
}

type apiDataPoint struct {
	Year       string        `json:"year"`
	Period     string        `json:"period"`
	PeriodName string        `json:"periodName"`
	Value      string        `json:"value"` // may be empty or "-" for missing values
	Footnotes  []apiFootnote `json:"footnotes"`
}

type apiFootnote struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// Row is one flattened observation from the nested upstream payload.
type Row struct {
	SeriesID      string
	Year          int
	Period        string
	Value         *float64 // nil when the upstream value is missing or unparseable
	FootnoteCodes string   // comma-joined footnote codes
	FootnoteText  string   // semicolon-joined footnote texts
}

// flatten walks the per-series containers and their per-period observations
// into rows. Unparseable values become nil, never an error; a data point with
// an unparseable year has no usable key and is dropped with a log line.
func flatten(env *apiEnvelope) []Row {
	var rows []Row
	for _, s := range env.Results.Series {
		for _, d := range s.Data {
			year, err := strconv.Atoi(strings.TrimSpace(d.Year))
			if err != nil {
				log.Printf("Client: dropping data point for %s with unparseable year %q", s.SeriesID, d.Year)
				continue
			}

			row := Row{
				SeriesID: s.SeriesID,
				Year:     year,
				Period:   d.Period,
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(d.Value), 64); err == nil {
				row.Value = &v
			}

			if len(d.Footnotes) > 0 {
				var codes, texts []string
				for _, fn := range d.Footnotes {
					if fn.Code != "" {
						codes = append(codes, fn.Code)
					}
					if fn.Text != "" {
						texts = append(texts, fn.Text)
					}
				}
				row.FootnoteCodes = strings.Join(codes, ",")
				row.FootnoteText = strings.Join(texts, "; ")
			}
			rows = append(rows, row)
		}
	}
	return rows
}
