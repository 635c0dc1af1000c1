// backend/blsapi/client.go
package blsapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Upstream structural limits. Violations are rejected client-side before
// anything is sent, so a bad call never spends quota.
const (
	MaxSeriesPerRequest = 50
	MaxYearSpan         = 20
)

const (
	DefaultBaseURL           = "https://api.bls.gov/publicAPI/v2/timeseries/data/"
	DefaultRequestsPerWindow = 50
	DefaultWindow            = 10 * time.Second
	DefaultMaxAttempts       = 4
	DefaultRetryInterval     = 500 * time.Millisecond
	defaultHTTPTimeout       = 30 * time.Second
)

// Client turns "fetch N series over [startYear,endYear]" into compliant
// upstream requests: it chunks series ids, enforces the year-span limit,
// throttles through a sliding-window rate limiter, and absorbs transient
// failure with bounded exponential backoff + jitter.
type Client struct {
	BaseURL    string
	APIKey     string // registration key; the public tier has a much lower quota
	HTTPClient *http.Client
	Limiter    *RateLimiter

	// MaxAttempts bounds tries per request (first attempt + retries).
	MaxAttempts int
	// RetryInterval is the initial backoff delay. Tests shrink it.
	RetryInterval time.Duration
}

// NewClient returns a client with the default upstream limits.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL:       DefaultBaseURL,
		APIKey:        apiKey,
		HTTPClient:    &http.Client{Timeout: defaultHTTPTimeout},
		Limiter:       NewRateLimiter(DefaultRequestsPerWindow, DefaultWindow),
		MaxAttempts:   DefaultMaxAttempts,
		RetryInterval: DefaultRetryInterval,
	}
}

// FetchOptions maps to the optional upstream request flags.
type FetchOptions struct {
	Catalog       bool
	Calculations  bool
	AnnualAverage bool
}

// Fetch retrieves observations for the given series over [startYear,endYear].
// Series ids are partitioned into chunks of at most MaxSeriesPerRequest; spans
// wider than MaxYearSpan fail validation; use Backfill for those.
func (c *Client) Fetch(seriesIDs []string, startYear, endYear int, opts FetchOptions) ([]Row, error) {
	if len(seriesIDs) == 0 {
		return nil, validationError("no series ids given")
	}
	if startYear > endYear {
		return nil, validationError("start year %d after end year %d", startYear, endYear)
	}
	if span := endYear - startYear + 1; span > MaxYearSpan {
		return nil, validationError("year span %d exceeds the %d-year request limit; use Backfill for long ranges", span, MaxYearSpan)
	}

	var all []Row
	for begin := 0; begin < len(seriesIDs); begin += MaxSeriesPerRequest {
		stop := begin + MaxSeriesPerRequest
		if stop > len(seriesIDs) {
			stop = len(seriesIDs)
		}
		rows, err := c.doRequest(seriesIDs[begin:stop], startYear, endYear, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

// Backfill fetches a range wider than the per-request year-span limit by
// iterating consecutive windows covering [startYear,endYear] with no gaps or
// overlaps.
func (c *Client) Backfill(seriesIDs []string, startYear, endYear int, opts FetchOptions) ([]Row, error) {
	if startYear > endYear {
		return nil, validationError("start year %d after end year %d", startYear, endYear)
	}
	var all []Row
	for _, w := range backfillWindows(startYear, endYear) {
		rows, err := c.Fetch(seriesIDs, w.start, w.end, opts)
		if err != nil {
			return nil, fmt.Errorf("backfill window %d-%d: %w", w.start, w.end, err)
		}
		all = append(all, rows...)
	}
	return all, nil
}

// NumRequests reports how many upstream requests a Fetch or Backfill over the
// given shape will spend. Used by callers budgeting against the daily quota.
func NumRequests(seriesCount, startYear, endYear int) int {
	if seriesCount <= 0 || startYear > endYear {
		return 0
	}
	chunks := (seriesCount + MaxSeriesPerRequest - 1) / MaxSeriesPerRequest
	return chunks * len(backfillWindows(startYear, endYear))
}

type yearWindow struct {
	start, end int
}

func backfillWindows(start, end int) []yearWindow {
	var windows []yearWindow
	for s := start; s <= end; s += MaxYearSpan {
		e := s + MaxYearSpan - 1
		if e > end {
			e = end
		}
		windows = append(windows, yearWindow{start: s, end: e})
	}
	return windows
}

// doRequest sends one compliant request, retrying transient failures.
// Classification is structural: 429/5xx/network errors are transient while
// retries remain; other 4xx and failure envelopes inside an HTTP 200 are
// permanent. Exhausted retries on 429 and the in-body daily-threshold
// message surface as quota errors.
func (c *Client) doRequest(seriesIDs []string, startYear, endYear int, opts FetchOptions) ([]Row, error) {
	body, err := json.Marshal(fetchRequest{
		SeriesID:        seriesIDs,
		StartYear:       strconv.Itoa(startYear),
		EndYear:         strconv.Itoa(endYear),
		RegistrationKey: c.APIKey,
		Catalog:         opts.Catalog,
		Calculations:    opts.Calculations,
		AnnualAverage:   opts.AnnualAverage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var env apiEnvelope
	var lastStatus int

	operation := func() error {
		c.Limiter.Wait()

		resp, err := c.HTTPClient.Post(c.BaseURL, "application/json", bytes.NewReader(body))
		if err != nil {
			lastStatus = 0
			return &APIError{Kind: KindTransient, Message: err.Error()}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			lastStatus = resp.StatusCode
			return &APIError{Kind: KindTransient, StatusCode: resp.StatusCode, Message: "failed to read response body: " + err.Error()}
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastStatus = resp.StatusCode
			log.Printf("Client: transient HTTP %d for %d series, will retry", resp.StatusCode, len(seriesIDs))
			return &APIError{Kind: KindTransient, StatusCode: resp.StatusCode, Message: truncate(string(data), 200)}
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(&APIError{Kind: KindPermanent, StatusCode: resp.StatusCode, Message: truncate(string(data), 200)})
		}

		env = apiEnvelope{}
		if err := json.Unmarshal(data, &env); err != nil {
			return backoff.Permanent(&APIError{Kind: KindPermanent, StatusCode: resp.StatusCode, Message: "unparseable response body: " + err.Error()})
		}

		// Upstream wraps errors inside "successful" envelopes.
		if env.Status != statusSucceeded {
			msg := env.Status
			if len(env.Message) > 0 {
				msg = fmt.Sprintf("%s: %s", env.Status, env.Message[0])
			}
			// The daily threshold arrives as a message inside an HTTP 200;
			// this is the only place upstream text is inspected.
			kind := KindPermanent
			if strings.Contains(strings.ToLower(msg), "threshold") {
				kind = KindQuota
			}
			return backoff.Permanent(&APIError{Kind: kind, StatusCode: resp.StatusCode, Message: msg})
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.RetryInterval
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	maxRetries := uint64(0)
	if c.MaxAttempts > 1 {
		maxRetries = uint64(c.MaxAttempts - 1)
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(bo, maxRetries)); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Kind == KindTransient {
			// Exhausted retries: reclassify by the last status seen.
			kind := KindPermanent
			if lastStatus == http.StatusTooManyRequests {
				kind = KindQuota
			}
			return nil, &APIError{Kind: kind, StatusCode: lastStatus, Message: "retries exhausted: " + apiErr.Message}
		}
		return nil, err
	}

	rows := flatten(&env)
	log.Printf("Client: fetched %d rows for %d series over %d-%d", len(rows), len(seriesIDs), startYear, endYear)
	return rows, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
