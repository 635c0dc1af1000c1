// backend/services/quota_service.go
package services

import (
	"fmt"
	"log"
	"time"

	"github.com/gostats/blsync/models"
)

// QuotaLedger answers "how many requests remain today" and records every
// request made. It is deliberately not atomic across concurrent writers:
// exactly one orchestrator process runs per quota budget, so the check-then-
// spend race does not arise in practice.
type QuotaLedger struct {
	Usage UsageStore

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewQuotaLedger returns a ledger over the given usage store.
func NewQuotaLedger(usage UsageStore) *QuotaLedger {
	return &QuotaLedger{Usage: usage}
}

func (l *QuotaLedger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Today returns the ledger's current date (UTC, date precision).
func (l *QuotaLedger) Today() time.Time {
	t := l.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Remaining sums today's recorded requests and returns how many of the daily
// limit are left, floored at zero.
func (l *QuotaLedger) Remaining(dailyLimit int) (int, error) {
	used, err := l.Usage.SumUsageForDate(l.Today())
	if err != nil {
		return 0, fmt.Errorf("failed to read usage ledger: %w", err)
	}
	remaining := dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Used sums today's recorded requests.
func (l *QuotaLedger) Used() (int, error) {
	return l.Usage.SumUsageForDate(l.Today())
}

// Record appends one usage entry. Callers record after every request attempt,
// success or failure, so the ledger reflects real spend even on partial
// failure.
func (l *QuotaLedger) Record(requestsUsed, seriesCount int, surveyCode, scriptName string) error {
	rec := models.UsageRecord{
		UsageDate:    l.Today(),
		RequestsUsed: requestsUsed,
		SeriesCount:  seriesCount,
		SurveyCode:   surveyCode,
		ScriptName:   scriptName,
	}
	if err := l.Usage.InsertUsage(rec); err != nil {
		return fmt.Errorf("failed to record usage for %s: %w", surveyCode, err)
	}
	log.Printf("Ledger: recorded %d request(s) / %d series for %s (%s).\n", requestsUsed, seriesCount, surveyCode, scriptName)
	return nil
}
