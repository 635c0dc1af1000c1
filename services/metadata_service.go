// backend/services/metadata_service.go
package services

import (
	"fmt"
	"log"
	"time"

	"github.com/gostats/blsync/config"
	"github.com/gostats/blsync/models"
	"github.com/gostats/blsync/scraper"
)

// SeriesFileFetcher downloads and parses a survey's series metadata flat file.
type SeriesFileFetcher interface {
	FetchSeriesFile(url string) ([]scraper.SeriesRecord, error)
}

// MetadataService reloads a survey's series metadata from the agency's
// flat files. This is the only writer of the series table; observation sync
// never touches metadata.
type MetadataService struct {
	Series SeriesStore
	Files  SeriesFileFetcher

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func (m *MetadataService) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// ReloadSurveySeries downloads the survey's series file, upserts every series
// and recomputes active flags. A series stays active unless its recorded end
// year predates the current year minus one. Returns how many series were
// loaded.
func (m *MetadataService) ReloadSurveySeries(survey config.SurveyConfig) (int, error) {
	if survey.SeriesFileURL == "" {
		return 0, fmt.Errorf("survey %s has no series file URL configured", survey.Code)
	}
	log.Printf("Service: reloading series metadata for %s from %s\n", survey.Code, survey.SeriesFileURL)

	records, err := m.Files.FetchSeriesFile(survey.SeriesFileURL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch series file for %s: %w", survey.Code, err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("series file for %s contained no series", survey.Code)
	}

	cutoffYear := m.now().Year() - 1
	series := make([]models.Series, 0, len(records))
	for _, rec := range records {
		series = append(series, models.Series{
			SeriesID:       rec.SeriesID,
			SurveyCode:     survey.Code,
			Title:          rec.Title,
			DimensionCodes: rec.DimensionCodes,
			BeginYear:      rec.BeginYear,
			BeginPeriod:    rec.BeginPeriod,
			EndYear:        rec.EndYear,
			EndPeriod:      rec.EndPeriod,
			IsActive:       rec.EndYear == 0 || rec.EndYear >= cutoffYear,
		})
	}

	if err := m.Series.UpsertSeries(series); err != nil {
		return 0, fmt.Errorf("failed to save series metadata for %s: %w", survey.Code, err)
	}
	// Series that dropped out of the file keep their rows; the sweep below
	// retires the ones whose recorded end has aged out since the last reload.
	if _, err := m.Series.DeactivateExpiredSeries(survey.Code, cutoffYear); err != nil {
		return 0, err
	}

	log.Printf("Service: reloaded %d series for %s.\n", len(series), survey.Code)
	return len(series), nil
}
