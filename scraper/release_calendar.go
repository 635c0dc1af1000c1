// backend/scraper/release_calendar.go
package scraper

import (
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Regex to find dates in format "January 2, 2026" on the release schedule page.
var releaseDateRegex = regexp.MustCompile(`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}`)

const releaseDateLayout = "January 2, 2006"

// ReleaseInfo holds a survey's scraped release-schedule dates. Freshness
// sweeps can skip a survey whose latest release predates the mirror's last
// check, saving the API request the sentinel fetch would spend.
type ReleaseInfo struct {
	SurveyName    string
	LatestRelease *time.Time // most recent release on or before today
	NextRelease   *time.Time // earliest scheduled release after today
	MatchedRows   int
	CheckedAt     time.Time
}

// FetchReleaseSchedule scrapes the agency's release schedule page and
// extracts the release dates for rows mentioning the given survey name.
func FetchReleaseSchedule(pageURL, surveyName string) (*ReleaseInfo, error) {
	log.Printf("Scraper: checking release schedule for %q from %s\n", surveyName, pageURL)

	client := http.Client{Timeout: 20 * time.Second}
	res, err := client.Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get URL %s: status code %d", pageURL, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	info := &ReleaseInfo{SurveyName: surveyName, CheckedAt: time.Now().UTC()}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	lowerName := strings.ToLower(surveyName)

	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		text := strings.TrimSpace(row.Text())
		if !strings.Contains(strings.ToLower(text), lowerName) {
			return
		}
		match := releaseDateRegex.FindString(text)
		if match == "" {
			return
		}
		date, err := time.Parse(releaseDateLayout, match)
		if err != nil {
			return
		}
		info.MatchedRows++

		if date.After(today) {
			if info.NextRelease == nil || date.Before(*info.NextRelease) {
				next := date
				info.NextRelease = &next
			}
		} else {
			if info.LatestRelease == nil || date.After(*info.LatestRelease) {
				latest := date
				info.LatestRelease = &latest
			}
		}
	})

	if info.MatchedRows == 0 {
		return nil, fmt.Errorf("no release rows found for %q on %s; verify the survey name matches the schedule page", surveyName, pageURL)
	}

	if info.LatestRelease != nil {
		log.Printf("Scraper: latest release for %q: %s\n", surveyName, info.LatestRelease.Format("2006-01-02"))
	}
	return info, nil
}
