// backend/handlers/admin_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gostats/blsync/config"
	"github.com/gostats/blsync/database"
	"github.com/gostats/blsync/scraper"
	"github.com/gostats/blsync/services"
)

// AdminHandler exposes the sync engine to operators. The read-only dashboard
// layer lives elsewhere; it only ever reads the mirror tables.
type AdminHandler struct {
	Freshness *services.FreshnessService
	Updates   *services.UpdateService
	Metadata  *services.MetadataService
	Ledger    *services.QuotaLedger
	Store     *database.Store
}

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling JSON response: %v", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	log.Printf("API Error %d: %s", code, message)
	respondWithJSON(w, code, map[string]string{"error": message})
}

// pathSurvey extracts the trailing path segment from /api/admin/<op>/{survey}.
func pathSurvey(r *http.Request) (string, bool) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 || pathParts[3] == "" {
		return "", false
	}
	return strings.ToUpper(pathParts[3]), true
}

// CheckFreshnessHandler handles POST /api/admin/check-freshness/{survey}.
// "all" (or an omitted survey) sweeps every configured survey.
func (h *AdminHandler) CheckFreshnessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}

	codes := config.AppConfig.SurveyCodes()
	if survey, ok := pathSurvey(r); ok && survey != "ALL" {
		if _, known := config.AppConfig.Survey(survey); !known {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown survey code '%s'", survey))
			return
		}
		codes = []string{survey}
	}

	reports := h.Freshness.CheckSurveys(codes)
	respondWithJSON(w, http.StatusOK, reports)
}

// UpdateSurveyHandler handles POST /api/admin/update-survey/{survey} with
// optional query params force, start, end and max_requests.
func (h *AdminHandler) UpdateSurveyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}
	survey, ok := pathSurvey(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/admin/update-survey/{survey}")
		return
	}
	if _, known := config.AppConfig.Survey(survey); !known {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown survey code '%s'", survey))
		return
	}

	params := services.UpdateParams{
		SurveyCode:  survey,
		Force:       r.URL.Query().Get("force") == "true",
		StartYear:   atoiParam(r, "start"),
		EndYear:     atoiParam(r, "end"),
		MaxRequests: atoiParam(r, "max_requests"),
	}

	result, err := h.Updates.UpdateSurvey(params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrCycleInProgress) {
			status = http.StatusConflict
		}
		respondWithError(w, status, fmt.Sprintf("Failed to update survey %s: %v", survey, err))
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// SurveyStatusHandler handles GET /api/admin/survey-status/{survey}.
func (h *AdminHandler) SurveyStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}
	survey, ok := pathSurvey(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/admin/survey-status/{survey}")
		return
	}

	status, err := h.Updates.SurveyStatus(survey)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read status for %s: %v", survey, err))
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// ReloadSeriesHandler handles POST /api/admin/reload-series/{survey} and
// refreshes a survey's series metadata from its flat file.
func (h *AdminHandler) ReloadSeriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}
	survey, ok := pathSurvey(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/admin/reload-series/{survey}")
		return
	}
	surveyCfg, known := config.AppConfig.Survey(survey)
	if !known {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown survey code '%s'", survey))
		return
	}

	count, err := h.Metadata.ReloadSurveySeries(surveyCfg)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to reload series for %s: %v", survey, err))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"survey_code":   survey,
		"series_loaded": count,
	})
}

// UsageHandler handles GET /api/admin/usage: today's ledger entries plus the
// remaining daily quota.
func (h *AdminHandler) UsageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	used, err := h.Ledger.Used()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read usage ledger: %v", err))
		return
	}
	remaining, err := h.Ledger.Remaining(config.AppConfig.BLSAPI.DailyLimit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to compute remaining quota: %v", err))
		return
	}
	records, err := h.Store.UsageForDate(h.Ledger.Today())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read usage records: %v", err))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"date":        h.Ledger.Today().Format("2006-01-02"),
		"used":        used,
		"remaining":   remaining,
		"daily_limit": config.AppConfig.BLSAPI.DailyLimit,
		"records":     records,
	})
}

// ReleaseCalendarHandler handles GET /api/admin/release-calendar/{survey}:
// scrapes the agency schedule page for the survey's latest and next release.
func (h *AdminHandler) ReleaseCalendarHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}
	survey, ok := pathSurvey(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/admin/release-calendar/{survey}")
		return
	}
	surveyCfg, known := config.AppConfig.Survey(survey)
	if !known {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown survey code '%s'", survey))
		return
	}

	info, err := scraper.FetchReleaseSchedule(config.AppConfig.ReleaseCalendarURL, surveyCfg.Name)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Failed to check release schedule for %s: %v", survey, err))
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

func atoiParam(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
