// backend/main.go
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/gostats/blsync/blsapi"
	"github.com/gostats/blsync/config"
	"github.com/gostats/blsync/database"
	"github.com/gostats/blsync/handlers"
	"github.com/gostats/blsync/scraper"
	"github.com/gostats/blsync/services"
)

func main() {
	log.Println("Starting blsync mirror backend...")

	// .env carries BLS_API_KEY and DB_PASSWORD in development; absent in
	// production where the environment is set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment.")
	}

	configPath := "config/config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = "config.yaml"
		if _, errFallback := os.Stat(configPath); os.IsNotExist(errFallback) {
			log.Fatalf("Config file not found at default paths. Error: %v", errFallback)
		}
	}
	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	log.Printf("Configuration loaded. Server port: %s, DB name: %s, surveys: %v",
		config.AppConfig.Server.Port, config.AppConfig.Database.DBName, config.AppConfig.SurveyCodes())

	if err := database.InitDB(config.AppConfig.Database); err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer database.CloseDB()

	if err := database.EnsureSchema(); err != nil {
		log.Fatalf("Error ensuring database schema: %v", err)
	}

	store := database.NewStore(database.DB)

	apiCfg := config.AppConfig.BLSAPI
	client := blsapi.NewClient(apiCfg.RegistrationKey)
	client.BaseURL = apiCfg.BaseURL
	client.Limiter = blsapi.NewRateLimiter(apiCfg.RequestsPerWindow, apiCfg.Window)
	client.MaxAttempts = apiCfg.MaxAttempts

	syncCfg := config.AppConfig.Sync
	ledger := services.NewQuotaLedger(store)
	freshness := &services.FreshnessService{
		Series:     store,
		Cycles:     store,
		Client:     client,
		Ledger:     ledger,
		SampleSize: syncCfg.SentinelSampleSize,
		ScriptName: syncCfg.ScriptName,
	}
	updates := &services.UpdateService{
		Series:           store,
		Cycles:           store,
		Client:           client,
		Ledger:           ledger,
		DailyLimit:       apiCfg.DailyLimit,
		ScriptName:       syncCfg.ScriptName,
		LagYears:         syncCfg.PublicationLagYears,
		DefaultYearsBack: syncCfg.DefaultYearsBack,
	}
	metadata := &services.MetadataService{
		Series: store,
		Files:  scraper.NewSeriesFileClient(),
	}

	admin := &handlers.AdminHandler{
		Freshness: freshness,
		Updates:   updates,
		Metadata:  metadata,
		Ledger:    ledger,
		Store:     store,
	}

	// --- Setup HTTP routes ---
	http.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := database.DB.Ping(); err != nil {
			http.Error(w, `{"status": "error", "message": "database connection error"}`, http.StatusInternalServerError)
			log.Printf("Health check failed: DB ping error: %v", err)
			return
		}
		fmt.Fprintln(w, `{"status": "ok", "message": "blsync backend is healthy"}`)
	})

	// Admin routes for the sync engine. Paths end with / to catch sub-paths.
	http.HandleFunc("/api/admin/check-freshness/", admin.CheckFreshnessHandler)
	http.HandleFunc("/api/admin/update-survey/", admin.UpdateSurveyHandler)
	http.HandleFunc("/api/admin/survey-status/", admin.SurveyStatusHandler)
	http.HandleFunc("/api/admin/reload-series/", admin.ReloadSeriesHandler)
	http.HandleFunc("/api/admin/release-calendar/", admin.ReleaseCalendarHandler)
	http.HandleFunc("/api/admin/usage", admin.UsageHandler)

	serverAddr := ":" + config.AppConfig.Server.Port
	log.Printf("Server starting on http://localhost%s\n", serverAddr)
	if err := http.ListenAndServe(serverAddr, nil); err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
}
