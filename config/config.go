// backend/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type BLSAPIConfig struct {
	BaseURL         string `yaml:"base_url"`
	RegistrationKey string `yaml:"registration_key"` // overridden by BLS_API_KEY
	DailyLimit      int    `yaml:"daily_limit"`

	RequestsPerWindow int    `yaml:"requests_per_window"`
	WindowStr         string `yaml:"window"`
	Window            time.Duration `yaml:"-"` // parsed from WindowStr

	MaxAttempts int `yaml:"max_attempts"`
}

type SyncConfig struct {
	SentinelSampleSize  int    `yaml:"sentinel_sample_size"`
	PublicationLagYears int    `yaml:"publication_lag_years"`
	DefaultYearsBack    int    `yaml:"default_years_back"` // update range when the caller gives none
	ScriptName          string `yaml:"script_name"`        // recorded on every usage ledger entry
}

// SurveyConfig names one mirrored survey. SeriesFileURL points at the
// tab-delimited series metadata flat file the agency publishes per survey.
type SurveyConfig struct {
	Code          string `yaml:"code"` // e.g. "CU"
	Name          string `yaml:"name"` // display name as it appears on the release calendar
	SeriesFileURL string `yaml:"series_file_url"`
}

type Config struct {
	Server             ServerConfig   `yaml:"server"`
	Database           DatabaseConfig `yaml:"database"`
	BLSAPI             BLSAPIConfig   `yaml:"bls_api"`
	Sync               SyncConfig     `yaml:"sync"`
	Surveys            []SurveyConfig `yaml:"surveys"`
	ReleaseCalendarURL string         `yaml:"release_calendar_url"`
}

var AppConfig Config

// LoadConfig reads the YAML config and applies environment overrides for
// secrets. BLS_API_KEY and DB_PASSWORD always win over the file so
// deployments never need credentials on disk.
func LoadConfig(configPath string) error {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	AppConfig = Config{}
	if err := yaml.Unmarshal(file, &AppConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if key := os.Getenv("BLS_API_KEY"); key != "" {
		AppConfig.BLSAPI.RegistrationKey = key
	}
	if pw := os.Getenv("DB_PASSWORD"); pw != "" {
		AppConfig.Database.Password = pw
	}

	applyDefaults(&AppConfig)

	AppConfig.BLSAPI.Window, err = time.ParseDuration(AppConfig.BLSAPI.WindowStr)
	if err != nil {
		return fmt.Errorf("failed to parse bls_api.window: %w", err)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.BLSAPI.BaseURL == "" {
		cfg.BLSAPI.BaseURL = "https://api.bls.gov/publicAPI/v2/timeseries/data/"
	}
	if cfg.BLSAPI.DailyLimit == 0 {
		cfg.BLSAPI.DailyLimit = 500
	}
	if cfg.BLSAPI.RequestsPerWindow == 0 {
		cfg.BLSAPI.RequestsPerWindow = 50
	}
	if cfg.BLSAPI.WindowStr == "" {
		cfg.BLSAPI.WindowStr = "10s"
	}
	if cfg.BLSAPI.MaxAttempts == 0 {
		cfg.BLSAPI.MaxAttempts = 4
	}
	if cfg.Sync.SentinelSampleSize == 0 {
		cfg.Sync.SentinelSampleSize = 5
	}
	if cfg.Sync.PublicationLagYears == 0 {
		cfg.Sync.PublicationLagYears = 1
	}
	if cfg.Sync.DefaultYearsBack == 0 {
		cfg.Sync.DefaultYearsBack = 1
	}
	if cfg.Sync.ScriptName == "" {
		cfg.Sync.ScriptName = "blsync"
	}
}

// Survey looks up a configured survey by code.
func (c *Config) Survey(code string) (SurveyConfig, bool) {
	for _, s := range c.Surveys {
		if s.Code == code {
			return s, true
		}
	}
	return SurveyConfig{}, false
}

// SurveyCodes lists every configured survey code, in config order.
func (c *Config) SurveyCodes() []string {
	codes := make([]string, 0, len(c.Surveys))
	for _, s := range c.Surveys {
		codes = append(codes, s.Code)
	}
	return codes
}
