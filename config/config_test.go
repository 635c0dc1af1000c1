// backend/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  port: "9090"
database:
  host: "localhost"
  port: "3306"
  user: "blsync"
  password: "file-password"
  dbname: "blsync_db"
bls_api:
  registration_key: "file-key"
  requests_per_window: 25
  window: "5s"
sync:
  sentinel_sample_size: 3
surveys:
  - code: "CU"
    name: "Consumer Price Index"
    series_file_url: "https://example.gov/cu.series"
  - code: "LN"
    name: "Labor Force Statistics"
    series_file_url: "https://example.gov/ln.series"
release_calendar_url: "https://example.gov/schedule/"
`

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	require.NoError(t, LoadConfig(writeTestConfig(t, testYAML)))

	assert.Equal(t, "9090", AppConfig.Server.Port)
	assert.Equal(t, 25, AppConfig.BLSAPI.RequestsPerWindow)
	assert.Equal(t, 5*time.Second, AppConfig.BLSAPI.Window)
	assert.Equal(t, 3, AppConfig.Sync.SentinelSampleSize)

	// Unset fields fall back to defaults.
	assert.Equal(t, 500, AppConfig.BLSAPI.DailyLimit)
	assert.Equal(t, 4, AppConfig.BLSAPI.MaxAttempts)
	assert.Equal(t, 1, AppConfig.Sync.PublicationLagYears)
	assert.NotEmpty(t, AppConfig.BLSAPI.BaseURL)
}

func TestLoadConfigEnvOverridesSecrets(t *testing.T) {
	t.Setenv("BLS_API_KEY", "env-key")
	t.Setenv("DB_PASSWORD", "env-password")

	require.NoError(t, LoadConfig(writeTestConfig(t, testYAML)))

	assert.Equal(t, "env-key", AppConfig.BLSAPI.RegistrationKey)
	assert.Equal(t, "env-password", AppConfig.Database.Password)
}

func TestLoadConfigSurveyLookup(t *testing.T) {
	t.Setenv("BLS_API_KEY", "")
	require.NoError(t, LoadConfig(writeTestConfig(t, testYAML)))

	assert.Equal(t, []string{"CU", "LN"}, AppConfig.SurveyCodes())

	survey, ok := AppConfig.Survey("CU")
	require.True(t, ok)
	assert.Equal(t, "Consumer Price Index", survey.Name)

	_, ok = AppConfig.Survey("XX")
	assert.False(t, ok)
}

func TestLoadConfigMissingFile(t *testing.T) {
	err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigBadWindow(t *testing.T) {
	bad := `
bls_api:
  window: "not-a-duration"
`
	err := LoadConfig(writeTestConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window")
}
