package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 20, cfg.Extraction.MaxPages)
	assert.Equal(t, "rules", cfg.Extraction.Provider)
	assert.Equal(t, 45*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, 0.7, cfg.Feedback.AccuracyThreshold)
	assert.Equal(t, "default", cfg.Tenant.Default)
	assert.Empty(t, cfg.Validate())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CVA_EXTRACTION_MAX_PAGES", "5")
	t.Setenv("CVA_QUEUE_PROCESS_TIMEOUT", "90s")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Extraction.MaxPages)
	assert.Equal(t, 90*time.Second, cfg.Queue.ProcessTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "extraction:\n  provider: gemini\nquota:\n  window: 2m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Extraction.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Quota.Window)
	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Server.MaxUploadMB)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = "mysql"
	cfg.Extraction.Provider = "bogus"
	cfg.Quota.Backend = "redis"

	errs := cfg.Validate()
	assert.Len(t, errs, 3)

	err := cfg.ValidateError()
	require.Error(t, err)
	assert.True(t, HasCode(err, CodeConfig))
}
