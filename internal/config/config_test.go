//go:build unit

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factory-hook.yaml")
	content := `
log_level: debug
redis_url: redis://file:6379/0
jira_base_url: https://jira.example.com
port: "9090"
http_timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PORT", "7070")
	t.Setenv("JIRA_TOKEN", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis://file:6379/0", cfg.RedisURL)
	assert.Equal(t, "https://jira.example.com", cfg.JiraBaseURL)
	assert.Equal(t, "7070", cfg.Port, "environment overrides the file")
	assert.Equal(t, "secret", cfg.JiraToken)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "codenvy.admin", cfg.SettingsNamespace)
	assert.Equal(t, DefaultDevelopFieldType, cfg.DevelopFieldType)
	assert.Equal(t, DefaultReviewFieldType, cfg.ReviewFieldType)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(c *Config)
		expectedField string
	}{
		{
			name:   "valid configuration",
			mutate: func(c *Config) {},
		},
		{
			name:          "missing redis url",
			mutate:        func(c *Config) { c.RedisURL = "" },
			expectedField: "REDIS_URL",
		},
		{
			name:          "missing jira base url",
			mutate:        func(c *Config) { c.JiraBaseURL = "" },
			expectedField: "JIRA_BASE_URL",
		},
		{
			name: "authentication without token",
			mutate: func(c *Config) {
				c.EnableAuthentication = true
				c.BearerToken = ""
			},
			expectedField: "BEARER_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.RedisURL = "redis://localhost:6379/0"
			cfg.JiraBaseURL = "https://jira.example.com"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expectedField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.expectedField, cfgErr.Field)
		})
	}
}
