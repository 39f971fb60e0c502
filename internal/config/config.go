package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default custom field type keys marking the Develop and Review link fields.
const (
	DefaultDevelopFieldType = "com.codenvy.jira.codenvy-jira-plugin:developfield"
	DefaultReviewFieldType  = "com.codenvy.jira.codenvy-jira-plugin:reviewfield"
)

// Config holds application configuration
type Config struct {
	// Logging configuration
	LogLevel string `yaml:"log_level"`

	// Authentication configuration
	EnableAuthentication bool   `yaml:"enable_authentication"`
	BearerToken          string `yaml:"bearer_token"`

	// Redis configuration (connection settings store)
	RedisURL          string `yaml:"redis_url"`
	SettingsNamespace string `yaml:"settings_namespace"`

	// Issue tracker configuration
	JiraBaseURL    string `yaml:"jira_base_url"`
	JiraUsername   string `yaml:"jira_username"`
	JiraToken      string `yaml:"jira_token"`
	JiraSkipTLS    bool   `yaml:"jira_skip_tls_verify"`
	FactorySkipTLS bool   `yaml:"factory_skip_tls_verify"`

	// Custom field types holding the factory links
	DevelopFieldType string `yaml:"develop_field_type"`
	ReviewFieldType  string `yaml:"review_field_type"`

	// Server configuration
	Port        string        `yaml:"port"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// Default returns the configuration used when neither file nor environment set a value.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		SettingsNamespace: "codenvy.admin",
		DevelopFieldType:  DefaultDevelopFieldType,
		ReviewFieldType:   DefaultReviewFieldType,
		Port:              "8080",
		HTTPTimeout:       30 * time.Second,
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FACTORY_HOOK_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	// Logging
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)

	// Authentication
	c.EnableAuthentication = getEnvBool("ENABLE_AUTHENTICATION", c.EnableAuthentication)
	c.BearerToken = getEnvString("BEARER_TOKEN", c.BearerToken)

	// Redis
	c.RedisURL = getEnvString("REDIS_URL", c.RedisURL)
	c.SettingsNamespace = getEnvString("SETTINGS_NAMESPACE", c.SettingsNamespace)

	// Issue tracker
	c.JiraBaseURL = getEnvString("JIRA_BASE_URL", c.JiraBaseURL)
	c.JiraUsername = getEnvString("JIRA_USERNAME", c.JiraUsername)
	c.JiraToken = getEnvString("JIRA_TOKEN", c.JiraToken)
	c.JiraSkipTLS = getEnvBool("JIRA_SKIP_TLS_VERIFY", c.JiraSkipTLS)
	c.FactorySkipTLS = getEnvBool("FACTORY_SKIP_TLS_VERIFY", c.FactorySkipTLS)

	c.DevelopFieldType = getEnvString("DEVELOP_FIELD_TYPE", c.DevelopFieldType)
	c.ReviewFieldType = getEnvString("REVIEW_FIELD_TYPE", c.ReviewFieldType)

	// Server
	c.Port = getEnvString("PORT", c.Port)
	c.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return &ConfigError{Field: "REDIS_URL", Message: "Redis URL is required"}
	}

	if c.JiraBaseURL == "" {
		return &ConfigError{Field: "JIRA_BASE_URL", Message: "issue tracker base URL is required"}
	}

	if c.EnableAuthentication && c.BearerToken == "" {
		return &ConfigError{Field: "BEARER_TOKEN", Message: "Bearer token is required when authentication is enabled"}
	}

	if c.DevelopFieldType == "" || c.ReviewFieldType == "" {
		return &ConfigError{Field: "DEVELOP_FIELD_TYPE/REVIEW_FIELD_TYPE", Message: "both field type keys are required"}
	}

	return nil
}

// GetLogLevel returns the slog.Level for the configured log level
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "Configuration error for " + e.Field + ": " + e.Message
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
