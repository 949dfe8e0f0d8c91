package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents the application configuration
type Config struct {
	// Content API (OAuth2 client-credentials)
	TenantID     string `json:"tenant_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`

	// SMTP transport for the notification dispatcher
	SMTPHost     string `json:"smtp_host,omitempty"`
	SMTPPort     string `json:"smtp_port,omitempty"`
	SMTPUser     string `json:"smtp_user,omitempty"`
	SMTPPassword string `json:"smtp_password,omitempty"`
	SMTPFrom     string `json:"smtp_from,omitempty"`

	// Daemon intervals, seconds
	DetectionIntervalSeconds    int `json:"detection_interval_seconds,omitempty"`
	NotificationIntervalSeconds int `json:"notification_interval_seconds,omitempty"`
}

var (
	globalConfig *Config
	configPath   string
)

// init initializes the config path
func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		configPath = "config.json" // Fallback to current directory
	} else {
		configPath = filepath.Join(home, ".driftwatch", "config.json")
	}
}

// Load loads the configuration from file and applies environment overrides
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg := &Config{}

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.DetectionIntervalSeconds <= 0 {
		cfg.DetectionIntervalSeconds = 3600
	}
	if cfg.NotificationIntervalSeconds <= 0 {
		cfg.NotificationIntervalSeconds = 300
	}

	globalConfig = cfg
	return globalConfig, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.TenantID, "DRIFTWATCH_TENANT_ID")
	overrideString(&cfg.ClientID, "DRIFTWATCH_CLIENT_ID")
	overrideString(&cfg.ClientSecret, "DRIFTWATCH_CLIENT_SECRET")
	overrideString(&cfg.SMTPHost, "SMTP_HOST")
	overrideString(&cfg.SMTPPort, "SMTP_PORT")
	overrideString(&cfg.SMTPUser, "SMTP_USER")
	overrideString(&cfg.SMTPPassword, "SMTP_PASSWORD")
	overrideString(&cfg.SMTPFrom, "SMTP_FROM")
	overrideInt(&cfg.DetectionIntervalSeconds, "CHANGE_DETECTION_INTERVAL")
	overrideInt(&cfg.NotificationIntervalSeconds, "NOTIFICATION_CHECK_INTERVAL")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Save saves the configuration to file
func Save(cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil { // 0600 for security
		return fmt.Errorf("failed to write config: %w", err)
	}

	globalConfig = cfg
	return nil
}

// Get returns the current configuration (loads if not already loaded)
func Get() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}
	return Load()
}

// Reset clears the cached configuration so the next Load re-reads sources.
func Reset() {
	globalConfig = nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	return configPath
}

// HasGraphConfigured reports whether content API credentials are present
func HasGraphConfigured() bool {
	cfg, err := Get()
	if err != nil {
		return false
	}
	return cfg.TenantID != "" && cfg.ClientID != "" && cfg.ClientSecret != ""
}

// HasSMTPConfigured reports whether the mail transport is usable
func HasSMTPConfigured() bool {
	cfg, err := Get()
	if err != nil {
		return false
	}
	return cfg.SMTPHost != "" && cfg.SMTPUser != "" && cfg.SMTPPassword != ""
}
