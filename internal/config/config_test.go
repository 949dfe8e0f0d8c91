package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3600, cfg.DetectionIntervalSeconds)
	assert.Equal(t, 300, cfg.NotificationIntervalSeconds)
}

func TestEnvOverrides(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("DRIFTWATCH_TENANT_ID", "tenant-env")
	t.Setenv("DRIFTWATCH_CLIENT_ID", "client-env")
	t.Setenv("DRIFTWATCH_CLIENT_SECRET", "secret-env")
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("CHANGE_DETECTION_INTERVAL", "120")
	t.Setenv("NOTIFICATION_CHECK_INTERVAL", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tenant-env", cfg.TenantID)
	assert.Equal(t, "client-env", cfg.ClientID)
	assert.Equal(t, "secret-env", cfg.ClientSecret)
	assert.Equal(t, "mail.example.com", cfg.SMTPHost)
	assert.Equal(t, 120, cfg.DetectionIntervalSeconds)
	// Unparseable values fall back to the default.
	assert.Equal(t, 300, cfg.NotificationIntervalSeconds)
}

func TestHasGraphConfigured(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("DRIFTWATCH_TENANT_ID", "tenant")
	t.Setenv("DRIFTWATCH_CLIENT_ID", "client")
	t.Setenv("DRIFTWATCH_CLIENT_SECRET", "")

	assert.False(t, HasGraphConfigured())

	Reset()
	t.Setenv("DRIFTWATCH_CLIENT_SECRET", "secret")
	assert.True(t, HasGraphConfigured())
}
