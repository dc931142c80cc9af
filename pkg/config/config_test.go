package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
uri: neo4j://localhost:7687
user_agent: my-app/1.0
auth:
  scheme: basic
  principal: neo4j
  credentials: secret
connection_timeout: 10s
max_connection_pool_size: 50
fetch_size: -1
keep_alive: false
notification_filter:
  min_severity: WARNING
  disabled_categories: [HINT]
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "driver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_ParsesFullSurface(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "neo4j://localhost:7687", cfg.URI)
	assert.Equal(t, "my-app/1.0", cfg.UserAgent)
	assert.Equal(t, "basic", cfg.Auth.Scheme)
	assert.Equal(t, "neo4j", cfg.Auth.Principal)
	assert.Equal(t, 10*time.Second, cfg.ConnectionTimeout.Duration)
	assert.Equal(t, 50, cfg.MaxConnectionPoolSize)
	assert.Equal(t, int64(-1), cfg.FetchSize)
	assert.False(t, cfg.KeepAlive)
	assert.Equal(t, "WARNING", cfg.NotificationFilter.MinSeverity)
	assert.Equal(t, []string{"HINT"}, cfg.NotificationFilter.DisabledCategories)

	// ConnectionAcquisitionTimeout was left unset in the YAML, so it keeps
	// Default()'s value rather than zeroing out.
	assert.Equal(t, 60*time.Second, cfg.ConnectionAcquisitionTimeout.Duration)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsMissingURI(t *testing.T) {
	path := writeTempConfig(t, "user_agent: app\nauth:\n  scheme: basic\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidDuration(t *testing.T) {
	path := writeTempConfig(t, "uri: bolt://localhost\nuser_agent: app\nauth:\n  scheme: basic\nconnection_timeout: not-a-duration\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault_MatchesSpecDefaults(t *testing.T) {
	d := Default()
	assert.Equal(t, int64(1000), d.FetchSize)
	assert.Equal(t, 100, d.MaxConnectionPoolSize)
	assert.True(t, d.KeepAlive)
}

func TestAuthConfig_TokenOmitsBlankFields(t *testing.T) {
	tok := AuthConfig{Scheme: "none"}.token()
	_, hasPrincipal := tok["principal"]
	assert.False(t, hasPrincipal)
	assert.Equal(t, "none", tok["scheme"])
}

func TestNotificationFilter_ToExtrasNilWhenEmpty(t *testing.T) {
	var f NotificationFilter
	assert.Nil(t, f.toExtras())
}
