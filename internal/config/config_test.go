package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
listen: ":9090"
log:
  level: debug
  format: json
delivery:
  max_concurrent: 8
organizations:
  - id: org-fire
    name: City Fire Department
    short_name: CFD
    type: fire_department
templates:
  - id: tmpl-webhook
    type: webhook
    name: Ops Webhook
    active: true
    retry_enabled: true
    retry_attempts: 2
    config_schema:
      endpoint_url:
        type: string
        required: true
integrations:
  - id: int-ops
    organization_id: org-fire
    template_id: tmpl-webhook
    name: ops hook
    active: true
    config:
      endpoint_url: https://hooks.example.com/ops
    filters:
      priorities: [critical, high]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/var/lib/sims", cfg.DataDir, "default applies when unset")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Delivery.MaxConcurrent)

	require.Len(t, cfg.Organizations, 1)
	assert.Equal(t, "CFD", cfg.Organizations[0].ShortName)

	require.Len(t, cfg.Templates, 1)
	tmpl := cfg.Templates[0]
	assert.Equal(t, "webhook", tmpl.Type)
	assert.True(t, tmpl.RetryEnabled)
	assert.Equal(t, 2, tmpl.RetryAttempts)
	require.Contains(t, tmpl.ConfigSchema, "endpoint_url")
	assert.True(t, tmpl.ConfigSchema["endpoint_url"].Required)

	require.Len(t, cfg.Integrations, 1)
	integ := cfg.Integrations[0]
	assert.Equal(t, "org-fire", integ.OrganizationID)
	require.NotNil(t, integ.Filters)
	assert.Equal(t, []string{"critical", "high"}, integ.Filters.Priorities)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsIncompleteTemplate(t *testing.T) {
	_, err := Load(writeConfig(t, `
templates:
  - id: tmpl-1
    type: webhook
`))
	require.Error(t, err, "template name is required")
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoadRejectsIncompleteIntegration(t *testing.T) {
	_, err := Load(writeConfig(t, `
integrations:
  - id: int-1
    template_id: tmpl-1
`))
	require.Error(t, err, "integration organization_id is required")
}
