package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// No config file on the search path: defaults apply.
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8081, cfg.Server.HealthPort)
	assert.Equal(t, "openai", cfg.Assistant.Backend)
	assert.Equal(t, "whisper-1", cfg.Assistant.OpenAI.TranscriptionModel)
	assert.Equal(t, "gemini-1.5-flash", cfg.Assistant.Gemini.Model)
	assert.False(t, cfg.Transcription.Async)
	assert.Equal(t, "500ms", cfg.Transcription.PollInterval)
	assert.Equal(t, 60, cfg.Transcription.MaxRetries)
	assert.Equal(t, "60s", cfg.Recording.MaxDuration)
	assert.False(t, cfg.Calendar.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speechplan.yaml")
	content := `
server:
  port: 9090
assistant:
  backend: gemini
  gemini:
    model: gemini-2.0-flash
transcription:
  async: true
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Assistant.Backend)
	assert.Equal(t, "gemini-2.0-flash", cfg.Assistant.Gemini.Model)
	assert.True(t, cfg.Transcription.Async)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, 8081, cfg.Server.HealthPort)
}

func TestLoadResolvesEnvRefs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speechplan.yaml")
	content := `
assistant:
  openai:
    api_key: ${TEST_SPEECHPLAN_KEY}
calendar:
  enabled: true
  token: ${TEST_SPEECHPLAN_CAL_TOKEN}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("TEST_SPEECHPLAN_KEY", "sk-test-123")
	t.Setenv("TEST_SPEECHPLAN_CAL_TOKEN", "cal-456")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.Assistant.OpenAI.APIKey)
	assert.Equal(t, "cal-456", cfg.Calendar.Token)
}

func TestLoadUnsetEnvRefKeptVerbatim(t *testing.T) {
	assert.Equal(t, "${NOT_SET_ANYWHERE}", resolveEnvRef("${NOT_SET_ANYWHERE}"))
	assert.Equal(t, "plain-value", resolveEnvRef("plain-value"))
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speechplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
