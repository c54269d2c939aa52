package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Queue.TTL)
	assert.Equal(t, float32(0.5), cfg.Selector.MinSimilarity)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
queue:
  ttl: 10m
selector:
  tool_limit: 5
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Queue.TTL)
	assert.Equal(t, 5, cfg.Selector.ToolLimit)
	// Untouched sections keep defaults.
	assert.Equal(t, time.Minute, cfg.Queue.SweepInterval)
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("SLACK_SIGNING_SECRET", "sig-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.LLM.APIKey)
	assert.Equal(t, "sig-test", cfg.Slack.SigningSecret)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))

	cfg.Selector.MinSimilarity = 1.5
	assert.Error(t, Validate(cfg))
	cfg.Selector.MinSimilarity = 0.5

	cfg.Queue.TTL = 0
	assert.Error(t, Validate(cfg))
	cfg.Queue.TTL = time.Minute

	cfg.Database.Path = ""
	assert.Error(t, Validate(cfg))
}
