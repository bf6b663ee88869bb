package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9090"
llm:
  model: test-model
  timeout: 45s
  max_retries: 5
  rate_limit_cap: 20s
pipeline:
  simplify_after: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_MAX_RETRIES", "2")

	c := loadConfig()
	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, "test-model", c.LLM.Model)
	assert.Equal(t, 45*time.Second, c.LLM.Timeout)
	assert.Equal(t, 20*time.Second, c.LLM.RateLimitCap)
	assert.Equal(t, "sk-test", c.LLM.APIKey)
	assert.Equal(t, 2, c.LLM.MaxRetries, "env overrides file")
	assert.Equal(t, 2, c.Pipeline.SimplifyAfter)
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, time.Second, c.LLM.RateLimitBase)
	assert.Equal(t, "sqlite", c.Database.Type)
}

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, 2*time.Minute, c.LLM.Timeout)
	assert.Equal(t, 3, c.LLM.MaxRetries)
	assert.True(t, c.Pipeline.CorrectionEnabled)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.LLM.Provider = "eino"
	c.LLM.TransientCap = 15 * time.Second
	c.Database.HistoryEnabled = false
	require.NoError(t, c.Save(path))

	t.Setenv("CONFIG_PATH", path)
	loaded := loadConfig()
	assert.Equal(t, "eino", loaded.LLM.Provider)
	assert.Equal(t, 15*time.Second, loaded.LLM.TransientCap)
	assert.False(t, loaded.Database.HistoryEnabled)
}
