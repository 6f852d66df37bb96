package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults 配置文件不存在时使用默认值并写出默认配置
func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Backend.Source)
	assert.Equal(t, "llama3", cfg.Backend.Model)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 30, cfg.Pipeline.MaxRetries)
	assert.Equal(t, time.Second, cfg.Pipeline.RetryDelay)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.Queue.Enable)

	// 默认配置应已写到磁盘
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

// TestLoadFromFile 配置文件中的值覆盖默认值
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
backend:
  source: remote
  model: gpt-4o-mini
  remote_url: https://api.example.com/v1
  api_key: ${MEMORIDE_API_KEY}
  preset_models:
    - gpt-4o-mini
    - gpt-4o
pipeline:
  max_retries: 5
  retry_delay: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("MEMORIDE_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "remote", cfg.Backend.Source)
	assert.Equal(t, "gpt-4o-mini", cfg.Backend.Model)
	assert.Equal(t, []string{"gpt-4o-mini", "gpt-4o"}, cfg.Backend.PresetModels)
	assert.Equal(t, "sk-test", cfg.Backend.APIKey, "API密钥从环境变量展开")
	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.RetryDelay)
}

// TestExpandEnvUnset 环境变量未设置时保留原占位符
func TestExpandEnvUnset(t *testing.T) {
	assert.Equal(t, "${NOT_SET_VAR}", expandEnv("${NOT_SET_VAR}"))
	assert.Equal(t, "plain-value", expandEnv("plain-value"))
}
