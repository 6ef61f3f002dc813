package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("API_KEY", "sk-test")
	t.Setenv("MODEL", "")
	t.Setenv("URL", "")
	t.Setenv("TELEMETRY_ENDPOINT", "")

	path := writeConfig(t, "gpt4.yaml", `
llm:
  model: gpt-4o
  max_tokens: 256
retrieval:
  top_k: 5
browser:
  headless: false
  timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.EqualValues(t, 256, cfg.LLM.MaxTokens)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 1000, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 1500, cfg.Retrieval.MaxCharsPerSource)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 3*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "gpt4.yaml", filepath.Base(cfg.Path))
}

func TestLoad_EnvOverridesModel(t *testing.T) {
	t.Setenv("API_KEY", "sk-test")
	t.Setenv("MODEL", "llama-3.1-70b")
	t.Setenv("URL", "https://api.groq.com/openai/v1")

	cfg, err := Load(writeConfig(t, "groq.yaml", "llm:\n  model: gpt-4o\n"))
	require.NoError(t, err)
	assert.Equal(t, "llama-3.1-70b", cfg.LLM.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")

	_, err := Load(writeConfig(t, "c.yaml", "llm:\n  model: gpt-4o\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "API_KEY", cfgErr.Field)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("API_KEY", "sk-test")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = Load("")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestLoad_UnknownEmbeddingProvider(t *testing.T) {
	t.Setenv("API_KEY", "sk-test")

	_, err := Load(writeConfig(t, "c.yaml", "embedding:\n  provider: cohere\n"))
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "cohere")
}

func TestLoadEnv_MissingFileIsFine(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), ".env")))
}
