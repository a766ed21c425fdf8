package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/cv-grader/internal/llm"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, llm.ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, llm.DefaultGeminiModel, cfg.GeminiModel)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	require.NoError(t, cfg.Validate())

	d, err := cfg.Delay()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, d)
}

func TestLoadFrom_SaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg.Port = 9000
	cfg.SpreadsheetID = "sheet-1"
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, loaded.Port)
	assert.Equal(t, "sheet-1", loaded.SpreadsheetID)
	assert.Equal(t, llm.DefaultOpenAIModel, loaded.OpenAIModel)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadFrom_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{port:"), 0600))

	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"PORT":           "3000",
		"LLM_PROVIDER":   "openai",
		"OPENAI_API_KEY": "sk-test",
		"GEMINI_API_KEY": "",
		"REQUEST_DELAY":  "250ms",
		"SPREADSHEET_ID": "abc",
	}))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, llm.ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Empty(t, cfg.GeminiAPIKey)
	assert.Equal(t, "abc", cfg.SpreadsheetID)

	d, err := cfg.Delay()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"PORT":             "eighty",
		"MAX_UPLOAD_BYTES": "lots",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PORT")
	assert.Contains(t, err.Error(), "invalid MAX_UPLOAD_BYTES")
	assert.Equal(t, 8080, cfg.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }, "port out of range"},
		{"missing database", func(c *Config) { c.DatabasePath = "" }, "database_path is required"},
		{"no upload limit", func(c *Config) { c.MaxUploadBytes = 0 }, "max_upload_bytes"},
		{"bad delay", func(c *Config) { c.RequestDelay = "soon" }, "invalid request_delay"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "llama" }, "unknown llm_provider"},
		{"vertexai without project", func(c *Config) { c.LLMProvider = llm.ProviderVertexAI }, "google_cloud_project"},
		{"missing gmail credentials", func(c *Config) { c.GmailCredentialsPath = "/nonexistent/credentials.json" }, "gmail credentials file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLLMSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GeminiAPIKey = "key"
	cfg.GoogleCloudProject = "proj"

	s := cfg.LLMSettings()
	assert.Equal(t, llm.Settings{
		Provider:     llm.ProviderGemini,
		GeminiAPIKey: "key",
		GeminiModel:  llm.DefaultGeminiModel,
		Project:      "proj",
		Location:     llm.DefaultLocation,
		OpenAIModel:  llm.DefaultOpenAIModel,
	}, s)
}
