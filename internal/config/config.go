// Package config loads the portal configuration from a JSON file and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fmuoria/cv-grader/internal/llm"
)

// Config holds application configuration
type Config struct {
	Port         int    `json:"port"`
	LogLevel     string `json:"log_level"`
	DatabasePath string `json:"database_path"`

	LLMProvider         string `json:"llm_provider"`
	GeminiAPIKey        string `json:"gemini_api_key,omitempty"`
	GeminiModel         string `json:"gemini_model"`
	GoogleCloudProject  string `json:"google_cloud_project"`
	GoogleCloudLocation string `json:"google_cloud_location"`
	OpenAIAPIKey        string `json:"openai_api_key,omitempty"`
	OpenAIModel         string `json:"openai_model"`

	GoogleCredentialsPath string `json:"google_credentials_path"`
	GmailCredentialsPath  string `json:"gmail_credentials_path"`
	GmailTokenPath        string `json:"gmail_token_path"`
	SheetsCredentialsPath string `json:"sheets_credentials_path"`
	SpreadsheetID         string `json:"spreadsheet_id"`

	MaxUploadBytes int64 `json:"max_upload_bytes"`
	// RequestDelay is the pause between two grading calls, e.g. "4s"
	RequestDelay string `json:"request_delay"`
	BcryptCost   int    `json:"bcrypt_cost"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Port:                8080,
		LogLevel:            "info",
		DatabasePath:        filepath.Join("data", "cvgrader.db"),
		LLMProvider:         llm.ProviderGemini,
		GeminiModel:         llm.DefaultGeminiModel,
		GoogleCloudLocation: llm.DefaultLocation,
		OpenAIModel:         llm.DefaultOpenAIModel,
		GmailTokenPath:      "token.json",
		MaxUploadBytes:      5 << 20,
		RequestDelay:        "4s",
		BcryptCost:          10,
	}
}

// GetConfigPath returns the path to the configuration file
// On Windows: %APPDATA%/CVGrader/config.json
// On Unix: ~/.config/CVGrader/config.json
func GetConfigPath() (string, error) {
	var configDir string

	if os.Getenv("APPDATA") != "" {
		configDir = filepath.Join(os.Getenv("APPDATA"), "CVGrader")
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "CVGrader")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads path (or the default config path when empty) and overlays
// the environment
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom loads configuration from a specific path
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables. lookup is
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("DATABASE_PATH", &c.DatabasePath)
	str("LLM_PROVIDER", &c.LLMProvider)
	str("GEMINI_API_KEY", &c.GeminiAPIKey)
	str("GEMINI_MODEL", &c.GeminiModel)
	str("GOOGLE_CLOUD_PROJECT", &c.GoogleCloudProject)
	str("GOOGLE_CLOUD_LOCATION", &c.GoogleCloudLocation)
	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("OPENAI_MODEL", &c.OpenAIModel)
	str("GOOGLE_APPLICATION_CREDENTIALS", &c.GoogleCredentialsPath)
	str("GMAIL_CREDENTIALS_PATH", &c.GmailCredentialsPath)
	str("GMAIL_TOKEN_PATH", &c.GmailTokenPath)
	str("SHEETS_CREDENTIALS_PATH", &c.SheetsCredentialsPath)
	str("SPREADSHEET_ID", &c.SpreadsheetID)
	str("REQUEST_DELAY", &c.RequestDelay)

	var errs []error
	num := func(key string, set func(int64)) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %q", key, v))
			return
		}
		set(n)
	}

	num("PORT", func(n int64) { c.Port = int(n) })
	num("MAX_UPLOAD_BYTES", func(n int64) { c.MaxUploadBytes = n })
	num("BCRYPT_COST", func(n int64) { c.BcryptCost = int(n) })

	return errors.Join(errs...)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	if _, err := c.Delay(); err != nil {
		return err
	}

	switch strings.ToLower(c.LLMProvider) {
	case "", llm.ProviderGemini, llm.ProviderOpenAI:
	case llm.ProviderVertexAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("google_cloud_project is required for the vertexai provider")
		}
		if c.GoogleCloudLocation == "" {
			return fmt.Errorf("google_cloud_location is required for the vertexai provider")
		}
	default:
		return fmt.Errorf("unknown llm_provider %q", c.LLMProvider)
	}

	for name, path := range map[string]string{
		"google credentials": c.GoogleCredentialsPath,
		"gmail credentials":  c.GmailCredentialsPath,
		"sheets credentials": c.SheetsCredentialsPath,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s file not found: %w", name, err)
		}
	}

	return nil
}

// Delay parses RequestDelay
func (c *Config) Delay() (time.Duration, error) {
	if c.RequestDelay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RequestDelay)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid request_delay %q", c.RequestDelay)
	}
	return d, nil
}

// LLMSettings returns the model provider settings
func (c *Config) LLMSettings() llm.Settings {
	return llm.Settings{
		Provider:     c.LLMProvider,
		GeminiAPIKey: c.GeminiAPIKey,
		GeminiModel:  c.GeminiModel,
		Project:      c.GoogleCloudProject,
		Location:     c.GoogleCloudLocation,
		OpenAIAPIKey: c.OpenAIAPIKey,
		OpenAIModel:  c.OpenAIModel,
	}
}

// ApplyToEnv exports the Google credentials path for the cloud clients
func (c *Config) ApplyToEnv() {
	if c.GoogleCredentialsPath != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", c.GoogleCredentialsPath)
	}
}
