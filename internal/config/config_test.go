package config

import (
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Model.Provider != "gemini" {
		t.Errorf("Model.Provider = %q, want gemini", cfg.Model.Provider)
	}
	if cfg.Model.OllamaBaseURL != "http://localhost:11434" {
		t.Errorf("Model.OllamaBaseURL = %q", cfg.Model.OllamaBaseURL)
	}
	if cfg.Model.TimeoutSeconds != 30 {
		t.Errorf("Model.TimeoutSeconds = %d, want 30", cfg.Model.TimeoutSeconds)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COMPANION_SERVER_PORT", "9100")
	t.Setenv("COMPANION_MODEL_PROVIDER", "ollama")
	t.Setenv("COMPANION_OLLAMA_MODEL", "llama3.2")
	t.Setenv("COMPANION_MODEL_TIMEOUT_SECONDS", "10")
	t.Setenv("COMPANION_STORAGE_DATA_DIR", "/tmp/companion-test")

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Model.Provider != "ollama" {
		t.Errorf("Model.Provider = %q, want ollama", cfg.Model.Provider)
	}
	if cfg.Model.OllamaModel != "llama3.2" {
		t.Errorf("Model.OllamaModel = %q, want llama3.2", cfg.Model.OllamaModel)
	}
	if cfg.Model.TimeoutSeconds != 10 {
		t.Errorf("Model.TimeoutSeconds = %d, want 10", cfg.Model.TimeoutSeconds)
	}
	if cfg.Storage.DataDir != "/tmp/companion-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestEnvOverrideBadInt(t *testing.T) {
	t.Setenv("COMPANION_SERVER_PORT", "not-a-number")

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want default 8000 on parse failure", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "gemini without key",
			mutate:  func(c *Config) {},
			wantErr: "Gemini API key",
		},
		{
			name:   "gemini with key",
			mutate: func(c *Config) { c.Model.GeminiAPIKey = "k" },
		},
		{
			name:   "ollama needs no credentials",
			mutate: func(c *Config) { c.Model.Provider = "ollama" },
		},
		{
			name:    "openrouter without key",
			mutate:  func(c *Config) { c.Model.Provider = "openrouter" },
			wantErr: "OpenRouter API key",
		},
		{
			name: "openrouter without model",
			mutate: func(c *Config) {
				c.Model.Provider = "openrouter"
				c.Model.OpenRouterAPIKey = "k"
			},
			wantErr: "OpenRouter model",
		},
		{
			name: "openrouter complete",
			mutate: func(c *Config) {
				c.Model.Provider = "openrouter"
				c.Model.OpenRouterAPIKey = "k"
				c.Model.OpenRouterModel = "meta-llama/llama-3.1-8b-instruct"
			},
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Model.Provider = "bedrock" },
			wantErr: "unknown model provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
