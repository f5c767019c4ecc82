package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Model   ModelConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
	// APIToken, when set, gates the management endpoints with bearer auth.
	APIToken string
}

// ModelConfig selects the generation provider. Exactly one provider is
// active; credentials for the others are ignored.
type ModelConfig struct {
	Provider string // "gemini", "ollama" or "openrouter"

	GeminiAPIKey string
	GeminiModel  string

	OllamaBaseURL string
	OllamaModel   string

	OpenRouterAPIKey string
	OpenRouterModel  string

	TimeoutSeconds int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		Model: ModelConfig{
			Provider:       "gemini",
			GeminiModel:    "gemini-2.0-flash",
			OllamaBaseURL:  "http://localhost:11434",
			OllamaModel:    "mistral-nemo",
			TimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".companion"
	}
	return filepath.Join(home, ".companion")
}

// Load builds the configuration from defaults, an optional .env file in the
// working directory, and COMPANION_* environment variables. A bare
// GEMINI_API_KEY is also honored so the common provider works without any
// prefix.
func Load() (Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Model.GeminiAPIKey == "" {
		cfg.Model.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type envSpec struct {
	env   string
	apply func(cfg *Config, raw string)
}

var specs = []envSpec{
	{"COMPANION_SERVER_PORT", func(cfg *Config, raw string) {
		if p, err := strconv.Atoi(raw); err == nil {
			cfg.Server.Port = p
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var COMPANION_SERVER_PORT=%q: %v. Using default value.\n", raw, err)
		}
	}},
	{"COMPANION_API_TOKEN", func(cfg *Config, raw string) { cfg.Server.APIToken = raw }},
	{"COMPANION_MODEL_PROVIDER", func(cfg *Config, raw string) { cfg.Model.Provider = raw }},
	{"COMPANION_GEMINI_API_KEY", func(cfg *Config, raw string) { cfg.Model.GeminiAPIKey = raw }},
	{"COMPANION_GEMINI_MODEL", func(cfg *Config, raw string) { cfg.Model.GeminiModel = raw }},
	{"COMPANION_OLLAMA_BASE_URL", func(cfg *Config, raw string) { cfg.Model.OllamaBaseURL = raw }},
	{"COMPANION_OLLAMA_MODEL", func(cfg *Config, raw string) { cfg.Model.OllamaModel = raw }},
	{"COMPANION_OPENROUTER_API_KEY", func(cfg *Config, raw string) { cfg.Model.OpenRouterAPIKey = raw }},
	{"COMPANION_OPENROUTER_MODEL", func(cfg *Config, raw string) { cfg.Model.OpenRouterModel = raw }},
	{"COMPANION_MODEL_TIMEOUT_SECONDS", func(cfg *Config, raw string) {
		if t, err := strconv.Atoi(raw); err == nil {
			cfg.Model.TimeoutSeconds = t
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var COMPANION_MODEL_TIMEOUT_SECONDS=%q: %v. Using default value.\n", raw, err)
		}
	}},
	{"COMPANION_STORAGE_DATA_DIR", func(cfg *Config, raw string) { cfg.Storage.DataDir = raw }},
	{"COMPANION_LOG_LEVEL", func(cfg *Config, raw string) { cfg.Log.Level = raw }},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if raw := os.Getenv(s.env); raw != "" {
			s.apply(cfg, raw)
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Model.Provider {
	case "gemini":
		if cfg.Model.GeminiAPIKey == "" {
			return fmt.Errorf("missing required config: Gemini API key. " +
				"Set it via environment variable COMPANION_GEMINI_API_KEY or GEMINI_API_KEY")
		}
	case "ollama":
		// Local provider, no credentials.
	case "openrouter":
		if cfg.Model.OpenRouterAPIKey == "" {
			return fmt.Errorf("missing required config: OpenRouter API key. " +
				"Set it via environment variable COMPANION_OPENROUTER_API_KEY")
		}
		if cfg.Model.OpenRouterModel == "" {
			return fmt.Errorf("missing required config: OpenRouter model. " +
				"Set it via environment variable COMPANION_OPENROUTER_MODEL")
		}
	default:
		return fmt.Errorf("unknown model provider %q (want gemini, ollama or openrouter)", cfg.Model.Provider)
	}
	return nil
}
