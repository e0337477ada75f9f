// Package config loads librarian settings from the JSON config file, a .env
// file and LIBRARIAN_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Proxy     ProxyConfig
	Ollama    OllamaConfig
	Storage   StorageConfig
	Catalog   CatalogConfig
	Recommend RecommendConfig
	Media     MediaConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	APIToken string
}

type LLMConfig struct {
	Provider string
}

type ProxyConfig struct {
	BaseURL   string
	APIKey    string
	ChatModel string
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
}

type StorageConfig struct {
	DataDir string
}

type CatalogConfig struct {
	Path string
}

type RecommendConfig struct {
	TopK           int
	NumRecs        int
	LanguageFilter bool
	// BlockedWords is a comma-separated list; empty selects the built-in set.
	BlockedWords string
	Language     string
}

type MediaConfig struct {
	Enabled    bool
	OutputDir  string
	TTSModel   string
	Voice      string
	ImageModel string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		LLM: LLMConfig{Provider: ProviderOpenAI},
		Proxy: ProxyConfig{
			BaseURL:   "https://api.openai.com/v1",
			ChatModel: "gpt-4o-mini",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
			ChatModel:  "llama3.1",
		},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Recommend: RecommendConfig{
			TopK:           4,
			NumRecs:        1,
			LanguageFilter: true,
			Language:       "română",
		},
		Media: MediaConfig{
			Enabled:    true,
			OutputDir:  "generated",
			TTSModel:   "gpt-4o-mini-tts",
			Voice:      "alloy",
			ImageModel: "gpt-image-1",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from the JSON file at FilePath, then applies
// variables from ./.env and finally the process environment.
// OPENAI_API_KEY is accepted when LIBRARIAN_OPENAI_API_KEY is unset.
func Load() (Config, error) {
	dot, err := readDotEnv(".env")
	if err != nil {
		return Config{}, err
	}
	return loadWith(newFileBackend(FilePath()), envLookup(dot))
}

// readDotEnv parses a .env file. A missing file yields no variables.
func readDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return vars, nil
}

// envLookup resolves a variable from the process environment, falling back
// to the .env values.
func envLookup(dot map[string]string) func(string) string {
	return func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dot[key]
	}
}

func loadWith(b ConfigBackend, getenv func(string) string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg, getenv)

	if cfg.Proxy.APIKey == "" {
		cfg.Proxy.APIKey = getenv("OPENAI_API_KEY")
	}

	switch cfg.LLM.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return Config{}, fmt.Errorf("invalid llm.provider %q: want %q or %q", cfg.LLM.Provider, ProviderOpenAI, ProviderOllama)
	}

	if cfg.LLM.Provider == ProviderOpenAI && cfg.Proxy.APIKey == "" {
		return Config{}, errors.New("missing required config: OpenAI API key. " +
			"Set it via environment variable LIBRARIAN_OPENAI_API_KEY or OPENAI_API_KEY, " +
			"or switch llm.provider to ollama")
	}

	return cfg, nil
}
