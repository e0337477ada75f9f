package config

import (
	"fmt"
	"log/slog"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "LIBRARIAN_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "LIBRARIAN_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "LIBRARIAN_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "llm.provider", typ: kString, env: "LIBRARIAN_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "proxy.base_url", typ: kString, env: "LIBRARIAN_PROXY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.BaseURL },
	},
	{
		key: "proxy.api_key", typ: kString, env: "LIBRARIAN_OPENAI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Proxy.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.APIKey },
	},
	{
		key: "proxy.chat_model", typ: kString, env: "LIBRARIAN_PROXY_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.ChatModel },
	},
	{
		key: "ollama.base_url", typ: kString, env: "LIBRARIAN_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "LIBRARIAN_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "LIBRARIAN_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LIBRARIAN_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "catalog.path", typ: kString, env: "LIBRARIAN_CATALOG_PATH",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Path },
	},
	{
		key: "recommend.top_k", typ: kInt, env: "LIBRARIAN_RECOMMEND_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Recommend.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.TopK },
	},
	{
		key: "recommend.num_recs", typ: kInt, env: "LIBRARIAN_RECOMMEND_NUM_RECS",
		apply:   func(cfg *Config, v any) { cfg.Recommend.NumRecs = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.NumRecs },
	},
	{
		key: "recommend.language_filter", typ: kBool, env: "LIBRARIAN_RECOMMEND_LANGUAGE_FILTER",
		apply:   func(cfg *Config, v any) { cfg.Recommend.LanguageFilter = v.(bool) },
		extract: func(cfg Config) any { return cfg.Recommend.LanguageFilter },
	},
	{
		key: "recommend.blocked_words", typ: kString, env: "LIBRARIAN_RECOMMEND_BLOCKED_WORDS",
		apply:   func(cfg *Config, v any) { cfg.Recommend.BlockedWords = v.(string) },
		extract: func(cfg Config) any { return cfg.Recommend.BlockedWords },
	},
	{
		key: "recommend.language", typ: kString, env: "LIBRARIAN_RECOMMEND_LANGUAGE",
		apply:   func(cfg *Config, v any) { cfg.Recommend.Language = v.(string) },
		extract: func(cfg Config) any { return cfg.Recommend.Language },
	},
	{
		key: "media.enabled", typ: kBool, env: "LIBRARIAN_MEDIA_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Media.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Media.Enabled },
	},
	{
		key: "media.output_dir", typ: kString, env: "LIBRARIAN_MEDIA_OUTPUT_DIR",
		apply:   func(cfg *Config, v any) { cfg.Media.OutputDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Media.OutputDir },
	},
	{
		key: "media.tts_model", typ: kString, env: "LIBRARIAN_MEDIA_TTS_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Media.TTSModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Media.TTSModel },
	},
	{
		key: "media.voice", typ: kString, env: "LIBRARIAN_MEDIA_VOICE",
		apply:   func(cfg *Config, v any) { cfg.Media.Voice = v.(string) },
		extract: func(cfg Config) any { return cfg.Media.Voice },
	},
	{
		key: "media.image_model", typ: kString, env: "LIBRARIAN_MEDIA_IMAGE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Media.ImageModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Media.ImageModel },
	},
	{
		key: "log.level", typ: kString, env: "LIBRARIAN_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetBool(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("ignoring invalid integer in environment", "var", s.env, "value", raw, "error", err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				slog.Warn("ignoring invalid bool in environment", "var", s.env, "value", raw, "error", err)
			}
		}
	}
}
