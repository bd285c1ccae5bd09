package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// EnvPrefix prefixes environment variables that override config keys:
// chunker.chunk_size is overridden by KBCHAT_CHUNKER_CHUNK_SIZE.
const EnvPrefix = "KBCHAT_"

// LookupEnv reads an environment variable. os.LookupEnv satisfies it.
type LookupEnv func(key string) (string, bool)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// EnvKey returns the override variable for a config key.
func EnvKey(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// binding connects one config key to a settings field.
type binding struct {
	key       string
	fromStore func(driven.ConfigStore)
	parse     func(string) (any, error)
	set       func(any)
	value     func() any
}

func (b binding) fromEnv(raw string) error {
	v, err := b.parse(raw)
	if err != nil {
		return err
	}
	b.set(v)
	return nil
}

func stringVar(key string, p *string) binding {
	return binding{
		key: key,
		fromStore: func(c driven.ConfigStore) {
			if v := c.GetString(key); v != "" {
				*p = v
			}
		},
		parse: func(v string) (any, error) { return v, nil },
		set:   func(v any) { *p = v.(string) },
		value: func() any { return *p },
	}
}

func intVar(key string, p *int) binding {
	return binding{
		key: key,
		fromStore: func(c driven.ConfigStore) {
			if _, ok := c.Get(key); ok {
				*p = c.GetInt(key)
			}
		},
		parse: func(v string) (any, error) { return strconv.Atoi(strings.TrimSpace(v)) },
		set:   func(v any) { *p = v.(int) },
		value: func() any { return *p },
	}
}

func floatVar(key string, p *float64) binding {
	return binding{
		key: key,
		fromStore: func(c driven.ConfigStore) {
			if _, ok := c.Get(key); ok {
				*p = c.GetFloat(key)
			}
		},
		parse: func(v string) (any, error) { return strconv.ParseFloat(strings.TrimSpace(v), 64) },
		set:   func(v any) { *p = v.(float64) },
		value: func() any { return *p },
	}
}

func boolVar(key string, p *bool) binding {
	return binding{
		key: key,
		fromStore: func(c driven.ConfigStore) {
			if _, ok := c.Get(key); ok {
				*p = c.GetBool(key)
			}
		},
		parse: func(v string) (any, error) { return strconv.ParseBool(strings.TrimSpace(v)) },
		set:   func(v any) { *p = v.(bool) },
		value: func() any { return *p },
	}
}

// bindings lists every recognised config key.
func bindings(s *domain.AppSettings) []binding {
	return []binding{
		stringVar("embedding.provider", (*string)(&s.Embedding.Provider)),
		stringVar("embedding.model", &s.Embedding.Model),
		stringVar("embedding.base_url", &s.Embedding.BaseURL),
		stringVar("embedding.api_key", &s.Embedding.APIKey),
		stringVar("embedding.api_key_env", &s.Embedding.APIKeyEnv),
		intVar("embedding.dimensions", &s.Embedding.Dimensions),

		stringVar("llm.provider", (*string)(&s.LLM.Provider)),
		stringVar("llm.model", &s.LLM.Model),
		stringVar("llm.base_url", &s.LLM.BaseURL),
		stringVar("llm.api_key", &s.LLM.APIKey),
		stringVar("llm.api_key_env", &s.LLM.APIKeyEnv),
		floatVar("llm.temperature", &s.LLM.Temperature),
		intVar("llm.max_tokens", &s.LLM.MaxTokens),

		stringVar("vector.driver", (*string)(&s.Vector.Driver)),
		stringVar("vector.index_name", &s.Vector.IndexName),
		stringVar("vector.dir", &s.Vector.Dir),
		stringVar("vector.dsn", &s.Vector.DSN),
		stringVar("vector.address", &s.Vector.Address),
		stringVar("vector.api_key", &s.Vector.APIKey),

		stringVar("store.driver", (*string)(&s.Store.Driver)),
		stringVar("store.path", &s.Store.Path),
		stringVar("store.uri", &s.Store.URI),
		stringVar("store.database", &s.Store.Database),

		intVar("chunker.chunk_size", &s.Chunker.ChunkSize),
		intVar("chunker.overlap", &s.Chunker.Overlap),
		intVar("retrieval.top_k", &s.Retrieval.TopK),
		boolVar("history.enabled", &s.History.Enabled),
		intVar("history.limit", &s.History.Limit),

		intVar("resilience.max_retries", &s.Resilience.MaxRetries),
		floatVar("resilience.requests_per_second", &s.Resilience.RequestsPerSecond),
		intVar("resilience.burst", &s.Resilience.Burst),

		intVar("workers.count", &s.Workers.Count),
		intVar("workers.queue", &s.Workers.Queue),

		stringVar("telegram.token", &s.Telegram.Token),
		stringVar("corpus.dir", &s.CorpusDir),
		stringVar("data.dir", &s.DataDir),
	}
}

// Keys returns every config key LoadSettings recognises.
func Keys() []string {
	var s domain.AppSettings
	all := bindings(&s)
	keys := make([]string, 0, len(all))
	for _, b := range all {
		keys = append(keys, b.key)
	}
	return keys
}

// IsKnownKey reports whether key is a recognised config key.
func IsKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// ParseValue converts raw to the type stored under key.
// Unknown keys and malformed values wrap domain.ErrInvalidInput.
func ParseValue(key, raw string) (any, error) {
	var s domain.AppSettings
	for _, b := range bindings(&s) {
		if b.key != key {
			continue
		}
		v, err := b.parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: unknown config key: %s", domain.ErrInvalidInput, key)
}

// KeyValue is one effective setting.
type KeyValue struct {
	Key   string
	Value any
}

// Values returns the value of every recognised key in s, in Keys order.
func Values(s domain.AppSettings) []KeyValue {
	all := bindings(&s)
	values := make([]KeyValue, 0, len(all))
	for _, b := range all {
		values = append(values, KeyValue{Key: b.key, Value: b.value()})
	}
	return values
}

// IsSecret reports whether key holds a credential that should not be printed.
func IsSecret(key string) bool {
	for _, suffix := range []string{".api_key", ".token", ".dsn", ".uri"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// LoadSettings builds settings from defaults, then the config store, then
// KBCHAT_* environment overrides. Credentials left empty are read from the
// environment variable named by *.api_key_env or the provider's default.
// A malformed override wraps domain.ErrInvalidInput.
func LoadSettings(store driven.ConfigStore, lookup LookupEnv) (domain.AppSettings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	s := domain.DefaultAppSettings()
	defaults := s

	all := bindings(&s)
	set := make(map[string]bool)
	if store != nil {
		for _, b := range all {
			if _, ok := store.Get(b.key); ok {
				b.fromStore(store)
				set[b.key] = true
			}
		}
	}
	for _, b := range all {
		if v, ok := lookup(EnvKey(b.key)); ok {
			if err := b.fromEnv(v); err != nil {
				return s, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, EnvKey(b.key), err)
			}
			set[b.key] = true
		}
	}

	applyProviderDefaults(&s, defaults, set)
	resolveCredentials(&s, lookup)

	if s.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.DataDir = filepath.Join(home, ".kbchat", "data")
		}
	}
	return s, nil
}

// applyProviderDefaults re-derives model, endpoint, dimensions and key
// variable for a provider or model that was switched without setting them.
func applyProviderDefaults(s *domain.AppSettings, defaults domain.AppSettings, set map[string]bool) {
	if s.Embedding.Provider != defaults.Embedding.Provider {
		if !set["embedding.model"] {
			s.Embedding.Model = domain.DefaultEmbeddingModels()[s.Embedding.Provider]
		}
		if !set["embedding.base_url"] {
			s.Embedding.BaseURL = defaultBaseURL(s.Embedding.Provider)
		}
	}
	if !set["embedding.dimensions"] {
		if dims, ok := domain.EmbeddingDimensions()[s.Embedding.Model]; ok {
			s.Embedding.Dimensions = dims
		}
	}

	if s.LLM.Provider != defaults.LLM.Provider {
		if !set["llm.model"] {
			s.LLM.Model = domain.DefaultLLMModels()[s.LLM.Provider]
		}
		if !set["llm.base_url"] {
			s.LLM.BaseURL = defaultBaseURL(s.LLM.Provider)
		}
	}

	if !set["embedding.api_key_env"] {
		s.Embedding.APIKeyEnv = defaultKeyEnv(s.Embedding.Provider, s.Embedding.BaseURL)
	}
	if !set["llm.api_key_env"] {
		s.LLM.APIKeyEnv = defaultKeyEnv(s.LLM.Provider, s.LLM.BaseURL)
	}
}

// defaultBaseURL returns the public endpoint of a provider.
func defaultBaseURL(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOllama:
		return "http://localhost:11434"
	case domain.AIProviderOpenAI:
		return "https://api.openai.com/v1"
	case domain.AIProviderAnthropic:
		return "https://api.anthropic.com"
	default:
		return ""
	}
}

// defaultKeyEnv names the variable a provider's key is read from.
func defaultKeyEnv(provider domain.AIProvider, baseURL string) string {
	switch provider {
	case domain.AIProviderOpenAI:
		if strings.Contains(baseURL, "groq.com") {
			return domain.EnvGroqAPIKey
		}
		return domain.EnvOpenAIAPIKey
	case domain.AIProviderAnthropic:
		return domain.EnvAnthropicAPIKey
	default:
		return ""
	}
}

func resolveCredentials(s *domain.AppSettings, lookup LookupEnv) {
	fill := func(p *string, env string) {
		if *p != "" || env == "" {
			return
		}
		if v, ok := lookup(env); ok {
			*p = strings.TrimSpace(v)
		}
	}

	fill(&s.Embedding.APIKey, s.Embedding.APIKeyEnv)
	fill(&s.LLM.APIKey, s.LLM.APIKeyEnv)
	fill(&s.Vector.DSN, domain.EnvDatabaseURL)
	fill(&s.Vector.APIKey, domain.EnvMilvusAPIKey)
	fill(&s.Store.URI, domain.EnvMongoURI)
	fill(&s.Telegram.Token, domain.EnvTelegramToken)
}
