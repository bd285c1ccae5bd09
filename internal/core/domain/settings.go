package domain

import (
	"fmt"
	"strings"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is any OpenAI-compatible API (OpenAI, Groq, ...).
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI-compatible (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// StoreDriver selects the backend for chunk text and conversation history.
type StoreDriver string

// Available store drivers.
const (
	StoreSQLite StoreDriver = "sqlite"
	StoreMongo  StoreDriver = "mongo"
	StoreMemory StoreDriver = "memory"
)

// IsValid returns true if the store driver is recognised.
func (d StoreDriver) IsValid() bool {
	switch d {
	case StoreSQLite, StoreMongo, StoreMemory:
		return true
	default:
		return false
	}
}

// VectorDriver selects the vector index backend.
type VectorDriver string

// Available vector index drivers.
const (
	VectorMemory   VectorDriver = "memory"
	VectorPgvector VectorDriver = "pgvector"
	VectorMilvus   VectorDriver = "milvus"
)

// IsValid returns true if the vector driver is recognised.
func (d VectorDriver) IsValid() bool {
	switch d {
	case VectorMemory, VectorPgvector, VectorMilvus:
		return true
	default:
		return false
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI-compatible providers).
	APIKey string

	// APIKeyEnv names the environment variable the key is read from.
	APIKeyEnv string

	// Dimensions is the embedding vector size.
	Dimensions int
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// APIKeyEnv names the environment variable the key is read from.
	APIKeyEnv string

	// Temperature is the sampling temperature. Grounded answers use 0.
	Temperature float64

	// MaxTokens caps the generated reply length in tokens.
	MaxTokens int
}

// VectorSettings holds vector index configuration.
type VectorSettings struct {
	// Driver is the vector index backend.
	Driver VectorDriver

	// IndexName is the index, collection or table name.
	IndexName string

	// Dir is where the memory index keeps its snapshot. Empty keeps it in memory only.
	Dir string

	// DSN is the PostgreSQL connection string (pgvector).
	DSN string

	// Address is the Milvus server address.
	Address string

	// APIKey is the Milvus API key, if the server requires one.
	APIKey string
}

// StoreSettings holds text and history store configuration.
type StoreSettings struct {
	// Driver is the store backend.
	Driver StoreDriver

	// Path is the SQLite database file.
	Path string

	// URI is the MongoDB connection string.
	URI string

	// Database is the MongoDB database name.
	Database string
}

// ChunkerSettings holds chunking configuration.
type ChunkerSettings struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int

	// Overlap is the number of characters shared by consecutive chunks.
	Overlap int
}

// RetrievalSettings holds query-time retrieval configuration.
type RetrievalSettings struct {
	// TopK is the number of nearest chunks used as context.
	TopK int
}

// HistorySettings holds conversation history configuration.
type HistorySettings struct {
	// Enabled gates every history read and write.
	Enabled bool

	// Limit is the number of recent turns injected into the prompt.
	Limit int
}

// ResilienceSettings holds retry and rate-limit configuration for AI providers.
type ResilienceSettings struct {
	// MaxRetries is the number of retries after a failed call. Zero disables retry.
	MaxRetries int

	// RequestsPerSecond limits calls per provider. Zero means unlimited.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size.
	Burst int
}

// WorkerSettings sizes the background worker pools.
type WorkerSettings struct {
	// Count is the number of concurrent workers.
	Count int

	// Queue is the number of tasks that may wait for a worker.
	Queue int
}

// TelegramSettings holds chat platform configuration.
type TelegramSettings struct {
	// Token is the bot token.
	Token string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Vector     VectorSettings
	Store      StoreSettings
	Chunker    ChunkerSettings
	Retrieval  RetrievalSettings
	History    HistorySettings
	Resilience ResilienceSettings
	Workers    WorkerSettings
	Telegram   TelegramSettings

	// CorpusDir is the directory ingested by default.
	CorpusDir string

	// DataDir holds local state (SQLite file, memory index snapshot).
	DataDir string
}

// Default environment variables credentials are read from.
const (
	EnvGroqAPIKey      = "GROQ_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvMilvusAPIKey    = "MILVUS_API_KEY"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvMongoURI        = "MONGODB_URI"
	EnvTelegramToken   = "TELEGRAM_BOT_TOKEN"
)

// DefaultAppSettings returns settings matching the reference deployment:
// a local 384-dimension MiniLM embedder, llama-3.1-8b-instant on Groq,
// 500/100 chunking, top-8 retrieval, history off.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOllama,
			Model:      "all-minilm",
			BaseURL:    "http://localhost:11434",
			Dimensions: 384,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       "llama-3.1-8b-instant",
			BaseURL:     "https://api.groq.com/openai/v1",
			APIKeyEnv:   EnvGroqAPIKey,
			Temperature: 0,
			MaxTokens:   1024,
		},
		Vector: VectorSettings{
			Driver:    VectorMemory,
			IndexName: "rag-bot-v2",
		},
		Store: StoreSettings{
			Driver:   StoreSQLite,
			Database: "rag_db",
		},
		Chunker: ChunkerSettings{
			ChunkSize: 500,
			Overlap:   100,
		},
		Retrieval: RetrievalSettings{
			TopK: 8,
		},
		History: HistorySettings{
			Enabled: false,
			Limit:   6,
		},
		Resilience: ResilienceSettings{
			MaxRetries: 0,
			Burst:      1,
		},
		Workers: WorkerSettings{
			Count: 4,
			Queue: 64,
		},
		CorpusDir: "data",
	}
}

// Purpose names what a process is about to do, which decides the settings it needs.
type Purpose int

const (
	// PurposeIngest populates the knowledge base.
	PurposeIngest Purpose = iota

	// PurposeAnswer answers questions locally (CLI, TUI, MCP).
	PurposeAnswer

	// PurposeServe answers questions on the chat platform.
	PurposeServe
)

// Validate checks the settings needed for purpose.
// Invalid values wrap ErrInvalidInput; absent secrets wrap ErrMissingCredential
// and name every missing one.
func (s AppSettings) Validate(purpose Purpose) error {
	if err := s.validateValues(); err != nil {
		return err
	}

	var missing []string
	need := func(value, key, env string) {
		if strings.TrimSpace(value) != "" {
			return
		}
		if env != "" {
			key += " (" + env + ")"
		}
		missing = append(missing, key)
	}

	if s.Embedding.Provider.RequiresAPIKey() {
		need(s.Embedding.APIKey, "embedding.api_key", s.Embedding.APIKeyEnv)
	}
	switch s.Vector.Driver {
	case VectorPgvector:
		need(s.Vector.DSN, "vector.dsn", EnvDatabaseURL)
	case VectorMilvus:
		need(s.Vector.Address, "vector.address", "")
	}
	if s.Store.Driver == StoreMongo {
		need(s.Store.URI, "store.uri", EnvMongoURI)
	}
	if purpose >= PurposeAnswer && s.LLM.Provider.RequiresAPIKey() {
		need(s.LLM.APIKey, "llm.api_key", s.LLM.APIKeyEnv)
	}
	if purpose == PurposeServe {
		need(s.Telegram.Token, "telegram.token", EnvTelegramToken)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return nil
}

func (s AppSettings) validateValues() error {
	switch {
	case !s.Embedding.Provider.IsValid() || s.Embedding.Provider == AIProviderAnthropic:
		return fmt.Errorf("%w: embedding provider %q", ErrInvalidInput, s.Embedding.Provider)
	case !s.LLM.Provider.IsValid():
		return fmt.Errorf("%w: llm provider %q", ErrInvalidInput, s.LLM.Provider)
	case !s.Vector.Driver.IsValid():
		return fmt.Errorf("%w: vector driver %q", ErrInvalidInput, s.Vector.Driver)
	case !s.Store.Driver.IsValid():
		return fmt.Errorf("%w: store driver %q", ErrInvalidInput, s.Store.Driver)
	case s.Embedding.Dimensions <= 0:
		return fmt.Errorf("%w: embedding dimensions must be positive", ErrInvalidInput)
	case s.Chunker.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidInput)
	case s.Chunker.Overlap < 0 || s.Chunker.Overlap >= s.Chunker.ChunkSize:
		return fmt.Errorf("%w: overlap must be in [0, chunk size)", ErrInvalidInput)
	case s.Retrieval.TopK < 1:
		return fmt.Errorf("%w: top_k must be at least 1", ErrInvalidInput)
	case s.History.Limit < 0:
		return fmt.Errorf("%w: history limit must not be negative", ErrInvalidInput)
	case s.Resilience.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidInput)
	}
	return nil
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "all-minilm",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.1:8b",
		AIProviderOpenAI:    "llama-3.1-8b-instant",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"all-minilm":             384,
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
	}
}
