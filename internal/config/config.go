// Package config loads capsule configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by CAPSULE_BACKEND.
const (
	BackendBadger  = "badger"
	BackendSurreal = "surreal"
)

// Provider names accepted by the embedding and LLM provider settings.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Config holds all configuration values.
type Config struct {
	// Storage
	Backend  string
	DataDir  string
	InMemory bool

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Embedding collaborator
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int
	EmbedTimeout   time.Duration
	EmbedRPS       float64

	// Text generation collaborator
	LLMProvider string
	LLMModel    string
	LLMTimeout  time.Duration

	// Provider endpoints and credentials
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Retrieval
	Metric string
	MaxK   int

	// HTTP server
	ServerPort string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Backend:  strings.ToLower(getEnv("CAPSULE_BACKEND", BackendBadger)),
		DataDir:  getEnv("CAPSULE_DATA_DIR", "./data"),
		InMemory: getEnv("CAPSULE_IN_MEMORY", "false") == "true",

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "capsule"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "journal"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		EmbedProvider:  strings.ToLower(getEnv("CAPSULE_EMBED_PROVIDER", ProviderOllama)),
		EmbedModel:     getEnv("CAPSULE_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("CAPSULE_EMBED_DIMENSION", 384),
		EmbedTimeout:   getEnvDuration("CAPSULE_EMBED_TIMEOUT", 10*time.Second),
		EmbedRPS:       getEnvFloat("CAPSULE_EMBED_RPS", 0),

		LLMProvider: strings.ToLower(getEnv("CAPSULE_LLM_PROVIDER", ProviderOllama)),
		LLMModel:    getEnv("CAPSULE_LLM_MODEL", "llama3.1:8b"),
		LLMTimeout:  getEnvDuration("CAPSULE_LLM_TIMEOUT", 60*time.Second),

		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		Metric: strings.ToLower(getEnv("CAPSULE_METRIC", "l2")),
		MaxK:   getEnvInt("CAPSULE_MAX_K", 20),

		ServerPort: getEnv("CAPSULE_SERVER_PORT", "8000"),

		LogFile:  getEnv("CAPSULE_LOG_FILE", "/tmp/capsule.log"),
		LogLevel: parseLogLevel(getEnv("CAPSULE_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
