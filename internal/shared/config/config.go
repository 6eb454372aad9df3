package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSystemPrompt is sent to the model when SYSTEM_PROMPT is unset.
const DefaultSystemPrompt = `Você é o assistente do Racha-IA, um app brasileiro para dividir despesas entre amigos.
Responda sempre em português do Brasil, de forma curta e amigável.
Valores são em reais (R$). Ajude a registrar despesas, calcular quem deve para quem e resolver dúvidas sobre grupos.
Nunca invente valores que o usuário não informou.`

// Config holds all configuration for the gateway
type Config struct {
	// Server
	Port            string
	Env             string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string
	LogFile   string

	// Database
	DatabaseURL string

	// Key-value store
	StoreBackend string // redis | memory
	RedisURL     string
	KeyPrefix    string

	// Provider API keys and endpoints
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string

	// Tier -> model
	ModelLight    string
	ModelStandard string
	ModelPremium  string

	// Completion
	SystemPrompt      string
	CompletionTimeout time.Duration
	CompletionRetries int
	RetryBackoff      time.Duration
	MaxOutputTokens   int

	// Rate limiting
	DefaultRateLimit       int
	RateLimitWindow        time.Duration
	RateLimitFailurePolicy string // open | closed

	// Conversations
	ConversationTTL      time.Duration
	CompressThreshold    int
	CompressKeepMessages int
	PinnedMarker         string

	// Ledger
	CostRetention time.Duration
	Timezone      string

	// Localization
	Locale      string
	LexiconFile string

	// Audit
	AuditSink   string // postgres | supabase | none
	SupabaseURL string
	SupabaseKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"*"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
		LogFile:   getEnv("LOG_FILE", "logs/gateway.log"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		StoreBackend: getEnv("STORE_BACKEND", "redis"),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		KeyPrefix:    getEnv("KEY_PREFIX", "racha-ai:"),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),

		ModelLight:    getEnv("MODEL_LIGHT", "claude-haiku-4-5-20251001"),
		ModelStandard: getEnv("MODEL_STANDARD", "claude-sonnet-4-5-20250929"),
		ModelPremium:  getEnv("MODEL_PREMIUM", "claude-opus-4-5-20251101"),

		SystemPrompt:      getEnv("SYSTEM_PROMPT", DefaultSystemPrompt),
		CompletionTimeout: getEnvDuration("COMPLETION_TIMEOUT", 60*time.Second),
		CompletionRetries: getEnvInt("COMPLETION_RETRIES", 2),
		RetryBackoff:      getEnvDuration("COMPLETION_RETRY_BACKOFF", 500*time.Millisecond),
		MaxOutputTokens:   getEnvInt("MAX_OUTPUT_TOKENS", 1024),

		DefaultRateLimit:       getEnvInt("DEFAULT_RATE_LIMIT", 30),
		RateLimitWindow:        getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitFailurePolicy: strings.ToLower(getEnv("RATE_LIMIT_FAILURE_POLICY", "")),

		ConversationTTL:      getEnvDuration("CONVERSATION_TTL", 2*time.Hour),
		CompressThreshold:    getEnvInt("COMPRESS_THRESHOLD", 30),
		CompressKeepMessages: getEnvInt("COMPRESS_KEEP_MESSAGES", 20),
		PinnedMarker:         getEnv("PINNED_MARKER", "sistema"),

		CostRetention: getEnvDuration("COST_RETENTION", 24*time.Hour),
		Timezone:      getEnv("TIMEZONE", "UTC"),

		Locale:      getEnv("LOCALE", "pt-BR"),
		LexiconFile: getEnv("LEXICON_FILE", ""),

		AuditSink:   strings.ToLower(getEnv("AUDIT_SINK", "postgres")),
		SupabaseURL: getEnv("SUPABASE_URL", ""),
		SupabaseKey: getEnv("SUPABASE_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and enumerations
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// At least one provider API key is required
	if c.OpenAIAPIKey == "" && c.AnthropicAPIKey == "" {
		return fmt.Errorf("at least one provider API key is required (OPENAI_API_KEY or ANTHROPIC_API_KEY)")
	}

	switch c.RateLimitFailurePolicy {
	case "open", "closed":
	case "":
		return fmt.Errorf("RATE_LIMIT_FAILURE_POLICY is required (open or closed)")
	default:
		return fmt.Errorf("invalid RATE_LIMIT_FAILURE_POLICY %q (want open or closed)", c.RateLimitFailurePolicy)
	}

	switch c.StoreBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q (want redis or memory)", c.StoreBackend)
	}

	switch c.AuditSink {
	case "postgres", "none":
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required when AUDIT_SINK=supabase")
		}
	default:
		return fmt.Errorf("invalid AUDIT_SINK %q (want postgres, supabase or none)", c.AuditSink)
	}

	if c.DefaultRateLimit <= 0 {
		return fmt.Errorf("DEFAULT_RATE_LIMIT must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.CompressKeepMessages <= 0 || c.CompressThreshold < c.CompressKeepMessages {
		return fmt.Errorf("COMPRESS_THRESHOLD must be >= COMPRESS_KEEP_MESSAGES > 0")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}

	return nil
}

// Location returns the ledger time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
