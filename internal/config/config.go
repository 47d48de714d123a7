// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported generation providers.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// Config holds all application configuration.
type Config struct {
	Port             string
	FrontendURL      string
	DBPath           string
	SessionRetention time.Duration // 0 disables purging of idle sessions
	GRPCHealthAddr   string
	OTLPEndpoint     string

	Pitch           PitchConfig
	LLM             LLMConfig
	Speech          SpeechConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// PitchConfig controls the persona panel and turn limits.
type PitchConfig struct {
	Personas         []string
	MaxTurns         int
	GenerateTimeout  time.Duration
	TurnMaxTokens    int
	TurnTemperature  float64
	SummaryMaxTokens int
	MatchMaxTokens   int
	MaxInputBytes    int64
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// SpeechConfig controls transcription and voice synthesis.
type SpeechConfig struct {
	Enabled            bool
	TranscriptionModel string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ElevenLabsAPIKey   string
	ElevenLabsBaseURL  string
}

// RateLimitConfig bounds generation requests per anonymous owner.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

var defaultModels = map[string]string{
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderAnthropic:  "claude-3-5-haiku-latest",
	ProviderGemini:     "gemini-2.5-flash",
	ProviderOpenRouter: "openai/gpt-4o-mini",
}

var providerKeyEnv = map[string]string{
	ProviderOpenAI:     "OPENAI_API_KEY",
	ProviderAnthropic:  "ANTHROPIC_API_KEY",
	ProviderGemini:     "GEMINI_API_KEY",
	ProviderOpenRouter: "OPENROUTER_API_KEY",
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	provider := strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderOpenAI)))
	apiKey := getEnv("LLM_API_KEY", "")
	if apiKey == "" {
		if name, ok := providerKeyEnv[provider]; ok {
			apiKey = getEnv(name, "")
		}
	}
	model := getEnv("LLM_MODEL", "")
	if model == "" {
		model = defaultModels[provider]
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", ""),
		DBPath:           getEnv("DB_PATH", "./data/pitchtank.db"),
		SessionRetention: getEnvDuration("SESSION_RETENTION", 7*24*time.Hour),
		GRPCHealthAddr:   getEnv("GRPC_HEALTH_ADDR", ""),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Pitch: PitchConfig{
			Personas:         splitList(getEnv("PITCH_PERSONAS", "lion,owl,tusk")),
			MaxTurns:         getEnvInt("PITCH_MAX_TURNS", 3),
			GenerateTimeout:  getEnvDuration("GENERATION_TIMEOUT", 60*time.Second),
			TurnMaxTokens:    getEnvInt("TURN_MAX_TOKENS", 150),
			TurnTemperature:  getEnvFloat("TURN_TEMPERATURE", 0.7),
			SummaryMaxTokens: getEnvInt("SUMMARY_MAX_TOKENS", 300),
			MatchMaxTokens:   getEnvInt("MATCH_MAX_TOKENS", 700),
			MaxInputBytes:    int64(getEnvInt("MAX_INPUT_BYTES", 16*1024)),
		},
		LLM: LLMConfig{
			Provider:   provider,
			Model:      model,
			APIKey:     apiKey,
			BaseURL:    getEnv("LLM_BASE_URL", ""),
			MaxRetries: getEnvInt("LLM_MAX_RETRIES", 0),
		},
		Speech: SpeechConfig{
			Enabled:            getEnvBool("SPEECH_ENABLED", false),
			TranscriptionModel: getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
			OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
			ElevenLabsAPIKey:   getEnv("ELEVENLABS_API_KEY", ""),
			ElevenLabsBaseURL:  getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionRetention < 0 {
		return fmt.Errorf("SESSION_RETENTION cannot be negative")
	}
	if len(c.Pitch.Personas) == 0 {
		return fmt.Errorf("PITCH_PERSONAS must name at least one persona")
	}
	if c.Pitch.MaxTurns <= 0 {
		return fmt.Errorf("PITCH_MAX_TURNS must be > 0")
	}
	if c.Pitch.GenerateTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be > 0")
	}
	if c.Pitch.MaxInputBytes <= 0 {
		return fmt.Errorf("MAX_INPUT_BYTES must be > 0")
	}
	if _, ok := providerKeyEnv[c.LLM.Provider]; !ok {
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLM.Provider)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES cannot be negative")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
