package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Completion service
	LLMProvider      string // "bedrock" or "openai"
	AWSRegion        string
	AWSEndpoint      string
	BedrockModelID   string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	OpenAIModel      string
	LLMTemperature   float64
	LLMMaxTokens     int
	LLMFallbackModel string

	// Reservation API
	ReservationAPIBaseURL string
	ReservationAPIKey     string
	ReservationAPITimeout time.Duration

	// Email
	EmailProvider    string // "sendgrid", "ses" or "stub"
	SendGridAPIKey   string
	EmailFromAddress string
	EmailFromName    string

	// Push channel
	StaffJWTSecret string
	AllowedOrigins []string

	// Identity shim for legacy turns without a persisted role
	AgentEmail     string
	AgentRoleWords []string

	// Orchestrator timings
	Debounce         time.Duration
	WaitWhileTyping  time.Duration
	LockRetry        time.Duration
	GreetingDelay    time.Duration
	FollowUpDelay    time.Duration
	CloseDelay       time.Duration
	TypingMin        time.Duration
	TypingPerChar    time.Duration
	TypingMax        time.Duration
	TypingInitial    time.Duration
	TypingHeartbeat  time.Duration
	OutboundCooldown time.Duration
	InboundCooldown  time.Duration
	StaffPause       time.Duration
	HistoryTurns     int
}

// LoadDotEnv loads a .env file into the process environment when one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		LLMProvider:      strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:      getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LLMTemperature:   getEnvAsFloat("LLM_TEMPERATURE", 0.4),
		LLMMaxTokens:     getEnvAsInt("LLM_MAX_TOKENS", 600),
		LLMFallbackModel: getEnv("LLM_FALLBACK_MODEL", ""),

		ReservationAPIBaseURL: getEnv("RESERVATION_API_BASE_URL", ""),
		ReservationAPIKey:     getEnv("RESERVATION_API_KEY", ""),
		ReservationAPITimeout: getEnvAsDuration("RESERVATION_API_TIMEOUT", 30*time.Second),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Hotel Concierge"),

		StaffJWTSecret: getEnv("STAFF_JWT_SECRET", ""),
		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", nil),

		AgentEmail:     getEnv("AGENT_EMAIL", "concierge@ai.local"),
		AgentRoleWords: getEnvAsList("AGENT_ROLE_WORDS", []string{"assistant", "concierge", "bot"}),

		Debounce:         getEnvAsMillis("DEBOUNCE_MS", 2500*time.Millisecond),
		WaitWhileTyping:  getEnvAsMillis("WAIT_WHILE_TYPING_MS", 1500*time.Millisecond),
		LockRetry:        getEnvAsMillis("LOCK_RETRY_MS", 400*time.Millisecond),
		GreetingDelay:    getEnvAsMillis("GREETING_DELAY_MS", 4*time.Second),
		FollowUpDelay:    getEnvAsMillis("FOLLOW_UP_DELAY_MS", 8*time.Second),
		CloseDelay:       getEnvAsMillis("CLOSE_DELAY_MS", 60*time.Second),
		TypingMin:        getEnvAsMillis("TYPING_MIN_MS", 1200*time.Millisecond),
		TypingPerChar:    getEnvAsMillis("TYPING_PER_CHAR_MS", 35*time.Millisecond),
		TypingMax:        getEnvAsMillis("TYPING_MAX_MS", 6*time.Second),
		TypingInitial:    getEnvAsMillis("TYPING_INITIAL_MS", 300*time.Millisecond),
		TypingHeartbeat:  getEnvAsMillis("TYPING_HEARTBEAT_MS", 2*time.Second),
		OutboundCooldown: getEnvAsMillis("OUTBOUND_COOLDOWN_MS", 1*time.Second),
		InboundCooldown:  getEnvAsMillis("INBOUND_COOLDOWN_MS", 250*time.Millisecond),
		StaffPause:       getEnvAsMillis("STAFF_PAUSE_MS", 15*time.Minute),
		HistoryTurns:     getEnvAsInt("HISTORY_TURNS", 12),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsMillis reads a bare integer of milliseconds; Go duration strings are accepted too.
func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(valueStr); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return getEnvAsDuration(key, defaultValue)
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
