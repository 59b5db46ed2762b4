// Package config loads application configuration from the environment once,
// at startup. Everything downstream receives explicit values; no other
// package reads the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server ports
	APIPort  int
	SMTPPort int

	// Identity
	ServiceDomain string
	FromAddress   string

	// Providers
	OpenAIAPIKey    string
	SendGridAPIKey  string
	SendGridBaseURL string

	// Model settings
	LLMModel        string
	LLMSearchModel  string
	LLMMaxTokens    int
	LLMTemperature  float32
	LLMTimeout      time.Duration
	EnableWebSearch bool

	// Delivery
	SendTimeout time.Duration

	// Retry policy shared by model and delivery calls
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	// Newsletter
	NewsletterOperatorEmail string
	NewsletterTopic         string

	// Features
	SMTPEnabled bool

	// Logging
	LogLevel string

	// Security
	APIKey string
	AppEnv string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required settings
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	cfg.ServiceDomain = os.Getenv("SERVICE_DOMAIN")
	if cfg.ServiceDomain == "" {
		return nil, fmt.Errorf("SERVICE_DOMAIN is required but not set")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required but not set")
	}

	cfg.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	if cfg.SendGridAPIKey == "" {
		return nil, fmt.Errorf("SENDGRID_API_KEY is required but not set")
	}

	// SENDGRID_BASE_URL (default: empty, the delivery client falls back to
	// the production endpoint)
	cfg.SendGridBaseURL = os.Getenv("SENDGRID_BASE_URL")

	// FROM_ADDRESS (default: assistant@<service domain>)
	cfg.FromAddress = os.Getenv("FROM_ADDRESS")
	if cfg.FromAddress == "" {
		cfg.FromAddress = "assistant@" + cfg.ServiceDomain
	}

	// API_PORT (default: 8080)
	apiPort, err := envInt("API_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.APIPort = apiPort

	// SMTP_PORT (default: 2525)
	smtpPort, err := envInt("SMTP_PORT", 2525)
	if err != nil {
		return nil, err
	}
	cfg.SMTPPort = smtpPort

	// SMTP_ENABLED (default: false)
	smtpEnabled, err := envBool("SMTP_ENABLED", false)
	if err != nil {
		return nil, err
	}
	cfg.SMTPEnabled = smtpEnabled

	// Model settings
	cfg.LLMModel = envOrDefault("LLM_MODEL", "gpt-4o-mini")
	cfg.LLMSearchModel = envOrDefault("LLM_SEARCH_MODEL", "gpt-4o-search-preview")

	maxTokens, err := envInt("LLM_MAX_TOKENS", 1024)
	if err != nil {
		return nil, err
	}
	cfg.LLMMaxTokens = maxTokens

	temperature, err := envFloat("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}
	cfg.LLMTemperature = float32(temperature)

	llmTimeout, err := envDuration("LLM_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.LLMTimeout = llmTimeout

	enableSearch, err := envBool("ENABLE_WEB_SEARCH", false)
	if err != nil {
		return nil, err
	}
	cfg.EnableWebSearch = enableSearch

	// Delivery
	sendTimeout, err := envDuration("SEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.SendTimeout = sendTimeout

	// Retry policy
	maxAttempts, err := envInt("RETRY_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	cfg.RetryMaxAttempts = maxAttempts

	baseDelay, err := envDuration("RETRY_BASE_DELAY", time.Second)
	if err != nil {
		return nil, err
	}
	cfg.RetryBaseDelay = baseDelay

	// Newsletter
	cfg.NewsletterOperatorEmail = os.Getenv("NEWSLETTER_OPERATOR_EMAIL")
	cfg.NewsletterTopic = os.Getenv("NEWSLETTER_TOPIC")

	// LOG_LEVEL (default: info)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", "info")

	// Security configuration
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AppEnv = envOrDefault("APP_ENV", "development")

	// Rate limiting configuration
	if rps := os.Getenv("RATE_LIMIT_REQUESTS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimitRequests = v
		}
	} else {
		cfg.RateLimitRequests = 10.0
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimitBurst = v
		}
	} else {
		cfg.RateLimitBurst = 20
	}

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTPPort must be between 1 and 65535")
	}
	if !strings.Contains(c.FromAddress, "@") {
		return fmt.Errorf("FromAddress must be an email address")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RetryMaxAttempts must be at least 1")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLMTemperature must be between 0 and 2")
	}
	if c.LLMTimeout <= 0 || c.SendTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Int("smtp_port", c.SMTPPort),
		slog.Bool("smtp_enabled", c.SMTPEnabled),
		slog.String("service_domain", c.ServiceDomain),
		slog.String("from_address", c.FromAddress),
		slog.String("llm_model", c.LLMModel),
		slog.Float64("llm_temperature", float64(c.LLMTemperature)),
		slog.Duration("llm_timeout", c.LLMTimeout),
		slog.Bool("web_search", c.EnableWebSearch),
		slog.Int("retry_max_attempts", c.RetryMaxAttempts),
		slog.Duration("retry_base_delay", c.RetryBaseDelay),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
	)
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

func envBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return v, nil
}
