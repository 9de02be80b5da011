package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the collections voice bridge.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Azure OpenAI realtime upstream.
	AzureOpenAIEndpoint   string
	AzureOpenAIAPIKey     string
	AzureOpenAIDeployment string
	AzureAPIVersion       string
	RealtimeVoice         string
	ResponseDebounce      time.Duration

	// Collekto/LTFS loan backend.
	CollektoBaseURL          string
	CollektoUsername         string
	CollektoPassword         string
	CollektoFallbackUsername string
	CollektoFallbackPassword string
	CollektoTimeout          time.Duration

	// When set, customer context comes from a local CSV instead of the
	// Collekto REST flow.
	MockDataFile string

	LogFile string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":9000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "collectvoice"),
		AllowAnyOrigin:   true,

		AzureOpenAIEndpoint:   stringsTrimSpace("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIAPIKey:     stringsTrimSpace("AZURE_OPENAI_API_KEY"),
		AzureOpenAIDeployment: envOrDefault("AZURE_OPENAI_DEPLOYMENT", "gpt-4o-realtime-preview"),
		AzureAPIVersion:       envOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		RealtimeVoice:         envOrDefault("REALTIME_VOICE", "alloy"),
		ResponseDebounce:      100 * time.Millisecond,

		CollektoBaseURL:          envOrDefault("COLLEKTO_BASE_URL", "https://backendcrmuat.ltfinance.com"),
		CollektoUsername:         stringsTrimSpace("COLLEKTO_USERNAME"),
		CollektoPassword:         stringsTrimSpace("COLLEKTO_PASSWORD"),
		CollektoFallbackUsername: stringsTrimSpace("COLLEKTO_FALLBACK_USERNAME"),
		CollektoFallbackPassword: stringsTrimSpace("COLLEKTO_FALLBACK_PASSWORD"),
		CollektoTimeout:          10 * time.Second,

		MockDataFile: stringsTrimSpace("MOCK_DATA_FILE"),
		LogFile:      stringsTrimSpace("APP_LOG_FILE"),

		ShutdownTimeout: 15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ResponseDebounce, err = durationFromEnv("APP_RESPONSE_DEBOUNCE", cfg.ResponseDebounce)
	if err != nil {
		return Config{}, err
	}
	cfg.CollektoTimeout, err = durationFromEnv("COLLEKTO_TIMEOUT", cfg.CollektoTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ResponseDebounce < 0 {
		return Config{}, fmt.Errorf("APP_RESPONSE_DEBOUNCE must not be negative")
	}
	if cfg.CollektoTimeout <= 0 {
		return Config{}, fmt.Errorf("COLLEKTO_TIMEOUT must be positive")
	}

	return cfg, nil
}

// MockMode reports whether customer context should come from the local CSV.
func (c Config) MockMode() bool {
	return c.MockDataFile != ""
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
