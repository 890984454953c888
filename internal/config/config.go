// Package config provides environment configuration for the assistant client.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Assistant server settings
	ServerBaseURL  string
	CommandTimeout time.Duration

	// Realtime channel settings
	NATSURL   string
	NATSToken string
	ClientID  string

	// Durable history settings
	StorePath     string
	StoreKey      string
	StoreBudget   int64
	SaveDebounce  time.Duration
	StoreMaxBytes int64

	// Dictation settings
	SilenceTimeout time.Duration
	AutoStop       bool

	// Audio settings
	AudioEnabled bool
	TTSCommand   string

	// Debug listener (health + metrics)
	DebugAddr string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Assistant server
		ServerBaseURL:  getEnv("ASSISTANT_SERVER_URL", "http://localhost:8000"),
		CommandTimeout: getDurationEnv("ASSISTANT_COMMAND_TIMEOUT", 30*time.Second),

		// Realtime channel
		NATSURL:   getEnv("NATS_URL", "nats://localhost:4222"),
		NATSToken: getEnv("NATS_TOKEN", ""),
		ClientID:  getEnv("ASSISTANT_CLIENT_ID", "default"),

		// Durable history
		StorePath:     getEnv("ASSISTANT_STORE_PATH", "assistant.db"),
		StoreKey:      getEnv("ASSISTANT_STORE_KEY", "assistant_chat_history"),
		StoreBudget:   getInt64Env("ASSISTANT_STORE_BUDGET", 4825449), // 4.6 MiB
		SaveDebounce:  getDurationEnv("ASSISTANT_SAVE_DEBOUNCE", 100*time.Millisecond),
		StoreMaxBytes: getInt64Env("ASSISTANT_STORE_MAX_BYTES", 5*1024*1024),

		// Dictation
		SilenceTimeout: getDurationEnv("ASSISTANT_SILENCE_TIMEOUT", 3*time.Second),
		AutoStop:       getBoolEnv("ASSISTANT_AUTO_STOP", true),

		// Audio
		AudioEnabled: getBoolEnv("ASSISTANT_AUDIO_ENABLED", true),
		TTSCommand:   getEnv("ASSISTANT_TTS_COMMAND", ""),

		// Debug listener
		DebugAddr: getEnv("ASSISTANT_DEBUG_ADDR", "127.0.0.1:9090"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
