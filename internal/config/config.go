// Package config provides configuration for the work-order assistant.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// LLM settings
	LLMMode          string
	LLMBaseURL       string
	LLMAPIKey        string
	LLMModel         string
	LLMTimeout       time.Duration
	LLMMaxToolRounds int
	SystemPromptFile string
	HistoryLimit     int

	// Work-order API settings
	WorkOrderBaseURL    string
	WorkOrderTimeout    time.Duration
	WorkOrderMaxRetries int
	WorkOrderRPS        float64

	// Dify workflow settings
	DifyBaseURL    string
	DifyAPIKey     string
	DifyTimeout    time.Duration
	DifyAlarmTypes map[string]string

	// Timeouts
	ToolTimeout time.Duration

	// WebSocket settings
	WSReadTimeout    time.Duration
	WSWriteTimeout   time.Duration
	WSPingInterval   time.Duration
	WSMaxMessageSize int64

	// DefaultUser owns chats created without an authenticated user.
	DefaultUser string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:         getEnv("DATABASE_URL", "file:workorder.db?cache=shared&mode=rwc"),
		LLMMode:             strings.ToUpper(getEnv("LLM_MODE", "")),
		LLMBaseURL:          getEnv("LLM_BASE_URL", "http://localhost:4000/v1"),
		LLMAPIKey:           getEnv("LLM_API_KEY", ""),
		LLMModel:            getEnv("LLM_MODEL", "qwen-plus"),
		LLMTimeout:          time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		LLMMaxToolRounds:    getEnvInt("LLM_MAX_TOOL_ROUNDS", 5),
		SystemPromptFile:    getEnv("SYSTEM_PROMPT_FILE", ""),
		HistoryLimit:        getEnvInt("HISTORY_LIMIT", 10),
		WorkOrderBaseURL:    getEnv("WORKORDER_BASE_URL", "http://localhost:9090"),
		WorkOrderTimeout:    time.Duration(getEnvInt("WORKORDER_TIMEOUT_MS", 30000)) * time.Millisecond,
		WorkOrderMaxRetries: getEnvInt("WORKORDER_MAX_RETRIES", 3),
		WorkOrderRPS:        getEnvFloat("WORKORDER_RPS", 10),
		DifyBaseURL:         getEnv("DIFY_BASE_URL", "http://localhost:5001"),
		DifyAPIKey:          getEnv("DIFY_API_KEY", ""),
		DifyTimeout:         time.Duration(getEnvInt("DIFY_TIMEOUT_MS", 120000)) * time.Millisecond,
		DifyAlarmTypes:      getEnvMap("DIFY_ALARM_TYPES"),
		ToolTimeout:         time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 60000)) * time.Millisecond,
		WSReadTimeout:       time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		WSWriteTimeout:      time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		WSPingInterval:      time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WSMaxMessageSize:    int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 64*1024)),
		DefaultUser:         getEnv("DEFAULT_USER", "admin"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvMap parses "key=value" pairs separated by commas. Malformed pairs
// are skipped.
func getEnvMap(key string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
