// Package config provides configuration for the content pipeline.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the pipeline configuration.
type Config struct {
	// Server settings
	HTTPPort int
	RPCPort  int

	// Database
	DatabaseURL string

	// Policy
	MaxPerDay       int
	MaxRetry        int
	StepDailyLimits map[string]int
	PolicyFile      string
	QuotaTimezone   string

	// Planner
	CatalogPath  string
	CatalogWatch bool

	// LLM-backed steps
	LiteLLMURL    string
	LiteLLMAPIKey string
	LLMModel      string
	LLMTimeout    time.Duration

	// Remote steps, keyed by step name
	StepEndpoints map[string]string
	StepTimeout   time.Duration

	// Notification and tracking
	IngressURL    string
	NotifyChannel string
	TrackerURL    string
	TrackerToken  string

	// Periodic trigger, disabled when TriggerInterval is zero
	TriggerInterval time.Duration
	TriggerContext  string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		RPCPort:         getEnvInt("RPC_PORT", 8081),
		DatabaseURL:     getEnv("DATABASE_URL", "file:contentflow.db?cache=shared&mode=rwc"),
		MaxPerDay:       getEnvInt("MAX_PER_DAY", 3),
		MaxRetry:        getEnvInt("MAX_RETRY", 2),
		StepDailyLimits: getEnvIntMap("STEP_DAILY_LIMITS"),
		PolicyFile:      getEnv("POLICY_FILE", ""),
		QuotaTimezone:   getEnv("QUOTA_TIMEZONE", ""),
		CatalogPath:     getEnv("CATALOG_PATH", ""),
		CatalogWatch:    getEnvBool("CATALOG_WATCH", false),
		LiteLLMURL:      getEnv("LITELLM_URL", "http://localhost:4000"),
		LiteLLMAPIKey:   getEnv("LITELLM_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:      time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		StepEndpoints:   getEnvMap("STEP_ENDPOINTS"),
		StepTimeout:     time.Duration(getEnvInt("STEP_TIMEOUT_MS", 300000)) * time.Millisecond,
		IngressURL:      getEnv("INGRESS_URL", ""),
		NotifyChannel:   getEnv("NOTIFY_CHANNEL", "contentflow"),
		TrackerURL:      getEnv("TRACKER_URL", ""),
		TrackerToken:    getEnv("TRACKER_TOKEN", ""),
		TriggerInterval: getEnvDuration("TRIGGER_INTERVAL", 0),
		TriggerContext:  getEnv("TRIGGER_CONTEXT", "Start workflow"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// Validate reports configuration that must stop the process at startup.
func (c *Config) Validate() error {
	if c.MaxPerDay < 0 {
		return fmt.Errorf("MAX_PER_DAY must not be negative")
	}
	if c.MaxRetry < 0 {
		return fmt.Errorf("MAX_RETRY must not be negative")
	}
	for step, limit := range c.StepDailyLimits {
		if step == "" {
			return fmt.Errorf("STEP_DAILY_LIMITS contains an empty step name")
		}
		if limit < 0 {
			return fmt.Errorf("STEP_DAILY_LIMITS[%s] must not be negative", step)
		}
	}
	for step, endpoint := range c.StepEndpoints {
		if step == "" || endpoint == "" {
			return fmt.Errorf("STEP_ENDPOINTS entries must be step=url")
		}
	}
	if c.TrackerURL != "" && c.TrackerToken == "" {
		return fmt.Errorf("TRACKER_TOKEN is required when TRACKER_URL is set")
	}
	if c.QuotaTimezone != "" {
		if _, err := time.LoadLocation(c.QuotaTimezone); err != nil {
			return fmt.Errorf("invalid QUOTA_TIMEZONE: %w", err)
		}
	}
	if c.TriggerInterval < 0 {
		return fmt.Errorf("TRIGGER_INTERVAL must not be negative")
	}
	return nil
}

// Location returns the timezone used for the daily quota window.
func (c *Config) Location() *time.Location {
	if c.QuotaTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return time.Local
	}
	return loc
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

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvMap parses "k1=v1,k2=v2". Entries without '=' are kept with an empty
// value so Validate can reject them.
func getEnvMap(key string) map[string]string {
	out := make(map[string]string)
	val := os.Getenv(key)
	if val == "" {
		return out
	}
	for _, pair := range strings.Split(val, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func getEnvIntMap(key string) map[string]int {
	out := make(map[string]int)
	for k, v := range getEnvMap(key) {
		n, err := strconv.Atoi(v)
		if err != nil {
			n = -1
		}
		out[k] = n
	}
	return out
}
