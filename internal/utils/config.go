package utils

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	ServerPort string
	Mongo      MongoConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Logging    LoggingConfig
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// RedisConfig is optional; an empty Addr disables the distributed
// per-conversation lock in favour of the in-process one.
type RedisConfig struct {
	Addr string
}

type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

func LoadConfig() (*Config, error) {
	llm := LLMConfig{
		BaseURL:        strings.TrimRight(envOrDefault("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"), "/"),
		APIKey:         strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		Model:          envOrDefault("LLM_MODEL", "gemini-2.0-flash"),
		RequestTimeout: parseDuration(envOrDefault("LLM_REQUEST_TIMEOUT", "30s"), 30*time.Second),
	}

	logging := LoggingConfig{
		Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
		Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
		EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
		ServiceName:  envOrDefault("SERVICE_NAME", "chathub-server"),
	}

	cfg := &Config{
		ServerPort: envOrDefault("PORT", "8080"),
		Mongo: MongoConfig{
			URI:            strings.TrimSpace(os.Getenv("MONGO_URL")),
			Database:       strings.TrimSpace(os.Getenv("DB_NAME")),
			ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Redis: RedisConfig{
			Addr: strings.TrimSpace(os.Getenv("REDIS_URL")),
		},
		LLM:     llm,
		Logging: logging,
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	missing := make([]string, 0, 2)

	if c.Mongo.URI == "" {
		missing = append(missing, "MONGO_URL")
	}
	if c.Mongo.Database == "" {
		missing = append(missing, "DB_NAME")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}
