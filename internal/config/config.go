// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default user-visible chat texts.
const (
	DefaultGreeting = "Hello! How can I assist you today?"
	DefaultFallback = "Sorry, I'm having trouble connecting. Please try again later."
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	Agent       AgentConfig
	Chat        ChatConfig
	Journal     JournalConfig
	Stub        StubConfig
}

// AgentConfig selects and configures the backend transport.
type AgentConfig struct {
	Transport      string // "http" or "grpc"
	BaseURL        string
	GrpcAddr       string
	RequestTimeout time.Duration // 0 = exchanges are never timed out
}

// ChatConfig holds the fixed assistant texts injected by the client.
type ChatConfig struct {
	GreetingText string
	FallbackText string
}

// JournalConfig controls the SQLite exchange journal.
type JournalConfig struct {
	Enabled   bool
	Path      string
	Retention time.Duration
}

// StubConfig configures the development backend.
type StubConfig struct {
	HTTPPort   string
	GRPCPort   string
	ReplyDelay time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		Agent: AgentConfig{
			Transport:      strings.ToLower(getEnv("AGENT_TRANSPORT", "http")),
			BaseURL:        getEnv("AGENT_BASE_URL", "http://127.0.0.1:8000"),
			GrpcAddr:       getEnv("AGENT_GRPC_ADDR", "localhost:50051"),
			RequestTimeout: getEnvDuration("AGENT_REQUEST_TIMEOUT", 0),
		},
		Chat: ChatConfig{
			GreetingText: getEnv("GREETING_TEXT", DefaultGreeting),
			FallbackText: getEnv("FALLBACK_TEXT", DefaultFallback),
		},
		Journal: JournalConfig{
			Enabled:   getEnvBool("JOURNAL_ENABLED", true),
			Path:      getEnv("JOURNAL_PATH", "./data/exchanges.db"),
			Retention: getEnvDuration("JOURNAL_RETENTION", 7*24*time.Hour),
		},
		Stub: StubConfig{
			HTTPPort:   getEnv("STUB_HTTP_PORT", "8000"),
			GRPCPort:   getEnv("STUB_GRPC_PORT", "50051"),
			ReplyDelay: getEnvDuration("STUB_REPLY_DELAY", 1500*time.Millisecond),
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
	switch c.Agent.Transport {
	case "http":
		if c.Agent.BaseURL == "" {
			return fmt.Errorf("AGENT_BASE_URL cannot be empty")
		}
	case "grpc":
		if c.Agent.GrpcAddr == "" {
			return fmt.Errorf("AGENT_GRPC_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("AGENT_TRANSPORT must be http or grpc, got %q", c.Agent.Transport)
	}
	if c.Agent.RequestTimeout < 0 {
		return fmt.Errorf("AGENT_REQUEST_TIMEOUT must be >= 0")
	}
	if strings.TrimSpace(c.Chat.GreetingText) == "" {
		return fmt.Errorf("GREETING_TEXT cannot be empty")
	}
	if strings.TrimSpace(c.Chat.FallbackText) == "" {
		return fmt.Errorf("FALLBACK_TEXT cannot be empty")
	}
	if c.Journal.Enabled {
		if c.Journal.Path == "" {
			return fmt.Errorf("JOURNAL_PATH cannot be empty")
		}
		if c.Journal.Retention <= 0 {
			return fmt.Errorf("JOURNAL_RETENTION must be > 0")
		}
	}
	if c.Stub.ReplyDelay < 0 {
		return fmt.Errorf("STUB_REPLY_DELAY must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the presentation bridge.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
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

// getEnvDuration accepts Go duration strings ("30s") or plain seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
