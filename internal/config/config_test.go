package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "FRONTEND_URL", "AGENT_TRANSPORT", "AGENT_BASE_URL", "AGENT_GRPC_ADDR",
		"AGENT_REQUEST_TIMEOUT", "GREETING_TEXT", "FALLBACK_TEXT", "JOURNAL_ENABLED",
		"JOURNAL_PATH", "JOURNAL_RETENTION", "STUB_HTTP_PORT", "STUB_GRPC_PORT", "STUB_REPLY_DELAY",
	} {
		// Setenv registers the restore; Unsetenv makes LookupEnv report the key as missing.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Agent.Transport != "http" {
		t.Errorf("expected http transport, got %q", cfg.Agent.Transport)
	}
	if cfg.Agent.RequestTimeout != 0 {
		t.Errorf("expected no request timeout, got %v", cfg.Agent.RequestTimeout)
	}
	if cfg.Chat.GreetingText != DefaultGreeting || cfg.Chat.FallbackText != DefaultFallback {
		t.Errorf("unexpected chat texts: %+v", cfg.Chat)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Retention != 7*24*time.Hour {
		t.Errorf("unexpected journal config: %+v", cfg.Journal)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode without FRONTEND_URL")
	}
	if got := cfg.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("expected wildcard origins, got %v", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENT_TRANSPORT", "GRPC")
	t.Setenv("AGENT_GRPC_ADDR", "backend:9000")
	t.Setenv("AGENT_REQUEST_TIMEOUT", "45")
	t.Setenv("JOURNAL_ENABLED", "off")
	t.Setenv("FRONTEND_URL", "https://avatar.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.Transport != "grpc" || cfg.Agent.GrpcAddr != "backend:9000" {
		t.Errorf("unexpected agent config: %+v", cfg.Agent)
	}
	if cfg.Agent.RequestTimeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", cfg.Agent.RequestTimeout)
	}
	if cfg.Journal.Enabled {
		t.Error("expected journal disabled")
	}
	if cfg.IsDevelopment() {
		t.Error("expected production mode for a public frontend url")
	}
	if got := cfg.AllowedOrigins(); len(got) != 1 || got[0] != "https://avatar.example.com" {
		t.Errorf("unexpected origins %v", got)
	}
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	t.Setenv("AGENT_TRANSPORT", "carrier-pigeon")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "AGENT_TRANSPORT") {
		t.Fatalf("expected transport validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Port:    "8080",
			Agent:   AgentConfig{Transport: "http", BaseURL: "http://localhost:8000"},
			Chat:    ChatConfig{GreetingText: "hi", FallbackText: "oops"},
			Journal: JournalConfig{Enabled: true, Path: "x.db", Retention: time.Hour},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
		{"empty base url", func(c *Config) { c.Agent.BaseURL = "" }, "AGENT_BASE_URL"},
		{"empty grpc addr", func(c *Config) { c.Agent.Transport = "grpc" }, "AGENT_GRPC_ADDR"},
		{"negative timeout", func(c *Config) { c.Agent.RequestTimeout = -time.Second }, "AGENT_REQUEST_TIMEOUT"},
		{"blank greeting", func(c *Config) { c.Chat.GreetingText = "  " }, "GREETING_TEXT"},
		{"blank fallback", func(c *Config) { c.Chat.FallbackText = "" }, "FALLBACK_TEXT"},
		{"journal without path", func(c *Config) { c.Journal.Path = "" }, "JOURNAL_PATH"},
		{"journal zero retention", func(c *Config) { c.Journal.Retention = 0 }, "JOURNAL_RETENTION"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}

	cfg := base()
	cfg.Journal = JournalConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled journal should not need a path: %v", err)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "250ms")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", got)
	}
	t.Setenv("TEST_DURATION", "garbage")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("expected fallback, got %v", got)
	}
}
