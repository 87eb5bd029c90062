package main

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"statisfy/internal/core"
)

func TestFlagToEnvVar(t *testing.T) {
	tests := []struct {
		flag     string
		expected string
	}{
		{"spotify-client-id", "STATISFY_SPOTIFY_CLIENT_ID"},
		{"poll-fast-interval-secs", "STATISFY_POLL_FAST_INTERVAL_SECS"},
		{"language", "STATISFY_LANGUAGE"},
	}

	for _, tt := range tests {
		if got := flagToEnvVar(tt.flag); got != tt.expected {
			t.Errorf("flagToEnvVar(%q) = %q, expected %q", tt.flag, got, tt.expected)
		}
	}
}

func TestGenerateEnvExampleContent(t *testing.T) {
	content := generateEnvExampleContent(rootCmd)

	expected := []string{
		"STATISFY_SPOTIFY_CLIENT_ID=your_spotify_client_id_here",
		"STATISFY_POLL_FAST_INTERVAL_SECS=3",
		"STATISFY_POLL_FAILURE_THRESHOLD=3",
		"STATISFY_HYDRATION_BATCH_SIZE=50",
		"STATISFY_QUEUE_CIRCULAR=true",
		"STATISFY_SERVER_PORT=8080",
	}
	for _, line := range expected {
		if !strings.Contains(content, line) {
			t.Errorf("generateEnvExampleContent() missing %q", line)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *core.Config {
		cfg := core.DefaultConfig()
		cfg.Spotify.ClientID = "id"
		cfg.Spotify.ClientSecret = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*core.Config)
		wantErr bool
	}{
		{"valid", func(*core.Config) {}, false},
		{"missing client id", func(c *core.Config) { c.Spotify.ClientID = "" }, true},
		{"missing client secret", func(c *core.Config) { c.Spotify.ClientSecret = "" }, true},
		{"missing token path", func(c *core.Config) { c.Spotify.TokenPath = "" }, true},
		{"port out of range", func(c *core.Config) { c.Server.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildLoggerFallsBackToInfo(t *testing.T) {
	logger := buildLogger("chatty", "json")
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("buildLogger() enabled debug for an unknown level")
	}
}

func TestLocalBaseURL(t *testing.T) {
	tests := []struct {
		host     string
		port     int
		expected string
	}{
		{"127.0.0.1", 8080, "http://127.0.0.1:8080"},
		{"0.0.0.0", 9000, "http://127.0.0.1:9000"},
		{"", 8080, "http://127.0.0.1:8080"},
		{"::1", 8080, "http://[::1]:8080"},
	}

	for _, tt := range tests {
		got := localBaseURL(core.ServerConfig{Host: tt.host, Port: tt.port})
		if got != tt.expected {
			t.Errorf("localBaseURL(%q, %d) = %q, expected %q", tt.host, tt.port, got, tt.expected)
		}
	}
}
