package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"statisfy/internal/core"
	"statisfy/internal/ratelimit"
)

func TestNewServer(t *testing.T) {
	config := &core.ServerConfig{
		Host:         "0.0.0.0",
		Port:         9090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	server := NewServer(config, zap.NewNop(), nil, prometheus.NewRegistry())

	if server.server.Addr != "0.0.0.0:9090" {
		t.Errorf("Addr = %q, expected %q", server.server.Addr, "0.0.0.0:9090")
	}
	if server.server.ReadTimeout != config.ReadTimeout || server.server.WriteTimeout != config.WriteTimeout {
		t.Errorf("timeouts = %v/%v, expected %v/%v",
			server.server.ReadTimeout, server.server.WriteTimeout, config.ReadTimeout, config.WriteTimeout)
	}
}

func TestPublicRoutes(t *testing.T) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "statisfy_test_total"}))
	server := httptest.NewServer(setupRoutes(zap.NewNop(), nil, registry, nil))
	defer server.Close()

	tests := []struct {
		path        string
		status      int
		contentType string
		body        string
	}{
		{"/healthz", http.StatusOK, "application/json", `{"status":"ok","service":"statisfy"}`},
		{"/readyz", http.StatusOK, "application/json", `{"status":"ready","service":"statisfy"}`},
		{"/callback?code=abc&state=s", http.StatusOK, "application/json", `"authorized"`},
		{"/metrics", http.StatusOK, "", "statisfy_test_total"},
		{"/", http.StatusOK, "text/html", "<title>Statisfy</title>"},
		{"/nope", http.StatusNotFound, "", ""},
		// no controller, no queue API
		{"/api/queue", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, expected %d", resp.StatusCode, tt.status)
			}
			if tt.contentType != "" && resp.Header.Get("Content-Type") != tt.contentType {
				t.Errorf("Content-Type = %q, expected %q", resp.Header.Get("Content-Type"), tt.contentType)
			}
			if !strings.Contains(string(body), tt.body) {
				t.Errorf("body = %q, expected it to contain %q", body, tt.body)
			}
		})
	}
}

func TestHomePageListsEndpoints(t *testing.T) {
	rec := httptest.NewRecorder()
	homeHandler(zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	for _, link := range []string{"/api/queue", "/api/status", "/metrics", "/healthz", "/readyz"} {
		if !strings.Contains(rec.Body.String(), `href="`+link+`"`) {
			t.Errorf("home page does not link %s", link)
		}
	}
}

func TestLimiterOnlyGuardsCommands(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	server := httptest.NewServer(setupRoutes(zap.NewNop(), nil, prometheus.NewRegistry(), limiter))
	defer server.Close()

	for range 3 {
		resp, err := http.Get(server.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("/healthz status = %d with a limiter installed", resp.StatusCode)
		}
	}
	if limiter.Clients() != 0 {
		t.Errorf("Clients() = %d, expected reads to leave the limiter untouched", limiter.Clients())
	}
}

func TestServerStopsOnCancel(t *testing.T) {
	server := NewServer(&core.ServerConfig{Host: "127.0.0.1", Port: 0}, zap.NewNop(), nil, prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v, expected nil after cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestServerInvalidPort(t *testing.T) {
	server := NewServer(&core.ServerConfig{Host: "127.0.0.1", Port: -1}, zap.NewNop(), nil, prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err == nil {
		t.Error("Start() expected error for invalid port")
	}
}
