package core

import (
	"testing"
	"time"

	"statisfy/internal/i18n"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.App.Language != i18n.DefaultLanguage {
		t.Errorf("Expected default language to be %s, got %s", i18n.DefaultLanguage, config.App.Language)
	}

	if config.Queue.RecentCapacity != DefaultRecentCapacity {
		t.Errorf("Expected recent capacity %d, got %d", DefaultRecentCapacity, config.Queue.RecentCapacity)
	}

	if !config.Queue.Circular {
		t.Error("Expected circular navigation to be enabled by default")
	}

	if config.Hydration.BatchSize != DefaultHydrationBatchSize {
		t.Errorf("Expected batch size %d, got %d", DefaultHydrationBatchSize, config.Hydration.BatchSize)
	}

	if config.Storage.DatabasePath != "" {
		t.Errorf("Expected empty database path so the XDG location is used, got %s", config.Storage.DatabasePath)
	}
}

func TestLanguageConfiguration(t *testing.T) {
	config := DefaultConfig()

	for _, lang := range i18n.GetSupportedLanguages() {
		config.App.Language = lang
		localizer := i18n.NewLocalizer(config.App.Language)
		if localizer == nil {
			t.Errorf("Failed to create localizer for language %s", lang)
			continue
		}

		message := localizer.T("error.device.unreachable", DefaultPollFailureThreshold)
		if message == "" || message == "error.device.unreachable" {
			t.Errorf("Missing message for key 'error.device.unreachable' in language %s", lang)
		}
	}
}

func TestConfigConstants(t *testing.T) {
	if DefaultPollFastInterval >= DefaultPollIdleInterval {
		t.Error("Fast poll interval should be shorter than the idle interval")
	}

	if DefaultPollMaxInterval < DefaultPollIdleInterval {
		t.Error("Poll ceiling should not be below the idle interval")
	}

	if DefaultPollFailureThreshold < 2 {
		t.Error("A single transient failure should never mark the device degraded")
	}

	if DefaultHydrationBatchSize > 50 {
		t.Error("Hydration batch size exceeds the catalog request limit")
	}

	if DefaultVolumePercent < 0 || DefaultVolumePercent > 100 {
		t.Error("DefaultVolumePercent should be a percentage")
	}
}

func TestPollerConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    PollerConfig
		expected PollerConfig
	}{
		{
			name:  "zero values get defaults",
			input: PollerConfig{},
			expected: PollerConfig{
				FastInterval:     DefaultPollFastInterval,
				IdleInterval:     DefaultPollIdleInterval,
				MaxInterval:      DefaultPollMaxInterval,
				BackoffFactor:    DefaultPollBackoffFactor,
				FailureThreshold: DefaultPollFailureThreshold,
			},
		},
		{
			name: "ceiling below idle is raised",
			input: PollerConfig{
				FastInterval:     time.Second,
				IdleInterval:     90 * time.Second,
				MaxInterval:      30 * time.Second,
				BackoffFactor:    3,
				FailureThreshold: 5,
			},
			expected: PollerConfig{
				FastInterval:     time.Second,
				IdleInterval:     90 * time.Second,
				MaxInterval:      90 * time.Second,
				BackoffFactor:    3,
				FailureThreshold: 5,
			},
		},
		{
			name: "valid values are kept",
			input: PollerConfig{
				FastInterval:     2 * time.Second,
				IdleInterval:     5 * time.Second,
				MaxInterval:      time.Minute,
				BackoffFactor:    1.5,
				FailureThreshold: 4,
			},
			expected: PollerConfig{
				FastInterval:     2 * time.Second,
				IdleInterval:     5 * time.Second,
				MaxInterval:      time.Minute,
				BackoffFactor:    1.5,
				FailureThreshold: 4,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.input
			got.Normalize()
			if got != tt.expected {
				t.Errorf("Normalize() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}

func TestHydrationConfigNormalize(t *testing.T) {
	cfg := HydrationConfig{BatchSize: 500, CacheTTL: -1}
	cfg.Normalize()

	if cfg.BatchSize != DefaultHydrationBatchSize {
		t.Errorf("BatchSize = %d, expected %d", cfg.BatchSize, DefaultHydrationBatchSize)
	}
	if cfg.CacheTTL != DefaultHydrationCacheTTL {
		t.Errorf("CacheTTL = %v, expected %v", cfg.CacheTTL, DefaultHydrationCacheTTL)
	}
	if cfg.CacheSize != DefaultHydrationCacheSize {
		t.Errorf("CacheSize = %d, expected %d", cfg.CacheSize, DefaultHydrationCacheSize)
	}
	if cfg.MissSetSize != DefaultMissSetSize {
		t.Errorf("MissSetSize = %d, expected %d", cfg.MissSetSize, DefaultMissSetSize)
	}
}
