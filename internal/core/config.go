package core

import (
	"time"
)

const (
	// DefaultVolumePercent is the volume assumed before the device has reported one
	DefaultVolumePercent = 50
	// DefaultRecentCapacity bounds the recently played ring
	DefaultRecentCapacity = 8
	// DefaultPersistDebounce delays saves so bursts of edits produce one write
	DefaultPersistDebounce = 500 * time.Millisecond

	// DefaultPollFastInterval is used while the device is playing
	DefaultPollFastInterval = 3 * time.Second
	// DefaultPollIdleInterval is used when the device has no active playback
	DefaultPollIdleInterval = 10 * time.Second
	// DefaultPollMaxInterval caps the failure backoff
	DefaultPollMaxInterval = 60 * time.Second
	// DefaultPollBackoffFactor multiplies the interval after each failure
	DefaultPollBackoffFactor = 2.0
	// DefaultPollFailureThreshold is how many consecutive failures mark the device degraded
	DefaultPollFailureThreshold = 3

	// DefaultHydrationBatchSize is the catalog's per-request track limit
	DefaultHydrationBatchSize = 50
	// DefaultHydrationCacheTTL absorbs re-hydration bursts from rapid queue edits
	DefaultHydrationCacheTTL = 60 * time.Second
	// DefaultHydrationCacheSize bounds the metadata cache
	DefaultHydrationCacheSize = 2048
	// DefaultMissSetSize bounds the set of URIs the catalog did not resolve
	DefaultMissSetSize = 1024
	// DefaultMissSetFalsePositiveRate is the bloom filter target rate of the miss set
	DefaultMissSetFalsePositiveRate = 0.001

	// DefaultCommandLimitPerMinute bounds control commands per HTTP client
	DefaultCommandLimitPerMinute = 120

	// DefaultLanguage is used for status messages
	DefaultLanguage = "en"
	// StorageKey identifies the persisted queue record
	StorageKey = "queue"
)

type Config struct {
	Spotify   SpotifyConfig
	Server    ServerConfig
	Log       LogConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Poller    PollerConfig
	Hydration HydrationConfig
	App       AppConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
	Market       string
	// CallbackAddr is where the authorization redirect is awaited when RedirectURL is a deep link
	CallbackAddr string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// CommandLimitPerMinute zero disables command rate limiting
	CommandLimitPerMinute int
}

type LogConfig struct {
	Level  string
	Format string
}

type StorageConfig struct {
	// DatabasePath empty means the XDG data directory
	DatabasePath string
}

type QueueConfig struct {
	RecentCapacity  int
	Circular        bool
	PersistDebounce time.Duration
}

type PollerConfig struct {
	FastInterval     time.Duration
	IdleInterval     time.Duration
	MaxInterval      time.Duration
	BackoffFactor    float64
	FailureThreshold int
}

type HydrationConfig struct {
	BatchSize   int
	CacheTTL    time.Duration
	CacheSize   int
	MissSetSize int
}

type AppConfig struct {
	Language string
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8080/callback",
			TokenPath:   "./spotify_token.json",
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,

			CommandLimitPerMinute: DefaultCommandLimitPerMinute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Queue: QueueConfig{
			RecentCapacity:  DefaultRecentCapacity,
			Circular:        true,
			PersistDebounce: DefaultPersistDebounce,
		},
		Poller: PollerConfig{
			FastInterval:     DefaultPollFastInterval,
			IdleInterval:     DefaultPollIdleInterval,
			MaxInterval:      DefaultPollMaxInterval,
			BackoffFactor:    DefaultPollBackoffFactor,
			FailureThreshold: DefaultPollFailureThreshold,
		},
		Hydration: HydrationConfig{
			BatchSize:   DefaultHydrationBatchSize,
			CacheTTL:    DefaultHydrationCacheTTL,
			CacheSize:   DefaultHydrationCacheSize,
			MissSetSize: DefaultMissSetSize,
		},
		App: AppConfig{
			Language: DefaultLanguage,
		},
	}
}

// Normalize replaces out-of-range poller and hydration values with defaults.
func (c *PollerConfig) Normalize() {
	if c.FastInterval <= 0 {
		c.FastInterval = DefaultPollFastInterval
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = DefaultPollIdleInterval
	}
	if c.MaxInterval < c.IdleInterval {
		c.MaxInterval = max(DefaultPollMaxInterval, c.IdleInterval)
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = DefaultPollBackoffFactor
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultPollFailureThreshold
	}
}

// Normalize replaces out-of-range hydration values with defaults.
func (c *HydrationConfig) Normalize() {
	if c.BatchSize <= 0 || c.BatchSize > DefaultHydrationBatchSize {
		c.BatchSize = DefaultHydrationBatchSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultHydrationCacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultHydrationCacheSize
	}
	if c.MissSetSize <= 0 {
		c.MissSetSize = DefaultMissSetSize
	}
}
