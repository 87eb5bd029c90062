// Package main provides the Statisfy playback daemon entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"statisfy/internal/core"
	httpserver "statisfy/internal/http"
	"statisfy/internal/hydrate"
	"statisfy/internal/i18n"
	"statisfy/internal/instance"
	"statisfy/internal/metrics"
	"statisfy/internal/persist"
	"statisfy/internal/player"
	"statisfy/internal/queue"
	"statisfy/internal/reconcile"
	"statisfy/internal/spotify"
)

const (
	envPrefix       = "STATISFY"
	shutdownTimeout = 10 * time.Second
	forwardTimeout  = 10 * time.Second
	logFormatJSON   = "json"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "statisfy",
	Short: "Statisfy - playback queue and shuffle engine for Spotify",
	Long: `Statisfy keeps a persisted playback queue with biased shuffle, manual "play next"
priority and recency avoidance, and keeps it in sync with the active Spotify device.

Only one instance runs per queue database. Launching statisfy with a statisfy:// link
while another instance is waiting for Spotify authorization hands the link to it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatisfy,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, console)")
	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-redirect-url", "", "Spotify OAuth redirect URL, http://host:port/callback or statisfy://callback (default uses the server address)")
	flags.String("spotify-token-path", defaults.Spotify.TokenPath, "Spotify token storage path")
	flags.String("spotify-market", "", "Spotify market code, empty uses the account's market")
	flags.String("server-host", defaults.Server.Host, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	flags.Int("server-command-limit-per-minute", defaults.Server.CommandLimitPerMinute, "Queue commands allowed per client per minute, 0 disables the limit")
	flags.String("database-path", "", "Queue database path (default is the XDG data directory)")
	flags.Int("queue-recent-capacity", defaults.Queue.RecentCapacity, "Number of recently played tracks avoided by shuffle")
	flags.Bool("queue-circular", defaults.Queue.Circular, "Wrap around at the queue ends when nothing was saved yet")
	flags.Int("queue-persist-debounce-ms", int(defaults.Queue.PersistDebounce/time.Millisecond), "Delay before saving queue changes in milliseconds")
	flags.Int("poll-fast-interval-secs", int(defaults.Poller.FastInterval/time.Second), "Poll interval while playing in seconds")
	flags.Int("poll-idle-interval-secs", int(defaults.Poller.IdleInterval/time.Second), "Poll interval without active playback in seconds")
	flags.Int("poll-max-interval-secs", int(defaults.Poller.MaxInterval/time.Second), "Poll interval ceiling while the device is unreachable in seconds")
	flags.Float64("poll-backoff-factor", defaults.Poller.BackoffFactor, "Poll interval multiplier per consecutive failure")
	flags.Int("poll-failure-threshold", defaults.Poller.FailureThreshold, "Consecutive failures before the device is reported unreachable")
	flags.Int("hydration-batch-size", defaults.Hydration.BatchSize, "Tracks per catalog lookup (max 50)")
	flags.Int("hydration-cache-ttl-secs", int(defaults.Hydration.CacheTTL/time.Second), "Track metadata cache lifetime in seconds")
	flags.Int("hydration-cache-size", defaults.Hydration.CacheSize, "Track metadata cache entries")
	flags.Int("hydration-miss-set-size", defaults.Hydration.MissSetSize, "Remembered unresolvable tracks")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Status message language (%s)", supportedLangs))
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureSpotify(cfg)
	configureServer(cfg)
	configureStorage(cfg)
	configureQueue(cfg)
	configurePoller(cfg)
	configureHydration(cfg)
	configureApp(cfg)

	return cfg
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.Market = viper.GetString("spotify-market")
	if path := viper.GetString("spotify-token-path"); path != "" {
		cfg.Spotify.TokenPath = path
	}

	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")
	if cfg.Spotify.RedirectURL == "" {
		host := viper.GetString("server-host")
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		cfg.Spotify.RedirectURL = fmt.Sprintf("http://%s:%d/callback", host, viper.GetInt("server-port"))
	}
}

func configureServer(cfg *core.Config) {
	if host := viper.GetString("server-host"); host != "" {
		cfg.Server.Host = host
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Spotify.CallbackAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	cfg.Server.CommandLimitPerMinute = viper.GetInt("server-command-limit-per-minute")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
}

func configureStorage(cfg *core.Config) {
	cfg.Storage.DatabasePath = viper.GetString("database-path")
}

func configureQueue(cfg *core.Config) {
	cfg.Queue.RecentCapacity = viper.GetInt("queue-recent-capacity")
	if cfg.Queue.RecentCapacity <= 0 {
		cfg.Queue.RecentCapacity = core.DefaultRecentCapacity
	}
	cfg.Queue.Circular = viper.GetBool("queue-circular")
	cfg.Queue.PersistDebounce = time.Duration(viper.GetInt("queue-persist-debounce-ms")) * time.Millisecond
	if cfg.Queue.PersistDebounce <= 0 {
		cfg.Queue.PersistDebounce = core.DefaultPersistDebounce
	}
}

func configurePoller(cfg *core.Config) {
	cfg.Poller.FastInterval = time.Duration(viper.GetInt("poll-fast-interval-secs")) * time.Second
	cfg.Poller.IdleInterval = time.Duration(viper.GetInt("poll-idle-interval-secs")) * time.Second
	cfg.Poller.MaxInterval = time.Duration(viper.GetInt("poll-max-interval-secs")) * time.Second
	cfg.Poller.BackoffFactor = viper.GetFloat64("poll-backoff-factor")
	cfg.Poller.FailureThreshold = viper.GetInt("poll-failure-threshold")
	cfg.Poller.Normalize()
}

func configureHydration(cfg *core.Config) {
	cfg.Hydration.BatchSize = viper.GetInt("hydration-batch-size")
	cfg.Hydration.CacheTTL = time.Duration(viper.GetInt("hydration-cache-ttl-secs")) * time.Second
	cfg.Hydration.CacheSize = viper.GetInt("hydration-cache-size")
	cfg.Hydration.MissSetSize = viper.GetInt("hydration-miss-set-size")
	cfg.Hydration.Normalize()
}

func configureApp(cfg *core.Config) {
	requested := viper.GetString("language")
	lang, ok := i18n.ParseLanguage(requested)
	if !ok && requested != "" {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			requested, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
	}
	cfg.App.Language = lang
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if strings.ToLower(format) != logFormatJSON {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runStatisfy(cmd *cobra.Command, args []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var deepLink string
	if len(args) == 1 {
		if !spotify.IsDeepLink(args[0]) {
			return fmt.Errorf("unexpected argument %q, expected a %s:// link", args[0], spotify.DeepLinkScheme)
		}
		deepLink = args[0]
	}

	dbPath := resolveDatabasePath()
	lock, err := instance.Acquire(instance.PathFor(dbPath))
	if errors.Is(err, instance.ErrAlreadyRunning) && deepLink != "" {
		logger.Info("Handing deep link to the running instance")
		return instance.Forward(ctx, &http.Client{Timeout: forwardTimeout}, localBaseURL(config.Server), deepLink, spotify.CallbackPath)
	}
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.Warn("Failed to release instance lock", zap.Error(releaseErr))
		}
	}()
	if deepLink != "" {
		logger.Warn("No running instance is waiting for this deep link, ignoring it")
	}

	logger.Info("Starting Statisfy",
		zap.String("language", config.App.Language),
		zap.Bool("circularDefault", config.Queue.Circular),
		zap.Duration("pollFastInterval", config.Poller.FastInterval),
		zap.String("instanceLock", lock.Path()))

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices(ctx, dbPath)
	if err != nil {
		return err
	}

	return runServices(ctx, svcs)
}

// localBaseURL is how a second launch reaches this host's running instance.
func localBaseURL(server core.ServerConfig) string {
	host := server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(server.Port)))
}

// resolveDatabasePath returns the configured database path, the XDG default, or a temp
// location when the data directory cannot be resolved.
func resolveDatabasePath() string {
	if config.Storage.DatabasePath != "" {
		return config.Storage.DatabasePath
	}
	path, err := persist.DefaultPath()
	if err != nil {
		logger.Warn("Failed to resolve database path", zap.Error(err))
		return filepath.Join(os.TempDir(), "statisfy", "statisfy.db")
	}
	return path
}

type services struct {
	spotify    *spotify.Client
	closeRepo  func() error
	store      *queue.Store
	persister  *queue.Persister
	controller *player.Controller
	poller     *reconcile.Poller
	httpServer *httpserver.Server
}

func initializeServices(ctx context.Context, dbPath string) (*services, error) {
	localizer := i18n.NewLocalizer(config.App.Language)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	spotifyClient := spotify.NewClient(&config.Spotify, logger)
	if authErr := spotifyClient.Authenticate(ctx); authErr != nil {
		return nil, fmt.Errorf("failed to authenticate with Spotify: %w", authErr)
	}

	repo, closeRepo := openRepository(ctx, dbPath, localizer)

	store := queue.NewStore(queue.Options{
		RecentCapacity: config.Queue.RecentCapacity,
		Circular:       config.Queue.Circular,
	}, logger)
	if queue.Load(ctx, repo, store, logger) {
		logger.Info(localizer.T("queue.restored", store.Len()))
	}

	persister := queue.NewPersister(store, repo, queue.PersisterOptions{
		Debounce: config.Queue.PersistDebounce,
		OnSave:   m.RecordSave,
	}, logger)
	store.Subscribe(func(ev queue.Event) {
		m.RecordQueueEvent(ev.Kind.String(), ev.Length)
	})

	hydrator := hydrate.New(spotifyClient, hydrate.OptionsFromConfig(config.Hydration, m), logger)
	controller := player.New(store, queue.NewContext(store, logger), spotifyClient, player.Options{
		Source:    spotifyClient,
		Hydrator:  hydrator,
		Localizer: localizer,
		Metrics:   m,
	}, logger)

	poller := reconcile.New(spotifyClient, store, reconcile.Options{
		Config:       config.Poller,
		Localizer:    localizer,
		Metrics:      m,
		OnTrackEnded: controller.OnTrackEnded,
	}, logger)

	return &services{
		spotify:    spotifyClient,
		closeRepo:  closeRepo,
		store:      store,
		persister:  persister,
		controller: controller,
		poller:     poller,
		httpServer: httpserver.NewServer(&config.Server, logger, controller, registry),
	}, nil
}

// openRepository opens the queue database, falling back to an in-memory session when it
// cannot be used.
func openRepository(ctx context.Context, path string, localizer *i18n.Localizer) (core.QueueRepository, func() error) {
	repo, err := persist.Open(ctx, path, logger)
	if err != nil {
		logger.Warn(localizer.T("error.storage.restore_failed"),
			zap.String("path", path),
			zap.Error(err))
		return persist.NopRepository{}, func() error { return nil }
	}
	return repo, repo.Close
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return svcs.poller.Run(gCtx)
	})

	svcs.controller.ScheduleHydration()

	logger.Info("Statisfy started successfully",
		zap.String("httpAddr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)),
		zap.Int("queueLength", svcs.store.Len()))

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("Statisfy stopped with error", zap.Error(runErr))
	}

	if err := svcs.shutdown(); err != nil {
		logger.Warn("Shutdown incomplete", zap.Error(err))
	}

	if runErr == nil {
		logger.Info("Statisfy stopped gracefully")
	}
	return runErr
}

// shutdown stops background work and writes the final queue state.
func (s *services) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.controller.Close()

	var errs []error
	if err := s.persister.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.closeRepo(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close queue database: %w", err))
	}
	if err := s.spotify.SaveToken(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateConfig(cfg *core.Config) error {
	if err := validateSpotifyConfig(cfg); err != nil {
		return err
	}
	return validateServerConfig(cfg)
}

func validateSpotifyConfig(cfg *core.Config) error {
	if cfg.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}

	if cfg.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}

	if cfg.Spotify.TokenPath == "" {
		return fmt.Errorf("spotify token path is required")
	}

	return nil
}

func validateServerConfig(cfg *core.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", cfg.Server.Port)
	}
	return nil
}
