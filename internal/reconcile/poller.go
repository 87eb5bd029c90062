// Package reconcile keeps the queue's now-playing surface in sync with the remote device
// by polling it on an adaptive interval.
package reconcile

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"statisfy/internal/core"
	"statisfy/internal/i18n"
	"statisfy/internal/metrics"
	"statisfy/internal/queue"
)

// Poll outcomes reported to metrics.
const (
	OutcomePlaying = "playing"
	OutcomeIdle    = "idle"
	OutcomeError   = "error"
)

// Options configures a Poller.
type Options struct {
	Config    core.PollerConfig
	Localizer *i18n.Localizer
	Metrics   *metrics.Metrics
	// OnTrackEnded is called from the poll loop when the device finished the given track
	OnTrackEnded func(ctx context.Context, uri string)
	// Now defaults to time.Now
	Now func() time.Time
}

// Poller reads the device's playback snapshot and merges it into the store.
type Poller struct {
	logger       *zap.Logger
	device       core.PlaybackDevice
	store        *queue.Store
	cfg          core.PollerConfig
	localizer    *i18n.Localizer
	metrics      *metrics.Metrics
	onTrackEnded func(ctx context.Context, uri string)
	now          func() time.Time

	// loop state, owned by the goroutine running Run
	failures    int
	lastURI     string
	lastPlaying bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a poller for device that writes into store.
func New(device core.PlaybackDevice, store *queue.Store, opts Options, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Config.Normalize()
	if opts.Localizer == nil {
		opts.Localizer = i18n.NewLocalizer(core.DefaultLanguage)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Poller{
		logger:       logger.Named("poller"),
		device:       device,
		store:        store,
		cfg:          opts.Config,
		localizer:    opts.Localizer,
		metrics:      opts.Metrics,
		onTrackEnded: opts.OnTrackEnded,
		now:          opts.Now,
	}
}

// NextInterval returns the delay before the next poll. Failures back off multiplicatively
// from the fast interval up to the ceiling.
func NextInterval(cfg core.PollerConfig, active bool, failures int) time.Duration {
	if failures > 0 {
		backoff := float64(cfg.FastInterval) * math.Pow(cfg.BackoffFactor, float64(failures))
		if backoff >= float64(cfg.MaxInterval) || math.IsInf(backoff, 0) {
			return cfg.MaxInterval
		}
		return time.Duration(backoff)
	}
	if active {
		return cfg.FastInterval
	}
	return cfg.IdleInterval
}

// Run polls immediately and then on the adaptive interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Starting playback reconciliation")

	timer := time.NewTimer(p.Poll(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Playback reconciliation stopped")
			return nil
		case <-timer.C:
			timer.Reset(p.Poll(ctx))
		}
	}
}

// Start runs the poller in the background. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		_ = p.Run(runCtx)
	}()
}

// Stop cancels the background loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Poll performs one reconciliation step and returns the delay before the next one.
func (p *Poller) Poll(ctx context.Context) time.Duration {
	requestedAt := p.now()
	snap, err := p.device.PlaybackSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return p.cfg.IdleInterval
		}
		return p.handleFailure(err)
	}
	p.failures = 0

	if snap == nil {
		p.store.ClearPlayback(requestedAt)
		p.store.SetStatus(core.StatusIdle, "")
		p.detectTrackEnd(ctx, "", false, 0)
		return p.record(OutcomeIdle, false)
	}

	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = requestedAt
	}
	if !p.store.ApplyPlayback(*snap) {
		// a newer snapshot already landed; it owns the index and track-end state
		p.logger.Debug("Ignored stale playback snapshot", zap.Time("fetchedAt", snap.FetchedAt))
		if p.store.Snapshot().IsPlaying {
			return p.record(OutcomePlaying, true)
		}
		return p.record(OutcomeIdle, false)
	}
	p.reconcileIndex(snap.TrackURI)

	if snap.IsPlaying {
		p.store.SetStatus(core.StatusActive, "")
	} else {
		p.store.SetStatus(core.StatusIdle, "")
	}
	p.detectTrackEnd(ctx, snap.TrackURI, snap.IsPlaying, snap.Progress)

	if snap.IsPlaying {
		return p.record(OutcomePlaying, true)
	}
	return p.record(OutcomeIdle, false)
}

func (p *Poller) handleFailure(err error) time.Duration {
	p.failures++
	p.logger.Debug("Failed to fetch playback snapshot",
		zap.Int("consecutiveFailures", p.failures),
		zap.Error(err))

	if p.failures >= p.cfg.FailureThreshold {
		if p.failures == p.cfg.FailureThreshold {
			p.logger.Warn("Playback device unreachable",
				zap.Int("consecutiveFailures", p.failures),
				zap.Error(err))
		}
		p.store.SetStatus(core.StatusDegraded, p.localizer.T("error.device.unreachable", p.failures))
	}
	return p.record(OutcomeError, false)
}

func (p *Poller) record(outcome string, active bool) time.Duration {
	next := NextInterval(p.cfg, active, p.failures)
	p.metrics.RecordPoll(outcome, next, p.failures)
	return next
}

// reconcileIndex moves the queue to wherever the device reports it is playing.
func (p *Poller) reconcileIndex(uri string) {
	if uri == "" {
		return
	}
	idx := p.store.IndexOf(uri)
	if idx < 0 || idx == p.store.CurrentIndex() {
		return
	}
	if p.store.UpdateCurrentIndex(idx) {
		p.logger.Debug("Followed device to queue position",
			zap.String("trackURI", uri),
			zap.Int("index", idx))
	}
}

// detectTrackEnd fires OnTrackEnded when the track observed playing on the previous poll
// is now stopped at its start or gone.
func (p *Poller) detectTrackEnd(ctx context.Context, uri string, playing bool, progress time.Duration) {
	prevURI, prevPlaying := p.lastURI, p.lastPlaying
	p.lastURI, p.lastPlaying = uri, playing

	if !prevPlaying || prevURI == "" || playing {
		return
	}
	if uri != "" && (uri != prevURI || progress > 0) {
		return
	}

	p.logger.Debug("Track ended", zap.String("trackURI", prevURI))
	if p.onTrackEnded != nil {
		p.onTrackEnded(ctx, prevURI)
	}
}
