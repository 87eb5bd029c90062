// Package player turns user intent into queue mutations and device commands.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"statisfy/internal/core"
	"statisfy/internal/hydrate"
	"statisfy/internal/i18n"
	"statisfy/internal/metrics"
	"statisfy/internal/queue"
	"statisfy/pkg/fuzzy"
	"statisfy/pkg/spotifyuri"
)

// Device commands reported to metrics.
const (
	CommandPlay         = "play"
	CommandSkipNext     = "skip_next"
	CommandSkipPrevious = "skip_previous"
)

const defaultHydrationTimeout = 30 * time.Second

var (
	// ErrEmptyContext is returned when playing without a context to play from
	ErrEmptyContext = errors.New("playback context is empty")
	// ErrInvalidIndex is returned for positions outside the queue
	ErrInvalidIndex = errors.New("queue index out of range")
	// ErrNoContextSource is returned when collections cannot be listed
	ErrNoContextSource = errors.New("no context source configured")
)

// Hydrator back-fills queue metadata.
type Hydrator interface {
	HydrateQueue(ctx context.Context, sink hydrate.MetadataSink) int
}

// Options configures a Controller.
type Options struct {
	// Source lists collection tracks; optional
	Source core.ContextSource
	// Hydrator resolves metadata after queue changes; optional
	Hydrator         Hydrator
	HydrationTimeout time.Duration
	Localizer        *i18n.Localizer
	Metrics          *metrics.Metrics
}

// Controller is the single writer driving the queue from user actions and poll callbacks.
type Controller struct {
	logger    *zap.Logger
	store     *queue.Store
	context   *queue.Context
	device    core.PlaybackDevice
	source    core.ContextSource
	hydrator  Hydrator
	localizer *i18n.Localizer
	metrics   *metrics.Metrics

	hydrationTimeout time.Duration
	baseCtx          context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// New creates a controller. Close must be called to stop background hydration.
func New(store *queue.Store, pctx *queue.Context, device core.PlaybackDevice, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Localizer == nil {
		opts.Localizer = i18n.NewLocalizer(core.DefaultLanguage)
	}
	if opts.HydrationTimeout <= 0 {
		opts.HydrationTimeout = defaultHydrationTimeout
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	return &Controller{
		logger:           logger.Named("player"),
		store:            store,
		context:          pctx,
		device:           device,
		source:           opts.Source,
		hydrator:         opts.Hydrator,
		localizer:        opts.Localizer,
		metrics:          opts.Metrics,
		hydrationTimeout: opts.HydrationTimeout,
		baseCtx:          baseCtx,
		cancel:           cancel,
	}
}

// Close cancels and waits for background hydration.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until scheduled hydration has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Snapshot returns the current queue state.
func (c *Controller) Snapshot() queue.Snapshot {
	return c.store.Snapshot()
}

// SetContext records the collection the user is browsing. It does not start playback.
func (c *Controller) SetContext(sourceType core.SourceType, sourceID string, uris []string, currentURI string) int {
	return c.context.SetContext(sourceType, sourceID, uris, currentURI)
}

// LoadContext lists the collection's tracks through the context source and records it.
func (c *Controller) LoadContext(ctx context.Context, sourceType core.SourceType, sourceID, currentURI string) (int, error) {
	if c.source == nil {
		return -1, ErrNoContextSource
	}
	uris, err := c.source.ContextTrackURIs(ctx, sourceType, sourceID)
	if err != nil {
		c.surfaceError(c.localizer.T("error.context.load_failed", string(sourceType)))
		return -1, fmt.Errorf("failed to load %s %s: %w", sourceType, sourceID, err)
	}
	return c.SetContext(sourceType, sourceID, uris, currentURI), nil
}

// PlayContext seeds the queue from the current context and starts its current track.
func (c *Controller) PlayContext(ctx context.Context) error {
	pc := c.context.Get()
	if len(pc.URIs) == 0 {
		return ErrEmptyContext
	}

	c.store.SetQueue(pc.URIs, pc.CurrentIndex)
	c.store.SetSource(pc.SourceType, pc.SourceID)
	c.logger.Info("Playing context",
		zap.String("sourceType", string(pc.SourceType)),
		zap.String("sourceID", pc.SourceID),
		zap.Int("tracks", c.store.Len()),
		zap.Int("startIndex", c.store.CurrentIndex()))

	c.ScheduleHydration()
	return c.playCurrent(ctx)
}

// PlayIndex jumps to a queue position and starts it.
func (c *Controller) PlayIndex(ctx context.Context, index int) error {
	if !c.store.UpdateCurrentIndex(index) {
		return ErrInvalidIndex
	}
	return c.playCurrent(ctx)
}

// Next advances through the queue, asking the device to skip when the queue has nothing left.
func (c *Controller) Next(ctx context.Context) error {
	idx := c.store.NextIndex()
	if idx < 0 {
		if c.store.Len() == 0 {
			c.logger.Debug(c.localizer.T("queue.empty"))
		}
		c.logger.Debug("No next track in queue, skipping on device")
		return c.skip(ctx, CommandSkipNext, c.device.SkipNext)
	}
	c.store.UpdateCurrentIndex(idx)
	return c.playCurrent(ctx)
}

// Previous walks back through history, asking the device to skip back when there is none.
func (c *Controller) Previous(ctx context.Context) error {
	idx := c.store.PreviousIndex()
	if idx < 0 {
		c.logger.Debug("No previous track in queue, skipping back on device")
		return c.skip(ctx, CommandSkipPrevious, c.device.SkipPrevious)
	}
	c.store.StepBack(idx)
	return c.playCurrent(ctx)
}

// OnTrackEnded advances automatically once the device finished the current track. Ends of
// tracks the queue no longer points at are ignored, as is reaching the end of a
// non-circular queue.
func (c *Controller) OnTrackEnded(ctx context.Context, uri string) {
	current, ok := c.store.CurrentURI()
	if !ok || current != uri {
		c.logger.Debug("Ignoring end of track outside the queue position",
			zap.String("trackURI", uri))
		return
	}

	idx := c.store.NextIndex()
	if idx < 0 {
		c.logger.Info(c.localizer.T("queue.end"))
		return
	}
	c.store.UpdateCurrentIndex(idx)
	if err := c.playCurrent(ctx); err != nil {
		c.logger.Warn("Failed to auto-advance", zap.Error(err))
	}
}

// AddNext queues a track to play after the current one. It accepts URIs and share links.
func (c *Controller) AddNext(raw string) (bool, error) {
	uri, err := spotifyuri.NormalizeTrack(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse track %q: %w", raw, err)
	}
	added := c.store.AddNext(uri)
	if added {
		c.ScheduleHydration()
	} else {
		c.logger.Debug(c.localizer.T("queue.duplicate", uri))
	}
	return added, nil
}

// AddToEnd appends a track to the queue. It accepts URIs and share links.
func (c *Controller) AddToEnd(raw string) (bool, error) {
	uri, err := spotifyuri.NormalizeTrack(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse track %q: %w", raw, err)
	}
	added := c.store.AddToEnd(uri)
	if added {
		c.ScheduleHydration()
	} else {
		c.logger.Debug(c.localizer.T("queue.duplicate", uri))
	}
	return added, nil
}

// RemoveAt removes a queue position.
func (c *Controller) RemoveAt(index int) bool {
	return c.store.RemoveAt(index)
}

// Clear drops every track except the one playing.
func (c *Controller) Clear() {
	c.store.Clear()
}

// ClearContext forgets the playback context and empties the queue.
func (c *Controller) ClearContext() {
	c.context.Clear()
}

// SetShuffle toggles shuffle mode.
func (c *Controller) SetShuffle(enabled bool) {
	c.store.SetShuffle(enabled)
}

// SetCircular toggles wraparound at the queue ends.
func (c *Controller) SetCircular(enabled bool) {
	c.store.SetCircular(enabled)
}

// DescribeStatus returns the localized description of a device status.
func (c *Controller) DescribeStatus(status core.DeviceStatus) string {
	return c.localizer.Status(status)
}

// Find returns the queue positions whose title, artists or album match query.
func (c *Controller) Find(query string) []int {
	var found []int
	for i, item := range c.store.TrackItems() {
		if item.Placeholder {
			continue
		}
		if fuzzy.Matches(query, fuzzy.NormalizeTitle(item.Name), item.ArtistLine(), item.Album) {
			found = append(found, i)
		}
	}
	return found
}

// Label formats a queue entry for display.
func (c *Controller) Label(item core.TrackMetadata) string {
	if item.Placeholder || item.Name == "" {
		return c.localizer.T("format.placeholder", item.ID)
	}
	if len(item.Artists) == 0 {
		return item.Name
	}
	return c.localizer.T("format.track", item.ArtistLine(), item.Name)
}

// Rehydrate resolves queue metadata synchronously and returns how many entries were updated.
func (c *Controller) Rehydrate(ctx context.Context) int {
	if c.hydrator == nil {
		return 0
	}
	return c.hydrator.HydrateQueue(ctx, c.store)
}

// ScheduleHydration resolves queue metadata in the background.
func (c *Controller) ScheduleHydration() {
	if c.hydrator == nil || c.baseCtx.Err() != nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.baseCtx, c.hydrationTimeout)
		defer cancel()
		if n := c.Rehydrate(ctx); n > 0 {
			c.logger.Debug("Hydrated queue", zap.Int("updated", n))
		}
	}()
}

func (c *Controller) playCurrent(ctx context.Context) error {
	uri, ok := c.store.CurrentURI()
	if !ok {
		return ErrInvalidIndex
	}
	err := c.device.StartPlayback(ctx, uri)
	c.metrics.RecordDeviceCommand(CommandPlay, err)
	if err != nil {
		c.surfaceError(c.localizer.T("error.playback.start_failed"))
		return fmt.Errorf("failed to start playback of %s: %w", uri, err)
	}
	c.logger.Debug("Started playback", zap.String("trackURI", uri))
	return nil
}

func (c *Controller) skip(ctx context.Context, command string, fn func(context.Context) error) error {
	err := fn(ctx)
	c.metrics.RecordDeviceCommand(command, err)
	if err != nil {
		c.surfaceError(c.localizer.T("error.playback.skip_failed"))
		return fmt.Errorf("failed to %s: %w", command, err)
	}
	return nil
}

// surfaceError publishes msg as the status message without changing the device status,
// which only the poller decides.
func (c *Controller) surfaceError(msg string) {
	status, _ := c.store.Status()
	c.store.SetStatus(status, msg)
	c.logger.Warn(msg)
}
