// Package hydrate resolves queue URIs to display metadata through batched catalog lookups.
package hydrate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"statisfy/internal/core"
	"statisfy/internal/metrics"
	"statisfy/internal/store"
	"statisfy/pkg/spotifyuri"
)

// maxConcurrentBatches bounds parallel catalog requests for one Hydrate call.
const maxConcurrentBatches = 4

// Options configures a Hydrator.
type Options struct {
	BatchSize   int
	CacheTTL    time.Duration
	CacheSize   int
	MissSetSize int
	Metrics     *metrics.Metrics
}

// OptionsFromConfig maps the hydration config section onto Options.
func OptionsFromConfig(cfg core.HydrationConfig, m *metrics.Metrics) Options {
	cfg.Normalize()
	return Options{
		BatchSize:   cfg.BatchSize,
		CacheTTL:    cfg.CacheTTL,
		CacheSize:   cfg.CacheSize,
		MissSetSize: cfg.MissSetSize,
		Metrics:     m,
	}
}

// Hydrator turns URIs into TrackMetadata aligned with the input order. Anything the
// catalog cannot resolve becomes a placeholder, so the output length always equals the
// input length.
type Hydrator struct {
	logger    *zap.Logger
	catalog   core.CatalogClient
	cache     *expirable.LRU[string, core.TrackMetadata]
	misses    *store.URISet
	group     singleflight.Group
	batchSize int
	metrics   *metrics.Metrics
}

// New creates a Hydrator backed by catalog.
func New(catalog core.CatalogClient, opts Options, logger *zap.Logger) *Hydrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := core.HydrationConfig{
		BatchSize:   opts.BatchSize,
		CacheTTL:    opts.CacheTTL,
		CacheSize:   opts.CacheSize,
		MissSetSize: opts.MissSetSize,
	}
	cfg.Normalize()

	return &Hydrator{
		logger:    logger.Named("hydrate"),
		catalog:   catalog,
		cache:     expirable.NewLRU[string, core.TrackMetadata](cfg.CacheSize, nil, cfg.CacheTTL),
		misses:    store.NewURISet(cfg.MissSetSize, core.DefaultMissSetFalsePositiveRate),
		batchSize: cfg.BatchSize,
		metrics:   opts.Metrics,
	}
}

// Hydrate resolves uris. Catalog failures are logged and turn into placeholders.
func (h *Hydrator) Hydrate(ctx context.Context, uris []string) []core.TrackMetadata {
	start := time.Now()
	resolved := make(map[string]core.TrackMetadata, len(uris))
	cached := 0

	var need []string
	for _, uri := range lo.Uniq(uris) {
		if uri == "" {
			continue
		}
		if meta, ok := h.cache.Get(uri); ok {
			resolved[uri] = meta
			cached++
			continue
		}
		if spotifyuri.IsLocal(uri) {
			resolved[uri] = localTrack(uri)
			continue
		}
		if h.misses.Has(uri) {
			continue
		}
		need = append(need, uri)
	}

	fetched := 0
	if len(need) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrentBatches)

		for _, batch := range lo.Chunk(need, h.batchSize) {
			g.Go(func() error {
				found := h.lookupBatch(gctx, batch)
				mu.Lock()
				for uri, meta := range found {
					resolved[uri] = meta
				}
				fetched += len(found)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	items := make([]core.TrackMetadata, len(uris))
	placeholders := 0
	for i, uri := range uris {
		if meta, ok := resolved[uri]; ok {
			items[i] = meta
			continue
		}
		items[i] = core.PlaceholderTrack(uri)
		placeholders++
	}

	h.metrics.RecordHydration(cached, fetched, placeholders, time.Since(start))
	h.logger.Debug("Hydrated tracks",
		zap.Int("requested", len(uris)),
		zap.Int("cached", cached),
		zap.Int("fetched", fetched),
		zap.Int("placeholders", placeholders))
	return items
}

// lookupBatch fetches one batch and re-aligns the unordered result by URI, falling back to
// the track id for relinked tracks. Identical concurrent batches share one request.
func (h *Hydrator) lookupBatch(ctx context.Context, batch []string) map[string]core.TrackMetadata {
	key := strings.Join(batch, ",")
	v, err, _ := h.group.Do(key, func() (any, error) {
		items, err := h.catalog.LookupTracks(ctx, batch)
		h.metrics.RecordLookup(err)
		if err != nil {
			return nil, err
		}
		return items, nil
	})
	if err != nil {
		h.logger.Warn("Failed to look up track batch",
			zap.Int("batchSize", len(batch)),
			zap.Error(err))
		return nil
	}
	items, _ := v.([]core.TrackMetadata)

	byURI := make(map[string]core.TrackMetadata, len(items))
	byID := make(map[string]core.TrackMetadata, len(items))
	for _, item := range items {
		if item.URI != "" {
			byURI[item.URI] = item
		}
		if item.ID != "" {
			byID[item.ID] = item
		}
	}

	found := make(map[string]core.TrackMetadata, len(batch))
	for _, uri := range batch {
		meta, ok := byURI[uri]
		if !ok {
			meta, ok = byID[core.PlaceholderTrack(uri).ID]
		}
		if !ok || meta.Placeholder {
			h.misses.Add(uri)
			continue
		}
		meta.URI = uri
		found[uri] = meta
		h.cache.Add(uri, meta)
	}
	return found
}

// HydrateQueue resolves every queued URI and back-fills the metadata into sink.
func (h *Hydrator) HydrateQueue(ctx context.Context, sink MetadataSink) int {
	return sink.ApplyMetadata(h.Hydrate(ctx, sink.Tracks()))
}

// MetadataSink is the part of the queue store hydration writes to.
type MetadataSink interface {
	Tracks() []string
	ApplyMetadata(items []core.TrackMetadata) int
}

// Forget drops cached and negative results for uris so the next call asks the catalog again.
func (h *Hydrator) Forget(uris ...string) {
	for _, uri := range uris {
		h.cache.Remove(uri)
		h.misses.Remove(uri)
	}
}

func localTrack(uri string) core.TrackMetadata {
	meta := core.PlaceholderTrack(uri)
	local, err := spotifyuri.ParseLocal(uri)
	if err != nil {
		return meta
	}
	meta.Name = local.Title
	if local.Artist != "" {
		meta.Artists = []string{local.Artist}
	}
	meta.Album = local.Album
	meta.Duration = local.Duration
	meta.Placeholder = false
	return meta
}
