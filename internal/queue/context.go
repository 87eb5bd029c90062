package queue

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"statisfy/internal/core"
)

// Context tracks the collection the user last started playing from. Setting it never
// starts playback; it only primes the store for the next play action.
type Context struct {
	logger *zap.Logger
	store  *Store

	mu      sync.RWMutex
	current core.PlaybackContext
}

// NewContext creates an empty playback context bound to store.
func NewContext(store *Store, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		logger: logger.Named("context"),
		store:  store,
		current: core.PlaybackContext{
			SourceType:   core.SourceNone,
			CurrentIndex: -1,
		},
	}
}

// SetContext replaces the current context and returns the resolved start index.
// A currentURI missing from a non-empty list starts from the first track.
func (c *Context) SetContext(sourceType core.SourceType, sourceID string, uris []string, currentURI string) int {
	index := slices.Index(uris, currentURI)
	if index < 0 && len(uris) > 0 {
		c.logger.Debug("Current track not in context, starting from first track",
			zap.String("sourceType", string(sourceType)),
			zap.String("sourceID", sourceID),
			zap.String("currentURI", currentURI))
		index = 0
	}

	c.mu.Lock()
	c.current = core.PlaybackContext{
		SourceType:   sourceType,
		SourceID:     sourceID,
		URIs:         slices.Clone(uris),
		CurrentIndex: index,
	}
	c.mu.Unlock()

	c.logger.Debug("Playback context set",
		zap.String("sourceType", string(sourceType)),
		zap.String("sourceID", sourceID),
		zap.Int("tracks", len(uris)),
		zap.Int("currentIndex", index))
	return index
}

// Get returns a copy of the current context.
func (c *Context) Get() core.PlaybackContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx := c.current
	ctx.URIs = slices.Clone(c.current.URIs)
	return ctx
}

// Clear resets to no source and empties the queue.
func (c *Context) Clear() {
	c.mu.Lock()
	c.current = core.PlaybackContext{
		SourceType:   core.SourceNone,
		CurrentIndex: -1,
	}
	c.mu.Unlock()

	if c.store != nil {
		c.store.Reset()
	}
}
