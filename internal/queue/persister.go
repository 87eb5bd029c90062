package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"statisfy/internal/core"
)

const defaultSaveTimeout = 5 * time.Second

// PersisterOptions configures a Persister.
type PersisterOptions struct {
	// Debounce delays a save so bursts of edits produce one write
	Debounce time.Duration
	// SaveTimeout bounds a single background save
	SaveTimeout time.Duration
	// OnSave is called after every save attempt
	OnSave func(err error)
}

// Persister writes the persisted subset of a store on a debounce timer so mutations never
// wait for storage.
type Persister struct {
	logger *zap.Logger
	store  *Store
	repo   core.QueueRepository
	opts   PersisterOptions

	mu          sync.Mutex
	timer       *time.Timer
	dirty       bool
	closed      bool
	unsubscribe func()

	// saveMu is held for the whole of a save; an older snapshot never overwrites a newer one
	// and Flush waits for a save in flight
	saveMu sync.Mutex
}

// NewPersister subscribes to store and starts persisting its changes.
func NewPersister(store *Store, repo core.QueueRepository, opts PersisterOptions, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = core.DefaultPersistDebounce
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}

	p := &Persister{
		logger: logger.Named("persister"),
		store:  store,
		repo:   repo,
		opts:   opts,
	}
	p.unsubscribe = store.Subscribe(p.handle)
	return p
}

func (p *Persister) handle(ev Event) {
	if !ev.Kind.Persistent() {
		return
	}
	p.schedule()
}

func (p *Persister) schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.dirty = true
	if p.timer == nil {
		p.timer = time.AfterFunc(p.opts.Debounce, p.fire)
		return
	}
	p.timer.Reset(p.opts.Debounce)
}

func (p *Persister) fire() {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	if !p.takeDirty() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.SaveTimeout)
	defer cancel()
	if err := p.saveLocked(ctx); err != nil {
		p.logger.Warn("Failed to persist queue", zap.Error(err))
	}
}

// takeDirty clears and returns the pending flag. Callers hold saveMu, so clearing it never
// hides a save that is still running.
func (p *Persister) takeDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	dirty := p.dirty
	p.dirty = false
	return dirty
}

func (p *Persister) saveLocked(ctx context.Context) error {
	state := p.store.Persisted()
	err := p.repo.Save(ctx, state)
	if p.opts.OnSave != nil {
		p.opts.OnSave(err)
	}
	if err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}

	p.logger.Debug("Persisted queue",
		zap.Int("tracks", len(state.Tracks)),
		zap.Int("currentIndex", state.CurrentIndex))
	return nil
}

// Flush writes pending changes immediately. It waits for a save the debounce timer already
// started.
func (p *Persister) Flush(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	if !p.takeDirty() {
		return nil
	}
	return p.saveLocked(ctx)
}

// Close stops listening to the store and writes anything still pending.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.unsubscribe()
	return p.Flush(ctx)
}

// Load restores store from repo. Missing or unreadable data leaves the defaults in place
// and is reported as false, never as a startup failure.
func Load(ctx context.Context, repo core.QueueRepository, store *Store, logger *zap.Logger) bool {
	if logger == nil {
		logger = zap.NewNop()
	}

	state, err := repo.Load(ctx)
	if err != nil {
		logger.Warn("Failed to load persisted queue, using defaults", zap.Error(err))
		store.Restore(store.Defaults())
		return false
	}
	if state == nil {
		logger.Debug("No persisted queue found, using defaults")
		store.Restore(store.Defaults())
		return false
	}

	store.Restore(*state)
	return true
}
