// Package queue holds the process-wide playback queue: the ordered working list of track
// URIs, the current position, shuffle and circular modes, recency tracking and manual
// "play next" priority. Every mutation runs to completion under one lock and reports
// failure through its return value rather than an error.
package queue

import (
	"math/rand"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"statisfy/internal/core"
	"statisfy/internal/shuffle"
)

// Options configures a Store.
type Options struct {
	// RecentCapacity bounds the recently played ring
	RecentCapacity int
	// Circular is the initial wraparound mode
	Circular bool
	// Rand drives shuffle generation and random picks; nil means time-seeded
	Rand *rand.Rand
}

// DefaultOptions mirrors the queue defaults of core.DefaultConfig.
func DefaultOptions() Options {
	return Options{
		RecentCapacity: core.DefaultRecentCapacity,
		Circular:       true,
	}
}

// Store is the queue state machine.
type Store struct {
	logger *zap.Logger

	// mu guards everything below, including rng which is not safe for concurrent use
	mu        sync.RWMutex
	rng       *rand.Rand
	recentCap int
	// defaultCircular is the configured mode used when there is nothing to restore
	defaultCircular bool

	tracks       []string
	metadata     map[string]core.TrackMetadata
	currentIndex int
	circular     bool
	shuffle      bool
	shuffleOrder []int
	// recent is ordered oldest first
	recent []int
	manual map[string]struct{}
	// pending is a FIFO of positions holding manual insertions not yet played
	pending    []int
	sourceType core.SourceType
	sourceID   string

	playback      playbackState
	status        core.DeviceStatus
	statusMessage string

	subMu       sync.RWMutex
	subscribers map[int]func(Event)
	nextSubID   int
}

type playbackState struct {
	trackURI  string
	isPlaying bool
	progress  time.Duration
	duration  time.Duration
	volume    int
	fetchedAt time.Time
}

// NewStore creates an empty queue.
func NewStore(opts Options, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RecentCapacity <= 0 {
		opts.RecentCapacity = core.DefaultRecentCapacity
	}
	rng := opts.Rand
	if rng == nil {
		rng = shuffle.NewSource(time.Now().UnixNano())
	}

	return &Store{
		logger:          logger.Named("queue"),
		rng:             rng,
		recentCap:       opts.RecentCapacity,
		defaultCircular: opts.Circular,
		metadata:        make(map[string]core.TrackMetadata),
		currentIndex:    -1,
		circular:        opts.Circular,
		manual:          make(map[string]struct{}),
		sourceType:      core.SourceNone,
		playback:        playbackState{volume: core.DefaultVolumePercent},
		subscribers:     make(map[int]func(Event)),
	}
}

// Defaults is the persisted state of a store that has never been saved.
func (s *Store) Defaults() core.PersistedQueue {
	state := core.DefaultPersistedQueue()
	state.IsCircular = s.defaultCircular
	return state
}

// Snapshot is an immutable copy of the store's state.
type Snapshot struct {
	Tracks         []string
	TrackItems     []core.TrackMetadata
	CurrentIndex   int
	IsCircular     bool
	IsShuffle      bool
	ShuffleOrder   []int
	RecentlyPlayed []int
	PendingManual  []int
	ManuallyAdded  []string
	SourceType     core.SourceType
	SourceID       string

	NowPlayingURI string
	IsPlaying     bool
	Progress      time.Duration
	Duration      time.Duration
	Volume        int
	FetchedAt     time.Time

	Status        core.DeviceStatus
	StatusMessage string
}

// Current returns the metadata of the current entry, if any.
func (s Snapshot) Current() (core.TrackMetadata, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.TrackItems) {
		return core.TrackMetadata{}, false
	}
	return s.TrackItems[s.CurrentIndex], true
}

// Snapshot returns a copy of the full state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Tracks:         slices.Clone(s.tracks),
		TrackItems:     s.trackItemsLocked(),
		CurrentIndex:   s.currentIndex,
		IsCircular:     s.circular,
		IsShuffle:      s.shuffle,
		ShuffleOrder:   slices.Clone(s.shuffleOrder),
		RecentlyPlayed: slices.Clone(s.recent),
		PendingManual:  slices.Clone(s.pending),
		ManuallyAdded:  s.manualListLocked(),
		SourceType:     s.sourceType,
		SourceID:       s.sourceID,
		NowPlayingURI:  s.playback.trackURI,
		IsPlaying:      s.playback.isPlaying,
		Progress:       s.playback.progress,
		Duration:       s.playback.duration,
		Volume:         s.playback.volume,
		FetchedAt:      s.playback.fetchedAt,
		Status:         s.status,
		StatusMessage:  s.statusMessage,
	}
}

// Tracks returns a copy of the working queue.
func (s *Store) Tracks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tracks)
}

// TrackItems returns metadata aligned with Tracks, using placeholders for unresolved entries.
func (s *Store) TrackItems() []core.TrackMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackItemsLocked()
}

// Len returns the number of tracks in the queue.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// CurrentIndex returns the current position, -1 when empty.
func (s *Store) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentIndex
}

// CurrentURI returns the URI at the current position.
func (s *Store) CurrentURI() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uriAtLocked(s.currentIndex)
}

// URIAt returns the URI at index.
func (s *Store) URIAt(index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uriAtLocked(index)
}

// IndexOf returns the position of uri or -1.
func (s *Store) IndexOf(uri string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Index(s.tracks, uri)
}

// IsShuffle reports whether shuffle traversal is active.
func (s *Store) IsShuffle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shuffle
}

// IsCircular reports whether navigation wraps at the queue ends.
func (s *Store) IsCircular() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.circular
}

// IsManuallyAdded reports whether uri was inserted with AddNext.
func (s *Store) IsManuallyAdded(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.manual[uri]
	return ok
}

// ManuallyAdded returns the manually added URIs in sorted order.
func (s *Store) ManuallyAdded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manualListLocked()
}

// Status returns the device status and its message.
func (s *Store) Status() (core.DeviceStatus, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.statusMessage
}

func (s *Store) uriAtLocked(index int) (string, bool) {
	if index < 0 || index >= len(s.tracks) {
		return "", false
	}
	return s.tracks[index], true
}

func (s *Store) trackItemsLocked() []core.TrackMetadata {
	items := make([]core.TrackMetadata, len(s.tracks))
	for i, uri := range s.tracks {
		if meta, ok := s.metadata[uri]; ok {
			items[i] = meta
		} else {
			items[i] = core.PlaceholderTrack(uri)
		}
	}
	return items
}

func (s *Store) manualListLocked() []string {
	list := make([]string, 0, len(s.manual))
	for uri := range s.manual {
		list = append(list, uri)
	}
	slices.Sort(list)
	return list
}

func (s *Store) inRecentLocked(index int) bool {
	return slices.Contains(s.recent, index)
}

// pushRecentLocked records index as the most recent entry, evicting the oldest past capacity.
func (s *Store) pushRecentLocked(index int) {
	if index < 0 {
		return
	}
	s.recent = slices.DeleteFunc(s.recent, func(v int) bool { return v == index })
	s.recent = append(s.recent, index)
	if over := len(s.recent) - s.recentCap; over > 0 {
		s.recent = slices.Delete(s.recent, 0, over)
	}
}

func (s *Store) removePendingLocked(index int) {
	s.pending = slices.DeleteFunc(s.pending, func(v int) bool { return v == index })
}

// regenerateShuffleLocked draws a fresh order and keeps the current entry at its natural slot.
func (s *Store) regenerateShuffleLocked() {
	s.shuffleOrder = shuffle.Generate(len(s.tracks), s.rng)
	if s.currentIndex < 0 || s.currentIndex >= len(s.shuffleOrder) {
		return
	}
	pos := slices.Index(s.shuffleOrder, s.currentIndex)
	if pos >= 0 {
		s.shuffleOrder[pos], s.shuffleOrder[s.currentIndex] = s.shuffleOrder[s.currentIndex], s.shuffleOrder[pos]
	}
}

// pruneLocked drops metadata and manual marks for URIs that left the queue.
func (s *Store) pruneLocked() {
	present := make(map[string]struct{}, len(s.tracks))
	for _, uri := range s.tracks {
		present[uri] = struct{}{}
	}
	for uri := range s.metadata {
		if _, ok := present[uri]; !ok {
			delete(s.metadata, uri)
		}
	}
	for uri := range s.manual {
		if _, ok := present[uri]; !ok {
			delete(s.manual, uri)
		}
	}
}

func (s *Store) eventLocked(kind EventKind) Event {
	return Event{
		Kind:         kind,
		CurrentIndex: s.currentIndex,
		Length:       len(s.tracks),
	}
}
