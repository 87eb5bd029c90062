package queue

import (
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"statisfy/internal/core"
)

// SetQueue replaces the working queue. Later duplicates are dropped and startIndex follows
// the URI it pointed at, clamped into range. Recency and pending priority are cleared and
// the shuffle order is regenerated when shuffle is on.
func (s *Store) SetQueue(uris []string, startIndex int) {
	s.mu.Lock()
	s.setQueueLocked(uris, startIndex)
	ev := s.eventLocked(EventQueueChanged)
	s.mu.Unlock()

	s.notify(ev)
}

func (s *Store) setQueueLocked(uris []string, startIndex int) {
	deduped := lo.Uniq(lo.Compact(uris))

	start := -1
	if len(deduped) > 0 {
		if startIndex >= 0 && startIndex < len(uris) && uris[startIndex] != "" {
			start = slices.Index(deduped, uris[startIndex])
		} else {
			start = min(max(startIndex, 0), len(deduped)-1)
		}
	}

	if dropped := len(uris) - len(deduped); dropped > 0 {
		s.logger.Debug("Dropped duplicate or empty URIs while seeding queue",
			zap.Int("dropped", dropped))
	}

	s.tracks = deduped
	s.currentIndex = start
	s.recent = nil
	s.pending = nil
	s.pruneLocked()

	if s.shuffle {
		s.regenerateShuffleLocked()
	} else {
		s.shuffleOrder = nil
	}

	s.logger.Debug("Seeded queue",
		zap.Int("tracks", len(s.tracks)),
		zap.Int("currentIndex", s.currentIndex),
		zap.Bool("shuffle", s.shuffle))
}

// AddNext inserts uri right after the current entry and gives it priority over shuffle picks.
// It returns false when uri is empty or already queued.
func (s *Store) AddNext(uri string) bool {
	s.mu.Lock()
	ok := s.addNextLocked(uri)
	ev := s.eventLocked(EventQueueChanged)
	s.mu.Unlock()

	if ok {
		s.notify(ev)
	}
	return ok
}

func (s *Store) addNextLocked(uri string) bool {
	if uri == "" || slices.Contains(s.tracks, uri) {
		return false
	}

	if len(s.tracks) == 0 {
		s.tracks = []string{uri}
		s.currentIndex = 0
		s.manual[uri] = struct{}{}
		if s.shuffle {
			s.shuffleOrder = []int{0}
		}
		s.logger.Debug("Added track to empty queue", zap.String("uri", uri))
		return true
	}

	insertAt := s.currentIndex + 1
	s.tracks = slices.Insert(s.tracks, insertAt, uri)

	shift := func(v int, _ int) int {
		if v >= insertAt {
			return v + 1
		}
		return v
	}
	s.pending = lo.Map(s.pending, shift)
	s.recent = lo.Map(s.recent, shift)

	if s.shuffle {
		s.shuffleOrder = lo.Map(s.shuffleOrder, shift)
		pos := slices.Index(s.shuffleOrder, s.currentIndex)
		s.shuffleOrder = slices.Insert(s.shuffleOrder, pos+1, insertAt)
	}

	s.pending = append(s.pending, insertAt)
	s.manual[uri] = struct{}{}

	s.logger.Debug("Added track to play next",
		zap.String("uri", uri),
		zap.Int("index", insertAt),
		zap.Int("pending", len(s.pending)))
	return true
}

// AddToEnd appends uri without any priority treatment. It returns false when uri is
// empty or already queued.
func (s *Store) AddToEnd(uri string) bool {
	s.mu.Lock()
	ok := s.addToEndLocked(uri)
	ev := s.eventLocked(EventQueueChanged)
	s.mu.Unlock()

	if ok {
		s.notify(ev)
	}
	return ok
}

func (s *Store) addToEndLocked(uri string) bool {
	if uri == "" || slices.Contains(s.tracks, uri) {
		return false
	}

	s.tracks = append(s.tracks, uri)
	index := len(s.tracks) - 1
	if s.currentIndex < 0 {
		s.currentIndex = 0
	}
	if s.shuffle {
		s.shuffleOrder = append(s.shuffleOrder, index)
	}

	s.logger.Debug("Appended track", zap.String("uri", uri), zap.Int("index", index))
	return true
}

// RemoveAt deletes the entry at index and re-indexes all bookkeeping. Removing the current
// entry lets the following track slide into its place, or moves back when it was last.
func (s *Store) RemoveAt(index int) bool {
	s.mu.Lock()
	ok := s.removeAtLocked(index)
	ev := s.eventLocked(EventQueueChanged)
	s.mu.Unlock()

	if ok {
		s.notify(ev)
	}
	return ok
}

func (s *Store) removeAtLocked(index int) bool {
	if index < 0 || index >= len(s.tracks) {
		return false
	}

	uri := s.tracks[index]
	s.tracks = slices.Delete(s.tracks, index, index+1)

	reindex := func(v int, _ int) (int, bool) {
		switch {
		case v == index:
			return 0, false
		case v > index:
			return v - 1, true
		default:
			return v, true
		}
	}
	s.shuffleOrder = lo.FilterMap(s.shuffleOrder, reindex)
	s.pending = lo.FilterMap(s.pending, reindex)
	s.recent = lo.FilterMap(s.recent, reindex)

	delete(s.manual, uri)
	delete(s.metadata, uri)

	switch {
	case len(s.tracks) == 0:
		s.currentIndex = -1
	case index < s.currentIndex:
		s.currentIndex--
	case index == s.currentIndex && s.currentIndex >= len(s.tracks):
		s.currentIndex = len(s.tracks) - 1
	}

	s.logger.Debug("Removed track",
		zap.String("uri", uri),
		zap.Int("index", index),
		zap.Int("currentIndex", s.currentIndex))
	return true
}

// Clear collapses the queue to the current track, or empties it when nothing is current.
func (s *Store) Clear() {
	s.mu.Lock()
	if uri, ok := s.uriAtLocked(s.currentIndex); ok {
		s.tracks = []string{uri}
		s.currentIndex = 0
	} else {
		s.tracks = nil
		s.currentIndex = -1
	}
	s.shuffleOrder = nil
	if s.shuffle && len(s.tracks) == 1 {
		s.shuffleOrder = []int{0}
	}
	s.recent = nil
	s.pending = nil
	clear(s.manual)
	s.pruneLocked()
	ev := s.eventLocked(EventQueueChanged)
	s.mu.Unlock()

	s.logger.Debug("Cleared queue", zap.Int("remaining", ev.Length))
	s.notify(ev)
}

// Reset empties the queue and forgets its source. Shuffle and circular modes are kept.
func (s *Store) Reset() {
	s.mu.Lock()
	s.tracks = nil
	s.currentIndex = -1
	s.shuffleOrder = nil
	s.recent = nil
	s.pending = nil
	clear(s.manual)
	clear(s.metadata)
	s.sourceType = core.SourceNone
	s.sourceID = ""
	events := []Event{s.eventLocked(EventQueueChanged), s.eventLocked(EventModeChanged)}
	s.mu.Unlock()

	s.notify(events...)
}

// SetShuffle toggles shuffle traversal. Enabling always draws a fresh order with the
// current entry kept at its natural slot and marks it recently played.
func (s *Store) SetShuffle(enabled bool) {
	s.mu.Lock()
	s.shuffle = enabled
	if enabled {
		s.regenerateShuffleLocked()
		s.recent = nil
		s.pushRecentLocked(s.currentIndex)
	} else {
		s.shuffleOrder = nil
	}
	ev := s.eventLocked(EventModeChanged)
	s.mu.Unlock()

	s.logger.Debug("Shuffle toggled", zap.Bool("enabled", enabled))
	s.notify(ev)
}

// SetCircular toggles wraparound at the queue ends.
func (s *Store) SetCircular(enabled bool) {
	s.mu.Lock()
	changed := s.circular != enabled
	s.circular = enabled
	ev := s.eventLocked(EventModeChanged)
	s.mu.Unlock()

	if changed {
		s.notify(ev)
	}
}

// SetSource records the collection the queue was seeded from.
func (s *Store) SetSource(sourceType core.SourceType, sourceID string) {
	s.mu.Lock()
	changed := s.sourceType != sourceType || s.sourceID != sourceID
	s.sourceType = sourceType
	s.sourceID = sourceID
	ev := s.eventLocked(EventModeChanged)
	s.mu.Unlock()

	if changed {
		s.notify(ev)
	}
}

// ApplyMetadata back-fills hydrated metadata for queued URIs. A placeholder never replaces
// resolved metadata. It returns how many entries changed.
func (s *Store) ApplyMetadata(items []core.TrackMetadata) int {
	s.mu.Lock()
	present := lo.SliceToMap(s.tracks, func(uri string) (string, struct{}) {
		return uri, struct{}{}
	})
	applied := 0
	for _, item := range items {
		if _, ok := present[item.URI]; !ok {
			continue
		}
		if existing, ok := s.metadata[item.URI]; ok && item.Placeholder && !existing.Placeholder {
			continue
		}
		s.metadata[item.URI] = item
		applied++
	}
	ev := s.eventLocked(EventMetadataChanged)
	s.mu.Unlock()

	if applied > 0 {
		s.notify(ev)
	}
	return applied
}

// Persisted returns the subset of state that survives a restart.
func (s *Store) Persisted() core.PersistedQueue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return core.PersistedQueue{
		Tracks:        slices.Clone(s.tracks),
		TrackItems:    s.trackItemsLocked(),
		CurrentIndex:  s.currentIndex,
		Volume:        s.playback.volume,
		IsCircular:    s.circular,
		IsShuffle:     s.shuffle,
		SourceType:    s.sourceType,
		SourceID:      s.sourceID,
		ManuallyAdded: s.manualListLocked(),
	}
}

// Restore loads a persisted queue. Shuffle order, recency and pending priority start fresh.
func (s *Store) Restore(state core.PersistedQueue) {
	s.mu.Lock()
	s.shuffle = state.IsShuffle
	s.circular = state.IsCircular
	s.sourceType = state.SourceType
	if s.sourceType == "" {
		s.sourceType = core.SourceNone
	}
	s.sourceID = state.SourceID
	s.playback.volume = min(max(state.Volume, 0), 100)

	clear(s.manual)
	clear(s.metadata)
	s.setQueueLocked(state.Tracks, state.CurrentIndex)

	present := lo.SliceToMap(s.tracks, func(uri string) (string, struct{}) {
		return uri, struct{}{}
	})
	for _, uri := range state.ManuallyAdded {
		if _, ok := present[uri]; ok {
			s.manual[uri] = struct{}{}
		}
	}
	for _, item := range state.TrackItems {
		if _, ok := present[item.URI]; ok && !item.Placeholder {
			s.metadata[item.URI] = item
		}
	}
	if s.shuffle {
		s.pushRecentLocked(s.currentIndex)
	}

	events := []Event{
		s.eventLocked(EventQueueChanged),
		s.eventLocked(EventModeChanged),
		s.eventLocked(EventMetadataChanged),
	}
	s.mu.Unlock()

	s.logger.Info("Restored queue",
		zap.Int("tracks", events[0].Length),
		zap.Int("currentIndex", events[0].CurrentIndex),
		zap.Bool("shuffle", state.IsShuffle))
	s.notify(events...)
}
