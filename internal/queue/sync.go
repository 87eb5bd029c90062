package queue

import (
	"time"

	"statisfy/internal/core"
)

// ApplyPlayback merges a device snapshot into the now-playing surface. Snapshots fetched
// before the last applied one are ignored; it returns false for those.
func (s *Store) ApplyPlayback(snap core.PlaybackSnapshot) bool {
	s.mu.Lock()
	if !snap.FetchedAt.IsZero() && snap.FetchedAt.Before(s.playback.fetchedAt) {
		s.mu.Unlock()
		return false
	}

	volumeChanged := snap.Volume >= 0 && snap.Volume != s.playback.volume
	s.playback.trackURI = snap.TrackURI
	s.playback.isPlaying = snap.IsPlaying
	s.playback.progress = snap.Progress
	s.playback.duration = snap.Duration
	if snap.Volume >= 0 {
		s.playback.volume = min(snap.Volume, 100)
	}
	s.playback.fetchedAt = snap.FetchedAt

	events := []Event{s.eventLocked(EventPlaybackChanged)}
	if volumeChanged {
		events = append(events, s.eventLocked(EventVolumeChanged))
	}
	s.mu.Unlock()

	s.notify(events...)
	return true
}

// ClearPlayback records that the device has no active playback. The last track URI is
// kept for display.
func (s *Store) ClearPlayback(fetchedAt time.Time) bool {
	s.mu.Lock()
	if !fetchedAt.IsZero() && fetchedAt.Before(s.playback.fetchedAt) {
		s.mu.Unlock()
		return false
	}
	changed := s.playback.isPlaying || s.playback.progress != 0
	s.playback.isPlaying = false
	s.playback.progress = 0
	s.playback.fetchedAt = fetchedAt
	ev := s.eventLocked(EventPlaybackChanged)
	s.mu.Unlock()

	if changed {
		s.notify(ev)
	}
	return true
}

// SetStatus publishes the device status. Repeating the current status is a no-op.
func (s *Store) SetStatus(status core.DeviceStatus, message string) {
	s.mu.Lock()
	if s.status == status && s.statusMessage == message {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.statusMessage = message
	ev := s.eventLocked(EventStatusChanged)
	s.mu.Unlock()

	s.notify(ev)
}
