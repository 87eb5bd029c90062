package core

import (
	"context"
	"strings"
	"time"
)

// SourceType identifies which kind of catalog collection a queue was seeded from.
type SourceType string

const (
	// SourceNone means no collection is playing
	SourceNone SourceType = "none"
	// SourceAlbum is an album's track list
	SourceAlbum SourceType = "album"
	// SourcePlaylist is a playlist's track list
	SourcePlaylist SourceType = "playlist"
	// SourceArtist is an artist's top tracks
	SourceArtist SourceType = "artist"
	// SourceSearch is a search result set
	SourceSearch SourceType = "search"
	// SourceLiked is the user's liked songs
	SourceLiked SourceType = "liked"
)

// ParseSourceType maps a stored or user supplied value to a SourceType, defaulting to SourceNone.
func ParseSourceType(s string) SourceType {
	switch SourceType(strings.ToLower(strings.TrimSpace(s))) {
	case SourceAlbum:
		return SourceAlbum
	case SourcePlaylist:
		return SourcePlaylist
	case SourceArtist:
		return SourceArtist
	case SourceSearch:
		return SourceSearch
	case SourceLiked:
		return SourceLiked
	default:
		return SourceNone
	}
}

// TrackMetadata is the hydrated display data for one queue entry.
type TrackMetadata struct {
	URI         string        `json:"uri"`
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Artists     []string      `json:"artists"`
	Album       string        `json:"album"`
	ImageURL    string        `json:"imageUrl"`
	Duration    time.Duration `json:"durationMs"`
	Placeholder bool          `json:"placeholder"`
}

// ArtistLine joins the artist names for display.
func (t TrackMetadata) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// PlaceholderTrack builds the record used for a URI that could not be resolved.
// The ID is the last URI segment so positional alignment never depends on the catalog.
func PlaceholderTrack(uri string) TrackMetadata {
	id := uri
	if idx := strings.LastIndex(uri, ":"); idx >= 0 && idx+1 < len(uri) {
		id = uri[idx+1:]
	}
	return TrackMetadata{
		URI:         uri,
		ID:          id,
		Placeholder: true,
	}
}

// PlaybackContext describes the collection a user started playing from.
type PlaybackContext struct {
	SourceType   SourceType
	SourceID     string
	URIs         []string
	CurrentIndex int
}

// PlaybackSnapshot is what the remote device reports about its playback.
type PlaybackSnapshot struct {
	TrackURI  string
	IsPlaying bool
	Progress  time.Duration
	Duration  time.Duration
	// Volume is -1 when the device does not report one
	Volume    int
	FetchedAt time.Time
}

// Remaining returns the time left in the reported track.
func (s PlaybackSnapshot) Remaining() time.Duration {
	if s.Duration <= s.Progress {
		return 0
	}
	return s.Duration - s.Progress
}

// DeviceStatus is the reachability of the remote playback device as seen by the poller.
type DeviceStatus int

const (
	// StatusUnknown means no poll has completed yet
	StatusUnknown DeviceStatus = iota
	// StatusActive means the device answered and is playing
	StatusActive
	// StatusIdle means the device answered with no active playback
	StatusIdle
	// StatusDegraded means repeated failures reaching the device
	StatusDegraded
)

// String returns the status name.
func (s DeviceStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusIdle:
		return "idle"
	case StatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// PersistedQueue is the subset of queue state that survives a restart.
type PersistedQueue struct {
	Tracks        []string
	TrackItems    []TrackMetadata
	CurrentIndex  int
	Volume        int
	IsCircular    bool
	IsShuffle     bool
	SourceType    SourceType
	SourceID      string
	ManuallyAdded []string
}

// DefaultPersistedQueue is used when storage is empty or unreadable.
func DefaultPersistedQueue() PersistedQueue {
	return PersistedQueue{
		CurrentIndex: -1,
		Volume:       DefaultVolumePercent,
		IsCircular:   true,
		SourceType:   SourceNone,
	}
}

// CatalogClient resolves track URIs to metadata. Results may come back in any order
// and may omit URIs the catalog does not know.
type CatalogClient interface {
	LookupTracks(ctx context.Context, uris []string) ([]TrackMetadata, error)
}

// PlaybackDevice controls the remote playback device.
type PlaybackDevice interface {
	StartPlayback(ctx context.Context, uri string) error
	// PlaybackSnapshot returns nil without error when nothing is playing
	PlaybackSnapshot(ctx context.Context) (*PlaybackSnapshot, error)
	SkipNext(ctx context.Context) error
	SkipPrevious(ctx context.Context) error
}

// QueueRepository persists the queue under a fixed storage key.
type QueueRepository interface {
	Load(ctx context.Context) (*PersistedQueue, error)
	Save(ctx context.Context, state PersistedQueue) error
}

// ContextSource lists the track URIs of a catalog collection.
type ContextSource interface {
	ContextTrackURIs(ctx context.Context, sourceType SourceType, sourceID string) ([]string, error)
}
