package core

import (
	"testing"
	"time"
)

func TestParseSourceType(t *testing.T) {
	tests := []struct {
		input    string
		expected SourceType
	}{
		{"album", SourceAlbum},
		{"Playlist", SourcePlaylist},
		{" artist ", SourceArtist},
		{"search", SourceSearch},
		{"liked", SourceLiked},
		{"none", SourceNone},
		{"", SourceNone},
		{"podcast", SourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseSourceType(tt.input); got != tt.expected {
				t.Errorf("ParseSourceType(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPlaceholderTrack(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		expectedID string
	}{
		{"track uri", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{"local uri", "spotify:local:Artist:Album:Title:180", "180"},
		{"no separator", "abc", "abc"},
		{"trailing colon", "spotify:track:", "spotify:track:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PlaceholderTrack(tt.uri)
			if p.ID != tt.expectedID {
				t.Errorf("ID = %q, expected %q", p.ID, tt.expectedID)
			}
			if p.URI != tt.uri {
				t.Errorf("URI = %q, expected %q", p.URI, tt.uri)
			}
			if !p.Placeholder {
				t.Error("Expected placeholder flag to be set")
			}
			if p.Name != "" || len(p.Artists) != 0 {
				t.Error("Expected empty metadata on placeholder")
			}
		})
	}
}

func TestTrackMetadataArtistLine(t *testing.T) {
	track := TrackMetadata{Artists: []string{"Daft Punk", "Pharrell Williams"}}
	if got := track.ArtistLine(); got != "Daft Punk, Pharrell Williams" {
		t.Errorf("ArtistLine() = %q", got)
	}
}

func TestPlaybackSnapshotRemaining(t *testing.T) {
	s := PlaybackSnapshot{Progress: 30 * time.Second, Duration: 3 * time.Minute}
	if got := s.Remaining(); got != 150*time.Second {
		t.Errorf("Remaining() = %v, expected %v", got, 150*time.Second)
	}

	s.Progress = 4 * time.Minute
	if got := s.Remaining(); got != 0 {
		t.Errorf("Remaining() past the end = %v, expected 0", got)
	}
}

func TestDefaultPersistedQueue(t *testing.T) {
	q := DefaultPersistedQueue()

	if q.CurrentIndex != -1 {
		t.Errorf("CurrentIndex = %d, expected -1", q.CurrentIndex)
	}
	if !q.IsCircular {
		t.Error("Expected circular to default to true")
	}
	if q.IsShuffle {
		t.Error("Expected shuffle to default to false")
	}
	if q.SourceType != SourceNone {
		t.Errorf("SourceType = %v, expected %v", q.SourceType, SourceNone)
	}
	if len(q.Tracks) != 0 {
		t.Errorf("Expected no tracks, got %d", len(q.Tracks))
	}
}

func TestDeviceStatusString(t *testing.T) {
	tests := map[DeviceStatus]string{
		StatusUnknown:    "unknown",
		StatusActive:     "active",
		StatusIdle:       "idle",
		StatusDegraded:   "degraded",
		DeviceStatus(42): "unknown",
	}
	for status, expected := range tests {
		if got := status.String(); got != expected {
			t.Errorf("DeviceStatus(%d).String() = %q, expected %q", int(status), got, expected)
		}
	}
}
