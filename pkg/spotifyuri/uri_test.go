package spotifyuri

import (
	"errors"
	"testing"
	"time"
)

const trackID = "4uLU6hMCjMI75M1A2tKUQC"

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected URI
		wantErr  bool
	}{
		{"track uri", "spotify:track:" + trackID, URI{KindTrack, trackID}, false},
		{"album uri", "spotify:album:" + trackID, URI{KindAlbum, trackID}, false},
		{"legacy playlist uri", "spotify:user:someone:playlist:" + trackID, URI{KindPlaylist, trackID}, false},
		{"local uri", "spotify:local:A:B:C:120", URI{KindLocal, "A:B:C:120"}, false},
		{"track link", "https://open.spotify.com/track/" + trackID + "?si=abc", URI{KindTrack, trackID}, false},
		{"localized link", "https://open.spotify.com/intl-de/track/" + trackID, URI{KindTrack, trackID}, false},
		{"playlist link with punctuation", "https://open.spotify.com/playlist/" + trackID + ".", URI{KindPlaylist, trackID}, false},
		{"episode uri", "spotify:episode:" + trackID, URI{}, true},
		{"short id", "spotify:track:abc", URI{}, true},
		{"other host", "https://youtube.com/track/" + trackID, URI{}, true},
		{"free text", "some song", URI{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("Parse(%q) error = %v, expected ErrInvalid", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %+v, expected %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeTrack(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"https://open.spotify.com/track/" + trackID, "spotify:track:" + trackID, false},
		{" spotify:track:" + trackID + " ", "spotify:track:" + trackID, false},
		{"spotify:local:A:B:C:120", "spotify:local:A:B:C:120", false},
		{"spotify:album:" + trackID, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeTrack(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeTrack(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("NormalizeTrack(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseLocal(t *testing.T) {
	track, err := ParseLocal("spotify:local:Daft+Punk:Discovery:One+More+Time:320")
	if err != nil {
		t.Fatalf("ParseLocal() error = %v", err)
	}
	expected := LocalTrack{Artist: "Daft Punk", Album: "Discovery", Title: "One More Time", Duration: 320 * time.Second}
	if track != expected {
		t.Errorf("ParseLocal() = %+v, expected %+v", track, expected)
	}

	if _, err := ParseLocal("spotify:local:only:three"); err == nil {
		t.Error("ParseLocal() should reject malformed local URIs")
	}
	if _, err := ParseLocal("spotify:track:" + trackID); err == nil {
		t.Error("ParseLocal() should reject catalog URIs")
	}
}

func TestTrackURIAndIsLocal(t *testing.T) {
	if got := TrackURI(trackID); got != "spotify:track:"+trackID {
		t.Errorf("TrackURI() = %q", got)
	}
	if !IsLocal("spotify:local:a:b:c:1") || IsLocal("spotify:track:"+trackID) {
		t.Error("IsLocal() misclassified a URI")
	}
}
