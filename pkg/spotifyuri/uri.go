// Package spotifyuri parses Spotify URIs and open.spotify.com links.
package spotifyuri

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the resource type segment of a URI.
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
	KindArtist   Kind = "artist"
	KindLocal    Kind = "local"
)

const (
	scheme      = "spotify"
	localPrefix = "spotify:local:"
	// localParts is scheme, "local", artist, album, title and duration
	localParts = 6
)

var (
	// ErrInvalid is returned for input that is neither a URI nor a link
	ErrInvalid = errors.New("invalid spotify uri")

	idRegex = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

	spotifyHosts = map[string]bool{
		"open.spotify.com": true,
		"play.spotify.com": true,
		"spotify.com":      true,
	}

	linkKinds = map[string]Kind{
		"track":    KindTrack,
		"album":    KindAlbum,
		"playlist": KindPlaylist,
		"artist":   KindArtist,
	}
)

// URI is a parsed catalog reference.
type URI struct {
	Kind Kind
	ID   string
}

// String renders the canonical spotify:kind:id form.
func (u URI) String() string {
	return scheme + ":" + string(u.Kind) + ":" + u.ID
}

// Parse accepts a spotify:kind:id URI or an open.spotify.com link.
func Parse(raw string) (URI, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, scheme+":") {
		return parseURI(raw)
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return parseLink(raw)
	}
	return URI{}, ErrInvalid
}

func parseURI(raw string) (URI, error) {
	if strings.HasPrefix(raw, localPrefix) {
		return URI{Kind: KindLocal, ID: strings.TrimPrefix(raw, localPrefix)}, nil
	}

	parts := strings.Split(raw, ":")
	// Legacy user-scoped playlists look like spotify:user:name:playlist:id.
	if len(parts) == 5 && parts[1] == "user" && parts[3] == "playlist" {
		parts = []string{parts[0], parts[3], parts[4]}
	}
	if len(parts) != 3 {
		return URI{}, ErrInvalid
	}

	kind, ok := linkKinds[parts[1]]
	if !ok || !idRegex.MatchString(parts[2]) {
		return URI{}, ErrInvalid
	}
	return URI{Kind: kind, ID: parts[2]}, nil
}

func parseLink(raw string) (URI, error) {
	raw = strings.TrimRight(raw, ".,!?;")
	u, err := url.Parse(raw)
	if err != nil || !spotifyHosts[strings.ToLower(u.Hostname())] {
		return URI{}, ErrInvalid
	}

	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range pathParts {
		kind, ok := linkKinds[part]
		if !ok || i+1 >= len(pathParts) {
			continue
		}
		id := pathParts[i+1]
		if !idRegex.MatchString(id) {
			return URI{}, ErrInvalid
		}
		return URI{Kind: kind, ID: id}, nil
	}
	return URI{}, ErrInvalid
}

// NormalizeTrack returns the canonical track URI for a track URI, local URI or track link.
func NormalizeTrack(raw string) (string, error) {
	parsed, err := Parse(raw)
	if err != nil {
		return "", err
	}
	switch parsed.Kind {
	case KindTrack:
		return parsed.String(), nil
	case KindLocal:
		return strings.TrimSpace(raw), nil
	default:
		return "", ErrInvalid
	}
}

// TrackURI builds a track URI from a catalog id.
func TrackURI(id string) string {
	return URI{Kind: KindTrack, ID: id}.String()
}

// IsLocal reports whether uri refers to a file on the user's machine.
func IsLocal(uri string) bool {
	return strings.HasPrefix(uri, localPrefix)
}

// LocalTrack is the metadata encoded inside a local file URI.
type LocalTrack struct {
	Artist   string
	Album    string
	Title    string
	Duration time.Duration
}

// ParseLocal decodes spotify:local:artist:album:title:seconds.
func ParseLocal(uri string) (LocalTrack, error) {
	if !IsLocal(uri) {
		return LocalTrack{}, ErrInvalid
	}
	parts := strings.Split(uri, ":")
	if len(parts) != localParts {
		return LocalTrack{}, ErrInvalid
	}

	decode := func(s string) string {
		v, err := url.QueryUnescape(s)
		if err != nil {
			return s
		}
		return v
	}

	track := LocalTrack{
		Artist: decode(parts[2]),
		Album:  decode(parts[3]),
		Title:  decode(parts[4]),
	}
	if secs, err := strconv.Atoi(parts[5]); err == nil && secs > 0 {
		track.Duration = time.Duration(secs) * time.Second
	}
	return track, nil
}
