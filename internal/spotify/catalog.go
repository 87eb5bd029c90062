package spotify

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"statisfy/internal/core"
	"statisfy/pkg/spotifyuri"
)

// marketFromToken lets the API pick the market of the authenticated user.
const marketFromToken = "from_token"

// LookupTracks resolves track URIs in batches the API accepts. Unknown tracks and URIs that
// are not catalog tracks are omitted from the result.
func (c *Client) LookupTracks(ctx context.Context, uris []string) ([]core.TrackMetadata, error) {
	if c.client == nil {
		return nil, ErrNotAuthenticated
	}

	ids := lo.FilterMap(uris, func(uri string, _ int) (spotify.ID, bool) {
		parsed, err := spotifyuri.Parse(uri)
		if err != nil || parsed.Kind != spotifyuri.KindTrack {
			return "", false
		}
		return spotify.ID(parsed.ID), true
	})

	tracks := make([]core.TrackMetadata, 0, len(ids))
	for _, batch := range lo.Chunk(ids, MaxTracksPerRequest) {
		found, err := c.client.GetTracks(ctx, batch, c.marketOptions()...)
		if err != nil {
			return nil, fmt.Errorf("failed to get tracks: %w", err)
		}
		for _, track := range found {
			if track == nil {
				continue
			}
			tracks = append(tracks, convertTrack(track))
		}
	}

	c.logger.Debug("Looked up tracks",
		zap.Int("requested", len(uris)),
		zap.Int("found", len(tracks)))
	return tracks, nil
}

// ContextTrackURIs lists the track URIs of an album, playlist, artist or the liked songs.
func (c *Client) ContextTrackURIs(ctx context.Context, sourceType core.SourceType, sourceID string) ([]string, error) {
	if c.client == nil {
		return nil, ErrNotAuthenticated
	}

	var (
		uris []string
		err  error
	)
	switch sourceType {
	case core.SourceAlbum:
		uris, err = c.albumTrackURIs(ctx, spotify.ID(sourceID))
	case core.SourcePlaylist:
		uris, err = c.playlistTrackURIs(ctx, spotify.ID(sourceID))
	case core.SourceArtist:
		uris, err = c.artistTopTrackURIs(ctx, spotify.ID(sourceID))
	case core.SourceLiked:
		uris, err = c.likedTrackURIs(ctx)
	default:
		return nil, fmt.Errorf("unsupported context type %q", sourceType)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("Retrieved context tracks",
		zap.String("sourceType", string(sourceType)),
		zap.String("sourceID", sourceID),
		zap.Int("count", len(uris)))
	return uris, nil
}

func (c *Client) albumTrackURIs(ctx context.Context, id spotify.ID) ([]string, error) {
	var uris []string
	offset := 0
	for {
		page, err := c.client.GetAlbumTracks(ctx, id,
			append(c.marketOptions(), spotify.Limit(PageSize), spotify.Offset(offset))...)
		if err != nil {
			return nil, fmt.Errorf("failed to get album tracks: %w", err)
		}
		for i := range page.Tracks {
			uris = append(uris, string(page.Tracks[i].URI))
		}
		if len(page.Tracks) < PageSize {
			return uris, nil
		}
		offset += PageSize
	}
}

func (c *Client) playlistTrackURIs(ctx context.Context, id spotify.ID) ([]string, error) {
	var uris []string
	offset := 0
	for {
		page, err := c.client.GetPlaylistItems(ctx, id,
			append(c.marketOptions(), spotify.Limit(PageSize), spotify.Offset(offset))...)
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items: %w", err)
		}
		for i := range page.Items {
			// Only tracks, not episodes or removed items
			if track := page.Items[i].Track.Track; track != nil && track.URI != "" {
				uris = append(uris, string(track.URI))
			}
		}
		if len(page.Items) < PageSize {
			return uris, nil
		}
		offset += PageSize
	}
}

func (c *Client) artistTopTrackURIs(ctx context.Context, id spotify.ID) ([]string, error) {
	country := c.config.Market
	if country == "" {
		country = marketFromToken
	}
	tracks, err := c.client.GetArtistsTopTracks(ctx, id, country)
	if err != nil {
		return nil, fmt.Errorf("failed to get artist top tracks: %w", err)
	}
	return lo.Map(tracks, func(track spotify.FullTrack, _ int) string {
		return string(track.URI)
	}), nil
}

func (c *Client) likedTrackURIs(ctx context.Context) ([]string, error) {
	var uris []string
	offset := 0
	for {
		page, err := c.client.CurrentUsersTracks(ctx, spotify.Limit(PageSize), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get liked tracks: %w", err)
		}
		for i := range page.Tracks {
			uris = append(uris, string(page.Tracks[i].URI))
		}
		if len(page.Tracks) < PageSize {
			return uris, nil
		}
		offset += PageSize
	}
}

func (c *Client) marketOptions() []spotify.RequestOption {
	if c.config.Market == "" {
		return nil
	}
	return []spotify.RequestOption{spotify.Market(c.config.Market)}
}

func convertTrack(track *spotify.FullTrack) core.TrackMetadata {
	artists := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	var image string
	if len(track.Album.Images) > 0 {
		image = track.Album.Images[0].URL
	}

	return core.TrackMetadata{
		URI:      string(track.URI),
		ID:       string(track.ID),
		Name:     track.Name,
		Artists:  artists,
		Album:    track.Album.Name,
		ImageURL: image,
		Duration: time.Duration(track.Duration) * time.Millisecond,
	}
}
