package spotify

import (
	"context"
	"fmt"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"statisfy/internal/core"
)

// StartPlayback plays uri on the active device.
func (c *Client) StartPlayback(ctx context.Context, uri string) error {
	if c.client == nil {
		return ErrNotAuthenticated
	}

	err := c.client.PlayOpt(ctx, &spotify.PlayOptions{URIs: []spotify.URI{spotify.URI(uri)}})
	if err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	c.logger.Debug("Started playback", zap.String("trackURI", uri))
	return nil
}

// PlaybackSnapshot reports what the device is playing, or nil when nothing is.
func (c *Client) PlaybackSnapshot(ctx context.Context) (*core.PlaybackSnapshot, error) {
	if c.client == nil {
		return nil, ErrNotAuthenticated
	}

	fetchedAt := time.Now()
	state, err := c.client.PlayerState(ctx, c.marketOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to get player state: %w", err)
	}
	return convertPlayerState(state, fetchedAt), nil
}

// SkipNext asks the device to skip forward.
func (c *Client) SkipNext(ctx context.Context) error {
	if c.client == nil {
		return ErrNotAuthenticated
	}
	if err := c.client.Next(ctx); err != nil {
		return fmt.Errorf("failed to skip to next track: %w", err)
	}
	return nil
}

// SkipPrevious asks the device to skip back.
func (c *Client) SkipPrevious(ctx context.Context) error {
	if c.client == nil {
		return ErrNotAuthenticated
	}
	if err := c.client.Previous(ctx); err != nil {
		return fmt.Errorf("failed to skip to previous track: %w", err)
	}
	return nil
}

func convertPlayerState(state *spotify.PlayerState, fetchedAt time.Time) *core.PlaybackSnapshot {
	if state == nil || state.Item == nil {
		return nil
	}

	volume := -1
	if state.Device.ID != "" {
		volume = int(state.Device.Volume)
	}

	return &core.PlaybackSnapshot{
		TrackURI:  string(state.Item.URI),
		IsPlaying: state.Playing,
		Progress:  time.Duration(state.Progress) * time.Millisecond,
		Duration:  time.Duration(state.Item.Duration) * time.Millisecond,
		Volume:    volume,
		FetchedAt: fetchedAt,
	}
}
