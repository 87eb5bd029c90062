// Package spotify adapts the Spotify Web API to the catalog, device and context contracts
// the queue core depends on.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"statisfy/internal/core"
)

const (
	// FilePermission is the permission for token files
	FilePermission = 0600
	// MaxTracksPerRequest is the Web API limit for several-tracks lookups
	MaxTracksPerRequest = 50
	// PageSize is used when walking paginated collections
	PageSize = 50

	authState = "statisfy-auth-state"
)

// ErrNotAuthenticated is returned by calls made before Authenticate succeeded.
var ErrNotAuthenticated = errors.New("client not authenticated")

type Client struct {
	config *core.SpotifyConfig
	logger *zap.Logger
	client *spotify.Client
	auth   *spotifyauth.Authenticator
	// input is read for a pasted authorization code
	input io.Reader
}

type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopeUserLibraryRead,
			spotifyauth.ScopeUserModifyPlaybackState,
			spotifyauth.ScopeUserReadCurrentlyPlaying,
			spotifyauth.ScopeUserReadPlaybackState,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	return &Client{
		config: config,
		logger: logger.Named("spotify"),
		auth:   auth,
		input:  os.Stdin,
	}
}

// NewClientWithAPI wraps an already configured API client.
func NewClientWithAPI(config *core.SpotifyConfig, logger *zap.Logger, api *spotify.Client) *Client {
	c := NewClient(config, logger)
	c.client = api
	return c
}

func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.loadToken()
	if err != nil {
		c.logger.Info("No saved token found, starting OAuth flow")
		return c.startOAuthFlow(ctx)
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn("Saved token invalid, starting OAuth flow", zap.Error(err))
		return c.startOAuthFlow(ctx)
	}

	c.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	return nil
}

// SaveToken writes the current, possibly refreshed, token back to disk.
func (c *Client) SaveToken() error {
	if c.client == nil {
		return ErrNotAuthenticated
	}
	token, err := c.client.Token()
	if err != nil {
		return fmt.Errorf("failed to read current token: %w", err)
	}
	if err := c.saveToken(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (c *Client) startOAuthFlow(ctx context.Context) error {
	authURL := c.auth.AuthURL(authState)

	addr := listenAddr(c.config.RedirectURL, c.config.CallbackAddr)
	var ln net.Listener
	if addr != "" {
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			c.logger.Warn("Failed to listen for the authorization redirect, paste the code instead",
				zap.String("addr", addr),
				zap.Error(err))
		}
	}

	fmt.Printf("Please visit the following URL to authorize the application:\n%s\n", authURL)
	fmt.Print("Waiting for the redirect, or paste the authorization code or redirect URL: ")

	code, err := awaitCode(ctx, ln, c.input, authState, c.logger)
	if err != nil {
		return fmt.Errorf("failed to receive authorization code: %w", err)
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := c.saveToken(token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	c.logger.Info("OAuth flow completed successfully", zap.String("user", user.DisplayName))
	return nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	file, err := os.Open(c.config.TokenPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, err
	}
	if tokenData.Token == nil {
		return nil, errors.New("token file has no token")
	}

	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.config.TokenPath, data, FilePermission)
}
