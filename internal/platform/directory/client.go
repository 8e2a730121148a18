// Package directory queries the platform bridge for identities, channels and
// channel moderators.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodial-tipbot/internal/config"
)

// ErrDirectoryUnavailable is returned when the bridge cannot be reached or answers
// with an unexpected status
var ErrDirectoryUnavailable = errors.New("directory unavailable")

// Client is an HTTP client for the bridge directory endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a directory client
func NewClient(logger *slog.Logger, cfg *config.DirectoryConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type moderatorsResponse struct {
	Moderators []string `json:"moderators"`
}

// IdentityExists reports whether the platform knows the identity
func (c *Client) IdentityExists(ctx context.Context, identity string) (bool, error) {
	return c.exists(ctx, "/users/"+url.PathEscape(identity))
}

// ChannelExists reports whether the platform knows the channel
func (c *Client) ChannelExists(ctx context.Context, channel string) (bool, error) {
	return c.exists(ctx, "/channels/"+url.PathEscape(channel))
}

// IsModerator reports whether identity moderates channel. An unknown channel has no
// moderators.
func (c *Client) IsModerator(ctx context.Context, identity, channel string) (bool, error) {
	resp, err := c.get(ctx, "/channels/"+url.PathEscape(channel)+"/moderators")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, c.unexpected(resp)
	}

	var body moderatorsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode moderators response: %w", err)
	}
	for _, m := range body.Moderators {
		if strings.EqualFold(m, identity) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) exists(ctx context.Context, path string) (bool, error) {
	resp, err := c.get(ctx, path)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, c.unexpected(resp)
	}
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Directory request failed", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return resp, nil
}

func (c *Client) unexpected(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	c.logger.Error("Directory returned unexpected status",
		"path", resp.Request.URL.Path,
		"status", resp.StatusCode,
		"body", string(body),
	)
	return fmt.Errorf("%w: status %d", ErrDirectoryUnavailable, resp.StatusCode)
}
