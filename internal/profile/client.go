// Package profile implements the client for the profile service. The core
// never owns profile records; it reads them to compute initial scores and
// to expand candidate ids into display data.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	svcErr "github.com/zhanbolat/datecore/internal/errors"
	"github.com/zhanbolat/datecore/pkg/retry"
)

// Profile is the profile-service view this core consumes.
type Profile struct {
	UserID    uint64   `json:"user_id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Age       int      `json:"age"`
	Gender    string   `json:"gender"`
	City      string   `json:"city"`
	Bio       string   `json:"bio"`
	PhotoIDs  []string `json:"photo_ids"`
}

// Provider is the read-only profile lookup the core depends on.
type Provider interface {
	GetProfile(ctx context.Context, userID uint64) (*Profile, error)
	GetManyProfiles(ctx context.Context, userIDs []uint64) ([]Profile, error)
}

// ClientConfig contains configuration for the profile-service client.
type ClientConfig struct {
	// BaseURL is the profile service base URL.
	BaseURL string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Retry bounds the automatic retries on transport/5xx failures.
	Retry retry.Config

	// Logger for structured logging.
	Logger *slog.Logger
}

// Client is the HTTP implementation of Provider.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

// GetProfile fetches one profile by telegram user id.
// 404 maps to ErrNotFound without retries; transport errors and 5xx
// responses are retried with backoff and surface as ErrUpstreamUnavailable.
func (c *Client) GetProfile(ctx context.Context, userID uint64) (*Profile, error) {
	url := fmt.Sprintf("%s/api/v1/profiles/telegram/%d", c.cfg.BaseURL, userID)

	var p Profile
	err := retry.Do(ctx, c.cfg.Retry, func() error {
		return c.getJSON(ctx, url, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetManyProfiles fetches a batch of profiles by id, preserving whatever
// order the profile service returns.
func (c *Client) GetManyProfiles(ctx context.Context, userIDs []uint64) ([]Profile, error) {
	if len(userIDs) == 0 {
		return []Profile{}, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = strconv.FormatUint(id, 10)
	}
	url := fmt.Sprintf("%s/api/v1/profiles?ids=%s", c.cfg.BaseURL, strings.Join(ids, ","))

	var profiles []Profile
	err := retry.Do(ctx, c.cfg.Retry, func() error {
		return c.getJSON(ctx, url, &profiles)
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("profile service request failed", "url", url, "err", err)
		return fmt.Errorf("%w: %v", svcErr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent(svcErr.ErrNotFound)
	case resp.StatusCode >= 500:
		c.logger.Warn("profile service error", "url", url, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", svcErr.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return retry.Permanent(fmt.Errorf("profile service returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", svcErr.ErrUpstreamUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode profile response: %w", err))
	}
	return nil
}
