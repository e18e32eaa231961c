// Package linkpreview implements the evidence link resolver. Submissions
// reference externally-hosted proof of work; this client asks the preview
// service for display metadata (platform, title, thumbnail). Resolution is
// best effort: callers fall back to the bare URL when it fails.
package linkpreview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/pkg/circuitbreaker"
	"github.com/craftquest/challenge-engine/pkg/logger"
	"github.com/craftquest/challenge-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the link preview client.
type ClientConfig struct {
	// BaseURL is the preview service base URL.
	BaseURL string

	// Timeout is the HTTP request timeout. Kept short: link resolution sits
	// on the submission path and must not stall it.
	Timeout time.Duration

	// RequestsPerSecond bounds outgoing request rate.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size.
	Burst int

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           3 * time.Second,
		RequestsPerSecond: 50,
		Burst:             10,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the preview service client. It satisfies the command-side
// LinkResolver port.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	logger     *logger.Logger
}

// NewClient creates a new link preview client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultClientConfig(config.BaseURL).Timeout
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultClientConfig(config.BaseURL).RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = DefaultClientConfig(config.BaseURL).Burst
	}

	log := config.Logger.With(logger.Component("linkpreview_client"))

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		breaker: circuitbreaker.LinkResolverBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
		retrier: retry.LinkResolverRetrier(),
		logger:  log,
	}
}

// previewResponse is the preview service payload.
type previewResponse struct {
	Platform       string `json:"platform"`
	Title          string `json:"title"`
	Thumbnail      string `json:"thumbnail"`
	DurationOrSize string `json:"duration_or_size"`
}

// Resolve fetches preview metadata for an evidence URL. The returned link
// always carries the original URL; the metadata fields may be empty if the
// service has no preview for the platform.
func (c *Client) Resolve(ctx context.Context, rawURL string) (participation.EvidenceLink, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return participation.EvidenceLink{}, fmt.Errorf("invalid evidence url: %w", err)
	}

	var resp previewResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
			return c.fetch(ctx, rawURL, &resp)
		})
	})
	if err != nil {
		return participation.EvidenceLink{}, err
	}

	return participation.EvidenceLink{
		URL:            rawURL,
		Platform:       resp.Platform,
		Title:          resp.Title,
		Thumbnail:      resp.Thumbnail,
		DurationOrSize: resp.DurationOrSize,
	}, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string, result *previewResponse) error {
	endpoint := c.config.BaseURL + "/v1/preview?url=" + url.QueryEscape(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("preview service error: status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("preview rejected: status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return retry.Permanent(fmt.Errorf("unmarshal preview: %w", err))
	}

	return nil
}
