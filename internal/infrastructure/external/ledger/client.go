// Package ledger implements the XP ledger API client. The ledger is the
// external system of record for experience points and skill levels; this
// client reads skill levels for reward multipliers and credits XP after
// completions.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/craftquest/challenge-engine/pkg/circuitbreaker"
	"github.com/craftquest/challenge-engine/pkg/logger"
	"github.com/craftquest/challenge-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the ledger client.
type ClientConfig struct {
	// BaseURL is the ledger API base URL.
	BaseURL string

	// APIKey authenticates this service to the ledger.
	APIKey string

	// Timeout is the HTTP request timeout.
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
		Timeout:           10 * time.Second,
		RequestsPerSecond: 20,
		Burst:             5,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the XP ledger API client. It satisfies both the command-side
// XPLedger port and the query-side SkillLevelProvider port.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	logger     *logger.Logger
}

// NewClient creates a new ledger client.
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

	log := config.Logger.With(logger.Component("ledger_client"))

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		breaker: circuitbreaker.LedgerBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
		retrier: retry.LedgerRetrier(),
		logger:  log,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// skillLevelResponse is the ledger's skill level payload.
type skillLevelResponse struct {
	UserID     string `json:"user_id"`
	SkillLevel int    `json:"skill_level"`
}

// SkillLevel returns the ledger-derived skill level for a user. Callers are
// expected to degrade gracefully on error; skill level influences reward
// multipliers and progression readiness, never correctness.
func (c *Client) SkillLevel(ctx context.Context, userID string) (int, error) {
	path := fmt.Sprintf("/v1/users/%s/skill-level", url.PathEscape(userID))

	var resp skillLevelResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		return 0, fmt.Errorf("get skill level for %s: %w", userID, err)
	}

	return resp.SkillLevel, nil
}

// creditRequest is the XP credit payload.
type creditRequest struct {
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// CreditXP credits experience points to a user's ledger account. The reason
// string carries the challenge reference so the ledger can deduplicate.
func (c *Client) CreditXP(ctx context.Context, userID string, amount int, reason string) error {
	if amount <= 0 {
		return nil
	}

	body := creditRequest{
		UserID: userID,
		Amount: amount,
		Reason: reason,
	}

	err := c.do(ctx, http.MethodPost, "/v1/credits", body, nil)
	if err != nil {
		return fmt.Errorf("credit %d xp to %s: %w", amount, userID, err)
	}

	c.logger.Info("xp credited",
		logger.UserID(userID),
		logger.XPAmount(amount),
		logger.String("reason", reason),
	)
	return nil
}

// Healthy reports whether the ledger API is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil) == nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// do performs an HTTP request through the rate limiter, circuit breaker and
// retrier. 4xx responses are permanent; 5xx and transport errors retry.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
			return c.doSingle(ctx, method, path, body, result)
		})
	})
}

func (c *Client) doSingle(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal body: %w", err))
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.Retryable(fmt.Errorf("ledger rate limit exceeded"))
	case resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("ledger server error: status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("ledger rejected request: status %d: %s", resp.StatusCode, string(respBody)))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
	}

	return nil
}
