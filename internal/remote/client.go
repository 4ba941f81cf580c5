package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valentindosimont/keyquery/internal/metrics"
)

// Endpoint paths relative to the configured base URL
const (
	SubscriptionPath = "/v1/dashboard/billing/subscription"
	UsagePath        = "/v1/dashboard/billing/usage"
	TokenLogPath     = "/api/log/token"
)

// maxBodyBytes caps how much of a response is read
const maxBodyBytes = 32 << 20

// Error is returned for any transport-level failure: the request could not be
// sent, the status was not 2xx, or the body could not be decoded.
type Error struct {
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError describes a non-2xx response
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Unauthorized reports whether the backend rejected the token
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// Client is a thin GET-only wrapper around the billing and log backends
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Client. A zero timeout leaves the transport unbounded.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Get issues a GET to path with the given query, optionally bearer-authenticated,
// and decodes a JSON body into out.
func (c *Client) Get(ctx context.Context, endpoint, path string, query url.Values, bearer string, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &Error{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveRemoteDuration(endpoint, time.Since(start))
	if err != nil {
		metrics.CountRemoteRequest(endpoint, "network_error")
		return &Error{Endpoint: endpoint, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.CountRemoteRequest(endpoint, statusLabel(resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Endpoint: endpoint, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("remote call rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return &Error{Endpoint: endpoint, Err: &StatusError{Code: resp.StatusCode}}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Debug("remote call ok",
		zap.String("endpoint", endpoint),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "auth"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// IsUnauthorized reports whether err carries a 401/403 from the backend
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Unauthorized()
}
