// Package api is the client for the site's controller actions.
//
// Every action is a POST of a JSON object to <base>/actions/<action>. The
// server answers with a JSON object carrying success, conflict or error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/rescale/assetmover/internal/config"
	"github.com/rescale/assetmover/internal/constants"
	"github.com/rescale/assetmover/internal/http"
	"github.com/rescale/assetmover/internal/logging"
	"github.com/rescale/assetmover/internal/ratelimit"
)

// ActionClient posts a single action request. *Client implements it; the
// move engine depends on this interface so tests can swap in fakes.
type ActionClient interface {
	Post(ctx context.Context, action string, params map[string]any) (Result, error)
}

type requestIDKey struct{}

// WithRequestID returns a context whose Post calls send id as X-Request-Id
// instead of generating one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Client represents the site action client
type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string
	token      string
	csrfToken  string
	limiter    *ratelimit.Limiter // nil when rate_limit is 0
	logger     *logging.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	// Reject up front; an empty base URL otherwise surfaces as
	// "unsupported protocol scheme" on every request.
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if logger == nil {
		logger = logging.Nop()
	}

	httpClient, err := http.ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.CheckRetry = http.CheckRetry
	retryClient.Backoff = http.Backoff
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = logging.NewRetryLogger(logger)

	c := &Client{
		httpClient: retryClient,
		baseURL:    baseURL,
		token:      cfg.Token,
		csrfToken:  cfg.CSRFToken,
		logger:     logger,
	}
	if cfg.RateLimit > 0 {
		c.limiter = ratelimit.New(cfg.RateLimit, constants.RateLimitBurst, logger)
	}
	return c, nil
}

// BaseURL returns the normalized site URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends params to the named action.
//
// The returned error is non-nil only for transport failures (DNS, refused
// connection, cancelled context). Anything the server answered, including
// non-2xx statuses and HTML error pages, comes back as a Result so callers
// can treat it as a per-item outcome.
func (c *Client) Post(ctx context.Context, action string, params map[string]any) (Result, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s params: %w", action, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := c.baseURL + "/actions/" + strings.TrimPrefix(action, "/")
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Request-Id", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.csrfToken != "" {
		req.Header.Set("X-CSRF-Token", c.csrfToken)
	}

	c.logger.Debug().Str("action", action).Str("request_id", requestID).Msg("POST action")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("action", action).Str("request_id", requestID).Msg("Action request failed")
		return nil, fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	return c.decode(action, requestID, resp)
}

func (c *Client) decode(action, requestID string, resp *nethttp.Response) (Result, error) {
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	reader := io.Reader(resp.Body)
	if !ok {
		reader = io.LimitReader(resp.Body, constants.MaxErrorBodyBytes)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", action, err)
	}

	var result Result
	jsonErr := json.Unmarshal(bytes.TrimSpace(data), &result)

	if ok {
		if jsonErr != nil || result == nil {
			c.logger.Warn().Str("action", action).Str("request_id", requestID).Msg("Action returned a non-JSON body")
			return ErrorResult(fmt.Sprintf("Unexpected response from %s", action)), nil
		}
		return result, nil
	}

	c.logger.Debug().
		Str("action", action).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Msg("Action returned an error status")

	// Keep JSON bodies that already speak the outcome contract
	if jsonErr == nil && result != nil && (result.ErrorMessage() != "" || result.Conflict() != "") {
		return result, nil
	}

	msg := errorText(resp.Header.Get("Content-Type"), data)
	if msg == "" {
		msg = nethttp.StatusText(resp.StatusCode)
	}
	return ErrorResult(fmt.Sprintf("%s (HTTP %d)", msg, resp.StatusCode)), nil
}
