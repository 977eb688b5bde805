// Package transport is the HTTP client for the patch server.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/patchmatrix/internal/submission"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxAttempts is one: patch submissions are not idempotent.
	DefaultMaxAttempts = 1
	// DefaultRetryWait is the initial backoff when retries are enabled.
	DefaultRetryWait = time.Second

	maxErrorBody = 64 << 10
)

// Logger matches logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Config holds Client settings. Zero values fall back to defaults.
type Config struct {
	BaseURL     string
	HTTPClient  *http.Client
	Timeout     time.Duration
	MaxAttempts int
	RetryWait   time.Duration
	Logger      Logger

	// BeforeRequest runs on every outgoing request (auth headers, etc.).
	BeforeRequest func(req *http.Request)
}

// Client posts payloads to the patch server.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	maxAttempts   int
	retryWait     time.Duration
	logger        Logger
	beforeRequest func(req *http.Request)
	newRequestID  func() string
}

// NewClient validates cfg and returns a client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("transport: base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("transport: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("transport: base url %q must be http or https", base)
	}
	c := &Client{
		baseURL:       base,
		httpClient:    cfg.HTTPClient,
		maxAttempts:   cfg.MaxAttempts,
		retryWait:     cfg.RetryWait,
		logger:        cfg.Logger,
		beforeRequest: cfg.BeforeRequest,
		newRequestID:  func() string { return uuid.NewString() },
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.retryWait <= 0 {
		c.retryWait = DefaultRetryWait
	}
	if c.logger == nil {
		c.logger = nopLogger{}
	}
	return c, nil
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitPatch posts payload to /patch/{patchID} and decodes the version the
// server assigned.
func (c *Client) SubmitPatch(ctx context.Context, patchID string, payload submission.Payload) (submission.Result, error) {
	patchID = strings.TrimSpace(patchID)
	if patchID == "" {
		return submission.Result{}, fmt.Errorf("transport: patch id is required")
	}
	if payload == nil {
		payload = submission.Payload{}
	}
	var result submission.Result
	if err := c.post(ctx, "/patch/"+url.PathEscape(patchID), payload, &result); err != nil {
		return submission.Result{}, err
	}
	if strings.TrimSpace(result.Version) == "" {
		return submission.Result{}, fmt.Errorf("transport: response from /patch/%s has no version", patchID)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: marshal request body: %w", err)
	}
	requestID := c.newRequestID()

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("transport: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", requestID)
		if c.beforeRequest != nil {
			c.beforeRequest(req)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("transport: POST %s: %w", path, err)
			if attempt < c.maxAttempts-1 && ctx.Err() == nil {
				if waitErr := c.wait(ctx, c.retryWait<<attempt); waitErr != nil {
					return waitErr
				}
				continue
			}
			return lastErr
		}

		if retryable(resp.StatusCode) && attempt < c.maxAttempts-1 {
			wait := retryAfter(resp, c.retryWait<<attempt)
			closeBody(resp)
			c.logger.Printf("transport: POST %s returned %d, retrying in %s", path, resp.StatusCode, wait)
			if waitErr := c.wait(ctx, wait); waitErr != nil {
				return waitErr
			}
			continue
		}

		err = c.handleResponse(resp, path, requestID, result)
		closeBody(resp)
		return err
	}
	return lastErr
}

func (c *Client) handleResponse(resp *http.Response, path, requestID string, result any) error {
	if resp.StatusCode >= 400 {
		return parseError(resp, path, requestID)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("transport: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// closeBody drains what the decoder left unread so the connection can go
// back to the pool.
func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func parseError(resp *http.Response, path, requestID string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Endpoint:   path,
		RequestID:  requestID,
		Body:       string(raw),
	}
	if id := resp.Header.Get("X-Request-Id"); id != "" {
		apiErr.RequestID = id
	}
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &errResp) == nil {
		if errResp.Message != "" {
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = errResp.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if value := resp.Header.Get("Retry-After"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
