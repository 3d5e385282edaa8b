// Package rocketchat is the REST and push-stream client for a Rocket.Chat server.
package rocketchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/roomsync/internal/logging"
)

const apiPrefix = "/api/v1"

// APIError represents a failed API call: a non-2xx response or a 2xx
// response whose body reports success=false.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("rocketchat: %s (%d): %s", e.Code, e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("rocketchat: %s (%d)", e.Code, e.StatusCode)
	case e.Message != "":
		return fmt.Sprintf("rocketchat (%d): %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("rocketchat (%d)", e.StatusCode)
	}
}

// IsAPIError extracts an *APIError from err.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// envelope holds the status fields every response may carry.
type envelope struct {
	Success   *bool  `json:"success"`
	Status    string `json:"status"`
	Error     any    `json:"error"`
	ErrorType string `json:"errorType"`
	Message   any    `json:"message"`
}

func (e envelope) failed() bool {
	if e.Success != nil && !*e.Success {
		return true
	}
	return e.Status == "error"
}

func (e envelope) apiError(status int) *APIError {
	apiErr := &APIError{StatusCode: status, Code: e.ErrorType}
	if msg, ok := e.Error.(string); ok && msg != "" {
		apiErr.Message = msg
	} else if msg, ok := e.Message.(string); ok {
		apiErr.Message = msg
	}
	return apiErr
}

// Options configures a Client.
type Options struct {
	BaseURL string
	UserID  string
	Token   string

	// Timeout bounds each REST request. Zero uses 20s.
	Timeout time.Duration

	// HTTPClient overrides the default client. Its Timeout is left unchanged.
	HTTPClient *http.Client
}

// Client talks to the Rocket.Chat REST API and opens push streams.
type Client struct {
	baseURL    string
	userID     string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a client. Credentials may be empty for Login.
func NewClient(opts Options) (*Client, error) {
	normalized, err := NormalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    normalized,
		userID:     opts.UserID,
		token:      opts.Token,
		httpClient: httpClient,
		logger:     logging.Component("rocketchat"),
	}, nil
}

// NormalizeBaseURL normalizes a server URL and ensures it has a scheme.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("server url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("server url must include scheme (https://)")
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("server url must include a host")
	}
	return strings.TrimRight(value, "/"), nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UserID returns the authenticated user id.
func (c *Client) UserID() string {
	return c.userID
}

// WithCredentials returns a copy of the client using the given session.
func (c *Client) WithCredentials(userID, token string) *Client {
	clone := *c
	clone.userID = userID
	clone.token = token
	return &clone
}

func (c *Client) authHeaders(h http.Header) {
	if c.token != "" {
		h.Set("X-Auth-Token", c.token)
	}
	if c.userID != "" {
		h.Set("X-User-Id", c.userID)
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, respBody any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, respBody)
}

func (c *Client) post(ctx context.Context, path string, reqBody any, respBody any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, reqBody, respBody)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, respBody any) error {
	endpoint, err := c.buildURL(path, query)
	if err != nil {
		return err
	}

	var (
		body    io.Reader
		reqData []byte
	)
	if reqBody != nil {
		reqData, err = json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(reqData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authHeaders(req.Header)

	if e := c.logger.Trace(); e.Enabled() {
		e.Str("method", method).
			Str("url", logging.Redact(endpoint)).
			Interface("headers", logging.RedactHeaders(req.Header)).
			Interface("body", redactedBody(reqData)).
			Msg("api request")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("api call")

	var env envelope
	envErr := json.Unmarshal(respData, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if envErr == nil {
			apiErr := env.apiError(resp.StatusCode)
			if apiErr.Message == "" && apiErr.Code == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
			return apiErr
		}
		return &APIError{StatusCode: resp.StatusCode, Message: logging.Redact(strings.TrimSpace(string(respData)))}
	}
	if envErr == nil && env.failed() {
		return env.apiError(resp.StatusCode)
	}

	if respBody == nil || len(respData) == 0 {
		return nil
	}
	if err := json.Unmarshal(respData, respBody); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// redactedBody decodes a JSON object request body for logging with its
// sensitive fields masked.
func redactedBody(data []byte) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	return logging.RedactMap(fields)
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	endpoint, err := url.Parse(c.baseURL + apiPrefix + path)
	if err != nil {
		return "", err
	}
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}

// resolveURL makes a server-relative link absolute.
func (c *Client) resolveURL(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return c.baseURL + link
}
