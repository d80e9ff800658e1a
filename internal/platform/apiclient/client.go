// Package apiclient drives a healthcare REST API from tests: session
// authentication, status-checked JSON requests and response validation.
package apiclient

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

	"github.com/hcqa/hcqa/internal/platform/harness"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultLoginPath = "/auth/login"
	UserAgent        = "HealthcareTestFramework/1.0"
)

var (
	ErrRequest     = errors.New("api request failed")
	ErrStatus      = errors.New("unexpected status")
	ErrInvalidJSON = errors.New("invalid JSON response")
	ErrAuth        = errors.New("api authentication failed")
	ErrValidation  = errors.New("response validation failed")
)

type Options struct {
	BaseURL string
	// Timeout per request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Reporter, when set, receives every failure via Fatalf.
	Reporter harness.Reporter
	Logger   zerolog.Logger
	// HTTPClient overrides the default client; Timeout is then ignored.
	HTTPClient *http.Client
}

// Response is the last HTTP exchange the client made.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client keeps one API session: base URL, default headers and bearer token.
// It is not safe for concurrent use.
type Client struct {
	http     *http.Client
	baseURL  string
	headers  http.Header
	token    string
	last     *Response
	reporter harness.Reporter
	logger   zerolog.Logger
}

// New returns a Client for opts.BaseURL.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	c := &Client{
		http:     hc,
		headers:  make(http.Header),
		reporter: opts.Reporter,
		logger:   opts.Logger,
	}
	if opts.BaseURL != "" {
		c.SetBaseURL(opts.BaseURL)
	}
	return c
}

func (c *Client) fail(err error) error {
	return harness.Fail(c.reporter, err)
}

// SetBaseURL sets the API root, trimming any trailing slash, and installs
// the default JSON headers.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
	c.headers.Set("Content-Type", "application/json")
	c.headers.Set("Accept", "application/json")
	c.headers.Set("User-Agent", UserAgent)
	c.logger.Info().Str("base_url", c.baseURL).Msg("api base URL set")
}

func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the bearer token from the last Authenticate.
func (c *Client) Token() string { return c.token }

// LastResponse returns the most recent response, or nil.
func (c *Client) LastResponse() *Response { return c.last }

// Authenticate posts username and password to endpoint (DefaultLoginPath
// when empty) and stores the returned token, read from "token" or
// "access_token", as the session's bearer token.
func (c *Client) Authenticate(ctx context.Context, username, password, endpoint string) (string, error) {
	if endpoint == "" {
		endpoint = DefaultLoginPath
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, nil, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", c.fail(fmt.Errorf("%w: %w", ErrAuth, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.fail(fmt.Errorf("%w: %w: got %d", ErrAuth, ErrStatus, resp.StatusCode))
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", c.fail(fmt.Errorf("%w: %w: %v", ErrAuth, ErrInvalidJSON, err))
	}
	token, _ := body["token"].(string)
	if token == "" {
		token, _ = body["access_token"].(string)
	}
	if token == "" {
		return "", c.fail(fmt.Errorf("%w: authentication token not found in response", ErrAuth))
	}

	c.token = token
	c.headers.Set("Authorization", "Bearer "+token)
	c.logger.Info().Msg("api authentication successful")
	return token, nil
}

// Get requests endpoint with params and decodes the JSON object body. A
// status other than expected is a failure.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, expected int) (map[string]any, error) {
	return c.call(ctx, http.MethodGet, endpoint, params, nil, expected)
}

// Post sends body as JSON to endpoint and decodes the JSON object response.
func (c *Client) Post(ctx context.Context, endpoint string, body any, expected int) (map[string]any, error) {
	return c.call(ctx, http.MethodPost, endpoint, nil, body, expected)
}

// Delete requests endpoint with DELETE. An empty response body is allowed.
func (c *Client) Delete(ctx context.Context, endpoint string, expected int) error {
	resp, err := c.do(ctx, http.MethodDelete, endpoint, nil, nil)
	if err != nil {
		return c.fail(err)
	}
	if resp.StatusCode != expected {
		return c.fail(fmt.Errorf("%w: expected status %d, got %d", ErrStatus, expected, resp.StatusCode))
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, params url.Values, body any, expected int) (map[string]any, error) {
	resp, err := c.do(ctx, method, endpoint, params, body)
	if err != nil {
		return nil, c.fail(err)
	}
	if resp.StatusCode != expected {
		return nil, c.fail(fmt.Errorf("%w: expected status %d, got %d", ErrStatus, expected, resp.StatusCode))
	}

	var data map[string]any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, c.fail(fmt.Errorf("%w from %s: %v", ErrInvalidJSON, endpoint, err))
	}

	c.logger.Info().Str("method", method).Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("api request")
	return data, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body any) (*Response, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode body: %v", ErrRequest, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequest, method, endpoint, err)
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequest, method, endpoint, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRequest, err)
	}

	c.last = &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}
	return c.last, nil
}

// Clear drops the token, headers and last response.
func (c *Client) Clear() {
	c.token = ""
	c.headers = make(http.Header)
	c.last = nil
	c.logger.Info().Msg("api session cleared")
}
