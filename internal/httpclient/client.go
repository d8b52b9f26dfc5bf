// Package httpclient is the single gateway to the catalog backend.
// It resolves paths against a configured base URL, attaches the bearer token
// of the current session and turns every failure into a NetworkError or a
// RequestError.
//
// Thread-safe for concurrent use.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skybound/skybound/internal/errors"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests if not specified.
	DefaultTimeout = 30 * time.Second

	// Default connection pool settings
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second

	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultDialTimeout           = 30 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "SkyBound"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 10 << 20

	componentName = "httpclient"
)

// TokenSource yields the bearer token of the current session, if any.
type TokenSource interface {
	Token() (string, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

func (f TokenFunc) Token() (string, bool) { return f() }

// BeforeRequestHook runs before every request is sent.
type BeforeRequestHook func(*http.Request)

// AfterResponseHook runs once the request has completed, successfully or not.
type AfterResponseHook func(req *http.Request, resp *http.Response, err error, elapsed time.Duration)

// Config holds configuration for creating a backend client.
type Config struct {
	// BaseURL is prefixed to every request path, e.g. https://host/api
	BaseURL string

	// DefaultTimeout is the timeout applied if request context has no deadline
	DefaultTimeout time.Duration

	// UserAgent is added to all requests
	UserAgent string

	// MaxIdleConns controls connection pool size (default: 100)
	MaxIdleConns int

	// MaxIdleConnsPerHost controls per-host connection pool (default: 10)
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections stay in pool (default: 90s)
	IdleConnTimeout time.Duration

	// Transport replaces the tuned default transport when set.
	Transport http.RoundTripper
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:      DefaultTimeout,
		UserAgent:           defaultUserAgent,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}
}

// transportCore is shared by a client and every token-scoped copy of it.
type transportCore struct {
	client         *http.Client
	baseURL        string
	defaultTimeout time.Duration
	userAgent      string

	hookMu        sync.RWMutex
	beforeRequest BeforeRequestHook
	afterResponse AfterResponseHook
}

// Client issues JSON and multipart requests against the backend.
type Client struct {
	core   *transportCore
	tokens TokenSource
}

// New creates a backend client. It accepts a nil cfg and never mutates the
// caller's config.
func New(cfg *Config) *Client {
	var c Config
	if cfg == nil {
		c = DefaultConfig()
	} else {
		c = *cfg
		if c.DefaultTimeout == 0 {
			c.DefaultTimeout = DefaultTimeout
		}
		if c.UserAgent == "" {
			c.UserAgent = defaultUserAgent
		}
		if c.MaxIdleConns == 0 {
			c.MaxIdleConns = defaultMaxIdleConns
		}
		if c.MaxIdleConnsPerHost == 0 {
			c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
		}
		if c.IdleConnTimeout == 0 {
			c.IdleConnTimeout = defaultIdleConnTimeout
		}
	}

	transport := c.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultDialTimeout,
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          c.MaxIdleConns,
			MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
			IdleConnTimeout:       c.IdleConnTimeout,
			TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
			ResponseHeaderTimeout: defaultResponseHeaderTimeout,
			ExpectContinueTimeout: defaultExpectContinueTimeout,
		}
	}

	return &Client{
		core: &transportCore{
			// No client-level timeout, it is applied per request via context
			client:         &http.Client{Transport: transport},
			baseURL:        strings.TrimRight(c.BaseURL, "/"),
			defaultTimeout: c.DefaultTimeout,
			userAgent:      c.UserAgent,
		},
	}
}

// WithTokens returns a client that shares the connection pool and hooks of c
// but authenticates with ts.
func (c *Client) WithTokens(ts TokenSource) *Client {
	return &Client{core: c.core, tokens: ts}
}

// BaseURL returns the base every request path is resolved against.
func (c *Client) BaseURL() string { return c.core.baseURL }

// DoJSON sends body (if non-nil) as JSON and decodes a successful response
// into out (if non-nil). An empty response body decodes to nothing.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.New(err).
				Component(componentName).
				Category(errors.CategoryValidation).
				Context("operation", "encode-json-body").
				Context("path", path).
				Build()
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(ctx, req, out)
}

// DoMultipart sends form as multipart/form-data and decodes a successful
// response into out (if non-nil).
func (c *Client) DoMultipart(ctx context.Context, method, path string, form *MultipartForm, out any) error {
	if form == nil {
		form = NewMultipartForm()
	}
	reader, contentType, err := form.encode()
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("operation", "encode-multipart-body").
			Context("path", path).
			Build()
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.send(ctx, req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target := c.core.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("operation", "build-request").
			Context("method", method).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	if c.core.userAgent != "" {
		req.Header.Set("User-Agent", c.core.userAgent)
	}
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// send executes req, reads the whole body and classifies the outcome.
func (c *Client) send(ctx context.Context, req *http.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Apply default timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.core.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.core.defaultTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	c.core.hookMu.RLock()
	beforeHook, afterHook := c.core.beforeRequest, c.core.afterResponse
	c.core.hookMu.RUnlock()

	if beforeHook != nil {
		beforeHook(req)
	}

	start := time.Now()
	resp, err := c.core.client.Do(req)
	if afterHook != nil {
		afterHook(req, resp, err, time.Since(start))
	}
	if err != nil {
		return wrapNetworkError(req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return wrapNetworkError(req, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := newRequestError(req, resp.StatusCode, resp.Header.Get("Content-Type"), data)
		return errors.New(reqErr).
			Component(componentName).
			Context("method", req.Method).
			Context("path", req.URL.Path).
			Context("status", resp.StatusCode).
			Build()
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		reqErr := newRequestError(req, resp.StatusCode, resp.Header.Get("Content-Type"), data)
		reqErr.Message = fmt.Sprintf("undecodable response body: %v", err)
		return errors.New(reqErr).
			Component(componentName).
			Context("method", req.Method).
			Context("path", req.URL.Path).
			Context("operation", "decode-response").
			Build()
	}
	return nil
}

func wrapNetworkError(req *http.Request, err error) error {
	category := errors.CategoryNetwork
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.Is(err, context.Canceled):
		category = errors.CategoryCancellation
	}
	return errors.New(&NetworkError{Method: req.Method, URL: redactURL(req.URL.String()), Err: err}).
		Component(componentName).
		Category(category).
		Context("method", req.Method).
		Context("path", req.URL.Path).
		Build()
}

// SetBeforeRequestHook sets a function to be called before each request.
// Safe to call concurrently with requests and other hook setters.
func (c *Client) SetBeforeRequestHook(fn BeforeRequestHook) {
	c.core.hookMu.Lock()
	defer c.core.hookMu.Unlock()
	c.core.beforeRequest = fn
}

// SetAfterResponseHook sets a function to be called after each request.
// Safe to call concurrently with requests and other hook setters.
func (c *Client) SetAfterResponseHook(fn AfterResponseHook) {
	c.core.hookMu.Lock()
	defer c.core.hookMu.Unlock()
	c.core.afterResponse = fn
}

// Close closes idle connections in the connection pool.
func (c *Client) Close() {
	c.core.client.CloseIdleConnections()
}

func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i] + "?[REDACTED]"
	}
	return raw
}
