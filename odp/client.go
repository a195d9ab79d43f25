// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/oceandatahub/odp-go/ctxlog"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.hubocean.earth"

// DefaultUserAgent identifies this SDK in requests.
const DefaultUserAgent = "odp-go"

// Retry tuning for idempotent requests.
const (
	DefaultRetryMax     = 2 // retries after the first attempt
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 8 * time.Second
)

// A TokenProvider obtains bearer tokens for API requests. The auth
// package provides implementations.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// A Client is an HTTP client with an API endpoint and credentials.
//
// It carries the transport shared by the Catalog, Raw and Tabular
// sub-clients: bearer-token injection, bounded retry of idempotent
// requests, and mapping of response status to the typed errors in
// this package. Calls are synchronous; the Client itself holds no
// mutable request state and is safe for concurrent use.
type Client struct {
	// Base URL of the API, e.g. "https://api.hubocean.earth".
	// DefaultBaseURL is used if empty.
	BaseURL string

	// Credentials. If nil, requests are sent unauthenticated.
	TokenProvider TokenProvider

	// HTTP client used to make requests. If nil,
	// DefaultSecureClient or InsecureHTTPClient is used.
	Client *http.Client

	// Accept unverified certificates. Only effective when Client
	// is nil.
	Insecure bool

	// User-Agent header value. DefaultUserAgent is used if empty.
	UserAgent string

	// Timeout per request, including retries. Zero means rely on
	// each request's context deadline alone.
	Timeout time.Duration

	// RetryMax is the number of retries (after the first
	// attempt) for idempotent requests. Negative disables
	// retries; zero means DefaultRetryMax.
	RetryMax int

	setupOnce sync.Once
	retrying  *retryablehttp.Client // GET/HEAD
	oneshot   *retryablehttp.Client // everything else
}

// InsecureHTTPClient is the default http.Client used by a Client
// with Insecure==true and Client==nil.
var InsecureHTTPClient = &http.Client{
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true}}}

// DefaultSecureClient is the default http.Client used by a Client
// otherwise.
var DefaultSecureClient = &http.Client{}

// NewClient returns a Client for the given endpoint and credentials,
// with default timeout and retry behavior.
func NewClient(baseURL string, tp TokenProvider) *Client {
	return &Client{
		BaseURL:       baseURL,
		TokenProvider: tp,
		Timeout:       5 * time.Minute,
	}
}

// Catalog returns the catalog sub-client sharing this transport.
func (c *Client) Catalog() *CatalogClient {
	return &CatalogClient{client: c, endpoint: "/catalog"}
}

// Raw returns the raw storage sub-client sharing this transport.
func (c *Client) Raw() *RawClient {
	return &RawClient{client: c, endpoint: "/data"}
}

// Tabular returns the tabular storage sub-client sharing this
// transport.
func (c *Client) Tabular() *TabularClient {
	return &TabularClient{client: c, endpoint: "/data"}
}

func (c *Client) httpClient() *http.Client {
	switch {
	case c.Client != nil:
		return c.Client
	case c.Insecure:
		return InsecureHTTPClient
	default:
		return DefaultSecureClient
	}
}

func (c *Client) retryMax() int {
	switch {
	case c.RetryMax < 0:
		return 0
	case c.RetryMax == 0:
		return DefaultRetryMax
	default:
		return c.RetryMax
	}
}

// checkRetry retries transient network failures, throttling and
// server errors. Method idempotency is enforced by routing requests
// to either the retrying or the oneshot client, not here.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

func (c *Client) newRetryClient(retryMax int) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = c.httpClient()
	rc.Logger = nil
	rc.RetryMax = retryMax
	rc.RetryWaitMin = defaultRetryWaitMin
	rc.RetryWaitMax = defaultRetryWaitMax
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			ctxlog.FromContext(req.Context()).WithFields(map[string]interface{}{
				"method":  req.Method,
				"url":     req.URL.String(),
				"attempt": attempt + 1,
			}).Debug("retrying request")
		}
	}
	return rc
}

func (c *Client) setup() {
	c.setupOnce.Do(func() {
		c.retrying = c.newRetryClient(c.retryMax())
		c.oneshot = c.newRetryClient(0)
	})
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// Do adds the Authorization and User-Agent headers and performs the
// request, retrying idempotent methods on transient failures. A
// request that never produced a response is reported as a
// *NetworkError; a credential failure as an *AuthError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.setup()
	if c.TokenProvider != nil && req.Header.Get("Authorization") == "" {
		token, err := c.TokenProvider.Token(req.Context())
		if err != nil {
			return nil, newAuthError(req.Method, req.URL, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if req.Header.Get("User-Agent") == "" {
		ua := c.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		req.Header.Set("User-Agent", ua)
	}

	var cancel context.CancelFunc
	if c.Timeout > 0 {
		ctx := req.Context()
		ctx, cancel = context.WithDeadline(ctx, time.Now().Add(c.Timeout))
		req = req.WithContext(ctx)
	}

	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}
	rc := c.oneshot
	if idempotent(req.Method) {
		rc = c.retrying
	}
	resp, err := rc.Do(rreq)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, &NetworkError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	if cancel != nil {
		// cancel() must not run until the caller has finished
		// reading the response body.
		resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

// cancelOnClose calls a provided CancelFunc when its wrapped
// ReadCloser's Close() method is called.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (coc cancelOnClose) Close() error {
	err := coc.ReadCloser.Close()
	coc.cancel()
	return err
}

// DoAndDecode performs req and unmarshals the response (which must
// be JSON) into dst. Use this instead of RequestAndDecode if you
// need more control of the http.Request object. A non-2xx response
// is returned as the typed error for its status class.
func (c *Client) DoAndDecode(dst interface{}, req *http.Request) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newTransactionError(req, resp, buf)
	}
	if dst == nil || len(buf) == 0 {
		return nil
	}
	return json.Unmarshal(buf, dst)
}

// RequestAndDecode performs an API request and unmarshals the
// response (which must be JSON) into dst. The path is resolved
// against BaseURL. A nil body sends no payload; an io.Reader body is
// sent as application/octet-stream; any other body is JSON-encoded.
func (c *Client) RequestAndDecode(ctx context.Context, dst interface{}, method, path string, query url.Values, body interface{}) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	return c.DoAndDecode(dst, req)
}

// Request performs an API request and returns the raw response for
// streaming. A non-2xx status is mapped to a typed error and the
// body is closed; otherwise the caller must close it.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, newTransactionError(req, resp, buf)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	urlString, err := c.apiURL(path, query)
	if err != nil {
		return nil, err
	}
	var r io.Reader
	var contentType string
	switch b := body.(type) {
	case nil:
	case io.Reader:
		r = b
		contentType = "application/octet-stream"
	case []byte:
		r = bytes.NewReader(b)
		contentType = "application/octet-stream"
	default:
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(buf)
		contentType = "application/json"
	}
	req, err := http.NewRequestWithContext(ctx, method, urlString, r)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// escapePath escapes each segment of a caller-supplied path or
// reference, leaving the "/" separators of kind-qualified refs
// intact. Without this, a name containing "?", "#" or a space would
// corrupt the request URL.
func escapePath(s string) string {
	segments := strings.Split(s, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func (c *Client) apiURL(path string, query url.Values) (string, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", base)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}
