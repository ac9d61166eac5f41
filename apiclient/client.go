// Package apiclient is the portal's single HTTP client for the institute backend. It attaches the
// stored bearer token to every request and recovers from an expired access token with one
// refresh-and-retry cycle per request.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jrsteele09/academy-portal/credentials"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 10 << 20
	refreshFlightKey = "refresh"
)

var malformedTail = regexp.MustCompile(`/:\d+$`)

// NormalizePath rewrites caller paths ending in "/:<digits>" (an unfilled route parameter)
// to end in "/".
func NormalizePath(path string) string {
	return malformedTail.ReplaceAllString(path, "/")
}

type Client struct {
	baseURL string
	http    *http.Client
	store   credentials.Store

	refreshes singleflight.Group

	// generation changes whenever the stored session is replaced or cleared. A refresh only
	// persists its token when the generation it started in is still current.
	genMu      sync.Mutex
	generation uint64

	hooksMu      sync.RWMutex
	sessionEnded []func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the transport timeout applied to every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

func New(baseURL string, store credentials.Store, opts ...Option) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSessionEnded registers fn to run after the stored tokens were cleared because the session
// could not be refreshed.
func (c *Client) OnSessionEnded(fn func()) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.sessionEnded = append(c.sessionEnded, fn)
}

// InvalidateSession makes every refresh already in flight stale: the access token it obtains is
// dropped and its caller fails with ErrSessionEnded. Call it before clearing or replacing the
// stored tokens.
func (c *Client) InvalidateSession() {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.generation++
}

func (c *Client) sessionGeneration() uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.generation
}

func (c *Client) fireSessionEnded() {
	c.hooksMu.RLock()
	hooks := append([]func(){}, c.sessionEnded...)
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("[apiclient JSON] %w: %v", perrors.ErrMalformedResponse, err)
	}
	return nil
}

type request struct {
	method  string
	path    string
	body    []byte
	query   url.Values
	header  http.Header
	timeout time.Duration
	noAuth  bool
	retried bool
}

type RequestOption func(*request)

func WithQuery(q url.Values) RequestOption {
	return func(r *request) {
		r.query = q
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		r.header.Set(key, value)
	}
}

// WithRequestTimeout bounds this request, including a refresh and retry.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(r *request) {
		r.timeout = d
	}
}

// WithoutAuth sends the request without a bearer token and disables the refresh cycle.
func WithoutAuth() RequestOption {
	return func(r *request) {
		r.noAuth = true
	}
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// GetJSON fetches path and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, path string, v any, opts ...RequestOption) error {
	resp, err := c.Get(ctx, path, opts...)
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

// Do sends one request. A 401 triggers at most one refresh-and-retry; every other failure is
// returned to the caller unchanged. Non-2xx responses are returned as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	req := &request{
		method: method,
		path:   NormalizePath(path),
		header: make(http.Header),
	}
	if body != nil {
		encoded, err := encodeBody(body)
		if err != nil {
			return nil, fmt.Errorf("[apiclient Do] %s %s: encode body: %w", method, req.path, err)
		}
		req.body = encoded
	}
	for _, opt := range opts {
		opt(req)
	}
	if req.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.timeout)
		defer cancel()
	}

	resp, sentToken, err := c.send(ctx, req, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.noAuth && !req.retried {
		req.retried = true
		original := c.apiError(req, resp)

		token, err := c.refreshAfter(ctx, sentToken)
		if err != nil {
			return nil, fmt.Errorf("[apiclient Do] %w: %w", err, original)
		}
		resp, _, err = c.send(ctx, req, token)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, c.apiError(req, resp)
	}
	return resp, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(body)
	}
}

func (c *Client) apiError(req *request, resp *Response) *APIError {
	return &APIError{Method: req.method, Path: req.path, StatusCode: resp.StatusCode, Body: resp.Body}
}

// send issues req once. When token is empty the stored access token is used. It returns the
// token that was attached so a 401 can be matched against the current stored token.
func (c *Client) send(ctx context.Context, req *request, token string) (*Response, string, error) {
	target := c.baseURL + strings.TrimLeft(req.path, "/")
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, "", fmt.Errorf("[apiclient send] %s %s: %w", req.method, req.path, err)
	}

	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Pragma", "no-cache")
	httpReq.Header.Set("Expires", "0")
	if req.body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := middleware.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set(HeaderRequestID, requestID)

	if !req.noAuth {
		if token == "" {
			tok, err := credentials.LoadToken(ctx, c.store)
			if err != nil {
				return nil, "", fmt.Errorf("[apiclient send] %w", err)
			}
			if tok != nil {
				token = tok.AccessToken
			}
		}
		if token != "" {
			(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
		}
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		log.Debug().Err(err).Str("method", req.method).Str("path", req.path).Str("request_id", requestID).Msg("backend request failed")
		return nil, token, fmt.Errorf("[apiclient send] %s %s: %w: %w", req.method, req.path, perrors.ErrTransport, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, token, fmt.Errorf("[apiclient send] %s %s: read body: %w: %w", req.method, req.path, perrors.ErrTransport, err)
	}

	log.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", httpResp.StatusCode).
		Bool("authenticated", token != "").
		Bool("retry", req.retried).
		Str("request_id", requestID).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")

	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, token, nil
}
