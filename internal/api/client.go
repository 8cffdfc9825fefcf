// Package api is the typed client for the Agent Mitra portal REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agentmitra/portalctl/internal/auth"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/log"
	"github.com/agentmitra/portalctl/internal/version"
)

// Prefix is prepended to every endpoint path.
const Prefix = "/api/v1"

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 30 * time.Second

// RequestObserver is told about every HTTP exchange. route is the endpoint
// pattern (e.g. "/customers/{id}"), status is 0 when no response arrived.
type RequestObserver func(method, route string, status int, elapsed time.Duration)

// Client is the portal API client. All services share one transport, one
// session store and one refresh coalescer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      auth.SessionStore
	logger     *log.Logger
	observe    RequestObserver
	userAgent  string

	refreshes singleflight.Group

	Auth      *AuthService
	Customers *CustomerService
	Users     *UserService
	Campaigns *CampaignService
	Callbacks *CallbackService
	Reports   *ReportService
	RBAC      *RBACService
	Import    *ImportService
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver registers a request observer, typically metrics.
func WithObserver(fn RequestObserver) Option {
	return func(c *Client) { c.observe = fn }
}

// New creates a client for baseURL whose tokens live in store.
func New(baseURL string, store auth.SessionStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		store:     store,
		logger:    log.DefaultLogger(),
		userAgent: version.GetInfo().UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Auth = &AuthService{c}
	c.Customers = &CustomerService{c}
	c.Users = &UserService{c}
	c.Campaigns = &CampaignService{c}
	c.Callbacks = &CallbackService{c}
	c.Reports = &ReportService{c}
	c.RBAC = &RBACService{c}
	c.Import = &ImportService{c}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Store returns the session store the client reads tokens from.
func (c *Client) Store() auth.SessionStore {
	return c.store
}

// Ping checks that the API answers its health endpoint. It sends no
// credentials and never refreshes.
func (c *Client) Ping(ctx context.Context) error {
	r := endpoint(http.MethodGet, "/health")
	r.authFlow = true
	resp, err := c.send(ctx, r, "")
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readError(resp)
	}
	drain(resp)
	return nil
}

// request describes one API call. Bodies are kept as bytes so the call can
// be replayed after a token refresh.
type request struct {
	method      string
	route       string
	path        string
	query       url.Values
	body        []byte
	contentType string
	// authFlow marks the login/refresh family: no bearer retry on 401.
	authFlow bool
}

// endpoint fills the {placeholders} of route with escaped args in order.
func endpoint(method, route string, args ...string) request {
	var b strings.Builder
	rest := route
	for _, arg := range args {
		open := strings.IndexByte(rest, '{')
		closing := strings.IndexByte(rest, '}')
		if open < 0 || closing < open {
			break
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(arg))
		rest = rest[closing+1:]
	}
	b.WriteString(rest)
	return request{method: method, route: route, path: b.String()}
}

func (r request) withJSON(v any) (request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return r, errors.Wrap(errors.ErrCodeAPIRequest, "failed to marshal request body", err)
	}
	r.body = data
	r.contentType = "application/json"
	return r, nil
}

func (r request) withQuery(q url.Values) request {
	r.query = q
	return r
}

func (c *Client) accessToken() string {
	if c.store == nil {
		return ""
	}
	s, err := c.store.Load()
	if err != nil {
		return ""
	}
	return s.AccessToken
}

// send performs a single HTTP exchange.
func (c *Client) send(ctx context.Context, r request, token string) (*http.Response, error) {
	u := c.baseURL + Prefix + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAPIRequest, "failed to create request", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if c.observe != nil {
		c.observe(r.method, r.route, status, elapsed)
	}
	c.logger.Debug("api request",
		"method", r.method,
		"path", r.path,
		"status", status,
		"duration_ms", elapsed.Milliseconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.NewUnreachableError(c.baseURL, err)
	}
	return resp, nil
}

// do sends r with the stored bearer token. A 401 from a non-auth endpoint
// triggers exactly one refresh and one retry; a second 401 clears the
// session and is surfaced.
// Any non-2xx response becomes an error and the body is closed.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	token := c.accessToken()
	resp, err := c.send(ctx, r, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !r.authFlow {
		drain(resp)
		fresh, err := c.refresh(ctx, token)
		if err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, r, fresh)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			apiErr := readError(resp)
			if clearErr := c.store.Clear(); clearErr != nil {
				c.logger.WithError(clearErr).Warn("failed to clear session after rejected retry")
			}
			return nil, errors.Wrap(errors.ErrCodeAuthInvalidToken, "request rejected after token refresh", apiErr).
				WithStatus(http.StatusUnauthorized).
				WithSuggestion("Run 'portalctl auth login' to sign in again")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := readError(resp)
		if r.authFlow && resp.StatusCode == http.StatusUnauthorized {
			return nil, errors.Wrap(errors.ErrCodeAuthLoginFailed, "authentication failed", apiErr).
				WithStatus(http.StatusUnauthorized)
		}
		return nil, apiErr
	}
	return resp, nil
}

var errNoRefreshToken = stderrors.New("no refresh token stored")

// refresh exchanges the stored refresh token for a new pair. Concurrent
// callers share one exchange. When the token in the store already differs
// from stale, someone else refreshed and that token is returned as is. On
// failure the session is cleared.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		s, err := c.store.Load()
		if err != nil {
			return "", err
		}
		if s.AccessToken != "" && s.AccessToken != stale {
			return s.AccessToken, nil
		}
		if s.RefreshToken == "" {
			return "", errNoRefreshToken
		}

		tokens, err := c.Auth.Refresh(ctx, s.RefreshToken)
		if err != nil {
			return "", err
		}
		if tokens.AccessToken == "" || tokens.RefreshToken == "" {
			return "", stderrors.New("invalid refresh token response")
		}
		if err := auth.UpdateTokens(c.store, tokens.AccessToken, tokens.RefreshToken); err != nil {
			return "", err
		}
		c.logger.Debug("access token refreshed")
		return tokens.AccessToken, nil
	})
	if err != nil {
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.WithError(clearErr).Warn("failed to clear session after refresh failure")
		}
		if stderrors.Is(err, errNoRefreshToken) {
			return "", errors.NewAuthRequiredError()
		}
		return "", errors.NewSessionExpiredError(err)
	}
	return v.(string), nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// errorBody covers the error shapes the backend produces: FastAPI's detail,
// the portal envelope's message and error.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// readError turns a non-success response into a PortalError, keeping the
// server's message verbatim.
func readError(resp *http.Response) *errors.PortalError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return errors.NewAPIError(resp.StatusCode, errorMessage(resp.StatusCode, body))
}

func errorMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if msg := detailMessage(eb.Detail); msg != "" {
			return msg
		}
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("request failed with status %d %s", status, http.StatusText(status))
	}
	if len(text) > 300 {
		text = text[:300] + "..."
	}
	return fmt.Sprintf("request failed with status %d: %s", status, text)
}

// detailMessage reads FastAPI's detail, which is a string for HTTPException
// and a list of {loc, msg} objects for request validation failures.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if len(it.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
