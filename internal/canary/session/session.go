// Package session owns the Canary login handshake and the credentials
// attached to every authenticated request.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/canaryhome/canary-go/internal/canary"
	"github.com/canaryhome/canary-go/internal/provider/resilience"
	"github.com/canaryhome/canary-go/internal/telemetry"
)

const (
	// DefaultBaseURL is the Canary web API host.
	DefaultBaseURL = "https://my.canary.is"

	// ProviderName names the transport's circuit breaker.
	ProviderName = "canary"

	LoginPagePath = "/login"
	LoginAPIPath  = "/api/auth/login"
)

// Wire names the service expects. They must not change.
const (
	CookieXSRFToken  = "XSRF-TOKEN"
	CookieSsesyranac = "ssesyranac"

	HeaderXSRFToken     = "X-XSRF-TOKEN"
	HeaderAuthorization = "Authorization"
)

// maxBodySize caps how much of a login response is read.
const maxBodySize = 1 << 20

// Config holds configuration for the session manager.
type Config struct {
	// Username is the account email (required).
	Username string

	// Password is the account password (required).
	Password string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Timeout applies to every HTTP call (default: 10s).
	// Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient resilience.HTTPDoer

	// CircuitBreaker puts a breaker in front of the built-in client. If nil,
	// every call is sent. Ignored when HTTPClient is set.
	CircuitBreaker *resilience.CircuitBreakerConfig

	// Logger for session events. Zero value logs nothing.
	Logger zerolog.Logger
}

// State is the credential material produced by a successful login.
type State struct {
	XSRFToken   string
	BearerToken string

	// IssuedAt is when the login completed.
	IssuedAt time.Time

	// ExpiresAt is the bearer token's exp claim when the token is a JWT,
	// zero otherwise. It is informational: expiry is detected from 4xx responses.
	ExpiresAt time.Time
}

// Manager performs the login handshake and authenticated GETs.
//
// The mutex only keeps reads and commits of the state race-free. Concurrent
// callers that all hit an expired session will each log in again.
type Manager struct {
	username   string
	password   string
	baseURL    string
	httpClient resilience.HTTPDoer
	logger     zerolog.Logger
	inst       *telemetry.Instruments
	now        func() time.Time

	mu    sync.RWMutex
	state *State
}

// New creates a session manager. No request is made until Login or Get.
func New(cfg Config) (*Manager, error) {
	if cfg.Username == "" {
		return nil, errors.New("username is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("password is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientConfig := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			clientConfig.Timeout = cfg.Timeout
		}
		clientConfig.CircuitBreaker = cfg.CircuitBreaker
		httpClient = resilience.NewClient(clientConfig)
	}

	inst, err := telemetry.NewInstruments()
	if err != nil {
		return nil, fmt.Errorf("creating instruments: %w", err)
	}

	return &Manager{
		username:   cfg.Username,
		password:   cfg.Password,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
		inst:       inst,
		now:        time.Now,
	}, nil
}

// Username returns the account the manager logs in as.
func (m *Manager) Username() string {
	return m.username
}

// State returns a copy of the current credentials and whether a login has succeeded.
func (m *Manager) State() (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return State{}, false
	}
	return *m.state, true
}

// Authenticated reports whether a login has succeeded.
func (m *Manager) Authenticated() bool {
	_, ok := m.State()
	return ok
}

// Login runs the handshake and replaces the held credentials.
// On failure the previous credentials are kept untouched.
func (m *Manager) Login(ctx context.Context) (State, error) {
	ctx, span := m.inst.Tracer.Start(ctx, "canary.login", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	state, err := m.login(ctx)
	m.inst.RecordLogin(ctx, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return State{}, err
	}

	m.mu.Lock()
	m.state = &state
	m.mu.Unlock()

	ev := m.logger.Debug().Str("username", m.username)
	if !state.ExpiresAt.IsZero() {
		ev = ev.Time("expires_at", state.ExpiresAt)
	}
	ev.Msg("canary session established")

	return state, nil
}

func (m *Manager) login(ctx context.Context) (State, error) {
	xsrf, sid, err := m.fetchLoginCookies(ctx)
	if err != nil {
		return State{}, err
	}

	form := url.Values{
		"username": {m.username},
		"password": {m.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+LoginAPIPath, strings.NewReader(form.Encode()))
	if err != nil {
		return State{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderXSRFToken, xsrf)
	req.AddCookie(&http.Cookie{Name: CookieXSRFToken, Value: xsrf})
	req.AddCookie(&http.Cookie{Name: CookieSsesyranac, Value: sid})

	resp, err := m.send(req)
	if err != nil {
		return State{}, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return State{}, &canary.AuthError{Status: resp.StatusCode, Reason: "login rejected"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return State{}, &canary.ConnectionError{Op: opName(req), Err: err}
	}

	token := gjson.GetBytes(body, "access_token")
	if token.Type != gjson.String || token.Str == "" {
		return State{}, &canary.AuthError{Reason: "malformed login response"}
	}

	return State{
		XSRFToken:   xsrf,
		BearerToken: token.Str,
		IssuedAt:    m.now(),
		ExpiresAt:   tokenExpiry(token.Str),
	}, nil
}

// fetchLoginCookies loads the login page for the XSRF token and the
// session identifier cookie.
func (m *Manager) fetchLoginCookies(ctx context.Context) (xsrf, sid string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+LoginPagePath, http.NoBody)
	if err != nil {
		return "", "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := m.send(req)
	if err != nil {
		return "", "", err
	}
	drain(resp)

	if !isSuccess(resp.StatusCode) {
		return "", "", &canary.AuthError{Status: resp.StatusCode, Reason: "login page unavailable"}
	}

	for _, c := range resp.Cookies() {
		switch c.Name {
		case CookieXSRFToken:
			xsrf = c.Value
		case CookieSsesyranac:
			sid = c.Value
		}
	}
	if xsrf == "" {
		return "", "", &canary.AuthError{Reason: "login page did not set " + CookieXSRFToken + " cookie"}
	}
	if sid == "" {
		return "", "", &canary.AuthError{Reason: "login page did not set " + CookieSsesyranac + " cookie"}
	}
	return xsrf, sid, nil
}

// Get issues an authenticated GET for path. Caller headers, cookies and query
// are sent along with the session credentials, which take precedence.
//
// A 4xx response is taken as an expired session: the manager logs in again and
// repeats the request exactly once, returning that second response whatever
// its status. If the re-login fails its error is returned instead of the 4xx.
// A manager that has never logged in logs in before the first request.
func (m *Manager) Get(ctx context.Context, path string, query url.Values, headers http.Header, cookies []*http.Cookie) (*http.Response, error) {
	ctx, span := m.inst.Tracer.Start(ctx, "canary.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.path", path)),
	)
	defer span.End()

	state, ok := m.State()
	if !ok {
		var err error
		if state, err = m.Login(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "login failed")
			return nil, err
		}
	}

	resp, err := m.get(ctx, state, path, query, headers, cookies)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	if !isClientError(resp.StatusCode) {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		return resp, nil
	}

	status := resp.StatusCode
	drain(resp)

	m.logger.Debug().
		Str("path", path).
		Int("status", status).
		Msg("canary session rejected, logging in again")
	m.inst.RecordReauth(ctx, status)
	span.SetAttributes(attribute.Bool("canary.reauth", true))

	state, err = m.Login(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "re-login failed")
		return nil, err
	}

	resp, err = m.get(ctx, state, path, query, headers, cookies)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (m *Manager) get(ctx context.Context, state State, path string, query url.Values, headers http.Header, cookies []*http.Cookie) (*http.Response, error) {
	u := m.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set(HeaderXSRFToken, state.XSRFToken)
	req.Header.Set(HeaderAuthorization, "Bearer "+state.BearerToken)

	for _, c := range cookies {
		if c.Name == CookieXSRFToken || c.Name == CookieSsesyranac {
			continue
		}
		req.AddCookie(c)
	}
	req.AddCookie(&http.Cookie{Name: CookieXSRFToken, Value: state.XSRFToken})
	req.AddCookie(&http.Cookie{Name: CookieSsesyranac, Value: "token=" + state.BearerToken})

	return m.send(req)
}

// send executes one HTTP exchange, recording its duration. Transport failures,
// including an open circuit breaker, come back as *canary.ConnectionError.
func (m *Manager) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := m.httpClient.Do(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	m.inst.RecordRequest(req.Context(), req.Method, req.URL.Path, status, elapsed)

	if err != nil {
		return nil, &canary.ConnectionError{Op: opName(req), Err: err}
	}

	m.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", status).
		Dur("duration", elapsed).
		Msg("canary request completed")

	return resp, nil
}

// tokenExpiry reads the exp claim of a JWT bearer token without verifying it.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func opName(req *http.Request) string {
	return req.Method + " " + req.URL.Path
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	resp.Body.Close()
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// isClientError matches the 4xx class, the only expiry signal the service gives.
func isClientError(status int) bool {
	return status >= 400 && status < 500
}
