package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/loykin/bpmon/internal/metrics"
)

const bodyPreviewLimit = 1000

// Config holds upstream connection settings. APIKey selects static bearer
// auth; otherwise Username/Password drive the form-login session flow.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	APIKey    string
	VerifySSL bool
	CABundle  string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client performs authenticated requests against the upstream BPM API,
// hiding session acquisition and renewal from callers.
//
// In form-login mode the server issues a CSRF token and the header name it
// must be re-sent under, plus session cookies; the client re-authenticates
// exactly once when a request comes back 401/403. In bearer mode there is
// no session machinery and every request carries the static header.
type Client struct {
	cfg    Config
	hc     *http.Client
	logger *slog.Logger

	// mu guarantees at most one concurrent login attempt per client
	// instance and guards the session fields below.
	mu             sync.Mutex
	csrfToken      string
	csrfHeaderName string
}

// New builds a Client from config. The returned client owns its connection
// pool; release it with Close.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &ConfigError{Msg: "base_url is required"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport := &http.Transport{}
	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		logger: cfg.Logger,
		hc: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			Jar:       jar,
		},
	}
	return c, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.VerifySSL && cfg.CABundle == "" {
		return nil, nil
	}
	// #nosec G402 -- verify_ssl=false is an explicit operator choice
	t := &tls.Config{InsecureSkipVerify: !cfg.VerifySSL}
	if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("read ca_bundle %s: %v", cfg.CABundle, err)}
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, &ConfigError{Msg: "ca_bundle contains no usable certificates"}
		}
		t.RootCAs = pool
		t.InsecureSkipVerify = false
	}
	return t, nil
}

// bearerMode reports whether the client uses static bearer auth.
func (c *Client) bearerMode() bool { return c.cfg.APIKey != "" }

// Authenticate performs the form login and stores the issued CSRF token,
// header name and session cookies for the lifetime of the client. In bearer
// mode it is a no-op. Callers normally rely on ensureSession instead.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.bearerMode() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

// loginLocked performs the login POST. Caller must hold mu.
func (c *Client) loginLocked(ctx context.Context) error {
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return &ConfigError{Msg: "username and password are required for form login"}
	}
	form := url.Values{}
	form.Set("j_username", c.cfg.Username)
	form.Set("j_password", c.cfg.Password)

	c.logger.Info("authenticating with form login", "base_url", c.cfg.BaseURL)
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/dologin?" + form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AuthError{Msg: fmt.Sprintf("login rejected with status %d", resp.StatusCode)}
	}

	var payload struct {
		CSRFToken      string `json:"csrfToken"`
		CSRFHeaderName string `json:"csrfHeaderName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &AuthError{Msg: "login response is not valid JSON"}
	}
	if payload.CSRFToken == "" || payload.CSRFHeaderName == "" {
		return &AuthError{Msg: "login response missing CSRF token details"}
	}
	c.csrfToken = payload.CSRFToken
	c.csrfHeaderName = payload.CSRFHeaderName
	metrics.IncLogin()
	c.logger.Info("login successful",
		"csrf_header", c.csrfHeaderName,
		"token_length", len(c.csrfToken))
	return nil
}

// ensureSession acquires a session if none is established. The login mutex
// serializes concurrent unauthenticated callers so only one login is
// issued; late arrivals observe the token set by the winner.
func (c *Client) ensureSession(ctx context.Context) error {
	if c.bearerMode() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.csrfToken != "" && c.csrfHeaderName != "" {
		return nil
	}
	return c.loginLocked(ctx)
}

// invalidateAndRelogin drops the current session and logs in again. Used on
// the single 401/403 retry path.
func (c *Client) invalidateAndRelogin(ctx context.Context) error {
	if c.bearerMode() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.csrfToken = ""
	c.csrfHeaderName = ""
	return c.loginLocked(ctx)
}

// sessionHeader returns the current session header pair, empty when none.
func (c *Client) sessionHeader() (string, string) {
	if c.bearerMode() {
		return "Authorization", "Bearer " + c.cfg.APIKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csrfHeaderName, c.csrfToken
}

// requestOptions carries the optional parts of a request. When JSON is set
// the form-encoded content-type default is suppressed. Caller headers win
// on conflict with defaults.
type requestOptions struct {
	query   url.Values
	json    any
	headers map[string]string
}

func (c *Client) buildRequest(ctx context.Context, method, path string, opt requestOptions) (*http.Request, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(opt.query) > 0 {
		u += "?" + opt.query.Encode()
	}

	var body io.Reader
	if opt.json != nil {
		buf, err := json.Marshal(opt.json)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}

	if opt.json != nil {
		req.Header.Set("Content-Type", "application/json")
	} else {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if name, value := c.sessionHeader(); name != "" && value != "" {
		req.Header.Set(name, value)
	}
	for k, v := range opt.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// request is the general call path: ensure a session, send, and on 401/403
// re-authenticate exactly once and retry exactly once. Any non-2xx status
// after that fails with UpstreamError. The response body is returned in
// full; a bounded preview is logged for diagnostics only.
func (c *Client) request(ctx context.Context, method, path string, opt requestOptions) ([]byte, error) {
	c.logger.Info("outgoing request",
		"method", method,
		"path", path,
		"payload", opt.json,
		"verify_ssl", c.cfg.VerifySSL)

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	status, body, finalURL, err := c.send(ctx, method, path, opt)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.logger.Info("session expired, re-authenticating", "status", status)
		if err := c.invalidateAndRelogin(ctx); err != nil {
			return nil, err
		}
		status, body, finalURL, err = c.send(ctx, method, path, opt)
		if err != nil {
			return nil, err
		}
	}

	c.logger.Info("upstream response",
		"status", status,
		"method", method,
		"path", path,
		"url", finalURL,
		"body_preview", preview(string(body), bodyPreviewLimit))

	if status < 200 || status >= 300 {
		return nil, &UpstreamError{Status: status, Body: string(body)}
	}
	return body, nil
}

// send performs a single request/response exchange.
func (c *Client) send(ctx context.Context, method, path string, opt requestOptions) (int, []byte, string, error) {
	req, err := c.buildRequest(ctx, method, path, opt)
	if err != nil {
		return 0, nil, "", err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, "", &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", &TransportError{Err: err}
	}
	return resp.StatusCode, body, resp.Request.URL.String(), nil
}

// Close releases pooled connection resources. Idempotent.
func (c *Client) Close() {
	c.hc.CloseIdleConnections()
}
