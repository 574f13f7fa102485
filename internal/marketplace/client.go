package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Endpoint paths relative to the marketplace base URL.
const (
	loginPath     = "/account/gotoLogin.action"
	inventoryPath = "/foliofn/tradingInventory.action"
	snapshotPath  = "/foliofn/browseNotesAj.action"
	notePagePath  = "/foliofn/loanPerf.action"
	loanPagePath  = "/browse/loanDetail.action"
)

// Markers present on pages served to a logged-out session.
const (
	noteLoginMarker = "Only Lending Club investors can sign up as trading members"
	loanLoginMarker = "This information is only accessible once you register as an Investor"
)

// ErrAuth means login failed or the session could not be re-established.
// Fatal to the current pass; nothing partial is trusted after it.
var ErrAuth = errors.New("marketplace: unable to authenticate")

// SiteError represents a non-2xx response from the marketplace.
type SiteError struct {
	StatusCode int
	URL        string
}

func (e *SiteError) Error() string {
	return fmt.Sprintf("marketplace error %d fetching %s", e.StatusCode, e.URL)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *SiteError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// Client is the authenticated marketplace client.
type Client struct {
	baseURL  string
	email    string
	password string

	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter

	maxRetries   int
	retryBackoff time.Duration
	pageSize     int

	parser     DocumentParser
	profiles   ProfileParser
	transforms *Transforms
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a marketplace client with a fresh cookie session.
func NewClient(baseURL, email, password string, opts ...ClientOption) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transforms, err := NewTransforms()
	if err != nil {
		return nil, fmt.Errorf("build transform registry: %w", err)
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		logger:       slog.Default(),
		limiter:      rate.NewLimiter(rate.Every(2500*time.Millisecond), 1),
		maxRetries:   3,
		retryBackoff: time.Second,
		pageSize:     1000,
		transforms:   transforms,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetries sets the snapshot retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithPacing sets the mandatory delay between page fetches.
func WithPacing(delay time.Duration) ClientOption {
	return func(c *Client) {
		if delay > 0 {
			c.limiter = rate.NewLimiter(rate.Every(delay), 1)
		}
	}
}

// WithPageSize sets the snapshot page size.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithDocumentParser sets the note page parser.
func WithDocumentParser(p DocumentParser) ClientOption {
	return func(c *Client) {
		c.parser = p
	}
}

// WithProfileParser sets the loan page parser.
func WithProfileParser(p ProfileParser) ClientOption {
	return func(c *Client) {
		c.profiles = p
	}
}

// WithHTTPClient sets a custom HTTP client. The client's cookie jar is
// preserved if the replacement has none.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc.Jar == nil {
			hc.Jar = c.httpClient.Jar
		}
		c.httpClient = hc
	}
}

// signIn posts the login form and refreshes the session cookies.
func (c *Client) signIn(ctx context.Context) error {
	form := url.Values{
		"login_email":    {c.email},
		"login_password": {c.password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post login form: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: login returned %d", ErrAuth, resp.StatusCode)
	}

	c.logger.Debug("logged in", "email", c.email)
	return nil
}

// get fetches a URL within the current session.
func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &SiteError{StatusCode: resp.StatusCode, URL: fullURL}
	}

	return body, nil
}

// fetchPage fetches a URL behind the rate limiter, re-logging-in once if
// the response carries the logged-out marker.
func (c *Client) fetchPage(ctx context.Context, fullURL, loginMarker string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(string(body), loginMarker) {
		return body, nil
	}

	if err := c.signIn(ctx); err != nil {
		return nil, err
	}
	body, err = c.get(ctx, fullURL)
	if err != nil {
		return nil, err
	}
	if strings.Contains(string(body), loginMarker) {
		return nil, ErrAuth
	}
	return body, nil
}
