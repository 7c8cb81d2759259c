// Package fedi is a small client for the Mastodon-compatible REST API. It
// covers only what an ebooks bot needs: reading an account's statuses and
// mentions, and publishing new statuses and replies.
package fedi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxPageSize is the largest page Mastodon serves for account statuses.
const maxPageSize = 40

// Client talks to a single instance on behalf of a single access token.
type Client struct {
	baseURL    *url.URL
	token      string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
// Default: a client with a 30 second timeout
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit sets how many requests per second may be sent, with the given burst.
// Default: 1 request per second, burst 5
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger. By default, all logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the instance at baseURL, authenticating with token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid instance url '%s': %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid instance url '%s': scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		token:      token,
		userAgent:  "echolalia",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 5),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// VerifyCredentials returns the account that owns the access token.
func (c *Client) VerifyCredentials(ctx context.Context) (Account, error) {
	var account Account
	err := c.do(ctx, http.MethodGet, "/api/v1/accounts/verify_credentials", nil, nil, nil, &account)
	return account, err
}

// LookupAccount resolves an account by its webfinger address (user or user@domain).
func (c *Client) LookupAccount(ctx context.Context, acct string) (Account, error) {
	var account Account
	query := url.Values{"acct": {strings.TrimPrefix(acct, "@")}}
	err := c.do(ctx, http.MethodGet, "/api/v1/accounts/lookup", query, nil, nil, &account)
	return account, err
}

// Page selects a window of a paginated timeline. Empty ids are omitted.
// MinID returns the results immediately newer than it, which is how a
// timeline is read forward; SinceID returns the newest results after it.
type Page struct {
	MaxID   string
	SinceID string
	MinID   string
	Limit   int
}

func (p Page) query() url.Values {
	limit := p.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if p.MaxID != "" {
		query.Set("max_id", p.MaxID)
	}
	if p.SinceID != "" {
		query.Set("since_id", p.SinceID)
	}
	if p.MinID != "" {
		query.Set("min_id", p.MinID)
	}
	return query
}

// AccountStatuses returns one page of an account's statuses, newest first.
func (c *Client) AccountStatuses(ctx context.Context, accountID string, page Page) ([]Status, error) {
	var statuses []Status
	path := "/api/v1/accounts/" + url.PathEscape(accountID) + "/statuses"
	if err := c.do(ctx, http.MethodGet, path, page.query(), nil, nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// StatusesSince reads an account's statuses newer than sinceID, oldest
// first, paging forward for at most maxPages pages (0 means no limit). An
// empty sinceID starts from the account's first status. When the page limit
// cuts the read short, the result is still the contiguous run right after
// sinceID, so calling again with the last returned id picks up the rest.
func (c *Client) StatusesSince(ctx context.Context, accountID, sinceID string, maxPages int) ([]Status, error) {
	minID := sinceID
	if minID == "" {
		minID = "0"
	}

	var all []Status
	for page := 0; maxPages == 0 || page < maxPages; page++ {
		statuses, err := c.AccountStatuses(ctx, accountID, Page{MinID: minID, Limit: maxPageSize})
		if err != nil {
			return nil, err
		}
		if len(statuses) == 0 {
			break
		}
		reverse(statuses)
		all = append(all, statuses...)
		minID = statuses[len(statuses)-1].ID
	}

	c.logger.DebugContext(ctx, "Statuses fetched",
		slog.String("account_id", accountID),
		slog.String("since_id", sinceID),
		slog.Int("statuses", len(all)),
	)
	return all, nil
}

// Notifications returns one page of notifications of the given types
// (all types when empty), oldest first. With a sinceID the page is the one
// right after it; without one it is the newest page.
func (c *Client) Notifications(ctx context.Context, sinceID string, types ...string) ([]Notification, error) {
	query := Page{MinID: sinceID, Limit: maxPageSize}.query()
	for _, t := range types {
		query.Add("types[]", t)
	}

	var notifications []Notification
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications", query, nil, nil, &notifications); err != nil {
		return nil, err
	}
	reverse(notifications)
	return notifications, nil
}

// reverse turns a newest-first page into an oldest-first one.
func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

// PostStatus publishes a new status. Each call carries a fresh idempotency
// key, so a retried request cannot double-post.
func (c *Client) PostStatus(ctx context.Context, req StatusRequest) (Status, error) {
	if strings.TrimSpace(req.Status) == "" {
		return Status{}, errors.New("fedi: status text must not be empty")
	}
	headers := http.Header{"Idempotency-Key": {uuid.NewString()}}

	var status Status
	err := c.do(ctx, http.MethodPost, "/api/v1/statuses", nil, headers, req, &status)
	if err != nil {
		return Status{}, err
	}
	c.logger.InfoContext(ctx, "Status posted",
		slog.String("status_id", status.ID),
		slog.String("visibility", status.Visibility),
	)
	return status, nil
}

// do performs a rate-limited JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers http.Header, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *c.baseURL
	u.Path = u.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode %s %s response: %w", method, path, err)
	}
	return nil
}
