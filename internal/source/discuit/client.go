package discuit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"discuit_search/internal/domain"
)

// ErrUnavailable is returned once every attempt to reach the API failed.
var ErrUnavailable = errors.New("discuit api unavailable")

// Config holds Discuit API client configuration.
type Config struct {
	BaseURL  string
	Feed     string
	Sort     string
	PageSize int
	Timeout  time.Duration
	// RateLimit is the request rate in requests per second; zero disables it.
	RateLimit      float64
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client lists posts from the Discuit API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	feed           string
	sort           string
	pageSize       int
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.Feed == "" {
		cfg.Feed = "all"
	}
	if cfg.Sort == "" {
		cfg.Sort = "latest"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		feed:           cfg.Feed,
		sort:           cfg.Sort,
		pageSize:       cfg.PageSize,
		limiter:        limiter,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", "discuit"),
	}
}

// ListPosts fetches one page of posts starting at the next cursor (empty for
// the first page). limit is capped by the configured page size. The returned
// cursor is empty on the last page.
func (c *Client) ListPosts(ctx context.Context, next string, limit int) ([]domain.Post, string, error) {
	if limit <= 0 || limit > c.pageSize {
		limit = c.pageSize
	}

	query := url.Values{}
	query.Set("feed", c.feed)
	query.Set("sort", c.sort)
	query.Set("limit", strconv.Itoa(limit))
	if next != "" {
		query.Set("next", next)
	}

	resp, err := c.fetchPage(ctx, c.baseURL+"/posts?"+query.Encode())
	if err != nil {
		return nil, "", err
	}

	var cursor string
	if resp.Next != nil {
		cursor = *resp.Next
	}

	c.logger.Debug("fetched posts", "count", len(resp.Posts), "next", cursor)

	return resp.Posts, cursor, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.code)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var de *decodeError
	return !errors.As(err, &de)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// fetchPage retries network failures, 429 and 5xx responses with
// exponential backoff. Any failure to reach the API is reported as
// ErrUnavailable; an undecodable body is not.
func (c *Client) fetchPage(ctx context.Context, url string) (*PostsResponse, error) {
	var resp *PostsResponse
	var err error

	attempt := 1
	for ; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err = c.doRequest(ctx, url)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) || attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	var de *decodeError
	if errors.As(err, &de) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: after %d attempts: %w", ErrUnavailable, min(attempt, c.maxAttempts), err)
}

func (c *Client) doRequest(ctx context.Context, url string) (*PostsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "discuit-search/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	var postsResp PostsResponse
	if err := json.NewDecoder(resp.Body).Decode(&postsResp); err != nil {
		return nil, &decodeError{err: err}
	}

	return &postsResp, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}
