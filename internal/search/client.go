// Package search talks to the Meilisearch index that serves post search.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"discuit_search/internal/domain"
)

var (
	// ErrTaskFailed means the index accepted a write but could not apply it.
	ErrTaskFailed = errors.New("index task failed")
	// ErrTaskTimeout means a task did not finish within the allowed time.
	ErrTaskTimeout = errors.New("index task timed out")
)

const primaryKey = "id"

// Config holds Meilisearch connection settings.
type Config struct {
	URL          string
	APIKey       string
	Index        string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client is scoped to one index.
type Client struct {
	service      meilisearch.ServiceManager
	index        meilisearch.IndexManager
	pollInterval time.Duration
	logger       *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	service := meilisearch.New(
		strings.TrimRight(cfg.URL, "/"),
		meilisearch.WithAPIKey(cfg.APIKey),
		meilisearch.WithCustomClient(&http.Client{Timeout: cfg.Timeout}),
	)
	return &Client{
		service:      service,
		index:        service.Index(cfg.Index),
		pollInterval: cfg.PollInterval,
		logger:       logger.With("index", cfg.Index),
	}
}

// APIError is an error response returned by Meilisearch.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Type       string
	err        error
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("meilisearch: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("meilisearch: %s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.err }

// wrapError turns an SDK error carrying an HTTP status into an APIError.
func wrapError(err error) error {
	var merr *meilisearch.Error
	if !errors.As(err, &merr) || merr.StatusCode == 0 {
		return err
	}
	apiErr := &APIError{
		StatusCode: merr.StatusCode,
		Message:    merr.MeilisearchApiError.Message,
		Code:       merr.MeilisearchApiError.Code,
		Type:       merr.MeilisearchApiError.Type,
		err:        err,
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(merr.StatusCode)
	}
	return apiErr
}

func toTask(info *meilisearch.TaskInfo, err error) (domain.Task, error) {
	if err != nil {
		return domain.Task{}, wrapError(err)
	}
	return domain.Task{UID: info.TaskUID, Status: string(info.Status)}, nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.service.HealthWithContext(ctx)
	return wrapError(err)
}

// UpdateSettings replaces the index settings listed in s.
func (c *Client) UpdateSettings(ctx context.Context, s Settings) (domain.Task, error) {
	return toTask(c.index.UpdateSettingsWithContext(ctx, s.toSDK()))
}

// AddDocuments adds posts or fully replaces the documents with the same id.
func (c *Client) AddDocuments(ctx context.Context, posts []domain.Post) (domain.Task, error) {
	return toTask(c.index.AddDocumentsWithContext(ctx, posts, primaryKey))
}

// DeleteDocuments removes documents by id.
func (c *Client) DeleteDocuments(ctx context.Context, ids []string) (domain.Task, error) {
	return toTask(c.index.DeleteDocumentsWithContext(ctx, ids))
}

// GetDocuments returns one page of documents restricted to fields. Bytes is
// the size of the page re-encoded as JSON.
func (c *Client) GetDocuments(ctx context.Context, fields []string, limit, offset int) (*domain.DocumentPage, error) {
	var res meilisearch.DocumentsResult
	query := &meilisearch.DocumentsQuery{
		Fields: fields,
		Limit:  int64(limit),
		Offset: int64(offset),
	}
	if err := c.index.GetDocumentsWithContext(ctx, query, &res); err != nil {
		return nil, wrapError(err)
	}

	raw, err := json.Marshal(res.Results)
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	var posts []domain.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}

	c.logger.Debug("fetched documents", "offset", offset, "count", len(posts), "bytes", len(raw))
	return &domain.DocumentPage{Results: posts, Total: res.Total, Bytes: len(raw)}, nil
}

// WaitForTask polls the task until it finishes or timeout elapses. A failed or
// canceled task yields ErrTaskFailed, an expired wait ErrTaskTimeout.
func (c *Client) WaitForTask(ctx context.Context, uid int64, timeout time.Duration) error {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	task, err := c.service.WaitForTaskWithContext(waitCtx, uid, c.pollInterval)
	if err != nil {
		if ctx.Err() == nil && waitCtx.Err() != nil {
			return fmt.Errorf("%w: task %d after %s", ErrTaskTimeout, uid, timeout)
		}
		return fmt.Errorf("wait for task %d: %w", uid, wrapError(err))
	}

	switch task.Status {
	case meilisearch.TaskStatusSucceeded:
		return nil
	case meilisearch.TaskStatusFailed, meilisearch.TaskStatusCanceled:
		msg := string(task.Status)
		if task.Error.Code != "" {
			msg = fmt.Sprintf("%s: %s", task.Error.Code, task.Error.Message)
		}
		return fmt.Errorf("%w: task %d: %s", ErrTaskFailed, uid, msg)
	default:
		return fmt.Errorf("%w: task %d: unexpected status %s", ErrTaskFailed, uid, task.Status)
	}
}
