package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"discuit_search/internal/domain"
)

// DocumentReader pages through the documents held by the index.
type DocumentReader interface {
	GetDocuments(ctx context.Context, fields []string, limit, offset int) (*domain.DocumentPage, error)
}

// Snapshot is the materialized content of the index.
type Snapshot struct {
	Posts    []domain.Post
	Bytes    int64
	Duration time.Duration
}

// FetchAll reads every index document restricted to fields, one page at a
// time, until a page comes back shorter than pageSize.
func FetchAll(ctx context.Context, reader DocumentReader, fields []string, pageSize int, logger *slog.Logger) (*Snapshot, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}

	start := time.Now()
	snap := &Snapshot{}

	for offset := 0; ; offset += pageSize {
		page, err := reader.GetDocuments(ctx, fields, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("get documents at offset %d: %w", offset, err)
		}

		snap.Posts = append(snap.Posts, page.Results...)
		snap.Bytes += int64(page.Bytes)

		if len(page.Results) < pageSize {
			break
		}
		logger.Debug("fetched index page",
			"so_far", len(snap.Posts),
			"page_size", humanize.Bytes(uint64(page.Bytes)),
		)
	}

	snap.Duration = time.Since(start)
	logger.Info("fetched index snapshot",
		"count", len(snap.Posts),
		"size", humanize.Bytes(uint64(snap.Bytes)),
		"duration", snap.Duration,
	)

	return snap, nil
}
