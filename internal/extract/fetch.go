package extract

import (
	"context"
	"fmt"
	"log/slog"

	"design-props-rag/internal/logging"
	"design-props-rag/internal/models"
)

// DefaultPageSize is the page size used for filtered property queries.
const DefaultPageSize = 100

// PageSource issues one page of a filtered property query.
type PageSource interface {
	QueryProperties(ctx context.Context, urn, guid string, q models.PropertyQuery, offset, limit int, token string) (*models.PropertyPage, bool, error)
}

// Fetcher accumulates every page of a filtered property query.
type Fetcher struct {
	Source   PageSource
	Poller   Poller
	PageSize int
	Logger   *slog.Logger
}

// FetchAll requests pages sequentially, each at the previous offset plus the
// previous limit, until offset+limit reaches the reported total. Records keep
// their arrival order.
func (f *Fetcher) FetchAll(ctx context.Context, urn, guid string, q models.PropertyQuery, token string) ([]models.PropertyRecord, error) {
	logger := logging.OrDiscard(f.Logger)
	limit := f.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var all []models.PropertyRecord
	offset := 0
	for requests := 1; ; requests++ {
		page, err := Poll(ctx, f.Poller, func(ctx context.Context) (*models.PropertyPage, bool, error) {
			return f.Source.QueryProperties(ctx, urn, guid, q, offset, limit, token)
		})
		if err != nil {
			return nil, fmt.Errorf("query properties at offset %d: %w", offset, err)
		}
		all = append(all, page.Records...)

		pg := page.Pagination
		if pg.Limit <= 0 {
			pg.Limit = limit
		}
		logger.DebugContext(ctx, "property page", "offset", pg.Offset, "limit", pg.Limit,
			"total", pg.TotalResults, "records", len(page.Records), "request", requests)

		if pg.Offset+pg.Limit >= pg.TotalResults {
			return all, nil
		}
		next := pg.Offset + pg.Limit
		if next <= offset {
			return nil, fmt.Errorf("query properties: pagination did not advance past offset %d", offset)
		}
		offset = next
	}
}
