// Package indexer extracts property tables for many designs ahead of the
// first question, so sessions can be seeded from the store.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"design-props-rag/internal/logging"
	"design-props-rag/internal/table"
)

// Builder produces the table for one design. refresh skips any stored copy.
type Builder interface {
	BuildTable(ctx context.Context, designID, credential string, refresh bool) (*table.Table, error)
}

// Result is the outcome for one design.
type Result struct {
	DesignID string
	Rows     int
	Duration time.Duration
	Err      error
}

// Report summarizes a run in input order.
type Report struct {
	Results []Result
	Elapsed time.Duration
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Indexer builds tables for a batch of designs with bounded concurrency.
type Indexer struct {
	Builder       Builder
	Credential    string
	MaxConcurrent int
	Refresh       bool
	// Progress is called after each design with the number finished so far.
	Progress func(processed, total int)
	Logger   *slog.Logger
}

// Run builds every design. A failing design does not stop the others;
// the returned error is only set when ctx ends first.
func (ix *Indexer) Run(ctx context.Context, designIDs []string) (*Report, error) {
	logger := logging.OrDiscard(ix.Logger)
	start := time.Now()

	limit := ix.MaxConcurrent
	if limit <= 0 {
		limit = max(1, runtime.NumCPU()/2)
	}

	results := make([]Result, len(designIDs))
	var mu sync.Mutex
	processed := 0
	total := len(designIDs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range designIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{DesignID: id, Err: err}
				return err
			}
			t0 := time.Now()
			tbl, err := ix.Builder.BuildTable(gctx, id, ix.Credential, ix.Refresh)
			res := Result{DesignID: id, Duration: time.Since(t0), Err: err}
			if err != nil {
				logger.WarnContext(gctx, "failed to build table", "design", id, "error", err)
			} else {
				res.Rows = tbl.Len()
				logger.InfoContext(gctx, "table built", "design", id, "rows", res.Rows, "duration", res.Duration)
			}
			results[i] = res

			mu.Lock()
			processed++
			if ix.Progress != nil {
				ix.Progress(processed, total)
			}
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	report := &Report{Results: results, Elapsed: time.Since(start)}
	if err != nil {
		return report, fmt.Errorf("indexing interrupted: %w", err)
	}
	return report, nil
}
