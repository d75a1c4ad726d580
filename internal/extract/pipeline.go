package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"design-props-rag/internal/logging"
	"design-props-rag/internal/models"
	"design-props-rag/internal/table"
)

// Mode selects how properties are gathered for a design.
type Mode string

const (
	// ModeHierarchy walks the object tree and joins each leaf against the
	// bulk property set.
	ModeHierarchy Mode = "hierarchy"
	// ModeQuery walks the object tree and fetches only the leaves and the
	// configured attributes through the paginated query endpoint.
	ModeQuery Mode = "query"
	// ModeBulk tabulates the bulk property set without consulting the tree.
	ModeBulk Mode = "bulk"
)

// ParseMode validates a mode name. Empty selects ModeHierarchy.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeHierarchy, ModeQuery, ModeBulk:
		return m, nil
	case "":
		return ModeHierarchy, nil
	default:
		return "", fmt.Errorf("unknown extraction mode %q (use hierarchy, query or bulk)", s)
	}
}

// Service is the subset of the Model Derivative API the pipeline consumes.
// The bool results report completion; false means the job is still processing.
type Service interface {
	PageSource
	ListViewables(ctx context.Context, urn, token string) ([]models.Viewable, error)
	FetchHierarchy(ctx context.Context, urn, guid, token string) (*models.Node, bool, error)
	FetchAllProperties(ctx context.Context, urn, guid, token string) ([]models.PropertyRecord, bool, error)
}

// Request fully determines a property table.
type Request struct {
	DesignID string
	// ViewableID overrides the first viewable when set.
	ViewableID string
	Credential string
	Mode       Mode
	Table      table.Config
}

// Extractor runs the extraction pipeline against a Service.
type Extractor struct {
	Service  Service
	Poller   Poller
	PageSize int
	// MaxDepth guards against unbounded hierarchies. Zero disables the guard.
	MaxDepth int
	Logger   *slog.Logger
}

// Extract resolves the viewable, gathers properties according to req.Mode
// and projects them into a table.
func (e *Extractor) Extract(ctx context.Context, req Request) (*table.Table, error) {
	logger := logging.OrDiscard(e.Logger).With("design", req.DesignID)
	start := time.Now()

	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	guid := req.ViewableID
	if guid == "" {
		views, err := e.Service.ListViewables(ctx, req.DesignID, req.Credential)
		if err != nil {
			return nil, upstream("list viewables", err)
		}
		if len(views) == 0 {
			return nil, ErrNoViewables
		}
		guid = views[0].GUID
	}
	logger = logger.With("viewable", guid, "mode", string(mode))
	logger.InfoContext(ctx, "extracting properties")

	var tbl *table.Table
	switch mode {
	case ModeBulk:
		records, err := e.allProperties(ctx, req, guid)
		if err != nil {
			return nil, err
		}
		tbl = table.Project(records, req.Table)
	case ModeQuery:
		leaves, err := e.leaves(ctx, req, guid)
		if err != nil {
			return nil, err
		}
		if limit := req.Table.MaxRows; limit > 0 && len(leaves) > limit {
			leaves = leaves[:limit]
		}
		fetcher := &Fetcher{Source: e.Service, Poller: e.Poller, PageSize: e.PageSize, Logger: logger}
		q := models.PropertyQuery{ObjectIDs: leaves, Fields: Fields(req.Table)}
		records, err := fetcher.FetchAll(ctx, req.DesignID, guid, q, req.Credential)
		if err != nil {
			return nil, upstream("query properties", err)
		}
		tbl = table.ProjectLeaves(leaves, table.Index(records), req.Table)
	default:
		leaves, err := e.leaves(ctx, req, guid)
		if err != nil {
			return nil, err
		}
		records, err := e.allProperties(ctx, req, guid)
		if err != nil {
			return nil, err
		}
		tbl = table.ProjectLeaves(leaves, table.Index(records), req.Table)
	}

	if tbl.Malformed > 0 {
		logger.DebugContext(ctx, "non-numeric attribute values rendered empty", "count", tbl.Malformed)
	}
	logger.InfoContext(ctx, "extraction complete", "rows", tbl.Len(), "duration", time.Since(start))
	return tbl, nil
}

func (e *Extractor) leaves(ctx context.Context, req Request, guid string) ([]int64, error) {
	root, err := Poll(ctx, e.Poller, func(ctx context.Context) (*models.Node, bool, error) {
		return e.Service.FetchHierarchy(ctx, req.DesignID, guid, req.Credential)
	})
	if err != nil {
		return nil, upstream("fetch hierarchy", err)
	}
	leaves, err := FlattenLeavesDepth(root, e.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("flatten hierarchy: %w", err)
	}
	return leaves, nil
}

func (e *Extractor) allProperties(ctx context.Context, req Request, guid string) ([]models.PropertyRecord, error) {
	records, err := Poll(ctx, e.Poller, func(ctx context.Context) ([]models.PropertyRecord, bool, error) {
		return e.Service.FetchAllProperties(ctx, req.DesignID, guid, req.Credential)
	})
	if err != nil {
		return nil, upstream("fetch properties", err)
	}
	return records, nil
}

// Fields returns the attribute paths a filtered query must request for cfg.
func Fields(cfg table.Config) []string {
	fields := make([]string, 0, len(cfg.Attributes)+2)
	fields = append(fields, "objectid", "name")
	for _, attr := range cfg.Attributes {
		fields = append(fields, "properties."+cfg.Category+"."+attr)
	}
	return fields
}
