// Package assistant answers questions about a design by grounding a cached
// conversation in the design's property table.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"design-props-rag/internal/auth"
	"design-props-rag/internal/chat"
	"design-props-rag/internal/database"
	"design-props-rag/internal/extract"
	"design-props-rag/internal/llm"
	"design-props-rag/internal/logging"
	"design-props-rag/internal/models"
	"design-props-rag/internal/table"
)

// Assistant is the single entry point inbound transports call
type Assistant struct {
	Cache     *chat.Cache
	Extractor *extract.Extractor
	Completer chat.Completer
	// Credentials supplies a token when a caller does not pass one.
	Credentials auth.Provider
	// Store is optional; when set, rendered tables survive restarts.
	Store  database.TableStore
	Table  table.Config
	Mode   extract.Mode
	Logger *slog.Logger
}

// AnswerQuestion routes question into the session for designID, extracting
// and seeding that session on first use.
func (a *Assistant) AnswerQuestion(ctx context.Context, designID, question, credential string) (string, error) {
	if designID == "" {
		return "", errors.New("design id is required")
	}
	if strings.TrimSpace(question) == "" {
		return "", chat.ErrEmptyQuestion
	}
	session, err := a.session(ctx, designID, credential)
	if err != nil {
		return "", err
	}
	return session.Ask(ctx, question)
}

// session returns the cached session for designID, building and seeding it
// on first use.
func (a *Assistant) session(ctx context.Context, designID, credential string) (*chat.Session, error) {
	return a.Cache.GetOrCreate(ctx, designID, func(ctx context.Context) (*chat.Session, error) {
		tbl, err := a.loadTable(ctx, designID, credential, true)
		if err != nil {
			return nil, err
		}
		s := chat.NewSession(designID, llm.GroundingPrompt(tbl.String()), a.Completer)
		s.Table = tbl
		return s, nil
	})
}

// Ask wraps AnswerQuestion in a timestamped response
func (a *Assistant) Ask(ctx context.Context, designID, question, credential string) (*models.Response, error) {
	answer, err := a.AnswerQuestion(ctx, designID, question, credential)
	if err != nil {
		return nil, err
	}
	return models.NewResponse(designID, question, answer), nil
}

// Transcript returns the conversation held for designID, or false when none
// has been started.
func (a *Assistant) Transcript(designID string) ([]models.Message, bool) {
	s, ok := a.Cache.Get(designID)
	if !ok {
		return nil, false
	}
	return s.Transcript(), true
}

// PropertyTable returns the table the session for designID is grounded in.
// The first call for a design extracts it (or reads the store) and seeds the
// session; later calls reuse it.
func (a *Assistant) PropertyTable(ctx context.Context, designID, credential string) (*table.Table, error) {
	if designID == "" {
		return nil, errors.New("design id is required")
	}
	s, err := a.session(ctx, designID, credential)
	if err != nil {
		return nil, err
	}
	return s.Table, nil
}

// BuildTable is PropertyTable unless refresh is set. A refresh always
// extracts, overwrites the stored copy and drops the cached session, so the
// next question is grounded in the new table.
func (a *Assistant) BuildTable(ctx context.Context, designID, credential string, refresh bool) (*table.Table, error) {
	if !refresh {
		return a.PropertyTable(ctx, designID, credential)
	}
	tbl, err := a.loadTable(ctx, designID, credential, false)
	if err != nil {
		return nil, err
	}
	a.Cache.Remove(designID)
	return tbl, nil
}

// loadTable reads the store when useStore is set and it holds a table built
// with the current settings, otherwise runs extraction. Freshly extracted
// tables are written back to the store.
func (a *Assistant) loadTable(ctx context.Context, designID, credential string, useStore bool) (*table.Table, error) {
	logger := logging.OrDiscard(a.Logger).With("design", designID)

	if a.Store != nil && useStore {
		if tbl, ok := a.storedTable(ctx, designID, logger); ok {
			return tbl, nil
		}
	}

	token, err := a.token(ctx, credential)
	if err != nil {
		return nil, err
	}
	tbl, err := a.Extractor.Extract(ctx, extract.Request{
		DesignID:   designID,
		Credential: token,
		Mode:       a.Mode,
		Table:      a.Table,
	})
	if err != nil {
		return nil, err
	}

	if a.Store != nil {
		stored := &database.StoredTable{
			DesignID:     designID,
			Mode:         string(a.mode()),
			Category:     a.Table.Category,
			MaxRows:      a.Table.MaxRows,
			Content:      tbl.String(),
			EscapeQuotes: a.Table.EscapeQuotes,
			Rows:         tbl.Len(),
		}
		if err := a.Store.PutTable(ctx, stored); err != nil {
			// The table is still usable for this process.
			logger.WarnContext(ctx, "failed to persist property table", "error", err)
		}
	}
	return tbl, nil
}

func (a *Assistant) storedTable(ctx context.Context, designID string, logger *slog.Logger) (*table.Table, bool) {
	stored, err := a.Store.GetTable(ctx, designID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		logger.WarnContext(ctx, "failed to load stored table", "error", err)
		return nil, false
	}
	if stored.Mode != string(a.mode()) ||
		stored.Category != a.Table.Category ||
		stored.MaxRows != a.Table.MaxRows ||
		stored.EscapeQuotes != a.Table.EscapeQuotes {
		logger.DebugContext(ctx, "stored table built with other settings",
			"mode", stored.Mode, "category", stored.Category, "max_rows", stored.MaxRows)
		return nil, false
	}
	tbl, err := table.Parse(stored.Content, stored.EscapeQuotes)
	if err != nil {
		logger.WarnContext(ctx, "stored table unreadable", "error", err)
		return nil, false
	}
	if !slices.Equal(tbl.Header, table.Header(a.Table)) {
		logger.DebugContext(ctx, "stored table has other columns")
		return nil, false
	}
	logger.InfoContext(ctx, "loaded stored property table", "rows", tbl.Len(), "updated_at", stored.UpdatedAt)
	return tbl, true
}

func (a *Assistant) token(ctx context.Context, credential string) (string, error) {
	if credential != "" {
		return credential, nil
	}
	if a.Credentials == nil {
		return "", auth.ErrNoCredentials
	}
	token, err := a.Credentials.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("obtain access token: %w", err)
	}
	return token, nil
}

func (a *Assistant) mode() extract.Mode {
	if a.Mode == "" {
		return extract.ModeHierarchy
	}
	return a.Mode
}
