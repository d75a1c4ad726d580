// Package app assembles the assistant and its collaborators from a Config.
package app

import (
	"context"
	"errors"
	"fmt"

	"design-props-rag/internal/assistant"
	"design-props-rag/internal/auth"
	"design-props-rag/internal/chat"
	"design-props-rag/internal/config"
	"design-props-rag/internal/database"
	"design-props-rag/internal/derivative"
	"design-props-rag/internal/extract"
	"design-props-rag/internal/llm"
	"design-props-rag/internal/logging"
)

// App owns the long-lived objects of one process.
type App struct {
	Config    config.Config
	Assistant *assistant.Assistant
	Store     database.TableStore
}

// Build validates cfg and wires the assistant. Missing client credentials
// are not an error: callers may still hand in tokens per question.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := derivative.New(cfg.APS.BaseURL,
		derivative.WithTimeout(cfg.APS.Timeout),
		derivative.WithLogger(logging.New("derivative")),
	)
	if err != nil {
		return nil, err
	}

	completer, err := llm.NewOllamaLLM(cfg.Ollama.Host, cfg.Ollama.Model, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	creds, err := auth.New(ctx, cfg.APS.AccessToken, cfg.APS.ClientID, cfg.APS.ClientSecret, cfg.APS.TokenURL)
	switch {
	case errors.Is(err, auth.ErrNoCredentials):
		logging.New("app").Info("no APS credentials configured, tokens must be supplied per request")
		creds = nil
	case err != nil:
		return nil, err
	}

	mode, err := extract.ParseMode(cfg.Extract.Mode)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg}
	if cfg.Store.DSN != "" {
		store, err := database.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open table store: %w", err)
		}
		a.Store = store
	}

	a.Assistant = &assistant.Assistant{
		Cache: chat.NewCache(cfg.Cache.MaxSessions, logging.New("cache")),
		Extractor: &extract.Extractor{
			Service: client,
			Poller: extract.Poller{
				Interval:    cfg.Extract.PollInterval,
				MaxAttempts: cfg.Extract.MaxPollAttempts,
			},
			PageSize: cfg.Extract.PageSize,
			MaxDepth: cfg.Extract.MaxDepth,
			Logger:   logging.New("extract"),
		},
		Completer:   completer,
		Credentials: creds,
		Store:       a.Store,
		Table:       cfg.Table,
		Mode:        mode,
		Logger:      logging.New("assistant"),
	}
	return a, nil
}

// Close releases the store, if one is open.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
