package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"design-props-rag/internal/auth"
	"design-props-rag/internal/chat"
	"design-props-rag/internal/extract"
	"design-props-rag/internal/models"
	"design-props-rag/internal/table"
)

// Tools holds the handlers behind the MCP tools.
type Tools struct {
	Backend Backend
	Logger  *slog.Logger
}

// --- Input types ---

type AskDesignInput struct {
	DesignID    string `json:"design_id" jsonschema:"URL-safe base64 URN of the design"`
	Question    string `json:"question" jsonschema:"Question about the design's elements"`
	AccessToken string `json:"access_token,omitempty" jsonschema:"Bearer token for the Model Derivative API; the server's credentials are used when omitted"`
}

type DumpPropertiesInput struct {
	DesignID    string `json:"design_id" jsonschema:"URL-safe base64 URN of the design"`
	Format      string `json:"format,omitempty" jsonschema:"csv (default), ascii or markdown"`
	AccessToken string `json:"access_token,omitempty" jsonschema:"Bearer token for the Model Derivative API"`
}

type TranscriptInput struct {
	DesignID string `json:"design_id" jsonschema:"URL-safe base64 URN of the design"`
}

// --- Handlers ---

func (t *Tools) AskDesign(ctx context.Context, _ *mcp.CallToolRequest, input AskDesignInput) (*mcp.CallToolResult, any, error) {
	if input.DesignID == "" || strings.TrimSpace(input.Question) == "" {
		return toolError("design_id and question are required"), nil, nil
	}
	answer, err := t.Backend.AnswerQuestion(ctx, input.DesignID, input.Question, input.AccessToken)
	if err != nil {
		t.Logger.WarnContext(ctx, "ask_design failed", "design", input.DesignID, "error", err)
		return toolError("%s", describe(err)), nil, nil
	}
	return toolJSON(models.NewResponse(input.DesignID, input.Question, answer))
}

func (t *Tools) DumpProperties(ctx context.Context, _ *mcp.CallToolRequest, input DumpPropertiesInput) (*mcp.CallToolResult, any, error) {
	if input.DesignID == "" {
		return toolError("design_id is required"), nil, nil
	}
	format, err := table.ParseFormat(input.Format)
	if err != nil {
		return toolError("%v", err), nil, nil
	}
	tbl, err := t.Backend.PropertyTable(ctx, input.DesignID, input.AccessToken)
	if err != nil {
		t.Logger.WarnContext(ctx, "dump_properties failed", "design", input.DesignID, "error", err)
		return toolError("%s", describe(err)), nil, nil
	}
	var b strings.Builder
	if err := table.Render(&b, tbl, format); err != nil {
		return toolError("render table: %v", err), nil, nil
	}
	return toolText(b.String()), nil, nil
}

func (t *Tools) GetTranscript(_ context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, any, error) {
	transcript, ok := t.Backend.Transcript(input.DesignID)
	if !ok {
		return toolError("No conversation for design %q. Ask a question first.", input.DesignID), nil, nil
	}
	return toolJSON(transcript)
}

// describe turns pipeline failures into messages a client can act on.
func describe(err error) string {
	switch {
	case errors.Is(err, extract.ErrNoViewables):
		return "The design has no viewables yet. Translate it before asking about it."
	case errors.Is(err, auth.ErrNoCredentials):
		return "No access token was given and the server has no client credentials configured."
	case errors.Is(err, chat.ErrEmptyQuestion):
		return "The question is empty."
	case extract.IsUpstream(err):
		return fmt.Sprintf("The Model Derivative service failed: %v", err)
	default:
		return err.Error()
	}
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
