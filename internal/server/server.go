// Package server exposes the design assistant as MCP tools and a small
// JSON API.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"design-props-rag/internal/logging"
	"design-props-rag/internal/models"
	"design-props-rag/internal/table"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Backend is what the transports need from the assistant.
type Backend interface {
	AnswerQuestion(ctx context.Context, designID, question, credential string) (string, error)
	PropertyTable(ctx context.Context, designID, credential string) (*table.Table, error)
	Transcript(designID string) ([]models.Message, bool)
}

// New creates an MCP server with every design tool registered.
func New(b Backend, logger *slog.Logger) *mcp.Server {
	t := &Tools{Backend: b, Logger: logging.OrDiscard(logger)}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "designqa",
		Version: Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "ask_design",
		Description: "Ask a question about the dimensional properties of a design's elements. Follow-up questions on the same design share one conversation.",
	}, t.AskDesign)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "dump_properties",
		Description: "Return the property table (id, name and dimensional attributes per element) extracted for a design",
	}, t.DumpProperties)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_transcript",
		Description: "Return the conversation held for a design so far",
	}, t.GetTranscript)

	return srv
}
