package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"design-props-rag/internal/app"
	"design-props-rag/internal/logging"
	"design-props-rag/internal/server"
)

var serveFlags struct {
	transport string
	addr      string
	origins   []string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the assistant as MCP tools over stdio or HTTP",
	Long: `Starts an MCP server with the ask_design, dump_properties and get_transcript tools.

With --transport http the MCP endpoint is served at /mcp next to a JSON API
under /api/designs/{urn}/.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.transport, "transport", "stdio", "Transport mode: stdio or http")
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8080", "Listen address (only used with --transport http)")
	serveCmd.Flags().StringSliceVar(&serveFlags.origins, "allowed-origins", nil, "CORS origins for the HTTP API")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := app.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := logging.New("server")
	srv := server.New(a.Assistant, logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch serveFlags.transport {
	case "stdio":
		logger.Info("designqa MCP server starting (stdio)")
		return srv.Run(ctx, &mcp.StdioTransport{})
	case "http":
		httpServer := &http.Server{
			Addr: serveFlags.addr,
			Handler: server.NewHTTPHandler(a.Assistant, srv, server.HTTPOptions{
				AllowedOrigins: serveFlags.origins,
				Logger:         logging.New("http"),
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()
		logger.Info("designqa server listening", "addr", serveFlags.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (use stdio or http)", serveFlags.transport)
	}
}
