package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"design-props-rag/internal/auth"
	"design-props-rag/internal/chat"
	"design-props-rag/internal/extract"
	"design-props-rag/internal/logging"
	"design-props-rag/internal/models"
	"design-props-rag/internal/table"
)

// HTTPOptions configures NewHTTPHandler.
type HTTPOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

type questionRequest struct {
	Question string `json:"question"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPHandler serves the MCP endpoint at /mcp next to a JSON API:
//
//	POST /api/designs/{designID}/questions   {"question": "..."}
//	GET  /api/designs/{designID}/transcript
//	GET  /api/designs/{designID}/table?format=csv|ascii|markdown
//
// A bearer token in the Authorization header is forwarded as the credential.
func NewHTTPHandler(b Backend, srv *mcp.Server, opts HTTPOptions) http.Handler {
	logger := logging.OrDiscard(opts.Logger)
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders:   []string{"Mcp-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.WarnContext(r.Context(), "healthz write failed", "error", err)
		}
	})

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return srv
	}, nil)
	r.Handle("/mcp", mcpHandler)
	r.Handle("/mcp/*", mcpHandler)

	h := &httpHandlers{backend: b, logger: logger}
	r.Route("/api/designs/{designID}", func(r chi.Router) {
		r.Post("/questions", h.ask)
		r.Get("/transcript", h.transcript)
		r.Get("/table", h.table)
	})

	return r
}

type httpHandlers struct {
	backend Backend
	logger  *slog.Logger
}

func (h *httpHandlers) ask(w http.ResponseWriter, r *http.Request) {
	designID := chi.URLParam(r, "designID")
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	answer, err := h.backend.AnswerQuestion(r.Context(), designID, req.Question, bearerToken(r))
	if err != nil {
		h.logger.WarnContext(r.Context(), "question failed", "design", designID, "error", err)
		h.writeJSON(w, r, statusFor(err), errorResponse{Error: describe(err)})
		return
	}
	h.writeJSON(w, r, http.StatusOK, models.NewResponse(designID, req.Question, answer))
}

func (h *httpHandlers) transcript(w http.ResponseWriter, r *http.Request) {
	designID := chi.URLParam(r, "designID")
	transcript, ok := h.backend.Transcript(designID)
	if !ok {
		h.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "no conversation for this design"})
		return
	}
	h.writeJSON(w, r, http.StatusOK, transcript)
}

func (h *httpHandlers) table(w http.ResponseWriter, r *http.Request) {
	designID := chi.URLParam(r, "designID")
	format, err := table.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	tbl, err := h.backend.PropertyTable(r.Context(), designID, bearerToken(r))
	if err != nil {
		h.logger.WarnContext(r.Context(), "table failed", "design", designID, "error", err)
		h.writeJSON(w, r, statusFor(err), errorResponse{Error: describe(err)})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := table.Render(w, tbl, format); err != nil {
		h.logger.WarnContext(r.Context(), "render failed", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrNoCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, extract.ErrNoViewables):
		return http.StatusNotFound
	case extract.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (h *httpHandlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WarnContext(r.Context(), "encode response failed", "status", status, "error", err)
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
