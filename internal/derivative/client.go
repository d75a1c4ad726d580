package derivative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"design-props-rag/internal/logging"
	"design-props-rag/internal/models"
)

// DefaultBaseURL is the public Autodesk Platform Services endpoint.
const DefaultBaseURL = "https://developer.api.autodesk.com"

const designDataPath = "/modelderivative/v2/designdata"

// Client talks to the Model Derivative metadata endpoints. The access token
// is passed per call because every question may carry its own credential.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// New creates a Client for the given base URL. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("derivative: parse base url: %w", err)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logging.OrDiscard(cfg.logger),
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("derivative: negative timeout %s", d)
		}
		cfg.timeout = d
		return nil
	}
}

// Wire shapes of the Model Derivative responses.
type viewablesRS struct {
	Data struct {
		Metadata []models.Viewable `json:"metadata"`
	} `json:"data"`
}

type hierarchyRS struct {
	Data struct {
		Objects []models.Node `json:"objects"`
	} `json:"data"`
}

type propertiesRS struct {
	Pagination models.Pagination `json:"pagination"`
	Data       struct {
		Collection []models.PropertyRecord `json:"collection"`
	} `json:"data"`
}

type queryRQ struct {
	Query      map[string]any `json:"query,omitempty"`
	Fields     []string       `json:"fields,omitempty"`
	Pagination pageRQ         `json:"pagination"`
	Payload    string         `json:"payload"`
}

type pageRQ struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ListViewables returns the viewables of a design in service order.
func (c *Client) ListViewables(ctx context.Context, urn, token string) ([]models.Viewable, error) {
	var rs viewablesRS
	if _, err := c.doJSON(ctx, http.MethodGet, c.metadataURL(urn), "list viewables", token, nil, &rs); err != nil {
		return nil, err
	}
	return rs.Data.Metadata, nil
}

// FetchHierarchy returns the root of the object tree. done is false while the
// service is still extracting the hierarchy.
func (c *Client) FetchHierarchy(ctx context.Context, urn, guid, token string) (root *models.Node, done bool, err error) {
	var rs hierarchyRS
	done, err = c.doJSON(ctx, http.MethodGet, c.metadataURL(urn, guid), "fetch hierarchy", token, nil, &rs)
	if err != nil || !done {
		return nil, done, err
	}
	if len(rs.Data.Objects) == 0 {
		return nil, false, fmt.Errorf("fetch hierarchy: empty object tree for viewable %s", guid)
	}
	return &rs.Data.Objects[0], true, nil
}

// FetchAllProperties returns every property record of a viewable.
func (c *Client) FetchAllProperties(ctx context.Context, urn, guid, token string) ([]models.PropertyRecord, bool, error) {
	var rs propertiesRS
	done, err := c.doJSON(ctx, http.MethodGet, c.metadataURL(urn, guid, "properties"), "fetch properties", token, nil, &rs)
	if err != nil || !done {
		return nil, done, err
	}
	return rs.Data.Collection, true, nil
}

// QueryProperties fetches one page of a filtered property query.
func (c *Client) QueryProperties(ctx context.Context, urn, guid string, q models.PropertyQuery, offset, limit int, token string) (*models.PropertyPage, bool, error) {
	body := queryRQ{
		Fields:     q.Fields,
		Pagination: pageRQ{Offset: offset, Limit: limit},
		Payload:    "text",
	}
	if len(q.ObjectIDs) > 0 {
		in := make([]any, 0, len(q.ObjectIDs)+1)
		in = append(in, "objectid")
		for _, id := range q.ObjectIDs {
			in = append(in, id)
		}
		body.Query = map[string]any{"$in": in}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("query properties: marshal: %w", err)
	}

	var rs propertiesRS
	u := c.metadataURL(urn, guid, "properties:query")
	done, err := c.doJSON(ctx, http.MethodPost, u, "query properties", token, bytes.NewReader(payload), &rs)
	if err != nil || !done {
		return nil, done, err
	}
	return &models.PropertyPage{Pagination: rs.Pagination, Records: rs.Data.Collection}, true, nil
}

func (c *Client) metadataURL(urn string, parts ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString(designDataPath)
	b.WriteString("/")
	b.WriteString(url.PathEscape(urn))
	b.WriteString("/metadata")
	for _, p := range parts {
		b.WriteString("/")
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

// doJSON executes an HTTP request and decodes the JSON response into dst.
// A 202 Accepted means the derivative job is still running: done is false and
// dst is left untouched. Other non-2xx statuses return an *APIError.
func (c *Client) doJSON(ctx context.Context, method, url, operation, token string, body io.Reader, dst any) (done bool, err error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return false, fmt.Errorf("%s: create request: %w", operation, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "API request", "operation", operation, "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode == http.StatusAccepted {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return false, newAPIError(operation, resp.StatusCode, msg)
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return false, fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return true, nil
}
