// Package retrieval queries the vector-search service for context to splice
// into a prompt.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// ScopedLimit is the result limit for searches over selected documents.
	ScopedLimit = 10
	// RouterLimit is the result limit for the unscoped best-guess search.
	RouterLimit = 1

	ModeScoped = "scoped"
	ModeRouter = "router"
)

// Result is one matching chunk. Lower distance means more relevant.
type Result struct {
	Content      string  `json:"content"`
	DocumentGUID string  `json:"document_guid"`
	ObjectKey    string  `json:"object_key"`
	Distance     float64 `json:"distance"`
}

// ScopedRequest searches within an explicit list of documents.
type ScopedRequest struct {
	Query         string   `json:"query"`
	DocumentGUIDs []string `json:"document_guids"`
	Limit         int      `json:"limit"`
}

// RouterRequest searches the default corpus for a single best match.
type RouterRequest struct {
	Query        string `json:"query"`
	DocumentGUID string `json:"document_guid"`
	Limit        int    `json:"limit"`
}

// SearchResponse is the body returned by both endpoints.
type SearchResponse struct {
	Results []Result `json:"results"`
}

// Error is returned for any failed search. Callers treat it as "no context".
type Error struct {
	Mode       string
	StatusCode int // 0 for transport failures
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s search failed: %s", e.Mode, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Config locates the vector-search endpoints.
type Config struct {
	BaseURL            string
	ScopedPath         string
	RouterPath         string
	RouterDocumentGUID string
}

// Client issues vector-search queries.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTelemetry records spans and request durations.
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(c *Client) {
		c.tracer = tracer
		histogram, err := meter.Float64Histogram(
			"http.client.request.duration",
			metric.WithDescription("HTTP request duration in milliseconds"),
		)
		if err == nil {
			c.duration = histogram
		}
	}
}

// NewClient creates a retrieval client.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	noopHistogram, _ := metricnoop.NewMeterProvider().Meter("retrieval").Float64Histogram("noop")
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
		tracer:     tracenoop.NewTracerProvider().Tracer("retrieval"),
		duration:   noopHistogram,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries vector search. With a non-empty scope it searches those
// documents (limit 10); otherwise it asks the router for the single best
// match in the default corpus. Results keep server order.
func (c *Client) Search(ctx context.Context, query string, scope []string) ([]Result, error) {
	mode := ModeRouter
	var (
		path string
		body any
	)
	if len(scope) > 0 {
		mode = ModeScoped
		path = c.config.ScopedPath
		body = ScopedRequest{Query: query, DocumentGUIDs: scope, Limit: ScopedLimit}
	} else {
		path = c.config.RouterPath
		body = RouterRequest{Query: query, DocumentGUID: c.config.RouterDocumentGUID, Limit: RouterLimit}
	}

	ctx, span := c.tracer.Start(ctx, "retrieval_search", trace.WithAttributes(
		attribute.String("retrieval.mode", mode),
		attribute.Int("retrieval.scope", len(scope)),
	))
	defer span.End()

	start := time.Now()
	results, err := c.post(ctx, mode, path, body)
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("retrieval.mode", mode)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("vector search failed", "mode", mode, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("retrieval.results", len(results)))
	c.logger.Info("vector search completed", "mode", mode, "results", len(results))
	return results, nil
}

func (c *Client) post(ctx context.Context, mode, path string, body any) ([]Result, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Mode: mode, Message: "failed to marshal request", Cause: err}
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &Error{Mode: mode, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Mode: mode, Message: "failed to send request", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{
			Mode:       mode,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("API error: %s - %s", resp.Status, strings.TrimSpace(string(snippet))),
		}
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Mode: mode, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return out.Results, nil
}
