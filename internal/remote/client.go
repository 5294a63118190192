// Package remote implements core.DataSource against the grid HTTP API.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/errs"
)

const (
	tablesPath = "/api/demo/tables"
	schemaPath = "/api/demo/tables/schema"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Client talks to a gridconsole server. It holds no view state; every call
// carries the full query.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// encodeQuery renders q the way the server reads it. Sort parameters are
// sent only when both key and direction are set.
func encodeQuery(q core.Query) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(max(q.Page, 1)))
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Sorted() {
		v.Set("sortKey", q.SortKey)
		v.Set("sortDir", string(q.SortDir))
	}
	if q.Filter != "" {
		v.Set("q", q.Filter)
	}
	return v
}

// FetchPage issues GET /api/demo/tables.
func (c *Client) FetchPage(ctx context.Context, q core.Query) (core.Page, error) {
	var page core.Page
	if err := c.do(ctx, http.MethodGet, c.endpoint(tablesPath, encodeQuery(q)), nil, &page); err != nil {
		return core.Page{}, err
	}
	if page.Rows == nil {
		page.Rows = []core.Record{}
	}
	return page, nil
}

// WriteCell issues PATCH /api/demo/tables for one field of row.
func (c *Client) WriteCell(ctx context.Context, row core.Record, key string, value any) error {
	id, ok := row.ID()
	if !ok {
		return errs.Validation("Invalid payload", errs.WithField(core.IDField))
	}

	body, err := json.Marshal(map[string]any{"id": id, "key": key, "value": value})
	if err != nil {
		return errs.Validation("Invalid payload", errs.WithCause(err))
	}

	var ack struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPatch, c.endpoint(tablesPath, nil), body, &ack); err != nil {
		return err
	}
	if !ack.Success {
		return errs.Remote("Write not acknowledged")
	}
	return nil
}

// Schema issues GET /api/demo/tables/schema.
func (c *Client) Schema(ctx context.Context) (*core.Schema, error) {
	var schema core.Schema
	if err := c.do(ctx, http.MethodGet, c.endpoint(schemaPath, nil), nil, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errs.Remote("Invalid request", errs.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn("request failed", zap.String("method", method), zap.String("url", target), zap.Error(err))
		return errs.Remote("Request failed", errs.WithCause(err))
	}
	defer resp.Body.Close()

	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errs.Remote("Malformed response", errs.WithCause(err))
	}
	return nil
}

// statusError maps an HTTP failure to the error taxonomy. The message is
// taken from an {error} body when the server sent one.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Error string `json:"error"`
	}
	message := ""
	if json.Unmarshal(data, &body) == nil {
		message = body.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return errs.Validation(message)
	case http.StatusNotFound:
		return errs.NotFound(message)
	default:
		return errs.Remote(message, errs.WithHTTP(resp.StatusCode))
	}
}
