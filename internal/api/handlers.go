// Package api binds a DataSource to the HTTP read/write endpoints of the
// grid: GET and PATCH /api/demo/tables plus schema and health probes.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/errs"
	"github.com/rzpsarthak13/gridconsole/internal/journal"
	"github.com/rzpsarthak13/gridconsole/internal/telemetry"
)

// TablesPath is the read/write endpoint of the demo dataset.
const TablesPath = "/api/demo/tables"

// JournalReporter exposes the change journal state on /health.
type JournalReporter interface {
	IsRunning() bool
	Stats() journal.DrainerStats
}

// Handler serves one dataset.
type Handler struct {
	source  core.DataSource
	journal JournalReporter
	metrics *telemetry.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records fetch and write outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithJournal reports the drainer on /health.
func WithJournal(j JournalReporter) Option {
	return func(h *Handler) { h.journal = j }
}

// NewHandler creates a handler over source.
func NewHandler(source core.DataSource, opts ...Option) *Handler {
	h := &Handler{
		source: source,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the handler on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	tables := e.Group(TablesPath)
	tables.GET("", h.GetPage)
	tables.PATCH("", h.WriteCell)
	tables.GET("/schema", h.GetSchema)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool `json:"success"`
}

func writeError(c echo.Context, err error) error {
	var e *errs.E
	if errors.As(err, &e) {
		return c.JSON(errs.StatusOf(err), errorBody{Error: e.Error()})
	}
	return c.JSON(http.StatusInternalServerError, errorBody{Error: http.StatusText(http.StatusInternalServerError)})
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

// positiveParam returns the integer query parameter or def when it is
// missing, malformed or not positive.
func positiveParam(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.QueryParam(name)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// parseQuery reads page, pageSize, sortKey, sortDir and q. A sort needs both
// key and direction; a lone key or direction leaves the rows unsorted.
func parseQuery(c echo.Context) (core.Query, error) {
	q := core.Query{
		Page:     positiveParam(c, "page", 1),
		PageSize: positiveParam(c, "pageSize", core.DefaultPageSize),
		Filter:   strings.ToLower(c.QueryParam("q")),
	}

	dir, err := core.ParseSortDir(c.QueryParam("sortDir"))
	if err != nil {
		return core.Query{}, errs.Validation("Invalid sortDir", errs.WithField("sortDir"), errs.WithCause(err))
	}
	if key := strings.TrimSpace(c.QueryParam("sortKey")); key != "" && dir != core.SortNone {
		q.SortKey = key
		q.SortDir = dir
	}
	return q, nil
}

// GetPage serves GET /api/demo/tables.
func (h *Handler) GetPage(c echo.Context) error {
	ctx := c.Request().Context()

	q, err := parseQuery(c)
	if err != nil {
		h.metrics.RecordFetch(ctx, outcome(err))
		return writeError(c, err)
	}

	page, err := h.source.FetchPage(ctx, q)
	h.metrics.RecordFetch(ctx, outcome(err))
	if err != nil {
		h.logger.Warn("fetch failed", zap.Int("page", q.Page), zap.Int("page_size", q.PageSize), zap.Error(err))
		return writeError(c, err)
	}
	if page.Rows == nil {
		page.Rows = []core.Record{}
	}
	return c.JSON(http.StatusOK, page)
}

// writeRequest is the PATCH body.
type writeRequest struct {
	ID    any    `json:"id"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// WriteCell serves PATCH /api/demo/tables.
func (h *Handler) WriteCell(c echo.Context) error {
	ctx := c.Request().Context()

	var req writeRequest
	if err := c.Echo().JSONSerializer.Deserialize(c, &req); err != nil {
		h.metrics.RecordWrite(ctx, string(errs.CodeValidation))
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Bad Request"})
	}

	id, ok := core.AsInt64(req.ID)
	if !ok || id == 0 || req.Key == "" {
		err := errs.Validation("Invalid payload")
		h.metrics.RecordWrite(ctx, outcome(err))
		return writeError(c, err)
	}

	err := h.source.WriteCell(ctx, core.Record{core.IDField: id}, req.Key, req.Value)
	h.metrics.RecordWrite(ctx, outcome(err))
	if err != nil {
		h.logger.Info("write rejected",
			zap.Int64("id", id),
			zap.String("key", req.Key),
			zap.Error(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, successBody{Success: true})
}

// GetSchema serves GET /api/demo/tables/schema.
func (h *Handler) GetSchema(c echo.Context) error {
	src, ok := h.source.(core.SchemaSource)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Error: "Schema not available"})
	}
	schema, err := src.Schema(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, schema)
}

type journalHealth struct {
	Running   bool   `json:"running"`
	Queued    int    `json:"queued"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

type healthBody struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Journal   *journalHealth `json:"journal,omitempty"`
}

// Health serves GET /health.
func (h *Handler) Health(c echo.Context) error {
	body := healthBody{Status: "ok", Timestamp: h.now().UTC()}
	if h.journal != nil {
		stats := h.journal.Stats()
		body.Journal = &journalHealth{
			Running:   h.journal.IsRunning(),
			Queued:    stats.Pending,
			Delivered: stats.Delivered,
			Failed:    stats.Failed,
		}
	}
	return c.JSON(http.StatusOK, body)
}
