// Package lookup is the invocation boundary of the resolver. A Handler loads
// the dataset, runs one query and always returns a well-formed Response.
package lookup

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/dataset"
	"github.com/sells-group/zipcode-cli/internal/model"
	"github.com/sells-group/zipcode-cli/internal/monitoring"
	"github.com/sells-group/zipcode-cli/internal/query"
)

// Event is the invocation document. Only the query string parameters are read.
type Event struct {
	QueryStringParameters map[string]string `json:"queryStringParameters"`
}

// Handler serves lookups against an injected dataset accessor.
type Handler struct {
	accessor dataset.Accessor
	resolver *query.Resolver
	metrics  *monitoring.Metrics
	tracer   trace.Tracer
	log      *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records query outcomes on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithTracerProvider traces through tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) { h.tracer = tp.Tracer(monitoring.TracerName) }
}

// NewHandler creates a Handler over accessor.
func NewHandler(accessor dataset.Accessor, opts ...Option) *Handler {
	h := &Handler{
		accessor: accessor,
		resolver: query.NewResolver(),
		tracer:   otel.Tracer(monitoring.TracerName),
		log:      zap.L().With(zap.String("component", "lookup")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Records loads the dataset, recording the outcome on the dataset gauges.
func (h *Handler) Records(ctx context.Context) ([]model.Record, error) {
	ctx, span := h.tracer.Start(ctx, "dataset.fetch",
		trace.WithAttributes(attribute.String("dataset.source", h.accessor.Name())))
	defer span.End()

	records, err := h.accessor.Fetch(ctx)
	h.metrics.ObserveDataset(len(records), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dataset unavailable")
		return nil, err
	}
	span.SetAttributes(attribute.Int("dataset.records", len(records)))
	return records, nil
}

// Handle runs one query. Dataset failures and query failures both yield a
// 400 response; the error never escapes.
func (h *Handler) Handle(ctx context.Context, p query.Params) model.Response {
	start := time.Now()
	mode := query.Classify(p)

	records, err := h.Records(ctx)
	if err != nil {
		h.log.Warn("dataset unavailable",
			zap.String("source", h.accessor.Name()),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		h.metrics.ObserveQuery(string(mode), false, time.Since(start))
		return query.ErrorResponse(err)
	}

	_, span := h.tracer.Start(ctx, "query.resolve",
		trace.WithAttributes(attribute.String("query.mode", string(mode))))
	resp := h.resolver.Resolve(p, records)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, "query failed")
	}
	span.End()

	h.metrics.ObserveQuery(string(mode), resp.StatusCode == http.StatusOK, time.Since(start))
	return resp
}

// Invoke handles an invocation event. A missing parameter map is treated as
// empty.
func (h *Handler) Invoke(ctx context.Context, ev Event) model.Response {
	id := uuid.New().String()
	log := h.log.With(zap.String("invocation_id", id))

	p := make(query.Params, len(ev.QueryStringParameters))
	for k, v := range ev.QueryStringParameters {
		p[k] = v
	}

	log.Info("invocation started", zap.String("mode", string(query.Classify(p))))
	resp := h.Handle(ctx, p)
	log.Info("invocation finished",
		zap.Int("status_code", resp.StatusCode),
		zap.Int("matches", len(resp.Matches())),
	)
	return resp
}
