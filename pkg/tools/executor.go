package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"metricsqa/pkg/logging"
	"metricsqa/pkg/observability"
)

var toolExecutions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "metricsqa_tool_executions_total",
		Help: "Tool executions by tool name and outcome.",
	},
	[]string{"tool", "status"},
)

var toolDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "metricsqa_tool_duration_seconds",
		Help:    "Tool execution latency.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// SchemaViolationError reports arguments that failed schema validation even
// after sanitization. The sanitizer is expected to repair every recoverable
// argument shape, so a violation here is a contract breach and fails the
// whole request rather than being retried.
type SchemaViolationError struct {
	Tool string
	Err  error
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("arguments for %s failed validation: %v", e.Tool, e.Err)
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

// QueryStore executes a named-parameter SQL query and returns rows as maps.
type QueryStore interface {
	QueryNamed(ctx context.Context, query string, args map[string]any) ([]map[string]any, error)
}

// Executor runs catalog tools against the metrics store.
type Executor struct {
	catalog *Catalog
	store   QueryStore
	logger  *logging.Logger
}

// NewExecutor wires a catalog to a query store.
func NewExecutor(catalog *Catalog, store QueryStore, logger *logging.Logger) *Executor {
	return &Executor{catalog: catalog, store: store, logger: logger}
}

// Catalog exposes the executor's tool set.
func (e *Executor) Catalog() *Catalog { return e.catalog }

// Execute runs one tool call end to end: resolve the spec, sanitize and
// validate arguments, bind every declared parameter, run the SQL template
// and shape the result.
//
// Result shape depends on cardinality: a single row comes back as a flat
// record map; zero or multiple rows come back as {"rows": [...]} with a
// non-nil list, so the model can always distinguish "no data" from errors.
func (e *Executor) Execute(ctx context.Context, requestID, name string, args map[string]any) (any, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "tool.execute")
	span.SetAttributes(
		observability.AttrToolName.String(name),
		observability.AttrRequestID.String(requestID),
	)
	defer span.End()

	spec, err := e.catalog.Get(name)
	if err != nil {
		toolExecutions.WithLabelValues(name, "unknown").Inc()
		span.RecordError(err)
		return nil, err
	}

	sanitized := Sanitize(spec, args)
	if err := spec.ValidateArgs(sanitized); err != nil {
		toolExecutions.WithLabelValues(name, "invalid_args").Inc()
		e.logger.Log(logging.Event{
			Level:     logging.LevelWarn,
			Category:  logging.CategoryTool,
			EventType: "tool_args_rejected",
			RequestID: requestID,
			Details:   map[string]any{"tool": name, "args": ArgsSummary(sanitized), "error": err.Error()},
			Message:   "tool arguments failed schema validation",
		})
		return nil, &SchemaViolationError{Tool: name, Err: err}
	}

	bound := e.bindArgs(spec, sanitized)
	rows, err := e.store.QueryNamed(ctx, spec.QueryText, bound)
	if err != nil {
		toolExecutions.WithLabelValues(name, "error").Inc()
		span.RecordError(err)
		e.logger.Log(logging.Event{
			Level:     logging.LevelError,
			Category:  logging.CategoryTool,
			EventType: "tool_query_failed",
			RequestID: requestID,
			Details:   map[string]any{"tool": name, "args": ArgsSummary(sanitized), "error": err.Error()},
			Message:   "tool query failed",
		})
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}

	toolExecutions.WithLabelValues(name, "ok").Inc()
	toolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	e.logger.Log(logging.Event{
		Level:     logging.LevelInfo,
		Category:  logging.CategoryTool,
		EventType: "tool_executed",
		RequestID: requestID,
		Details:   map[string]any{"tool": name, "args": ArgsSummary(sanitized), "rows": len(rows), "elapsed_ms": time.Since(start).Milliseconds()},
		Message:   "tool executed",
	})

	return reduceRows(rows), nil
}

// IsSchemaViolation reports whether err is an argument validation failure.
func IsSchemaViolation(err error) bool {
	var sv *SchemaViolationError
	return errors.As(err, &sv)
}

// bindArgs produces the named-parameter map for the SQL template. Every
// declared parameter is bound; absent ones bind nil so templates can rely
// on COALESCE defaults instead of dynamic SQL.
func (e *Executor) bindArgs(spec *ToolSpec, args map[string]any) map[string]any {
	bound := make(map[string]any, len(spec.Parameters.Properties))
	for _, name := range spec.ParameterNames() {
		if value, ok := args[name]; ok {
			bound[name] = value
		} else {
			bound[name] = nil
		}
	}
	return bound
}

func reduceRows(rows []map[string]any) any {
	if len(rows) == 1 {
		return rows[0]
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return map[string]any{"rows": rows}
}
