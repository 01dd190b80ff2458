package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/metrics"
)

// =============================================================================
// Log Sink
// =============================================================================

// LogSink writes one structured line per event.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Record(ctx context.Context, e domain.FunnelEvent) error {
	attrs := []any{
		"event_id", e.ID,
		"stage", e.Stage,
		"form_id", e.FormID,
	}
	if e.Variant != "" {
		attrs = append(attrs, "variant", e.Variant)
	}
	if d := e.Detail(); d != "" {
		attrs = append(attrs, "detail", d)
	}
	if len(e.FailedFields) > 0 {
		attrs = append(attrs, "fields", e.FailedFields)
	}
	if e.ErrorCode != "" {
		attrs = append(attrs, "error_code", e.ErrorCode)
	}
	if e.ProfileID != "" {
		attrs = append(attrs, "profile_id", e.ProfileID)
	}
	s.logger.InfoContext(ctx, "funnel event", attrs...)
	return nil
}

// =============================================================================
// Metrics Sink
// =============================================================================

// MetricsSink counts events by stage and detail, and counts completed
// signups per experiment variant.
type MetricsSink struct{}

func NewMetricsSink() *MetricsSink { return &MetricsSink{} }

func (s *MetricsSink) Name() string { return "metrics" }

func (s *MetricsSink) Record(ctx context.Context, e domain.FunnelEvent) error {
	metrics.FunnelEventsTotal.WithLabelValues(string(e.Stage), e.Detail()).Inc()
	if e.Stage == domain.StageCompleted && e.Variant.IsValid() {
		metrics.ExperimentConversionsTotal.WithLabelValues(string(e.Variant)).Inc()
	}
	return nil
}

// =============================================================================
// Postgres Sink
// =============================================================================

// Execer is the subset of *sql.DB used by PostgresSink.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertFunnelEvent = `
INSERT INTO funnel_events (
    id, stage, form_id, visitor_id, variant, failed_fields, phone_hash, properties, occurred_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

// PostgresSink inserts events into the funnel_events table. Inserts are
// keyed by event id so a retried job does not duplicate a row.
type PostgresSink struct {
	db Execer
}

func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Record(ctx context.Context, e domain.FunnelEvent) error {
	props, err := json.Marshal(e.Properties())
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	failed := e.FailedFields
	if failed == nil {
		failed = []string{}
	}

	_, err = s.db.ExecContext(ctx, insertFunnelEvent,
		e.ID,
		string(e.Stage),
		e.FormID,
		nullString(e.VisitorID),
		nullString(string(e.Variant)),
		pq.Array(failed),
		nullString(e.PhoneHash),
		pqtype.NullRawMessage{RawMessage: props, Valid: true},
		e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert funnel event: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
