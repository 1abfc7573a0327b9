// Package obs provides helpers that open an OpenTelemetry span for a job
// run and attach truncated warning events to it, grounded on the teacher's
// internal/hooks/hooks_otel.go span-event pattern. No engine or subcommand
// calls them, so job runs are not traced.
package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/lsats/databridge")

// StartJob opens a span for one job invocation, tagged with the run's
// source/entity/mode so traces can be correlated with meta.ingestion_runs
// rows by run_id once the ledger assigns one (call SetRunID once known).
func StartJob(ctx context.Context, jobName string, source, entity string, fullSync, dryRun bool) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, jobName, trace.WithAttributes(
		attribute.String("databridge.source_system", source),
		attribute.String("databridge.entity_type", entity),
		attribute.Bool("databridge.full_sync", fullSync),
		attribute.Bool("databridge.dry_run", dryRun),
	))
	return ctx, span
}

// SetRunID tags the span with the ledger-assigned run id once Begin returns.
func SetRunID(span trace.Span, runID string) {
	span.SetAttributes(attribute.String("databridge.run_id", runID))
}

// RecordWarning adds a span event for a recovered per-record error,
// truncated to avoid unbounded span size on noisy runs.
func RecordWarning(span trace.Span, externalID, msg string) {
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "...(truncated)"
	}
	span.AddEvent("databridge.record_warning", trace.WithAttributes(
		attribute.String("external_id", externalID),
		attribute.String("detail", msg),
	))
}
