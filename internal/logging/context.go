package logging

import (
	"context"
	"log/slog"

	"shiftsync/internal/services"
)

const (
	// FieldComponent names the subsystem that emitted the line.
	FieldComponent = "component"
	// FieldCycleID identifies one refresh cycle across all of its log lines.
	FieldCycleID = "cycle_id"
	// FieldSite names the schedule source site being fetched or parsed.
	FieldSite = "site"
	// FieldTrigger records what started a cycle (cron, cli, watcher).
	FieldTrigger = "trigger"
	// FieldCorrelationID carries a caller supplied request identifier.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags anomalies that should stand out.
	FieldAlert = "alert"
)

// ContextFields extracts the standard attributes carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.CycleIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCycleID, id))
	}
	if site, ok := services.SiteFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSite, site))
	}
	if trigger, ok := services.TriggerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTrigger, trigger))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns logger augmented with the fields carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
