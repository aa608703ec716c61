package observability

import (
	"context"
	"log/slog"
)

// AuditInput describes one business event worth keeping in the audit trail.
type AuditInput struct {
	Event     string
	ActorID   string
	ActorRole string
	TargetID  string
	Outcome   string
	Reason    string
	RequestID string
	Attrs     []slog.Attr
}

// EmitAudit writes the event at info level, or warn when the outcome is not
// a success.
func EmitAudit(ctx context.Context, logger *slog.Logger, in AuditInput) {
	if logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("audit_event", in.Event),
		slog.String("outcome", in.Outcome),
	}
	if in.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", in.ActorID))
	}
	if in.ActorRole != "" {
		attrs = append(attrs, slog.String("actor_role", in.ActorRole))
	}
	if in.TargetID != "" {
		attrs = append(attrs, slog.String("target_id", in.TargetID))
	}
	if in.Reason != "" {
		attrs = append(attrs, slog.String("reason", in.Reason))
	}
	if in.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", in.RequestID))
	}
	attrs = append(attrs, in.Attrs...)

	level := slog.LevelInfo
	if in.Outcome != "success" {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, "audit", attrs...)
}
