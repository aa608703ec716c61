package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestEmitAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	EmitAudit(context.Background(), logger, AuditInput{
		Event:     "intake.status_changed",
		ActorID:   "admin-1",
		ActorRole: "admin",
		TargetID:  "42",
		Outcome:   "success",
		Attrs:     []slog.Attr{slog.String("status", "completed")},
	})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode audit record: %v", err)
	}
	if rec["level"] != "INFO" || rec["audit_event"] != "intake.status_changed" || rec["status"] != "completed" {
		t.Fatalf("unexpected audit record: %v", rec)
	}
	if _, ok := rec["reason"]; ok {
		t.Fatalf("empty reason should be omitted: %v", rec)
	}

	buf.Reset()
	EmitAudit(context.Background(), logger, AuditInput{Event: "intake.finalized", Outcome: "rejected", Reason: "validation"})
	rec = map[string]any{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode audit record: %v", err)
	}
	if rec["level"] != "WARN" || rec["reason"] != "validation" {
		t.Fatalf("expected warn audit record, got %v", rec)
	}

	EmitAudit(context.Background(), nil, AuditInput{Event: "ignored"})
}
