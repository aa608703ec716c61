package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/allresumeservices/client-intake"

// Instruments are created against the global meter provider, which forwards
// to the SDK provider once InitRuntime installs it.
var (
	repositoryOps  metric.Int64Counter
	autosaveEvents metric.Int64Counter
	finalizeEvents metric.Int64Counter
	statusChanges  metric.Int64Counter
	tokenIssued    metric.Int64Counter
)

func init() {
	meter := otel.Meter(instrumentationName)
	repositoryOps, _ = meter.Int64Counter("intake.repository.operations",
		metric.WithDescription("Repository operations by repository, operation and outcome"))
	autosaveEvents, _ = meter.Int64Counter("intake.draft.autosaves",
		metric.WithDescription("Draft autosave attempts by outcome"))
	finalizeEvents, _ = meter.Int64Counter("intake.finalizations",
		metric.WithDescription("Finalization attempts by outcome"))
	statusChanges, _ = meter.Int64Counter("intake.status.changes",
		metric.WithDescription("Admin status updates by target status and outcome"))
	tokenIssued, _ = meter.Int64Counter("intake.tokens.issued",
		metric.WithDescription("Resume tokens issued"))
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	add(ctx, repositoryOps,
		attribute.String("repository", repo),
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
}

func RecordAutosave(ctx context.Context, outcome string) {
	add(ctx, autosaveEvents, attribute.String("outcome", outcome))
}

func RecordFinalize(ctx context.Context, outcome string) {
	add(ctx, finalizeEvents, attribute.String("outcome", outcome))
}

func RecordStatusChange(ctx context.Context, status, outcome string) {
	add(ctx, statusChanges, attribute.String("status", status), attribute.String("outcome", outcome))
}

func RecordTokenIssued(ctx context.Context) {
	add(ctx, tokenIssued)
}

func add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
