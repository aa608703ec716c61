package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/allresumeservices/client-intake/internal/domain"
)

type IntakeSubmittedNotification struct {
	IntakeID            uint
	Email               string
	FullName            string
	PurchasedService    string
	PaypalTransactionID string
	OrderReference      string
	SubmittedAt         time.Time
}

type ResumeLinkNotification struct {
	Email          string
	FirstName      string
	OrderReference string
	ResumeURL      string
}

type DraftReminderNotification struct {
	DraftID     uint
	Email       string
	FirstName   string
	ResumeURL   string
	LastSavedAt time.Time
}

type StatusChangedNotification struct {
	IntakeID  uint
	Status    domain.IntakeStatus
	ChangedBy string
	ChangedAt time.Time
}

// IntakeNotifier delivers client and staff notifications. Finalization never
// calls it; HTTP handlers and operator commands do, after the fact.
type IntakeNotifier interface {
	IntakeSubmitted(ctx context.Context, n IntakeSubmittedNotification) error
	ResumeLinkIssued(ctx context.Context, n ResumeLinkNotification) error
	DraftReminder(ctx context.Context, n DraftReminderNotification) error
	StatusChanged(ctx context.Context, n StatusChangedNotification) error
}

// LogIntakeNotifier writes notifications to the log instead of sending them.
// It is the default outside production.
type LogIntakeNotifier struct {
	logger *slog.Logger
}

func NewLogIntakeNotifier(logger *slog.Logger) *LogIntakeNotifier {
	return &LogIntakeNotifier{logger: logger}
}

func (n *LogIntakeNotifier) IntakeSubmitted(ctx context.Context, in IntakeSubmittedNotification) error {
	n.logger.InfoContext(ctx, "intake submitted notification",
		"intake_id", in.IntakeID,
		"email", in.Email,
		"name", in.FullName,
		"service", in.PurchasedService,
		"transaction_id", in.PaypalTransactionID,
	)
	return nil
}

func (n *LogIntakeNotifier) ResumeLinkIssued(ctx context.Context, in ResumeLinkNotification) error {
	n.logger.InfoContext(ctx, "resume link issued",
		"email", in.Email,
		"order_reference", in.OrderReference,
		"resume_url", in.ResumeURL,
	)
	return nil
}

func (n *LogIntakeNotifier) DraftReminder(ctx context.Context, in DraftReminderNotification) error {
	n.logger.InfoContext(ctx, "draft reminder",
		"email", in.Email,
		"last_saved_at", in.LastSavedAt,
		"resume_url", in.ResumeURL,
	)
	return nil
}

func (n *LogIntakeNotifier) StatusChanged(ctx context.Context, in StatusChangedNotification) error {
	n.logger.InfoContext(ctx, "intake status changed",
		"intake_id", in.IntakeID,
		"status", in.Status,
		"changed_by", in.ChangedBy,
	)
	return nil
}
