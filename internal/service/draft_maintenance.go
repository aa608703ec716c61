package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allresumeservices/client-intake/internal/repository"
)

type ResumeLinker interface {
	ResumeURL(token string) string
}

type ReminderReport struct {
	Candidates int `json:"candidates"`
	Reminded   int `json:"reminded"`
	Failed     int `json:"failed"`
}

// DraftMaintenanceService runs the operator jobs for abandoned drafts. Drafts
// never expire on their own; these jobs are the only cleanup.
type DraftMaintenanceService struct {
	drafts   repository.DraftRepository
	notifier IntakeNotifier
	links    ResumeLinker
	logger   *slog.Logger
}

func NewDraftMaintenanceService(drafts repository.DraftRepository, notifier IntakeNotifier, links ResumeLinker, logger *slog.Logger) *DraftMaintenanceService {
	return &DraftMaintenanceService{drafts: drafts, notifier: notifier, links: links, logger: logger}
}

// SendReminders notifies clients whose draft has been idle for at least
// idleFor and stamps each draft so it is reminded once. A failed delivery
// leaves the draft unstamped for the next run.
func (s *DraftMaintenanceService) SendReminders(ctx context.Context, now time.Time, idleFor time.Duration, limit int) (report ReminderReport, err error) {
	ctx, span := tracer.Start(ctx, "DraftMaintenanceService.SendReminders")
	defer func() { endSpan(span, err) }()

	drafts, err := s.drafts.ListIdle(ctx, now.Add(-idleFor), limit)
	if err != nil {
		return report, fmt.Errorf("list idle drafts: %w", err)
	}
	report.Candidates = len(drafts)
	for _, d := range drafts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n := DraftReminderNotification{
			DraftID:     d.ID,
			Email:       d.Email,
			FirstName:   d.FirstName,
			ResumeURL:   s.links.ResumeURL(d.Token),
			LastSavedAt: d.UpdatedAt,
		}
		if err := s.notifier.DraftReminder(ctx, n); err != nil {
			report.Failed++
			s.logger.WarnContext(ctx, "draft reminder delivery failed", "draft_id", d.ID, "error", err)
			continue
		}
		if err := s.drafts.MarkReminderSent(ctx, d.ID, now.UTC()); err != nil && !errors.Is(err, repository.ErrDraftNotFound) {
			report.Failed++
			s.logger.WarnContext(ctx, "draft reminder stamp failed", "draft_id", d.ID, "error", err)
			continue
		}
		report.Reminded++
	}
	s.logger.InfoContext(ctx, "draft reminders sent",
		"candidates", report.Candidates,
		"reminded", report.Reminded,
		"failed", report.Failed,
	)
	return report, nil
}

// Purge deletes drafts last saved before cutoff.
func (s *DraftMaintenanceService) Purge(ctx context.Context, cutoff time.Time, batchSize int) (deleted int64, err error) {
	ctx, span := tracer.Start(ctx, "DraftMaintenanceService.Purge")
	defer func() { endSpan(span, err) }()

	deleted, err = s.drafts.DeleteIdleBefore(ctx, cutoff, batchSize)
	if err != nil {
		return deleted, fmt.Errorf("purge drafts: %w", err)
	}
	s.logger.InfoContext(ctx, "drafts purged", "cutoff", cutoff.UTC(), "deleted", deleted)
	return deleted, nil
}
