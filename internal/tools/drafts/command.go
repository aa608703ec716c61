package drafts

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/allresumeservices/client-intake/internal/di"
	"github.com/allresumeservices/client-intake/internal/service"
	"github.com/allresumeservices/client-intake/internal/tools/common"
	"github.com/allresumeservices/client-intake/internal/tools/ui"
)

type options struct {
	envFile   string
	ci        bool
	timeout   time.Duration
	idleFor   time.Duration
	olderThan time.Duration
	limit     int
	batchSize int
}

type maintainer interface {
	SendReminders(ctx context.Context, now time.Time, idleFor time.Duration, limit int) (service.ReminderReport, error)
	Purge(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Remind and purge abandoned intake drafts",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional env file")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "print a JSON result instead of the interactive view")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "overall timeout")

	remind := &cobra.Command{
		Use:   "remind",
		Short: "Email a resume link to clients with idle drafts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := run(opts, "drafts remind", "remind", func(ctx context.Context) ([]string, error) {
				return withJob(opts.envFile, func(job *di.DraftMaintenanceJob) ([]string, error) {
					idleFor := opts.idleFor
					if idleFor <= 0 {
						idleFor = job.Config.DraftReminderAfter
					}
					return remindDrafts(ctx, job.Service, time.Now(), idleFor, opts.limit)
				})
			})
			return err
		},
	}
	remind.Flags().DurationVar(&opts.idleFor, "idle-for", 0, "remind drafts idle at least this long (default DRAFT_REMINDER_AFTER)")
	remind.Flags().IntVar(&opts.limit, "limit", 100, "maximum reminders per run")

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete drafts not saved within the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := run(opts, "drafts purge", "purge", func(ctx context.Context) ([]string, error) {
				return withJob(opts.envFile, func(job *di.DraftMaintenanceJob) ([]string, error) {
					olderThan := opts.olderThan
					if olderThan <= 0 {
						olderThan = job.Config.DraftRetention
					}
					return purgeDrafts(ctx, job.Service, time.Now(), olderThan, opts.batchSize)
				})
			})
			return err
		},
	}
	purge.Flags().DurationVar(&opts.olderThan, "older-than", 0, "delete drafts last saved before now minus this (default DRAFT_RETENTION)")
	purge.Flags().IntVar(&opts.batchSize, "batch-size", 500, "rows deleted per statement")

	cmd.AddCommand(remind, purge)
	return cmd
}

func withJob(envFile string, fn func(job *di.DraftMaintenanceJob) ([]string, error)) ([]string, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	job, cleanup, err := di.InitializeDraftMaintenance()
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return fn(job)
}

func remindDrafts(ctx context.Context, m maintainer, now time.Time, idleFor time.Duration, limit int) ([]string, error) {
	report, err := m.SendReminders(ctx, now, idleFor, limit)
	details := []string{
		fmt.Sprintf("idle for: %s", idleFor),
		fmt.Sprintf("candidates: %d", report.Candidates),
		fmt.Sprintf("reminded: %d", report.Reminded),
		fmt.Sprintf("failed: %d", report.Failed),
	}
	if err != nil {
		return details, err
	}
	if report.Failed > 0 {
		return details, fmt.Errorf("%d reminders failed", report.Failed)
	}
	return details, nil
}

func purgeDrafts(ctx context.Context, m maintainer, now time.Time, olderThan time.Duration, batchSize int) ([]string, error) {
	cutoff := now.Add(-olderThan).UTC()
	deleted, err := m.Purge(ctx, cutoff, batchSize)
	details := []string{
		"cutoff: " + cutoff.Format(time.RFC3339),
		fmt.Sprintf("deleted: %d", deleted),
	}
	return details, err
}

func run(opts *options, title, op string, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if opts.ci {
		details, err := fn(ctx)
		common.PrintCIResult(err == nil, title, details, err)
		return details, err
	}
	return ui.Run(ctx, title+" ("+op+")", fn)
}
