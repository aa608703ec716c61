package migrate

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/allresumeservices/client-intake/internal/database"
	"github.com/allresumeservices/client-intake/internal/tools/common"
	"github.com/allresumeservices/client-intake/internal/tools/ui"
)

type options struct {
	envFile string
	ci      bool
	timeout time.Duration
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the intake database schema",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional env file")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "print a JSON result instead of the interactive view")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall timeout")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Create or update intake tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := run(opts, "migrate up", "up", func(ctx context.Context) ([]string, error) {
				_, db, err := common.LoadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer common.CloseDB(db)
				if err := database.Migrate(db.WithContext(ctx)); err != nil {
					return nil, err
				}
				return database.TableStatus(db.WithContext(ctx))
			})
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which intake tables exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := run(opts, "migrate status", "status", func(ctx context.Context) ([]string, error) {
				_, db, err := common.LoadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer common.CloseDB(db)
				return database.TableStatus(db.WithContext(ctx))
			})
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "plan",
		Short: "List the tables and columns migrate up would add",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := run(opts, "migrate plan", "plan", func(ctx context.Context) ([]string, error) {
				_, db, err := common.LoadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer common.CloseDB(db)
				changes, err := database.PendingChanges(db.WithContext(ctx))
				if err != nil {
					return nil, err
				}
				if len(changes) == 0 {
					return []string{"schema is up to date"}, nil
				}
				return changes, nil
			})
			return err
		},
	})
	return cmd
}

func run(opts *options, title, op string, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
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
