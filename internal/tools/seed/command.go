package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/allresumeservices/client-intake/internal/config"
	"github.com/allresumeservices/client-intake/internal/database"
	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/security"
	"github.com/allresumeservices/client-intake/internal/service"
	"github.com/allresumeservices/client-intake/internal/tools/common"
	"github.com/allresumeservices/client-intake/internal/tools/ui"
)

type options struct {
	envFile string
	ci      bool
	timeout time.Duration
	token   string
	email   string
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a demo intake draft for local development",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional env file")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "print a JSON result instead of the interactive view")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall timeout")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "resume token to seed under (a new one is issued when empty)")
	cmd.PersistentFlags().StringVar(&opts.email, "email", "demo.client@example.com", "client email on the demo draft")

	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Insert the demo draft",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := run(opts, "seed apply", "apply", func(ctx context.Context) ([]string, error) {
				cfg, db, err := common.LoadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer common.CloseDB(db)
				if err := database.Migrate(db.WithContext(ctx)); err != nil {
					return nil, err
				}
				token, claims, err := resolveToken(cfg, opts.token)
				if err != nil {
					return nil, err
				}
				report, err := database.SeedDemoDraft(db.WithContext(ctx), token, opts.email, database.DemoPurchase{
					OrderReference:      claims.OrderReference,
					PaypalTransactionID: claims.PaypalTransactionID,
					ServicePurchased:    claims.ServicePurchased,
				})
				if err != nil {
					return nil, err
				}
				resumeURL := service.NewTokenService(security.NewIntakeTokenIssuer(cfg.IntakeTokenSecret), cfg.IntakeResumeBaseURL).ResumeURL(token)
				if report.Noop {
					return []string{"draft already present", "resume_url: " + resumeURL}, nil
				}
				return []string{
					fmt.Sprintf("created drafts: %d", report.CreatedDrafts),
					"resume_url: " + resumeURL,
				}, nil
			})
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "dry-run",
		Short: "Report whether apply would insert anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := run(opts, "seed dry-run", "dry-run", func(ctx context.Context) ([]string, error) {
				cfg, db, err := common.LoadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer common.CloseDB(db)
				if strings.TrimSpace(opts.token) == "" {
					return []string{"a new token would be issued", "would create drafts: 1"}, nil
				}
				if _, _, err := resolveToken(cfg, opts.token); err != nil {
					return nil, err
				}
				var existing int64
				if err := db.WithContext(ctx).Model(&domain.IntakeDraft{}).Where("token = ?", strings.TrimSpace(opts.token)).Count(&existing).Error; err != nil {
					return nil, fmt.Errorf("count drafts: %w", err)
				}
				if existing > 0 {
					return []string{"draft already present", "would create drafts: 0"}, nil
				}
				return []string{"would create drafts: 1"}, nil
			})
			return err
		},
	})
	return cmd
}

var demoPurchase = security.TokenClaims{OrderReference: "DEMO-ORDER", ServicePurchased: "Professional Resume"}

// resolveToken checks a supplied token against the configured secret, or
// issues a fresh one for the demo purchase.
func resolveToken(cfg *config.Config, token string) (string, security.TokenClaims, error) {
	issuer := security.NewIntakeTokenIssuer(cfg.IntakeTokenSecret)
	token = strings.TrimSpace(token)
	if token == "" {
		issued, err := issuer.Issue(demoPurchase)
		return issued, demoPurchase, err
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		return "", security.TokenClaims{}, fmt.Errorf("token was not signed with INTAKE_TOKEN_SECRET: %w", err)
	}
	return token, claims, nil
}

func run(opts *options, title, op string, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = time.Minute
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
