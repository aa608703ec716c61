package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/observability"
	"github.com/allresumeservices/client-intake/internal/repository"
	"github.com/allresumeservices/client-intake/internal/security"
)

// FinalizeService promotes a draft into an intake record. The record, its
// history rows and the draft delete commit together or not at all.
type FinalizeService struct {
	uow       repository.UnitOfWork
	verifier  TokenVerifier
	validator *intakeValidator
	logger    *slog.Logger
	now       func() time.Time
}

func NewFinalizeService(uow repository.UnitOfWork, verifier TokenVerifier, logger *slog.Logger) *FinalizeService {
	return &FinalizeService{
		uow:       uow,
		verifier:  verifier,
		validator: newIntakeValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *FinalizeService) Finalize(ctx context.Context, token string) (record *domain.IntakeRecord, err error) {
	ctx, span := tracer.Start(ctx, "FinalizeService.Finalize")
	defer func() { endSpan(span, err) }()

	claims, err := verifyToken(s.verifier, token)
	if err != nil {
		return nil, err
	}

	var created *domain.IntakeRecord
	txErr := s.uow.WithinTx(ctx, func(drafts repository.DraftRepository, intakes repository.IntakeRepository) error {
		draft, err := drafts.FindByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if fields := provenanceMismatches(claims, draft.OrderReference, draft.PaypalTransactionID, draft.ServicePurchased); len(fields) > 0 {
			return &ValidationError{Fields: fields}
		}
		sections, err := draft.Sections()
		if err != nil {
			return err
		}
		if fields := s.validator.ValidateForFinalize(draft, sections); len(fields) > 0 {
			return &ValidationError{Fields: fields}
		}

		now := s.now().UTC()
		rec := recordFromDraft(draft, sections)
		rec.SubmittedAt = now
		rec.UpdatedAt = now
		if err := intakes.Create(ctx, rec); err != nil {
			return err
		}

		entries := sections.History().Entries(rec.ID)
		for i := range entries {
			if err := intakes.CreateHistoryEntry(ctx, &entries[i]); err != nil {
				return fmt.Errorf("insert employment history %d: %w", i, err)
			}
		}
		rec.EmploymentHistory = entries

		if err := drafts.DeleteByToken(ctx, token); err != nil {
			return err
		}
		created = rec
		return nil
	})
	if txErr != nil {
		return nil, s.mapFinalizeError(ctx, token, txErr)
	}

	span.SetAttributes(attribute.Int64("intake.id", int64(created.ID)), attribute.Int("intake.history_rows", len(created.EmploymentHistory)))
	observability.RecordFinalize(ctx, "success")
	return created, nil
}

func (s *FinalizeService) mapFinalizeError(ctx context.Context, token string, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		observability.RecordFinalize(ctx, "invalid")
		return verr
	case errors.Is(err, repository.ErrDraftNotFound):
		observability.RecordFinalize(ctx, "not_found")
		return ErrDraftNotFound
	case errors.Is(err, repository.ErrDuplicateTransaction):
		observability.RecordFinalize(ctx, "duplicate")
		return fmt.Errorf("%w: %v", ErrDuplicateIntake, err)
	default:
		observability.RecordFinalize(ctx, "error")
		s.logger.ErrorContext(ctx, "finalize rolled back",
			"token_fingerprint", security.TokenFingerprint(token),
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrFinalizeFailed, err)
	}
}

func recordFromDraft(d *domain.IntakeDraft, s domain.IntakeSections) *domain.IntakeRecord {
	rec := &domain.IntakeRecord{
		OrderReference:   strings.TrimSpace(d.OrderReference),
		PurchasedService: strings.TrimSpace(d.ServicePurchased),

		FirstName:       strings.TrimSpace(d.FirstName),
		LastName:        strings.TrimSpace(d.LastName),
		Email:           strings.ToLower(strings.TrimSpace(d.Email)),
		Phone:           trimmed(s.Phone),
		CityState:       trimmed(s.CityState),
		BestContactTime: trimmed(s.BestContactTime),

		EmploymentStatus:    trimmed(s.EmploymentStatus),
		CurrentJobTitle:     trimmed(s.CurrentJobTitle),
		CurrentEmployer:     trimmed(s.CurrentEmployer),
		CurrentRoleOverview: domain.StringValue(s.CurrentRoleOverview),

		TargetRoles:         trimmed(s.TargetRoles),
		PreferredIndustries: trimmed(s.PreferredIndustries),
		LocationPreferences: trimmed(s.LocationPreferences),
		WorkArrangements:    nonNil(domain.StringsValue(s.WorkArrangements)),
		JobAdLink1:          trimmed(s.JobAdLink1),
		JobAdLink2:          trimmed(s.JobAdLink2),
		JobAdLink3:          trimmed(s.JobAdLink3),

		HighestQualification:     trimmed(s.HighestQualification),
		Institution:              trimmed(s.Institution),
		YearCompleted:            trimmed(s.YearCompleted),
		AdditionalQualifications: domain.StringValue(s.AdditionalQualifications),

		DriversLicence:     trimmed(s.DriversLicence),
		HighRiskLicences:   domain.StringValue(s.HighRiskLicences),
		SiteInductions:     domain.StringValue(s.SiteInductions),
		SecurityClearances: domain.StringValue(s.SecurityClearances),

		TechnicalSkills:        domain.StringValue(s.TechnicalSkills),
		InterpersonalStrengths: domain.StringValue(s.InterpersonalStrengths),

		EmploymentGaps:  domain.StringValue(s.EmploymentGaps),
		KeyAchievements: domain.StringValue(s.KeyAchievements),
		PreferredStyle:  domain.StringValue(s.PreferredStyle),
		HearAboutUs:     trimmed(s.HearAboutUs),

		ResumeFileURL:      domain.StringValue(s.ResumeFileURL),
		SupportingDocsURLs: nonNil(domain.StringsValue(s.SupportingDocsURLs)),

		Status: domain.IntakeStatusPending,
	}
	if txn := strings.TrimSpace(d.PaypalTransactionID); txn != "" {
		rec.PaypalTransactionID = &txn
	}
	return rec
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
