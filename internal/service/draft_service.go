package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/observability"
	"github.com/allresumeservices/client-intake/internal/repository"
	"github.com/allresumeservices/client-intake/internal/security"
)

// SaveDraftInput is one autosave. Identity fields sit next to the flattened
// sections; any section left nil keeps its stored value. Provenance fields
// are optional echoes of the purchase signed into the token and are rejected
// when they disagree with it.
type SaveDraftInput struct {
	Email               string `json:"email,omitempty"`
	FirstName           string `json:"first_name,omitempty"`
	LastName            string `json:"last_name,omitempty"`
	PaypalTransactionID string `json:"paypal_transaction_id,omitempty"`
	OrderReference      string `json:"order_reference,omitempty"`
	ServicePurchased    string `json:"service_purchased,omitempty"`
	domain.IntakeSections
}

type DraftView struct {
	Email               string    `json:"email"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	PaypalTransactionID string    `json:"paypal_transaction_id,omitempty"`
	OrderReference      string    `json:"order_reference,omitempty"`
	ServicePurchased    string    `json:"service_purchased,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	domain.IntakeSections
}

type DraftService struct {
	drafts    repository.DraftRepository
	verifier  TokenVerifier
	validator *intakeValidator
	logger    *slog.Logger
	now       func() time.Time
}

func NewDraftService(drafts repository.DraftRepository, verifier TokenVerifier, logger *slog.Logger) *DraftService {
	return &DraftService{
		drafts:    drafts,
		verifier:  verifier,
		validator: newIntakeValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *DraftService) Save(ctx context.Context, token string, in SaveDraftInput) (view *DraftView, err error) {
	ctx, span := tracer.Start(ctx, "DraftService.Save")
	defer func() { endSpan(span, err) }()

	claims, err := verifyToken(s.verifier, token)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fields := provenanceMismatches(claims, in.OrderReference, in.PaypalTransactionID, in.ServicePurchased)
	if email != "" && !s.validator.ValidEmail(email) {
		fields = append(fields, FieldError{Field: "email", Reason: fieldReasons["email"]})
	}
	if len(fields) > 0 {
		observability.RecordAutosave(ctx, "rejected")
		return nil, &ValidationError{Fields: fields}
	}

	sections := in.IntakeSections
	if sections.EmploymentHistory != nil {
		reindexed := sections.EmploymentHistory.Reindex()
		sections.EmploymentHistory = &reindexed
	}
	payload, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("encode draft payload: %w", err)
	}

	draft, err := s.drafts.Upsert(ctx, repository.DraftUpsert{
		Token:               token,
		Email:               email,
		FirstName:           strings.TrimSpace(in.FirstName),
		LastName:            strings.TrimSpace(in.LastName),
		PaypalTransactionID: claims.PaypalTransactionID,
		OrderReference:      claims.OrderReference,
		ServicePurchased:    claims.ServicePurchased,
		Payload:             payload,
		SavedAt:             s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDraftIdentityMissing) {
			observability.RecordAutosave(ctx, "rejected")
			return nil, identityMissing(in)
		}
		observability.RecordAutosave(ctx, "error")
		s.logger.WarnContext(ctx, "autosave failed",
			"token_fingerprint", security.TokenFingerprint(token),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrAutosaveFailed, err)
	}
	observability.RecordAutosave(ctx, "success")
	return draftView(draft)
}

func (s *DraftService) Load(ctx context.Context, token string) (view *DraftView, err error) {
	ctx, span := tracer.Start(ctx, "DraftService.Load")
	defer func() { endSpan(span, err) }()

	if _, err := verifyToken(s.verifier, token); err != nil {
		return nil, err
	}
	draft, err := s.drafts.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrDraftNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	return draftView(draft)
}

func (s *DraftService) Delete(ctx context.Context, token string) (err error) {
	ctx, span := tracer.Start(ctx, "DraftService.Delete")
	defer func() { endSpan(span, err) }()

	if _, err := verifyToken(s.verifier, token); err != nil {
		return err
	}
	if err := s.drafts.DeleteByToken(ctx, token); err != nil {
		if errors.Is(err, repository.ErrDraftNotFound) {
			return ErrDraftNotFound
		}
		return err
	}
	return nil
}

func identityMissing(in SaveDraftInput) *ValidationError {
	verr := &ValidationError{}
	if strings.TrimSpace(in.Email) == "" {
		verr.Fields = append(verr.Fields, FieldError{Field: "email", Reason: "is required to start a draft"})
	}
	if strings.TrimSpace(in.FirstName) == "" {
		verr.Fields = append(verr.Fields, FieldError{Field: "first_name", Reason: "is required to start a draft"})
	}
	if strings.TrimSpace(in.LastName) == "" {
		verr.Fields = append(verr.Fields, FieldError{Field: "last_name", Reason: "is required to start a draft"})
	}
	return verr
}

func draftView(d *domain.IntakeDraft) (*DraftView, error) {
	sections, err := d.Sections()
	if err != nil {
		return nil, err
	}
	return &DraftView{
		Email:               d.Email,
		FirstName:           d.FirstName,
		LastName:            d.LastName,
		PaypalTransactionID: d.PaypalTransactionID,
		OrderReference:      d.OrderReference,
		ServicePurchased:    d.ServicePurchased,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
		IntakeSections:      sections,
	}, nil
}
