package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/observability"
	"github.com/allresumeservices/client-intake/internal/repository"
)

const defaultIntakeCacheTTL = 2 * time.Minute

type IntakeListFilter struct {
	Status        string
	Search        string
	Service       string
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// UpdateStatusInput is the admin patch. At least one field must be set; both
// are written in the same statement.
type UpdateStatusInput struct {
	Status     *string `json:"status"`
	AdminNotes *string `json:"admin_notes"`
}

type Actor struct {
	ID   string
	Role string
}

type IntakeAdminService struct {
	intakes  repository.IntakeRepository
	cache    IntakeCacheStore
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewIntakeAdminService(intakes repository.IntakeRepository, cache IntakeCacheStore, logger *slog.Logger) *IntakeAdminService {
	if cache == nil {
		cache = NewNoopIntakeCacheStore()
	}
	return &IntakeAdminService{
		intakes:  intakes,
		cache:    cache,
		cacheTTL: defaultIntakeCacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *IntakeAdminService) List(ctx context.Context, f IntakeListFilter) (page repository.PageResult[domain.IntakeRecord], err error) {
	ctx, span := tracer.Start(ctx, "IntakeAdminService.List")
	defer func() { endSpan(span, err) }()

	status := ""
	if f.Status != "" {
		parsed, ok := domain.ParseIntakeStatus(f.Status)
		if !ok {
			return repository.PageResult[domain.IntakeRecord]{}, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
		}
		status = string(parsed)
	}
	return s.intakes.ListPaged(ctx, repository.IntakeListQuery{
		PageRequest:   repository.PageRequest{Page: f.Page, PageSize: f.PageSize},
		Status:        status,
		Search:        f.Search,
		Service:       f.Service,
		SubmittedFrom: f.SubmittedFrom,
		SubmittedTo:   f.SubmittedTo,
		SortBy:        f.SortBy,
		SortOrder:     f.SortOrder,
	})
}

func (s *IntakeAdminService) Get(ctx context.Context, id uint) (record *domain.IntakeRecord, err error) {
	ctx, span := tracer.Start(ctx, "IntakeAdminService.Get")
	defer func() { endSpan(span, err) }()

	if cached, ok, cacheErr := s.cache.Get(ctx, id); cacheErr != nil {
		s.logger.WarnContext(ctx, "intake cache read failed", "intake_id", id, "error", cacheErr)
	} else if ok {
		var rec domain.IntakeRecord
		if err := json.Unmarshal(cached, &rec); err == nil {
			return &rec, nil
		}
	}

	version, versionErr := s.cache.Version(ctx, id)
	if versionErr != nil {
		s.logger.WarnContext(ctx, "intake cache version read failed", "intake_id", id, "error", versionErr)
	}
	rec, err := s.intakes.FindByID(ctx, id)
	if err != nil {
		return nil, mapIntakeError(err)
	}
	if versionErr != nil {
		return rec, nil
	}
	if body, err := json.Marshal(rec); err == nil {
		stored, err := s.cache.Set(ctx, id, version, body, s.cacheTTL)
		if err != nil {
			s.logger.WarnContext(ctx, "intake cache write failed", "intake_id", id, "error", err)
		} else if !stored {
			s.logger.DebugContext(ctx, "intake cache write skipped after invalidation", "intake_id", id)
		}
	}
	return rec, nil
}

func (s *IntakeAdminService) GetByTransaction(ctx context.Context, transactionID string) (record *domain.IntakeRecord, err error) {
	ctx, span := tracer.Start(ctx, "IntakeAdminService.GetByTransaction")
	defer func() { endSpan(span, err) }()

	rec, err := s.intakes.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, mapIntakeError(err)
	}
	return rec, nil
}

// UpdateStatus relabels a record. Any status may follow any other.
func (s *IntakeAdminService) UpdateStatus(ctx context.Context, id uint, in UpdateStatusInput, actor Actor) (record *domain.IntakeRecord, err error) {
	ctx, span := tracer.Start(ctx, "IntakeAdminService.UpdateStatus")
	defer func() { endSpan(span, err) }()

	if in.Status == nil && in.AdminNotes == nil {
		return nil, ErrEmptyStatusUpdate
	}
	update := repository.StatusUpdate{AdminNotes: in.AdminNotes, UpdatedAt: s.now().UTC()}
	statusLabel := "unchanged"
	if in.Status != nil {
		parsed, ok := domain.ParseIntakeStatus(*in.Status)
		if !ok {
			observability.RecordStatusChange(ctx, "invalid", "rejected")
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *in.Status)
		}
		update.Status = &parsed
		statusLabel = string(parsed)
	}

	rec, err := s.intakes.UpdateStatus(ctx, id, update)
	if err != nil {
		observability.RecordStatusChange(ctx, statusLabel, "error")
		return nil, mapIntakeError(err)
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "intake cache invalidation failed", "intake_id", id, "error", err)
	}

	observability.RecordStatusChange(ctx, statusLabel, "success")
	observability.EmitAudit(ctx, s.logger, observability.AuditInput{
		Event:     "intake.status_changed",
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		TargetID:  strconv.FormatUint(uint64(id), 10),
		Outcome:   "success",
		Attrs: []slog.Attr{
			slog.String("status", string(rec.Status)),
			slog.Bool("notes_changed", in.AdminNotes != nil),
		},
	})
	return rec, nil
}

func mapIntakeError(err error) error {
	if errors.Is(err, repository.ErrIntakeNotFound) {
		return ErrIntakeNotFound
	}
	return err
}
