package service

import (
	"context"

	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/repository"
)

type DraftServiceInterface interface {
	Save(ctx context.Context, token string, in SaveDraftInput) (*DraftView, error)
	Load(ctx context.Context, token string) (*DraftView, error)
	Delete(ctx context.Context, token string) error
}

type FinalizeServiceInterface interface {
	Finalize(ctx context.Context, token string) (*domain.IntakeRecord, error)
}

type TokenServiceInterface interface {
	Issue(ctx context.Context, in IssueTokenInput) (*IssuedToken, error)
}

type IntakeAdminServiceInterface interface {
	List(ctx context.Context, f IntakeListFilter) (repository.PageResult[domain.IntakeRecord], error)
	Get(ctx context.Context, id uint) (*domain.IntakeRecord, error)
	GetByTransaction(ctx context.Context, transactionID string) (*domain.IntakeRecord, error)
	UpdateStatus(ctx context.Context, id uint, in UpdateStatusInput, actor Actor) (*domain.IntakeRecord, error)
}

var (
	_ DraftServiceInterface       = (*DraftService)(nil)
	_ FinalizeServiceInterface    = (*FinalizeService)(nil)
	_ TokenServiceInterface       = (*TokenService)(nil)
	_ IntakeAdminServiceInterface = (*IntakeAdminService)(nil)
	_ UploadService               = (*MinIOUploadService)(nil)
	_ IntakeNotifier              = (*KafkaIntakeNotifier)(nil)
	_ IntakeNotifier              = (*LogIntakeNotifier)(nil)
	_ IdempotencyStore            = (*RedisIdempotencyStore)(nil)
	_ IdempotencyStore            = (*InMemoryIdempotencyStore)(nil)
)
