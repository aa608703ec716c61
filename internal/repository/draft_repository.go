package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/observability"
)

// DraftUpsert is one autosave. Payload is a JSON object holding only the
// sections the client sent; it is merged key by key into the stored payload.
type DraftUpsert struct {
	Token               string
	Email               string
	FirstName           string
	LastName            string
	PaypalTransactionID string
	OrderReference      string
	ServicePurchased    string
	Payload             []byte
	SavedAt             time.Time
}

type DraftRepository interface {
	Upsert(ctx context.Context, in DraftUpsert) (*domain.IntakeDraft, error)
	FindByToken(ctx context.Context, token string) (*domain.IntakeDraft, error)
	FindByTokenForUpdate(ctx context.Context, token string) (*domain.IntakeDraft, error)
	DeleteByToken(ctx context.Context, token string) error
	ListIdle(ctx context.Context, idleSince time.Time, limit int) ([]domain.IntakeDraft, error)
	MarkReminderSent(ctx context.Context, id uint, at time.Time) error
	DeleteIdleBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

type GormDraftRepository struct{ db *gorm.DB }

func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &GormDraftRepository{db: db}
}

// Upsert writes the draft in a single statement so a failed save never leaves
// a half-merged row behind. A save without email and both names can only
// update an existing draft.
func (r *GormDraftRepository) Upsert(ctx context.Context, in DraftUpsert) (*domain.IntakeDraft, error) {
	payload := in.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if in.SavedAt.IsZero() {
		in.SavedAt = time.Now().UTC()
	}

	var out domain.IntakeDraft
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Email != "" && in.FirstName != "" && in.LastName != "" {
			if err := r.insertOrMerge(tx, in, payload); err != nil {
				return err
			}
		} else {
			if err := r.mergeExisting(tx, in, payload); err != nil {
				return err
			}
		}
		return tx.Where("token = ?", in.Token).First(&out).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "draft", "upsert", outcome(err, ErrDraftIdentityMissing))
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "draft", "upsert", "success")
	return &out, nil
}

func (r *GormDraftRepository) insertOrMerge(tx *gorm.DB, in DraftUpsert, payload []byte) error {
	draft := domain.IntakeDraft{
		Token:               in.Token,
		Email:               in.Email,
		FirstName:           in.FirstName,
		LastName:            in.LastName,
		PaypalTransactionID: in.PaypalTransactionID,
		OrderReference:      in.OrderReference,
		ServicePurchased:    in.ServicePurchased,
		Payload:             datatypes.JSON(payload),
		CreatedAt:           in.SavedAt,
		UpdatedAt:           in.SavedAt,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token"}},
		DoUpdates: clause.Assignments(map[string]any{
			"email":                 gorm.Expr(overwriteUnlessEmpty("email")),
			"first_name":            gorm.Expr(overwriteUnlessEmpty("first_name")),
			"last_name":             gorm.Expr(overwriteUnlessEmpty("last_name")),
			"paypal_transaction_id": gorm.Expr(keepOnceSet("paypal_transaction_id")),
			"order_reference":       gorm.Expr(keepOnceSet("order_reference")),
			"service_purchased":     gorm.Expr(keepOnceSet("service_purchased")),
			"payload":               gorm.Expr(mergeExcludedPayload(tx)),
			"updated_at":            gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&draft).Error
}

func (r *GormDraftRepository) mergeExisting(tx *gorm.DB, in DraftUpsert, payload []byte) error {
	updates := map[string]any{
		"payload":    gorm.Expr(mergeBoundPayload(tx), datatypes.JSON(payload)),
		"updated_at": in.SavedAt,
	}
	for col, v := range map[string]string{"email": in.Email, "first_name": in.FirstName, "last_name": in.LastName} {
		if v != "" {
			updates[col] = v
		}
	}
	for col, v := range map[string]string{
		"paypal_transaction_id": in.PaypalTransactionID,
		"order_reference":       in.OrderReference,
		"service_purchased":     in.ServicePurchased,
	} {
		if v != "" {
			updates[col] = gorm.Expr(fmt.Sprintf("COALESCE(NULLIF(%s, ''), ?)", col), v)
		}
	}
	res := tx.Model(&domain.IntakeDraft{}).Where("token = ?", in.Token).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDraftIdentityMissing
	}
	return nil
}

func overwriteUnlessEmpty(col string) string {
	return fmt.Sprintf("COALESCE(NULLIF(excluded.%[1]s, ''), intake_drafts.%[1]s)", col)
}

func keepOnceSet(col string) string {
	return fmt.Sprintf("COALESCE(NULLIF(intake_drafts.%[1]s, ''), excluded.%[1]s)", col)
}

// Payload merge is a top-level key merge: jsonb || on Postgres, json_patch on
// SQLite. Arrays are replaced, never concatenated.
func mergeExcludedPayload(db *gorm.DB) string {
	if isPostgres(db) {
		return "intake_drafts.payload || excluded.payload"
	}
	return "json_patch(intake_drafts.payload, excluded.payload)"
}

func mergeBoundPayload(db *gorm.DB) string {
	if isPostgres(db) {
		return "payload || CAST(? AS jsonb)"
	}
	return "json_patch(payload, ?)"
}

func (r *GormDraftRepository) FindByToken(ctx context.Context, token string) (*domain.IntakeDraft, error) {
	return r.findByToken(ctx, r.db.WithContext(ctx), token, "find_by_token")
}

// FindByTokenForUpdate locks the draft row on Postgres. Callers must be inside
// a transaction.
func (r *GormDraftRepository) FindByTokenForUpdate(ctx context.Context, token string) (*domain.IntakeDraft, error) {
	q := r.db.WithContext(ctx)
	if isPostgres(q) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findByToken(ctx, q, token, "find_for_update")
}

func (r *GormDraftRepository) findByToken(ctx context.Context, q *gorm.DB, token, op string) (*domain.IntakeDraft, error) {
	var draft domain.IntakeDraft
	if err := q.Where("token = ?", token).First(&draft).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "draft", op, "not_found")
			return nil, ErrDraftNotFound
		}
		observability.RecordRepositoryOperation(ctx, "draft", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "draft", op, "success")
	return &draft, nil
}

func (r *GormDraftRepository) DeleteByToken(ctx context.Context, token string) error {
	res := r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.IntakeDraft{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "draft", "delete", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "draft", "delete", "not_found")
		return ErrDraftNotFound
	}
	observability.RecordRepositoryOperation(ctx, "draft", "delete", "success")
	return nil
}

// ListIdle returns drafts untouched since idleSince that were never reminded
// and have an address to remind, oldest first.
func (r *GormDraftRepository) ListIdle(ctx context.Context, idleSince time.Time, limit int) ([]domain.IntakeDraft, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	var drafts []domain.IntakeDraft
	err := r.db.WithContext(ctx).
		Where("reminder_sent_at IS NULL AND email <> '' AND updated_at < ?", idleSince).
		Order("updated_at asc").Order("id asc").
		Limit(limit).
		Find(&drafts).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "draft", "list_idle", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "draft", "list_idle", "success")
	return drafts, nil
}

// MarkReminderSent stamps the draft without touching updated_at, so the idle
// clock used for purging keeps running.
func (r *GormDraftRepository) MarkReminderSent(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.IntakeDraft{}).
		Where("id = ? AND reminder_sent_at IS NULL", id).
		UpdateColumn("reminder_sent_at", at)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "draft", "mark_reminded", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "draft", "mark_reminded", "not_found")
		return ErrDraftNotFound
	}
	observability.RecordRepositoryOperation(ctx, "draft", "mark_reminded", "success")
	return nil
}

// DeleteIdleBefore removes drafts last saved before cutoff in batches and
// returns how many rows went away.
func (r *GormDraftRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = MaxPageSize
	}
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var ids []uint
		if err := r.db.WithContext(ctx).Model(&domain.IntakeDraft{}).
			Where("updated_at < ?", cutoff).
			Order("id asc").
			Limit(batchSize).
			Pluck("id", &ids).Error; err != nil {
			observability.RecordRepositoryOperation(ctx, "draft", "purge", "error")
			return total, err
		}
		if len(ids) == 0 {
			break
		}
		res := r.db.WithContext(ctx).Where("id IN ? AND updated_at < ?", ids, cutoff).Delete(&domain.IntakeDraft{})
		if res.Error != nil {
			observability.RecordRepositoryOperation(ctx, "draft", "purge", "error")
			return total, res.Error
		}
		total += res.RowsAffected
		if len(ids) < batchSize {
			break
		}
	}
	observability.RecordRepositoryOperation(ctx, "draft", "purge", "success")
	return total, nil
}

func outcome(err error, notFound ...error) string {
	for _, nf := range notFound {
		if errors.Is(err, nf) {
			return "not_found"
		}
	}
	return "error"
}
