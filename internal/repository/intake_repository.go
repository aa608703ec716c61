package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/observability"
)

type IntakeListQuery struct {
	PageRequest
	Status        string
	Search        string
	Service       string
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
	SortBy        string
	SortOrder     string
}

// StatusUpdate carries the admin-writable fields. Nil fields are left alone.
type StatusUpdate struct {
	Status     *domain.IntakeStatus
	AdminNotes *string
	UpdatedAt  time.Time
}

type IntakeRepository interface {
	Create(ctx context.Context, record *domain.IntakeRecord) error
	CreateHistoryEntry(ctx context.Context, entry *domain.EmploymentHistoryEntry) error
	FindByID(ctx context.Context, id uint) (*domain.IntakeRecord, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.IntakeRecord, error)
	ListPaged(ctx context.Context, q IntakeListQuery) (PageResult[domain.IntakeRecord], error)
	UpdateStatus(ctx context.Context, id uint, in StatusUpdate) (*domain.IntakeRecord, error)
}

var intakeSortColumns = map[string]string{
	"submitted_at": "submitted_at",
	"updated_at":   "updated_at",
	"status":       "status",
	"last_name":    "last_name",
	"email":        "email",
	"id":           "id",
}

type GormIntakeRepository struct{ db *gorm.DB }

func NewIntakeRepository(db *gorm.DB) IntakeRepository {
	return &GormIntakeRepository{db: db}
}

// Create inserts the record row only. History rows are written one by one
// with CreateHistoryEntry so their sort order is explicit.
func (r *GormIntakeRepository) Create(ctx context.Context, record *domain.IntakeRecord) error {
	if record.Status == "" {
		record.Status = domain.IntakeStatusPending
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			observability.RecordRepositoryOperation(ctx, "intake", "create", "conflict")
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, record.TransactionID())
		}
		observability.RecordRepositoryOperation(ctx, "intake", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "intake", "create", "success")
	return nil
}

func (r *GormIntakeRepository) CreateHistoryEntry(ctx context.Context, entry *domain.EmploymentHistoryEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "employment_history", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "employment_history", "create", "success")
	return nil
}

func (r *GormIntakeRepository) FindByID(ctx context.Context, id uint) (*domain.IntakeRecord, error) {
	return r.findOne(ctx, "find_by_id", func(q *gorm.DB) *gorm.DB { return q.Where("id = ?", id) })
}

func (r *GormIntakeRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.IntakeRecord, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, ErrIntakeNotFound
	}
	return r.findOne(ctx, "find_by_transaction", func(q *gorm.DB) *gorm.DB {
		return q.Where("paypal_transaction_id = ?", transactionID)
	})
}

func (r *GormIntakeRepository) findOne(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) (*domain.IntakeRecord, error) {
	var record domain.IntakeRecord
	err := scope(r.db.WithContext(ctx)).
		Preload("EmploymentHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order asc").Order("id asc")
		}).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "intake", op, "not_found")
			return nil, ErrIntakeNotFound
		}
		observability.RecordRepositoryOperation(ctx, "intake", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "intake", op, "success")
	return &record, nil
}

// ListPaged returns records without their history rows; the detail lookup
// loads those.
func (r *GormIntakeRepository) ListPaged(ctx context.Context, q IntakeListQuery) (PageResult[domain.IntakeRecord], error) {
	page := normalizePageRequest(q.PageRequest)
	base := r.db.WithContext(ctx).Model(&domain.IntakeRecord{})

	if status := strings.TrimSpace(q.Status); status != "" {
		base = base.Where("status = ?", status)
	}
	if service := strings.TrimSpace(q.Service); service != "" {
		base = base.Where("LOWER(purchased_service) = ?", strings.ToLower(service))
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		like := "%" + term + "%"
		base = base.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(COALESCE(paypal_transaction_id, '')) LIKE ? OR LOWER(order_reference) LIKE ?",
			like, like, like, like, like,
		)
	}
	if q.SubmittedFrom != nil {
		base = base.Where("submitted_at >= ?", *q.SubmittedFrom)
	}
	if q.SubmittedTo != nil {
		base = base.Where("submitted_at < ?", *q.SubmittedTo)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "intake", "list", "error")
		return PageResult[domain.IntakeRecord]{}, err
	}

	column, order := normalizeSort(q.SortBy, q.SortOrder, intakeSortColumns, "submitted_at")
	var items []domain.IntakeRecord
	err := base.Session(&gorm.Session{}).
		Order(fmt.Sprintf("%s %s", column, order)).
		Order("id " + order).
		Offset(page.offset()).
		Limit(page.PageSize).
		Find(&items).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "intake", "list", "error")
		return PageResult[domain.IntakeRecord]{}, err
	}
	observability.RecordRepositoryOperation(ctx, "intake", "list", "success")
	return PageResult[domain.IntakeRecord]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, page.PageSize),
	}, nil
}

// UpdateStatus writes status and notes in one statement, so either both
// change or neither does.
func (r *GormIntakeRepository) UpdateStatus(ctx context.Context, id uint, in StatusUpdate) (*domain.IntakeRecord, error) {
	updates := map[string]any{}
	if in.Status != nil {
		updates["status"] = string(*in.Status)
	}
	if in.AdminNotes != nil {
		updates["admin_notes"] = *in.AdminNotes
	}
	if len(updates) == 0 {
		return nil, errors.New("status update has no fields")
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = time.Now().UTC()
	}
	updates["updated_at"] = in.UpdatedAt

	res := r.db.WithContext(ctx).Model(&domain.IntakeRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "intake", "update_status", "error")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "intake", "update_status", "not_found")
		return nil, ErrIntakeNotFound
	}
	observability.RecordRepositoryOperation(ctx, "intake", "update_status", "success")
	return r.FindByID(ctx, id)
}
