package repository

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWork runs fn inside one database transaction. Repositories handed to
// fn share that transaction; returning an error rolls everything back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(drafts DraftRepository, intakes IntakeRepository) error) error
}

type GormUnitOfWork struct{ db *gorm.DB }

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) WithinTx(ctx context.Context, fn func(drafts DraftRepository, intakes IntakeRepository) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormDraftRepository{db: tx}, &GormIntakeRepository{db: tx})
	})
}
