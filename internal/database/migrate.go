package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/allresumeservices/client-intake/internal/domain"
)

func models() []any {
	return []any{
		&domain.IntakeDraft{},
		&domain.IntakeRecord{},
		&domain.EmploymentHistoryEntry{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models()...)
}

// TableStatus reports, per managed table, whether it exists.
func TableStatus(db *gorm.DB) ([]string, error) {
	out := make([]string, 0, len(models()))
	for _, m := range models() {
		table, _, err := tableColumns(db, m)
		if err != nil {
			return nil, err
		}
		state := "missing"
		if db.Migrator().HasTable(m) {
			state = "present"
		}
		out = append(out, fmt.Sprintf("%s: %s", table, state))
	}
	return out, nil
}

// PendingChanges lists the tables and columns Migrate would add. It does not
// detect type changes.
func PendingChanges(db *gorm.DB) ([]string, error) {
	var out []string
	for _, m := range models() {
		table, columns, err := tableColumns(db, m)
		if err != nil {
			return nil, err
		}
		if !db.Migrator().HasTable(m) {
			out = append(out, "create table "+table)
			continue
		}
		for _, col := range columns {
			if !db.Migrator().HasColumn(m, col) {
				out = append(out, fmt.Sprintf("add column %s.%s", table, col))
			}
		}
	}
	return out, nil
}

func tableColumns(db *gorm.DB, model any) (string, []string, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return "", nil, fmt.Errorf("parse model schema: %w", err)
	}
	return stmt.Schema.Table, stmt.Schema.DBNames, nil
}
