package repository

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/allresumeservices/client-intake/internal/domain"
)

func newRepositoryDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(
		&domain.IntakeDraft{},
		&domain.IntakeRecord{},
		&domain.EmploymentHistoryEntry{},
	); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func newRecord(email, txn string) *domain.IntakeRecord {
	rec := &domain.IntakeRecord{
		FirstName:        "Jordan",
		LastName:         "Reed",
		Email:            email,
		Phone:            "0400 111 222",
		CityState:        "Brisbane, QLD",
		EmploymentStatus: "employed_full_time",
		TargetRoles:      "Project Manager",
		PurchasedService: "Professional Resume",
		OrderReference:   "ORD-" + email,
	}
	if txn != "" {
		rec.PaypalTransactionID = &txn
	}
	return rec
}
