package service

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/allresumeservices/client-intake/internal/database"
	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/repository"
	"github.com/allresumeservices/client-intake/internal/security"
)

const testTokenSecret = "0123456789abcdef0123456789abcdef"

func newServiceDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
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
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type intakeFixture struct {
	db       *gorm.DB
	issuer   *security.IntakeTokenIssuer
	drafts   *DraftService
	finalize *FinalizeService
	admin    *IntakeAdminService
}

func newIntakeFixture(t *testing.T) *intakeFixture {
	t.Helper()
	return newIntakeFixtureOn(newServiceDBForTest(t))
}

func newIntakeFixtureOn(db *gorm.DB) *intakeFixture {
	logger := discardLogger()
	issuer := security.NewIntakeTokenIssuer(testTokenSecret)
	return &intakeFixture{
		db:       db,
		issuer:   issuer,
		drafts:   NewDraftService(repository.NewDraftRepository(db), issuer, logger),
		finalize: NewFinalizeService(repository.NewUnitOfWork(db), issuer, logger),
		admin:    NewIntakeAdminService(repository.NewIntakeRepository(db), NewInMemoryIntakeCacheStore(), logger),
	}
}

// token issues a resume link for a purchase paid with txn. An empty txn
// gives a token bound to an order only.
func (f *intakeFixture) token(t *testing.T, txn string) string {
	t.Helper()
	tok, err := f.issuer.Issue(purchaseClaims(txn))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func purchaseClaims(txn string) security.TokenClaims {
	if txn == "" {
		return security.TokenClaims{OrderReference: "ORD-LOCAL"}
	}
	return security.TokenClaims{
		OrderReference:      "ORD-" + txn,
		PaypalTransactionID: txn,
		ServicePurchased:    "Executive Resume",
	}
}

// newFileServiceDBForTest opens a file-backed database with a real
// connection pool so goroutines contend the way separate requests do.
func newFileServiceDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "intake.db") + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
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
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func historyItem(title string) domain.EmploymentHistoryItem {
	return domain.EmploymentHistoryItem{
		JobTitle:       title,
		Employer:       title + " Group",
		StartDate:      "02/2019",
		EndDate:        "06/2021",
		EmploymentType: "full_time",
	}
}

// completeDraftInput is a save that satisfies every finalize rule.
func completeDraftInput(history ...domain.EmploymentHistoryItem) SaveDraftInput {
	in := SaveDraftInput{
		Email:     "casey@example.com",
		FirstName: "Casey",
		LastName:  "Nguyen",
		IntakeSections: domain.IntakeSections{
			Phone:            domain.StringPtr("0400 000 111"),
			CityState:        domain.StringPtr("Perth, WA"),
			EmploymentStatus: domain.StringPtr("employed_full_time"),
			TargetRoles:      domain.StringPtr("Operations Manager"),
		},
	}
	if len(history) > 0 {
		list := domain.EmploymentHistoryList(history).Reindex()
		in.EmploymentHistory = &list
	}
	return in
}
