package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/allresumeservices/client-intake/internal/domain"
)

func TestDraftUpsertMergesIntoSingleRow(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewDraftRepository(db)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := repo.Upsert(ctx, DraftUpsert{
		Token:               "tok-merge",
		Email:               "jordan@example.com",
		FirstName:           "Jordan",
		LastName:            "Reed",
		PaypalTransactionID: "PAY-1",
		OrderReference:      "ORD-1",
		ServicePurchased:    "Professional Resume",
		Payload:             mustJSON(t, domain.IntakeSections{Phone: domain.StringPtr("0400 111 222"), WorkArrangements: &[]string{"remote", "hybrid"}}),
		SavedAt:             t0,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := repo.Upsert(ctx, DraftUpsert{
		Token:               "tok-merge",
		Email:               "jordan.reed@example.com",
		PaypalTransactionID: "PAY-OTHER",
		Payload:             mustJSON(t, domain.IntakeSections{CityState: domain.StringPtr("Brisbane, QLD"), WorkArrangements: &[]string{"onsite"}}),
		SavedAt:             t0.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	third, err := repo.Upsert(ctx, DraftUpsert{
		Token:     "tok-merge",
		FirstName: "Jordy",
		LastName:  "Reed",
		Payload:   mustJSON(t, domain.IntakeSections{Phone: domain.StringPtr("")}),
		SavedAt:   t0.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}

	var count int64
	if err := db.Model(&domain.IntakeDraft{}).Where("token = ?", "tok-merge").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one draft row, got %d", count)
	}
	if first.ID != second.ID || second.ID != third.ID {
		t.Fatalf("expected same row across saves: %d %d %d", first.ID, second.ID, third.ID)
	}
	if third.FirstName != "Jordy" || third.Email != "jordan.reed@example.com" {
		t.Fatalf("identity fields not merged: %+v", third)
	}
	if third.PaypalTransactionID != "PAY-1" || third.OrderReference != "ORD-1" || third.ServicePurchased != "Professional Resume" {
		t.Fatalf("provenance must stay as first set: %+v", third)
	}
	if !third.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("expected updated_at to advance: %v -> %v", first.UpdatedAt, third.UpdatedAt)
	}

	sections, err := third.Sections()
	if err != nil {
		t.Fatalf("sections: %v", err)
	}
	if sections.Phone == nil || *sections.Phone != "" {
		t.Fatalf("expected phone cleared to empty string, got %v", sections.Phone)
	}
	if domain.StringValue(sections.CityState) != "Brisbane, QLD" {
		t.Fatalf("expected city_state kept, got %q", domain.StringValue(sections.CityState))
	}
	if got := domain.StringsValue(sections.WorkArrangements); len(got) != 1 || got[0] != "onsite" {
		t.Fatalf("expected arrays replaced, got %v", got)
	}
}

func TestDraftUpsertWithoutIdentityNeedsExistingDraft(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewDraftRepository(db)

	for _, in := range []DraftUpsert{
		{Token: "tok-anon", Email: "a@example.com", Payload: []byte(`{"phone":"1"}`)},
		{Token: "tok-anon", FirstName: "A", LastName: "B", Payload: []byte(`{"phone":"1"}`)},
	} {
		if _, err := repo.Upsert(context.Background(), in); !errors.Is(err, ErrDraftIdentityMissing) {
			t.Fatalf("expected ErrDraftIdentityMissing for %+v, got %v", in, err)
		}
	}
	if _, err := repo.FindByToken(context.Background(), "tok-anon"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected no draft to be created, got %v", err)
	}
}

func TestDraftFindAndDelete(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewDraftRepository(db)
	ctx := context.Background()

	if _, err := repo.FindByToken(ctx, "missing"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := repo.Upsert(ctx, DraftUpsert{Token: "tok-empty", Email: "a@example.com", FirstName: "A", LastName: "B"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	draft, err := repo.FindByToken(ctx, "tok-empty")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	sections, err := draft.Sections()
	if err != nil || sections.Phone != nil {
		t.Fatalf("expected empty sections, got %+v err=%v", sections, err)
	}
	locked, err := repo.FindByTokenForUpdate(ctx, "tok-empty")
	if err != nil || locked.ID != draft.ID {
		t.Fatalf("find for update: %+v %v", locked, err)
	}

	if err := repo.DeleteByToken(ctx, "tok-empty"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteByToken(ctx, "tok-empty"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected second delete not found, got %v", err)
	}
}

func TestDraftIdleReminderAndPurge(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewDraftRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	saves := map[string]time.Time{
		"tok-old":    now.Add(-200 * 24 * time.Hour),
		"tok-idle":   now.Add(-48 * time.Hour),
		"tok-recent": now.Add(-time.Hour),
	}
	for token, at := range saves {
		if _, err := repo.Upsert(ctx, DraftUpsert{Token: token, Email: "a@example.com", FirstName: "A", LastName: "B", SavedAt: at}); err != nil {
			t.Fatalf("upsert %s: %v", token, err)
		}
	}

	legacy := domain.IntakeDraft{Token: "tok-no-email", FirstName: "A", LastName: "B", Payload: []byte(`{}`), CreatedAt: saves["tok-old"], UpdatedAt: saves["tok-old"]}
	if err := db.Create(&legacy).Error; err != nil {
		t.Fatalf("create draft without email: %v", err)
	}

	idle, err := repo.ListIdle(ctx, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 2 || idle[0].Token != "tok-old" || idle[1].Token != "tok-idle" {
		t.Fatalf("unexpected idle drafts: %+v", idle)
	}

	if err := repo.MarkReminderSent(ctx, idle[1].ID, now); err != nil {
		t.Fatalf("mark reminded: %v", err)
	}
	if err := repo.MarkReminderSent(ctx, idle[1].ID, now); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected second mark to be rejected, got %v", err)
	}
	reminded, err := repo.FindByToken(ctx, "tok-idle")
	if err != nil {
		t.Fatalf("find reminded: %v", err)
	}
	if reminded.ReminderSentAt == nil || !reminded.UpdatedAt.Equal(saves["tok-idle"]) {
		t.Fatalf("expected reminder stamp without touching updated_at: %+v", reminded)
	}

	idle, err = repo.ListIdle(ctx, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list idle again: %v", err)
	}
	if len(idle) != 1 || idle[0].Token != "tok-old" {
		t.Fatalf("expected reminded draft to drop out: %+v", idle)
	}

	deleted, err := repo.DeleteIdleBefore(ctx, now.Add(-24*time.Hour), 1)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 purged drafts, got %d", deleted)
	}
	if _, err := repo.FindByToken(ctx, "tok-recent"); err != nil {
		t.Fatalf("recent draft should survive purge: %v", err)
	}
}
