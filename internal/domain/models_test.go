package domain

import (
	"reflect"
	"strings"
	"testing"
)

func TestIntakeDraftTokenIsUniqueAndHidden(t *testing.T) {
	typ := reflect.TypeOf(IntakeDraft{})

	token, ok := typ.FieldByName("Token")
	if !ok {
		t.Fatal("missing IntakeDraft.Token field")
	}
	if !strings.Contains(token.Tag.Get("gorm"), "uniqueIndex") {
		t.Fatalf("IntakeDraft.Token gorm tag missing uniqueIndex: %q", token.Tag.Get("gorm"))
	}
	if got := token.Tag.Get("json"); got != "-" {
		t.Fatalf("expected IntakeDraft.Token json tag '-', got %q", got)
	}

	updated, ok := typ.FieldByName("UpdatedAt")
	if !ok {
		t.Fatal("missing IntakeDraft.UpdatedAt")
	}
	if !strings.Contains(updated.Tag.Get("gorm"), "index") {
		t.Fatalf("IntakeDraft.UpdatedAt should be indexed: %q", updated.Tag.Get("gorm"))
	}
}

func TestIntakeRecordContracts(t *testing.T) {
	typ := reflect.TypeOf(IntakeRecord{})

	status, ok := typ.FieldByName("Status")
	if !ok {
		t.Fatal("missing IntakeRecord.Status field")
	}
	if !strings.Contains(status.Tag.Get("gorm"), "default:pending") {
		t.Fatalf("IntakeRecord.Status gorm tag missing default:pending: %q", status.Tag.Get("gorm"))
	}

	txn, ok := typ.FieldByName("PaypalTransactionID")
	if !ok {
		t.Fatal("missing IntakeRecord.PaypalTransactionID field")
	}
	if !strings.Contains(txn.Tag.Get("gorm"), "uniqueIndex") {
		t.Fatalf("IntakeRecord.PaypalTransactionID should be unique: %q", txn.Tag.Get("gorm"))
	}

	for _, name := range []string{"FirstName", "LastName", "Email", "Phone", "CityState", "EmploymentStatus", "TargetRoles"} {
		f, ok := typ.FieldByName(name)
		if !ok {
			t.Fatalf("missing IntakeRecord.%s", name)
		}
		if !strings.Contains(f.Tag.Get("gorm"), "not null") {
			t.Fatalf("IntakeRecord.%s should be not null: %q", name, f.Tag.Get("gorm"))
		}
	}

	history, ok := typ.FieldByName("EmploymentHistory")
	if !ok {
		t.Fatal("missing IntakeRecord.EmploymentHistory")
	}
	if !strings.Contains(history.Tag.Get("gorm"), "foreignKey:IntakeRecordID") {
		t.Fatalf("IntakeRecord.EmploymentHistory gorm tag mismatch: %q", history.Tag.Get("gorm"))
	}
}

func TestParseIntakeStatus(t *testing.T) {
	cases := map[string]IntakeStatus{
		"pending":       IntakeStatusPending,
		" In_Progress ": IntakeStatusInProgress,
		"COMPLETED":     IntakeStatusCompleted,
	}
	for in, want := range cases {
		got, ok := ParseIntakeStatus(in)
		if !ok || got != want {
			t.Fatalf("ParseIntakeStatus(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "done", "archived"} {
		if _, ok := ParseIntakeStatus(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestIntakeDraftSections(t *testing.T) {
	empty := IntakeDraft{}
	s, err := empty.Sections()
	if err != nil {
		t.Fatalf("sections of empty payload: %v", err)
	}
	if s.TargetRoles != nil || len(s.History()) != 0 {
		t.Fatalf("expected zero sections, got %+v", s)
	}

	d := IntakeDraft{Payload: []byte(`{"target_roles":"Site Supervisor","employment_history":[{"job_title":"Operator","employer":"BHP","start_date":"01/2020","end_date":"Current","employment_type":"full_time"}]}`)}
	s, err = d.Sections()
	if err != nil {
		t.Fatalf("sections: %v", err)
	}
	if StringValue(s.TargetRoles) != "Site Supervisor" {
		t.Fatalf("unexpected target roles: %q", StringValue(s.TargetRoles))
	}
	if h := s.History(); len(h) != 1 || !h[0].IsCurrent() {
		t.Fatalf("unexpected history: %+v", h)
	}

	broken := IntakeDraft{Payload: []byte(`{"target_roles":`)}
	if _, err := broken.Sections(); err == nil {
		t.Fatal("expected decode error for truncated payload")
	}
}
