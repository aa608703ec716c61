package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/allresumeservices/client-intake/internal/security"
)

func TestUploadServiceLazyInitDoesNotBlockStartup(t *testing.T) {
	svc, err := NewMinIOUploadService("127.0.0.1:9", "key", "secret", "bucket", false)
	if err != nil {
		t.Fatalf("expected construction to succeed with unreachable storage, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = svc.PresignUpload(ctx, "tok_123", PresignUploadInput{Kind: UploadKindResume, ContentType: "application/pdf", Size: 1024})
	if !errors.Is(err, ErrBucketCreationFailed) {
		t.Fatalf("expected bucket error on first use, got %v", err)
	}
}

func TestPresignUploadValidatesBeforeNetwork(t *testing.T) {
	svc, err := NewMinIOUploadService("127.0.0.1:9", "key", "secret", "bucket", false)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	tests := []struct {
		name string
		in   PresignUploadInput
		want error
	}{
		{"unknown kind", PresignUploadInput{Kind: "avatar", ContentType: "application/pdf", Size: 10}, ErrInvalidUploadKind},
		{"zero size", PresignUploadInput{Kind: UploadKindResume, ContentType: "application/pdf", Size: 0}, ErrFileTooBig},
		{"too big", PresignUploadInput{Kind: UploadKindResume, ContentType: "application/pdf", Size: maxUploadSize + 1}, ErrFileTooBig},
		{"image", PresignUploadInput{Kind: UploadKindSupportingDoc, ContentType: "image/png", Size: 10}, ErrInvalidFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PresignUpload(context.Background(), "tok_123", tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateUploadExtensions(t *testing.T) {
	cases := map[string]string{
		"application/pdf":    ".pdf",
		"Application/MSWord": ".doc",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	}
	for contentType, want := range cases {
		got, err := validateUpload(PresignUploadInput{Kind: UploadKindResume, ContentType: contentType, Size: maxUploadSize})
		if err != nil || got != want {
			t.Fatalf("validateUpload(%q)=%q,%v want %q", contentType, got, err, want)
		}
	}
}

func TestUploadPolicyEnforcesTypeAndSize(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := PresignUploadInput{Kind: UploadKindResume, ContentType: " Application/PDF ", Size: 2048}
	policy, err := newUploadPolicy("intake-files", "intake/abc/resume/x.pdf", in, expires)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	doc := policy.String()
	for _, want := range []string{
		`["eq","$bucket","intake-files"]`,
		`["eq","$key","intake/abc/resume/x.pdf"]`,
		`["eq","$Content-Type","application/pdf"]`,
		`["content-length-range", 1, 2048]`,
		`"expiration":"2026-03-01T12:00:00`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("policy %s missing %s", doc, want)
		}
	}

	if _, err := newUploadPolicy("intake-files", "intake/abc/resume/x.pdf", PresignUploadInput{ContentType: "application/pdf"}, expires); err == nil {
		t.Fatal("expected an empty size range to be refused")
	}
}

func TestDeleteUploadEnforcesOwnership(t *testing.T) {
	svc, err := NewMinIOUploadService("127.0.0.1:9", "key", "secret", "bucket", false)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	own := "intake/" + security.TokenFingerprint("tok_mine")
	other := "intake/" + security.TokenFingerprint("tok_theirs")

	tests := []struct {
		name      string
		objectKey string
		want      error
	}{
		{"empty key is a no-op", "", nil},
		{"other token", other + "/resume/a.pdf", ErrUnauthorizedAccess},
		{"prefix without separator", own + "x/resume/a.pdf", ErrUnauthorizedAccess},
		{"path traversal", own + "/../" + security.TokenFingerprint("tok_theirs") + "/resume/a.pdf", ErrUnauthorizedAccess},
		{"bare prefix", own, ErrUnauthorizedAccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.DeleteUpload(context.Background(), "tok_mine", tt.objectKey)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOwnerPrefixHidesToken(t *testing.T) {
	prefix := ownerPrefix("tok_secret_value")
	if strings.Contains(prefix, "tok_secret_value") {
		t.Fatalf("object prefix must not contain the raw token: %s", prefix)
	}
	if !strings.HasPrefix(prefix, uploadPathPrefix+"/") {
		t.Fatalf("unexpected prefix %s", prefix)
	}
}
