package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/repository"
	"github.com/allresumeservices/client-intake/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rr.Body.String())
	}
	return env
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rr)
	if env.Error == nil {
		t.Fatalf("expected error envelope, got %s", rr.Body.String())
	}
	return env.Error.Code
}

// serve routes a single request through chi so URL params resolve.
func serve(method, pattern, target, body string, h http.HandlerFunc, mutate ...func(*http.Request) *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for _, m := range mutate {
		req = m(req)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type stubDraftService struct {
	saveFn   func(ctx context.Context, token string, in service.SaveDraftInput) (*service.DraftView, error)
	loadFn   func(ctx context.Context, token string) (*service.DraftView, error)
	deleteFn func(ctx context.Context, token string) error
}

func (s *stubDraftService) Save(ctx context.Context, token string, in service.SaveDraftInput) (*service.DraftView, error) {
	return s.saveFn(ctx, token, in)
}

func (s *stubDraftService) Load(ctx context.Context, token string) (*service.DraftView, error) {
	return s.loadFn(ctx, token)
}

func (s *stubDraftService) Delete(ctx context.Context, token string) error {
	return s.deleteFn(ctx, token)
}

type stubFinalizeService struct {
	finalizeFn func(ctx context.Context, token string) (*domain.IntakeRecord, error)
}

func (s *stubFinalizeService) Finalize(ctx context.Context, token string) (*domain.IntakeRecord, error) {
	return s.finalizeFn(ctx, token)
}

type stubTokenService struct {
	issueFn func(ctx context.Context, in service.IssueTokenInput) (*service.IssuedToken, error)
}

func (s *stubTokenService) Issue(ctx context.Context, in service.IssueTokenInput) (*service.IssuedToken, error) {
	return s.issueFn(ctx, in)
}

type stubAdminService struct {
	listFn   func(ctx context.Context, f service.IntakeListFilter) (repository.PageResult[domain.IntakeRecord], error)
	getFn    func(ctx context.Context, id uint) (*domain.IntakeRecord, error)
	byTxnFn  func(ctx context.Context, txn string) (*domain.IntakeRecord, error)
	updateFn func(ctx context.Context, id uint, in service.UpdateStatusInput, actor service.Actor) (*domain.IntakeRecord, error)
}

func (s *stubAdminService) List(ctx context.Context, f service.IntakeListFilter) (repository.PageResult[domain.IntakeRecord], error) {
	return s.listFn(ctx, f)
}

func (s *stubAdminService) Get(ctx context.Context, id uint) (*domain.IntakeRecord, error) {
	return s.getFn(ctx, id)
}

func (s *stubAdminService) GetByTransaction(ctx context.Context, txn string) (*domain.IntakeRecord, error) {
	return s.byTxnFn(ctx, txn)
}

func (s *stubAdminService) UpdateStatus(ctx context.Context, id uint, in service.UpdateStatusInput, actor service.Actor) (*domain.IntakeRecord, error) {
	return s.updateFn(ctx, id, in, actor)
}

type stubUploadService struct {
	presignFn func(ctx context.Context, token string, in service.PresignUploadInput) (*service.PresignedUpload, error)
	deleteFn  func(ctx context.Context, token, key string) error
}

func (s *stubUploadService) PresignUpload(ctx context.Context, token string, in service.PresignUploadInput) (*service.PresignedUpload, error) {
	return s.presignFn(ctx, token, in)
}

func (s *stubUploadService) DeleteUpload(ctx context.Context, token, key string) error {
	return s.deleteFn(ctx, token, key)
}

type recordingNotifier struct {
	*service.LogIntakeNotifier
	submitted []service.IntakeSubmittedNotification
	links     []service.ResumeLinkNotification
	changes   []service.StatusChangedNotification
	err       error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{LogIntakeNotifier: service.NewLogIntakeNotifier(discardLogger())}
}

func (n *recordingNotifier) IntakeSubmitted(_ context.Context, in service.IntakeSubmittedNotification) error {
	n.submitted = append(n.submitted, in)
	return n.err
}

func (n *recordingNotifier) ResumeLinkIssued(_ context.Context, in service.ResumeLinkNotification) error {
	n.links = append(n.links, in)
	return n.err
}

func (n *recordingNotifier) StatusChanged(_ context.Context, in service.StatusChangedNotification) error {
	n.changes = append(n.changes, in)
	return n.err
}
