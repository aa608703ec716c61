package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/allresumeservices/client-intake/internal/security"
)

const (
	maxUploadSize      = 10 * 1024 * 1024 // 10 MB
	presignedUploadTTL = 15 * time.Minute
	uploadPathPrefix   = "intake"

	UploadKindResume        = "resume"
	UploadKindSupportingDoc = "supporting_doc"
)

var (
	ErrFileTooBig           = errors.New("file size exceeds 10MB limit")
	ErrInvalidFileType      = errors.New("invalid file type, only PDF, DOC and DOCX documents are allowed")
	ErrInvalidUploadKind    = errors.New("upload kind must be resume or supporting_doc")
	ErrBucketCreationFailed = errors.New("failed to create storage bucket")
	ErrDeleteFailed         = errors.New("failed to delete file")
	ErrURLGenerationFailed  = errors.New("failed to generate presigned URL")
	ErrUnauthorizedAccess   = errors.New("object does not belong to this intake")

	allowedUploadTypes = map[string]string{
		"application/pdf":    ".pdf",
		"application/msword": ".doc",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	}
)

type PresignUploadInput struct {
	Kind        string `json:"kind"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// PresignedUpload is a browser form upload: POST the file as multipart field
// "file" to UploadURL together with FormFields, then store FileURL in the
// draft. Storage enforces the declared content type and size.
type PresignedUpload struct {
	Method     string            `json:"method"`
	UploadURL  string            `json:"upload_url"`
	FormFields map[string]string `json:"form_fields"`
	FileURL    string            `json:"file_url"`
	ObjectKey  string            `json:"object_key"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// UploadService is the file-upload collaborator. The intake only ever stores
// the returned FileURL as an opaque string.
type UploadService interface {
	PresignUpload(ctx context.Context, token string, in PresignUploadInput) (*PresignedUpload, error)
	DeleteUpload(ctx context.Context, token, objectKey string) error
}

// MinIOUploadService implements UploadService on MinIO/S3-compatible storage.
// The bucket is checked lazily on first use so startup never waits on storage.
type MinIOUploadService struct {
	client     *minio.Client
	bucketName string

	mu          sync.Mutex
	bucketReady bool
	now         func() time.Time
}

func NewMinIOUploadService(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOUploadService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOUploadService{client: client, bucketName: bucketName, now: time.Now}, nil
}

func (s *MinIOUploadService) ensureBucketExists(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("%w: check bucket existence: %v", ErrBucketCreationFailed, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket: %v", ErrBucketCreationFailed, err)
		}
	}
	s.bucketReady = true
	return nil
}

func (s *MinIOUploadService) PresignUpload(ctx context.Context, token string, in PresignUploadInput) (*PresignedUpload, error) {
	ext, err := validateUpload(in)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, err
	}

	objectKey := path.Join(ownerPrefix(token), in.Kind, uuid.NewString()+ext)
	expiresAt := s.now().UTC().Add(presignedUploadTTL)
	policy, err := newUploadPolicy(s.bucketName, objectKey, in, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}
	u, fields, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}
	return &PresignedUpload{
		Method:     http.MethodPost,
		UploadURL:  u.String(),
		FormFields: fields,
		FileURL:    s.client.EndpointURL().JoinPath(s.bucketName, objectKey).String(),
		ObjectKey:  objectKey,
		ExpiresAt:  expiresAt,
	}, nil
}

// newUploadPolicy pins the object key and content type and caps the body at
// the size the client declared.
func newUploadPolicy(bucket, objectKey string, in PresignUploadInput, expiresAt time.Time) (*minio.PostPolicy, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(bucket); err != nil {
		return nil, err
	}
	if err := policy.SetKey(objectKey); err != nil {
		return nil, err
	}
	if err := policy.SetExpires(expiresAt); err != nil {
		return nil, err
	}
	if err := policy.SetContentType(strings.ToLower(strings.TrimSpace(in.ContentType))); err != nil {
		return nil, err
	}
	if err := policy.SetContentLengthRange(1, in.Size); err != nil {
		return nil, err
	}
	return policy, nil
}

// DeleteUpload removes an object uploaded under the same token. Keys outside
// the token's prefix are refused.
func (s *MinIOUploadService) DeleteUpload(ctx context.Context, token, objectKey string) error {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return nil
	}
	if path.Clean(objectKey) != objectKey || !strings.HasPrefix(objectKey, ownerPrefix(token)+"/") {
		return ErrUnauthorizedAccess
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

func validateUpload(in PresignUploadInput) (string, error) {
	if in.Kind != UploadKindResume && in.Kind != UploadKindSupportingDoc {
		return "", ErrInvalidUploadKind
	}
	if in.Size <= 0 || in.Size > maxUploadSize {
		return "", ErrFileTooBig
	}
	ext, ok := allowedUploadTypes[strings.ToLower(strings.TrimSpace(in.ContentType))]
	if !ok {
		return "", ErrInvalidFileType
	}
	return ext, nil
}

// ownerPrefix namespaces uploads by token fingerprint so the bearer token
// never appears in object keys.
func ownerPrefix(token string) string {
	return uploadPathPrefix + "/" + security.TokenFingerprint(token)
}
