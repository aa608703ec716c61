package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/allresumeservices/client-intake/internal/observability"
	"github.com/allresumeservices/client-intake/internal/security"
)

type TokenIssuer interface {
	Issue(claims security.TokenClaims) (string, error)
}

// TokenVerifier checks a resume token and returns the purchase it was
// issued for.
type TokenVerifier interface {
	Verify(token string) (security.TokenClaims, error)
}

// IssueTokenInput is what the payment collaborator knows when a purchase
// completes. Only the order reference is mandatory.
type IssueTokenInput struct {
	OrderReference      string `json:"order_reference"`
	PaypalTransactionID string `json:"paypal_transaction_id,omitempty"`
	ServicePurchased    string `json:"service_purchased,omitempty"`
	Email               string `json:"email,omitempty"`
	FirstName           string `json:"first_name,omitempty"`
}

type IssuedToken struct {
	Token               string    `json:"token"`
	ResumeURL           string    `json:"resume_url"`
	OrderReference      string    `json:"order_reference"`
	PaypalTransactionID string    `json:"paypal_transaction_id,omitempty"`
	ServicePurchased    string    `json:"service_purchased,omitempty"`
	IssuedAt            time.Time `json:"issued_at"`
}

// TokenService issues resume tokens. Nothing is stored here: the purchase is
// signed into the token and copied onto the draft row on the first autosave.
type TokenService struct {
	issuer        TokenIssuer
	resumeBaseURL string
	now           func() time.Time
}

func NewTokenService(issuer TokenIssuer, resumeBaseURL string) *TokenService {
	return &TokenService{issuer: issuer, resumeBaseURL: resumeBaseURL, now: time.Now}
}

func (s *TokenService) Issue(ctx context.Context, in IssueTokenInput) (out *IssuedToken, err error) {
	ctx, span := tracer.Start(ctx, "TokenService.Issue")
	defer func() { endSpan(span, err) }()

	in.OrderReference = strings.TrimSpace(in.OrderReference)
	if in.OrderReference == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "order_reference", Reason: "is required"}}}
	}
	span.SetAttributes(attribute.String("intake.order_reference", in.OrderReference))

	claims := security.TokenClaims{
		OrderReference:      in.OrderReference,
		PaypalTransactionID: strings.TrimSpace(in.PaypalTransactionID),
		ServicePurchased:    strings.TrimSpace(in.ServicePurchased),
	}
	token, err := s.issuer.Issue(claims)
	if err != nil {
		return nil, err
	}
	observability.RecordTokenIssued(ctx)
	return &IssuedToken{
		Token:               token,
		ResumeURL:           s.ResumeURL(token),
		OrderReference:      claims.OrderReference,
		PaypalTransactionID: claims.PaypalTransactionID,
		ServicePurchased:    claims.ServicePurchased,
		IssuedAt:            s.now().UTC(),
	}, nil
}

// ResumeURL is the link a client follows to continue an intake.
func (s *TokenService) ResumeURL(token string) string {
	base := strings.TrimSpace(s.resumeBaseURL)
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "?resume_token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("resume_token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// verifyToken returns the signed purchase behind token. Without a verifier
// every non-empty token is accepted with empty claims.
func verifyToken(v TokenVerifier, token string) (security.TokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return security.TokenClaims{}, ErrInvalidToken
	}
	if v == nil {
		return security.TokenClaims{}, nil
	}
	claims, err := v.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrInvalidToken) {
			return security.TokenClaims{}, ErrInvalidToken
		}
		return security.TokenClaims{}, err
	}
	return claims, nil
}

// provenanceMismatches lists the purchase fields a client sent that differ
// from the signed claims. An empty client value is not a mismatch.
func provenanceMismatches(claims security.TokenClaims, order, txn, svc string) []FieldError {
	var out []FieldError
	for _, f := range []struct{ field, signed, sent string }{
		{"order_reference", claims.OrderReference, order},
		{"paypal_transaction_id", claims.PaypalTransactionID, txn},
		{"service_purchased", claims.ServicePurchased, svc},
	} {
		if sent := strings.TrimSpace(f.sent); sent != "" && sent != f.signed {
			out = append(out, FieldError{Field: f.field, Reason: "does not match the purchase this link was issued for"})
		}
	}
	return out
}
