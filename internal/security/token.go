package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// intakeTokenEntropy is the number of random bytes behind every resume token.
const intakeTokenEntropy = 32

var ErrInvalidToken = errors.New("invalid intake token")

func NewRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TokenClaims is the purchase a resume token was issued for.
type TokenClaims struct {
	OrderReference      string `json:"o"`
	PaypalTransactionID string `json:"t,omitempty"`
	ServicePurchased    string `json:"s,omitempty"`
}

type tokenBody struct {
	Nonce string `json:"n"`
	TokenClaims
}

// IntakeTokenIssuer mints and checks resume tokens of the form
// <body>.<hmac>, where body carries a random nonce and the purchase claims.
// A token cannot be moved to another purchase without breaking the signature.
type IntakeTokenIssuer struct {
	secret []byte
}

func NewIntakeTokenIssuer(secret string) *IntakeTokenIssuer {
	return &IntakeTokenIssuer{secret: []byte(secret)}
}

func (i *IntakeTokenIssuer) Issue(claims TokenClaims) (string, error) {
	nonce, err := NewRandomString(intakeTokenEntropy)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(tokenBody{Nonce: nonce, TokenClaims: claims})
	if err != nil {
		return "", err
	}
	return i.sign(base64.RawURLEncoding.EncodeToString(raw)), nil
}

// Verify checks the signature and returns the purchase the token is bound to.
func (i *IntakeTokenIssuer) Verify(token string) (TokenClaims, error) {
	token = strings.TrimSpace(token)
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(i.sign(body)), []byte(token)) {
		return TokenClaims{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return TokenClaims{}, ErrInvalidToken
	}
	var decoded tokenBody
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.Nonce == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	return decoded.TokenClaims, nil
}

func (i *IntakeTokenIssuer) sign(body string) string {
	h := hmac.New(sha256.New, i.secret)
	h.Write([]byte(body))
	return body + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
